package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultHTTPPort        = "8080"
	defaultTemporalAddress = "localhost:7233"
	defaultTemporalNS      = "default"
	defaultTaskQueue       = "applicant-screening-task-queue"
	defaultOpenAIModel     = "gpt-4o-mini"
	defaultOpenAITimeout   = 30
	defaultMinioEndpoint   = "localhost:9000"
	defaultMinioBucket     = "application-documents"
	defaultBypassRoles     = "admin,manager"
)

type Config struct {
	HTTPPort           string
	PostgresDSN        string
	TemporalAddress    string
	TemporalNamespace  string
	TemporalTaskQueue  string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAITimeoutSec   int
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioUseSSL        bool
	WorkflowIDPrefix   string
	AllowedUploadBytes int64
	BypassRoles        []string
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:           getenv("HTTP_PORT", defaultHTTPPort),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		TemporalAddress:    getenv("TEMPORAL_ADDRESS", defaultTemporalAddress),
		TemporalNamespace:  getenv("TEMPORAL_NAMESPACE", defaultTemporalNS),
		TemporalTaskQueue:  getenv("TEMPORAL_TASK_QUEUE", defaultTaskQueue),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getenv("OPENAI_MODEL", defaultOpenAIModel),
		OpenAITimeoutSec:   getenvInt("OPENAI_TIMEOUT_SEC", defaultOpenAITimeout),
		MinioEndpoint:      getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:     os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:     os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:        getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:        getenvBool("MINIO_USE_SSL", false),
		WorkflowIDPrefix:   getenv("WORKFLOW_ID_PREFIX", "screening"),
		AllowedUploadBytes: int64(getenvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
		BypassRoles:        splitList(getenv("BYPASS_ROLES", defaultBypassRoles)),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}

	return cfg, nil
}

// CanBypass reports whether the acting operator's role carries stage-gate
// bypass authority. The workflow engine itself never authorizes.
func (c Config) CanBypass(role string) bool {
	for _, r := range c.BypassRoles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
