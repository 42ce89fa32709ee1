package main

import (
	"log"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"rental-ops/internal/config"
	"rental-ops/internal/openai"
	"rental-ops/internal/storage"
	appTemporal "rental-ops/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.NewPostgresStore(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer store.Close()

	llm := openai.NewHTTPClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
	})
	if err != nil {
		log.Fatalf("connect temporal: %v", err)
	}
	defer temporalClient.Close()

	activities := &appTemporal.Activities{
		Store:          store,
		LLM:            llm,
		OpenAIModel:    cfg.OpenAIModel,
		OpenAITimeout:  time.Duration(cfg.OpenAITimeoutSec) * time.Second,
		OpenAIMaxRetry: 3,
	}

	w := worker.New(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(appTemporal.ApplicantScreeningWorkflow, workflow.RegisterOptions{Name: appTemporal.ApplicantScreeningWorkflowName})
	w.RegisterActivity(activities.LoadApplicantsActivity)
	w.RegisterActivity(activities.ScoreApplicantActivity)
	w.RegisterActivity(activities.PersistAggregateScoreActivity)
	w.RegisterActivity(activities.QueueScreeningReviewActivity)
	w.RegisterActivity(activities.ResolveScreeningReviewActivity)

	log.Printf("worker running on task queue %s", cfg.TemporalTaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker stopped with error: %v", err)
	}
}
