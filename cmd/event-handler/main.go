package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rental-ops/internal/config"
	"rental-ops/internal/domain"
	"rental-ops/internal/events"
	"rental-ops/internal/storage"
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

	minioClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalf("connect minio: %v", err)
	}

	source := events.NewMinioUploadEventSource(minioClient, cfg.MinioBucket, "", "")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("event-handler listening for object-created events on bucket=%s", cfg.MinioBucket)
	err = source.Run(ctx, func(parent context.Context, event events.UploadEvent) error {
		execCtx, cancel := context.WithTimeout(parent, 15*time.Second)
		defer cancel()

		doc := domain.Document{
			ID:            event.DocumentID,
			ApplicationID: event.ApplicationID,
			Type:          event.DocType,
			Filename:      event.Filename,
			ObjectKey:     event.ObjectKey,
			Status:        domain.VerificationPending,
		}
		if err := store.UpsertDocument(execCtx, doc); err != nil {
			return fmt.Errorf("register document for object %s: %w", event.ObjectKey, err)
		}
		if err := store.InsertAudit(execCtx, event.ApplicationID, domain.AuditDocumentUploaded, map[string]any{
			"document_id": event.DocumentID,
			"doc_type":    event.DocType,
			"object_key":  event.ObjectKey,
		}); err != nil {
			log.Printf("audit insert failed for object=%s: %v", event.ObjectKey, err)
		}

		log.Printf("registered document document_id=%s object=%s", event.DocumentID, event.ObjectKey)
		return nil
	})
	if err != nil {
		log.Fatalf("event-handler stopped with error: %v", err)
	}
}
