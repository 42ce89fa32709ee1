package events

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"

	"rental-ops/internal/domain"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

type UploadEvent struct {
	ApplicationID string
	DocType       domain.DocType
	DocumentID    string
	Filename      string
	ObjectKey     string
	EventName     string
}

type UploadEventSource interface {
	Run(ctx context.Context, handler func(context.Context, UploadEvent) error) error
}

type MinioUploadEventSource struct {
	client *minio.Client
	bucket string
	prefix string
	suffix string
}

func NewMinioUploadEventSource(client *minio.Client, bucket string, prefix string, suffix string) *MinioUploadEventSource {
	return &MinioUploadEventSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
		suffix: suffix,
	}
}

func (s *MinioUploadEventSource) Run(ctx context.Context, handler func(context.Context, UploadEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, s.suffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				event, err := parseObjectKey(objectKey)
				if err != nil {
					continue
				}
				event.EventName = record.EventName
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseObjectKey splits an application-documents object key of the form
// applicationID/docType/documentID/filename. Keys written by anything other
// than the upload endpoint are skipped rather than failing the stream.
func parseObjectKey(objectKey string) (UploadEvent, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	parts := strings.SplitN(cleaned, "/", 4)
	if len(parts) != 4 {
		return UploadEvent{}, fmt.Errorf("object key %q does not match applicationID/docType/documentID/filename", objectKey)
	}
	event := UploadEvent{
		ApplicationID: strings.TrimSpace(parts[0]),
		DocType:       domain.DocType(strings.TrimSpace(parts[1])),
		DocumentID:    strings.TrimSpace(parts[2]),
		Filename:      strings.TrimSpace(parts[3]),
		ObjectKey:     objectKey,
	}
	if event.ApplicationID == "" || event.DocumentID == "" || event.Filename == "" {
		return UploadEvent{}, fmt.Errorf("object key %q missing a path segment", objectKey)
	}
	if !domain.KnownDocType(event.DocType) {
		return UploadEvent{}, fmt.Errorf("object key %q carries unknown doc type %q", objectKey, event.DocType)
	}
	return event, nil
}
