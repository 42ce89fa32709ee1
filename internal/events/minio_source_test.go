package events

import (
	"testing"

	"rental-ops/internal/domain"
)

func TestParseObjectKey(t *testing.T) {
	tests := []struct {
		name      string
		objectKey string
		want      UploadEvent
		wantErr   bool
	}{
		{
			name:      "valid",
			objectKey: "app-1/paystub/doc-9/march.pdf",
			want: UploadEvent{
				ApplicationID: "app-1",
				DocType:       domain.DocTypePaystub,
				DocumentID:    "doc-9",
				Filename:      "march.pdf",
				ObjectKey:     "app-1/paystub/doc-9/march.pdf",
			},
		},
		{
			name:      "filename with slashes",
			objectKey: "app-1/bank_statement/doc-2/2026/aug/statement.pdf",
			want: UploadEvent{
				ApplicationID: "app-1",
				DocType:       domain.DocTypeBankStatement,
				DocumentID:    "doc-2",
				Filename:      "2026/aug/statement.pdf",
				ObjectKey:     "app-1/bank_statement/doc-2/2026/aug/statement.pdf",
			},
		},
		{name: "too few segments", objectKey: "app-1/paystub/doc-9", wantErr: true},
		{name: "unknown doc type", objectKey: "app-1/passport/doc-9/id.jpg", wantErr: true},
		{name: "empty", objectKey: "", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := parseObjectKey(tc.objectKey)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if event != tc.want {
				t.Fatalf("event mismatch: got %+v want %+v", event, tc.want)
			}
		})
	}
}

func TestDecodeObjectKey(t *testing.T) {
	decoded, err := decodeObjectKey("app-1%2Fpaystub%2Fdoc-9%2Fmarch%20final.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != "app-1/paystub/doc-9/march final.pdf" {
		t.Fatalf("decoded mismatch: got %q", decoded)
	}
}
