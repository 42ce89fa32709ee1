package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"rental-ops/internal/domain"
)

// ErrStageConflict reports that a conditional stage update matched no row:
// another operator moved the application first.
var ErrStageConflict = errors.New("application stage changed concurrently")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) CreateApplication(ctx context.Context, id, propertyID, unitID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (id, property_id, unit_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, id, propertyID, unitID, domain.StageNew)
	return err
}

func (s *PostgresStore) GetApplication(ctx context.Context, applicationID string) (domain.ApplicationRecord, error) {
	var rec domain.ApplicationRecord
	var score sql.NullFloat64
	row := s.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(property_id, ''), COALESCE(unit_id, ''), status, ai_score, created_at, updated_at
		FROM applications
		WHERE id = $1
	`, applicationID)
	if err := row.Scan(&rec.ID, &rec.PropertyID, &rec.UnitID, &rec.Status, &score, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return domain.ApplicationRecord{}, err
	}
	if score.Valid {
		rec.AIScore = &score.Float64
	}
	return rec, nil
}

func (s *PostgresStore) AddApplicant(ctx context.Context, a domain.Applicant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applicants (id, application_id, type, full_name, email, phone,
		                        employment_status, employer_name, background_check_status, invite_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.ApplicationID, a.Type, a.FullName, a.Email, a.Phone,
		a.EmploymentStatus, a.EmployerName, string(a.BackgroundCheckStatus), a.InviteStatus)
	return err
}

func (s *PostgresStore) SaveApplicantScore(ctx context.Context, applicantID string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE applicants
		SET ai_score = $2
		WHERE id = $1
	`, applicantID, score)
	return err
}

func (s *PostgresStore) SaveApplicationScore(ctx context.Context, applicationID string, score float64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET ai_score = $2, updated_at = NOW()
		WHERE id = $1
	`, applicationID, score)
	return err
}

// UpsertDocument registers an uploaded document. Bucket notifications can be
// delivered more than once; the insert is idempotent on document id.
func (s *PostgresStore) UpsertDocument(ctx context.Context, d domain.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, application_id, doc_type, filename, object_key, verification_status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.ApplicationID, d.Type, d.Filename, d.ObjectKey, d.Status)
	return err
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (domain.Document, error) {
	var d domain.Document
	row := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, doc_type, filename, object_key, verification_status, uploaded_at
		FROM documents
		WHERE id = $1
	`, documentID)
	if err := row.Scan(&d.ID, &d.ApplicationID, &d.Type, &d.Filename, &d.ObjectKey, &d.Status, &d.UploadedAt); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

func (s *PostgresStore) SetDocumentVerification(ctx context.Context, documentID string, status domain.VerificationStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET verification_status = $2
		WHERE id = $1
	`, documentID, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LoadSnapshot assembles the read model the workflow engine evaluates:
// applicants, documents and the aggregate AI score for one application.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, applicationID string) (domain.Snapshot, error) {
	var snap domain.Snapshot

	var score sql.NullFloat64
	row := s.db.QueryRowContext(ctx, `SELECT ai_score FROM applications WHERE id = $1`, applicationID)
	if err := row.Scan(&score); err != nil {
		return domain.Snapshot{}, err
	}
	if score.Valid {
		snap.AIScore = &score.Float64
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, type, COALESCE(full_name, ''), COALESCE(email, ''), COALESCE(phone, ''),
		       COALESCE(employment_status, ''), COALESCE(employer_name, ''),
		       ai_score, COALESCE(background_check_status, ''), COALESCE(invite_status, 'not_sent')
		FROM applicants
		WHERE application_id = $1
		ORDER BY type = 'primary' DESC, id ASC
	`, applicationID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a domain.Applicant
		var aScore sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.ApplicationID, &a.Type, &a.FullName, &a.Email, &a.Phone,
			&a.EmploymentStatus, &a.EmployerName, &aScore, &a.BackgroundCheckStatus, &a.InviteStatus); err != nil {
			return domain.Snapshot{}, err
		}
		if aScore.Valid {
			a.AIScore = &aScore.Float64
		}
		snap.Applicants = append(snap.Applicants, a)
	}
	if err := rows.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	docRows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, doc_type, filename, object_key, verification_status, uploaded_at
		FROM documents
		WHERE application_id = $1
		ORDER BY uploaded_at ASC
	`, applicationID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer docRows.Close()
	for docRows.Next() {
		var d domain.Document
		if err := docRows.Scan(&d.ID, &d.ApplicationID, &d.Type, &d.Filename, &d.ObjectKey, &d.Status, &d.UploadedAt); err != nil {
			return domain.Snapshot{}, err
		}
		snap.Documents = append(snap.Documents, d)
	}
	if err := docRows.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	return snap, nil
}

func (s *PostgresStore) GetChecklistToggles(ctx context.Context, applicationID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, checked
		FROM checklist_toggles
		WHERE application_id = $1
	`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	toggles := make(map[string]bool)
	for rows.Next() {
		var itemID string
		var checked bool
		if err := rows.Scan(&itemID, &checked); err != nil {
			return nil, err
		}
		toggles[itemID] = checked
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return toggles, nil
}

func (s *PostgresStore) SetChecklistToggle(ctx context.Context, applicationID, itemID string, checked bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checklist_toggles (application_id, item_id, checked)
		VALUES ($1, $2, $3)
		ON CONFLICT (application_id, item_id) DO UPDATE SET
			checked = EXCLUDED.checked,
			updated_at = NOW()
	`, applicationID, itemID, checked)
	return err
}

// CommitTransition durably records an allowed stage change. The update is
// conditional on the stage the gate evaluated; if another operator committed
// first the transaction rolls back with ErrStageConflict and the caller must
// re-evaluate.
func (s *PostgresStore) CommitTransition(ctx context.Context, t domain.StageTransition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE applications
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, t.ApplicationID, t.FromStage, t.ToStage)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStageConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stage_transitions (application_id, from_stage, to_stage, bypassed, bypass_reason, actor)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ApplicationID, t.FromStage, t.ToStage, t.Bypassed, t.BypassReason, t.Actor)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) QueueScreeningReview(ctx context.Context, applicationID string, score float64, riskFactors []string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO screening_reviews (application_id, score, risk_factors, status)
		VALUES ($1, $2, $3, 'PENDING')
		ON CONFLICT (application_id) DO UPDATE SET
			score = EXCLUDED.score,
			risk_factors = EXCLUDED.risk_factors,
			status = 'PENDING',
			updated_at = NOW()
	`, applicationID, score, pq.Array(riskFactors))
	return err
}

func (s *PostgresStore) ResolveScreeningReview(ctx context.Context, applicationID string, resolution string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE screening_reviews
		SET status = $2, updated_at = NOW()
		WHERE application_id = $1
	`, applicationID, resolution)
	return err
}

func (s *PostgresStore) ListPendingScreeningReviews(ctx context.Context) ([]domain.ScreeningReviewItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT application_id, score, risk_factors, status
		FROM screening_reviews
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ScreeningReviewItem, 0)
	for rows.Next() {
		var item domain.ScreeningReviewItem
		var riskFactors []string
		if err := rows.Scan(&item.ApplicationID, &item.Score, pq.Array(&riskFactors), &item.Status); err != nil {
			return nil, err
		}
		item.RiskFactors = riskFactors
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) SaveModelOutput(ctx context.Context, applicationID, applicantID, phase, output string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO screening_attempts (application_id, applicant_id, phase, output)
		VALUES ($1, $2, $3, $4)
	`, applicationID, applicantID, phase, output)
	return err
}

func (s *PostgresStore) InsertAudit(ctx context.Context, applicationID string, state domain.AuditState, detail any) error {
	var payload []byte
	switch v := detail.(type) {
	case nil:
		payload = []byte("{}")
	case []byte:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = b
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (application_id, state, detail)
		VALUES ($1, $2, $3::jsonb)
	`, applicationID, state, string(payload))
	return err
}

func (s *PostgresStore) CountApplications(ctx context.Context) (int64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`)
	var count int64
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count applications: %w", err)
	}
	return count, nil
}
