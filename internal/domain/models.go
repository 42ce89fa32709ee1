package domain

import "time"

type ApplicantType string

const (
	ApplicantPrimary     ApplicantType = "primary"
	ApplicantCoApplicant ApplicantType = "co_applicant"
	ApplicantGuarantor   ApplicantType = "guarantor"
)

type DocType string

const (
	DocTypeGovernmentID     DocType = "government_id"
	DocTypePaystub          DocType = "paystub"
	DocTypeBankStatement    DocType = "bank_statement"
	DocTypeEmploymentLetter DocType = "employment_letter"
	DocTypeReferenceLetter  DocType = "reference_letter"
	DocTypeOther            DocType = "other"
)

// RequiredDocTypes are the upload types every application must provide
// before it can leave documents_pending.
var RequiredDocTypes = []DocType{DocTypeGovernmentID, DocTypePaystub, DocTypeBankStatement}

func KnownDocType(t DocType) bool {
	switch t {
	case DocTypeGovernmentID, DocTypePaystub, DocTypeBankStatement,
		DocTypeEmploymentLetter, DocTypeReferenceLetter, DocTypeOther:
		return true
	}
	return false
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
	VerificationExpired  VerificationStatus = "expired"
)

type BackgroundCheckStatus string

const (
	BackgroundCheckNotStarted     BackgroundCheckStatus = ""
	BackgroundCheckPending        BackgroundCheckStatus = "pending"
	BackgroundCheckPassed         BackgroundCheckStatus = "passed"
	BackgroundCheckFailed         BackgroundCheckStatus = "failed"
	BackgroundCheckReviewRequired BackgroundCheckStatus = "review_required"
)

type InviteStatus string

const (
	InviteNotSent   InviteStatus = "not_sent"
	InviteSent      InviteStatus = "sent"
	InviteCompleted InviteStatus = "completed"
)

type Applicant struct {
	ID                    string                `json:"id"`
	ApplicationID         string                `json:"application_id"`
	Type                  ApplicantType         `json:"type"`
	FullName              string                `json:"full_name"`
	Email                 string                `json:"email"`
	Phone                 string                `json:"phone"`
	EmploymentStatus      string                `json:"employment_status"`
	EmployerName          string                `json:"employer_name"`
	AIScore               *float64              `json:"ai_score,omitempty"`
	BackgroundCheckStatus BackgroundCheckStatus `json:"background_check_status"`
	InviteStatus          InviteStatus          `json:"invite_status"`
}

type Document struct {
	ID            string             `json:"id"`
	ApplicationID string             `json:"application_id"`
	Type          DocType            `json:"doc_type"`
	Filename      string             `json:"filename"`
	ObjectKey     string             `json:"object_key"`
	Status        VerificationStatus `json:"verification_status"`
	UploadedAt    time.Time          `json:"uploaded_at"`
}

// Snapshot is the read-only view of an application the workflow engine
// evaluates. The engine never mutates it; callers rebuild it per request.
type Snapshot struct {
	Applicants []Applicant `json:"applicants"`
	Documents  []Document  `json:"documents"`
	AIScore    *float64    `json:"ai_score,omitempty"`
}

func (s Snapshot) PrimaryApplicant() (Applicant, bool) {
	for _, a := range s.Applicants {
		if a.Type == ApplicantPrimary {
			return a, true
		}
	}
	return Applicant{}, false
}

type ApplicationRecord struct {
	ID         string    `json:"id"`
	PropertyID string    `json:"property_id"`
	UnitID     string    `json:"unit_id"`
	Status     Stage     `json:"status"`
	AIScore    *float64  `json:"ai_score,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type StageTransition struct {
	ApplicationID string    `json:"application_id"`
	FromStage     Stage     `json:"from_stage"`
	ToStage       Stage     `json:"to_stage"`
	Bypassed      bool      `json:"bypassed"`
	BypassReason  *string   `json:"bypass_reason,omitempty"`
	Actor         string    `json:"actor"`
	CreatedAt     time.Time `json:"created_at"`
}

type AuditState string

const (
	AuditCreated           AuditState = "CREATED"
	AuditDocumentUploaded  AuditState = "DOCUMENT_UPLOADED"
	AuditDocumentVerified  AuditState = "DOCUMENT_VERIFIED"
	AuditScored            AuditState = "SCORED"
	AuditScreeningQueued   AuditState = "SCREENING_REVIEW_QUEUED"
	AuditScreeningResolved AuditState = "SCREENING_REVIEW_RESOLVED"
	AuditStageChanged      AuditState = "STAGE_CHANGED"
	AuditStageBypassed     AuditState = "STAGE_BYPASSED"
)

type ScreeningReviewDecision string

const (
	ScreeningReviewAccept  ScreeningReviewDecision = "accept"
	ScreeningReviewRescore ScreeningReviewDecision = "rescore"
	ScreeningReviewDismiss ScreeningReviewDecision = "dismiss"
)

type ScreeningReviewItem struct {
	ApplicationID string   `json:"application_id"`
	Score         float64  `json:"score"`
	RiskFactors   []string `json:"risk_factors"`
	Status        string   `json:"status"`
}

const ScreeningJSONSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["score", "summary", "risk_factors", "confidence"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "summary": {"type": ["string", "null"]},
    "risk_factors": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

// ScreeningExtraction is the strict JSON shape the screening model must
// return for a single applicant.
type ScreeningExtraction struct {
	Score       float64  `json:"score"`
	Summary     *string  `json:"summary"`
	RiskFactors []string `json:"risk_factors"`
	Confidence  float64  `json:"confidence"`
}
