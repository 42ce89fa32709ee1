package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"rental-ops/internal/config"
	"rental-ops/internal/domain"
	"rental-ops/internal/storage"
	appTemporal "rental-ops/internal/temporal"
)

type Handler struct {
	cfg            config.Config
	store          *storage.PostgresStore
	blob           uploadBlobStore
	temporalClient client.Client
}

type uploadBlobStore interface {
	PutDocument(ctx context.Context, applicationID string, docType domain.DocType, documentID, filename string, content []byte) (string, error)
	GetDocument(ctx context.Context, objectKey string) ([]byte, error)
}

func NewHandler(cfg config.Config, store *storage.PostgresStore, blob uploadBlobStore, temporalClient client.Client) *Handler {
	return &Handler{cfg: cfg, store: store, blob: blob, temporalClient: temporalClient}
}

// operator identifies the acting dashboard user from request headers. Role
// resolution happens upstream; the API only maps role to bypass authority.
type operator struct {
	ID   string
	Role string
}

func operatorFromRequest(r *http.Request) operator {
	return operator{
		ID:   r.Header.Get("X-Operator-Id"),
		Role: r.Header.Get("X-Operator-Role"),
	}
}

type applicantRequest struct {
	Type             domain.ApplicantType `json:"type"`
	FullName         string               `json:"full_name"`
	Email            string               `json:"email"`
	Phone            string               `json:"phone"`
	EmploymentStatus string               `json:"employment_status"`
	EmployerName     string               `json:"employer_name"`
}

type createApplicationRequest struct {
	PropertyID string           `json:"property_id"`
	UnitID     string           `json:"unit_id"`
	Applicant  applicantRequest `json:"applicant"`
}

type checklistResponse struct {
	ApplicationID string                 `json:"application_id"`
	Stage         domain.Stage           `json:"stage"`
	Items         []domain.ChecklistItem `json:"items"`
}

type transitionRequest struct {
	To     domain.Stage         `json:"to"`
	Bypass domain.BypassRequest `json:"bypass"`
}

type transitionResponse struct {
	ApplicationID string                    `json:"application_id"`
	FromStage     domain.Stage              `json:"from_stage"`
	ToStage       domain.Stage              `json:"to_stage"`
	Decision      domain.TransitionDecision `json:"decision"`
	Warnings      []string                  `json:"warnings"`
	Committed     bool                      `json:"committed"`
}

type toggleRequest struct {
	Checked bool `json:"checked"`
}

type verificationRequest struct {
	Status domain.VerificationStatus `json:"status"`
}

type screeningReviewRequest struct {
	Decision domain.ScreeningReviewDecision `json:"decision"`
	Reviewer string                         `json:"reviewer,omitempty"`
	Note     string                         `json:"note,omitempty"`
}

func (h *Handler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req createApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.Applicant.FullName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "applicant.full_name is required"})
		return
	}

	applicationID := uuid.NewString()
	if err := h.store.CreateApplication(ctx, applicationID, req.PropertyID, req.UnitID); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to create application"})
		return
	}

	applicant := domain.Applicant{
		ID:               uuid.NewString(),
		ApplicationID:    applicationID,
		Type:             domain.ApplicantPrimary,
		FullName:         req.Applicant.FullName,
		Email:            req.Applicant.Email,
		Phone:            req.Applicant.Phone,
		EmploymentStatus: req.Applicant.EmploymentStatus,
		EmployerName:     req.Applicant.EmployerName,
		InviteStatus:     domain.InviteCompleted,
	}
	if err := h.store.AddApplicant(ctx, applicant); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to add primary applicant"})
		return
	}
	_ = h.store.InsertAudit(ctx, applicationID, domain.AuditCreated, map[string]any{"property_id": req.PropertyID})

	writeJSON(w, http.StatusCreated, map[string]any{
		"application_id": applicationID,
		"applicant_id":   applicant.ID,
		"status":         domain.StageNew,
	})
}

func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request, applicationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.store.GetApplication(ctx, applicationID)
	if err != nil {
		writeStoreError(w, err, "failed to fetch application")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) AddApplicant(w http.ResponseWriter, r *http.Request, applicationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req applicantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if !addableApplicantType(req.Type) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "type must be co_applicant or guarantor"})
		return
	}

	if _, err := h.store.GetApplication(ctx, applicationID); err != nil {
		writeStoreError(w, err, "failed to fetch application")
		return
	}

	applicant := domain.Applicant{
		ID:               uuid.NewString(),
		ApplicationID:    applicationID,
		Type:             req.Type,
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		EmploymentStatus: req.EmploymentStatus,
		EmployerName:     req.EmployerName,
		InviteStatus:     domain.InviteSent,
	}
	if err := h.store.AddApplicant(ctx, applicant); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to add applicant"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"applicant_id": applicant.ID})
}

func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request, applicationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if _, err := h.store.GetApplication(ctx, applicationID); err != nil {
		writeStoreError(w, err, "failed to fetch application")
		return
	}

	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart payload"})
		return
	}

	docType := domain.DocType(r.FormValue("doc_type"))
	if !domain.KnownDocType(docType) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown doc_type"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file form field is required"})
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read file"})
		return
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file exceeds size limit"})
		return
	}

	documentID := uuid.NewString()
	objectKey, err := h.blob.PutDocument(ctx, applicationID, docType, documentID, header.Filename, body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to upload file"})
		return
	}

	// Upload persists bytes to object storage and returns quickly; the
	// event-handler registers the documents row from the bucket
	// notification.
	writeJSON(w, http.StatusAccepted, map[string]any{
		"document_id": documentID,
		"object_key":  objectKey,
		"status":      domain.VerificationPending,
	})
}

func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	doc, err := h.store.GetDocument(ctx, documentID)
	if err != nil {
		writeStoreError(w, err, "failed to fetch document")
		return
	}

	content, err := h.blob.GetDocument(ctx, doc.ObjectKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch document content"})
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

func (h *Handler) SetDocumentVerification(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if !knownVerificationStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid verification status"})
		return
	}

	if err := h.store.SetDocumentVerification(ctx, documentID, req.Status); err != nil {
		writeStoreError(w, err, "failed to update document")
		return
	}
	if doc, lookupErr := h.store.GetDocument(ctx, documentID); lookupErr == nil {
		_ = h.store.InsertAudit(ctx, doc.ApplicationID, domain.AuditDocumentVerified, map[string]any{
			"document_id": documentID,
			"status":      req.Status,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": documentID, "verification_status": req.Status})
}

func (h *Handler) GetChecklist(w http.ResponseWriter, r *http.Request, applicationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, snap, toggles, err := h.loadWorkflowState(ctx, applicationID)
	if err != nil {
		writeStoreError(w, err, "failed to load application state")
		return
	}

	items := domain.MergeToggles(domain.BuildChecklist(rec.Status, snap), toggles)
	writeJSON(w, http.StatusOK, checklistResponse{ApplicationID: applicationID, Stage: rec.Status, Items: items})
}

func (h *Handler) ToggleChecklistItem(w http.ResponseWriter, r *http.Request, applicationID, itemID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	rec, snap, _, err := h.loadWorkflowState(ctx, applicationID)
	if err != nil {
		writeStoreError(w, err, "failed to load application state")
		return
	}

	item, found := findItem(domain.BuildChecklist(rec.Status, snap), itemID)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "checklist item not found for current stage"})
		return
	}
	if !item.Manual {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "item state is derived from application data"})
		return
	}

	if err := h.store.SetChecklistToggle(ctx, applicationID, itemID, req.Checked); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to persist toggle"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "checked": req.Checked})
}

func (h *Handler) PreviewTransition(w http.ResponseWriter, r *http.Request, applicationID string, to domain.Stage) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if !domain.ValidStage(to) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown target stage"})
		return
	}

	rec, snap, toggles, err := h.loadWorkflowState(ctx, applicationID)
	if err != nil {
		writeStoreError(w, err, "failed to load application state")
		return
	}

	op := operatorFromRequest(r)
	decision := domain.DecideTransition(rec.Status, snap, toggles, domain.BypassRequest{}, h.cfg.CanBypass(op.Role))
	warnings := domain.BuildWarnings(rec.Status, to, snap)

	writeJSON(w, http.StatusOK, transitionResponse{
		ApplicationID: applicationID,
		FromStage:     rec.Status,
		ToStage:       to,
		Decision:      decision,
		Warnings:      warnings,
	})
}

func (h *Handler) CommitTransition(w http.ResponseWriter, r *http.Request, applicationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if !domain.ValidStage(req.To) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown target stage"})
		return
	}

	op := operatorFromRequest(r)
	if op.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "X-Operator-Id header is required"})
		return
	}

	rec, snap, toggles, err := h.loadWorkflowState(ctx, applicationID)
	if err != nil {
		writeStoreError(w, err, "failed to load application state")
		return
	}

	decision := domain.DecideTransition(rec.Status, snap, toggles, req.Bypass, h.cfg.CanBypass(op.Role))
	warnings := domain.BuildWarnings(rec.Status, req.To, snap)
	resp := transitionResponse{
		ApplicationID: applicationID,
		FromStage:     rec.Status,
		ToStage:       req.To,
		Decision:      decision,
		Warnings:      warnings,
	}

	if !decision.Allowed {
		// Unmet items or an invalid/unauthorized bypass; the body carries
		// everything the dashboard needs to prompt the operator.
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	bypassed := req.Bypass.Requested && len(decision.MissingRequiredItemIDs) > 0
	transition := domain.StageTransition{
		ApplicationID: applicationID,
		FromStage:     rec.Status,
		ToStage:       req.To,
		Bypassed:      bypassed,
		Actor:         op.ID,
	}
	if bypassed {
		reason := req.Bypass.Reason
		transition.BypassReason = &reason
	}

	if err := h.store.CommitTransition(ctx, transition); err != nil {
		if errors.Is(err, storage.ErrStageConflict) {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "application stage changed, re-evaluate"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to commit transition"})
		return
	}

	auditState := domain.AuditStageChanged
	detail := map[string]any{"from": rec.Status, "to": req.To, "actor": op.ID}
	if bypassed {
		auditState = domain.AuditStageBypassed
		detail["bypass_reason"] = req.Bypass.Reason
		detail["missing_items"] = decision.MissingRequiredItemIDs
	}
	_ = h.store.InsertAudit(ctx, applicationID, auditState, detail)

	resp.Committed = true
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) StartScreening(w http.ResponseWriter, r *http.Request, applicationID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if _, err := h.store.GetApplication(ctx, applicationID); err != nil {
		writeStoreError(w, err, "failed to fetch application")
		return
	}

	workflowID := h.workflowID(applicationID)
	_, err := h.temporalClient.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: h.cfg.TemporalTaskQueue,
	}, appTemporal.ApplicantScreeningWorkflowName, appTemporal.WorkflowInput{ApplicationID: applicationID})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "screening already running", "workflow_id": workflowID})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to start screening"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"application_id": applicationID, "workflow_id": workflowID})
}

func (h *Handler) SubmitScreeningReview(w http.ResponseWriter, r *http.Request, applicationID string) {
	var req screeningReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	switch req.Decision {
	case domain.ScreeningReviewAccept, domain.ScreeningReviewRescore, domain.ScreeningReviewDismiss:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid decision"})
		return
	}

	signal := appTemporal.ScreeningReviewSignal{Decision: req.Decision, Reviewer: req.Reviewer, Note: req.Note}
	if err := h.temporalClient.SignalWorkflow(r.Context(), h.workflowID(applicationID), "", appTemporal.ScreeningReviewSignalName, signal); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to signal screening workflow"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"application_id": applicationID, "status": "review_signal_sent"})
}

func (h *Handler) PendingScreenings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.store.ListPendingScreeningReviews(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch pending screenings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) loadWorkflowState(ctx context.Context, applicationID string) (domain.ApplicationRecord, domain.Snapshot, map[string]bool, error) {
	rec, err := h.store.GetApplication(ctx, applicationID)
	if err != nil {
		return domain.ApplicationRecord{}, domain.Snapshot{}, nil, err
	}
	snap, err := h.store.LoadSnapshot(ctx, applicationID)
	if err != nil {
		return domain.ApplicationRecord{}, domain.Snapshot{}, nil, err
	}
	toggles, err := h.store.GetChecklistToggles(ctx, applicationID)
	if err != nil {
		return domain.ApplicationRecord{}, domain.Snapshot{}, nil, err
	}
	return rec, snap, toggles, nil
}

func (h *Handler) workflowID(applicationID string) string {
	return fmt.Sprintf("%s-%s", h.cfg.WorkflowIDPrefix, applicationID)
}

func addableApplicantType(t domain.ApplicantType) bool {
	return t == domain.ApplicantCoApplicant || t == domain.ApplicantGuarantor
}

func knownVerificationStatus(s domain.VerificationStatus) bool {
	switch s {
	case domain.VerificationPending, domain.VerificationVerified, domain.VerificationRejected, domain.VerificationExpired:
		return true
	}
	return false
}

func findItem(items []domain.ChecklistItem, itemID string) (domain.ChecklistItem, bool) {
	for _, item := range items {
		if item.ID == itemID {
			return item, true
		}
	}
	return domain.ChecklistItem{}, false
}

func writeStoreError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, sql.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
