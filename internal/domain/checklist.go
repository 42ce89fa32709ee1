package domain

// ChecklistLink points the operator at the screen where an item is actioned.
type ChecklistLink struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

type ChecklistItem struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required"`
	Checked     bool           `json:"checked"`
	Manual      bool           `json:"manual"`
	Link        *ChecklistLink `json:"link,omitempty"`
}

// checklistRule is one row of a stage's rule table. Derived rules compute
// Checked from the snapshot via Satisfied. Manual rules have no automatic
// signal: they start unchecked and the caller overlays persisted toggle
// state with MergeToggles before gating.
type checklistRule struct {
	ID          string
	Label       string
	Description string
	Required    bool
	Link        *ChecklistLink
	Satisfied   func(Snapshot) bool // nil marks a manual rule
	When        func(Snapshot) bool // nil means always included
}

const (
	ItemPrimaryContactInfo       = "primary_contact_info"
	ItemEmploymentInfo           = "employment_info"
	ItemApplicationReviewed      = "application_reviewed"
	ItemDocumentsRequested       = "documents_requested"
	ItemRequiredDocsUploaded     = "required_documents_uploaded"
	ItemCoApplicantInvitesDone   = "coapplicant_invites_completed"
	ItemGovernmentIDVerified     = "government_id_verified"
	ItemIncomeDocumentVerified   = "income_document_verified"
	ItemNoRejectedDocuments      = "no_rejected_documents"
	ItemAllDocumentsVerified     = "all_documents_verified"
	ItemAIScorePresent           = "ai_score_present"
	ItemAIScoreReviewed          = "ai_score_reviewed"
	ItemAIScoreThreshold         = "ai_score_threshold"
	ItemAllApplicantsScored      = "all_applicants_scored"
	ItemBackgroundCheckStarted   = "background_check_initiated"
	ItemBackgroundChecksComplete = "background_checks_complete"
	ItemCriminalHistoryReviewed  = "criminal_history_reviewed"
	ItemEvictionHistoryReviewed  = "eviction_history_reviewed"
	ItemReferencesVerified       = "references_verified"
	ItemFullApplicationReviewed  = "full_application_reviewed"
	ItemDecisionMade             = "decision_made"
	ItemApplicantNotified        = "applicant_notified"
	ItemHoldingDepositCollected  = "holding_deposit_collected"
)

// AIScoreThreshold is the minimum aggregate screening score an application
// needs to clear ai_evaluated without a bypass.
const AIScoreThreshold = 50

var stageChecklists = map[Stage][]checklistRule{
	StageNew: {
		{
			ID: ItemPrimaryContactInfo, Label: "Primary applicant contact info",
			Description: "Primary applicant has both an email address and a phone number.",
			Required:    true,
			Satisfied: func(s Snapshot) bool {
				p, ok := s.PrimaryApplicant()
				return ok && p.Email != "" && p.Phone != ""
			},
		},
		{
			ID: ItemEmploymentInfo, Label: "Employment details provided",
			Description: "Primary applicant has an employment status and employer name.",
			Required:    true,
			Satisfied: func(s Snapshot) bool {
				p, ok := s.PrimaryApplicant()
				return ok && p.EmploymentStatus != "" && p.EmployerName != ""
			},
		},
		{
			ID: ItemApplicationReviewed, Label: "Application reviewed for completeness",
			Required: true,
		},
	},
	StageDocumentsPending: {
		{
			ID: ItemDocumentsRequested, Label: "Documents requested from applicants",
			Required: true,
		},
		{
			ID: ItemRequiredDocsUploaded, Label: "Required documents uploaded",
			Description: "Government ID, paystub and bank statement have all been uploaded.",
			Required:    true,
			Link:        &ChecklistLink{Label: "View documents", Href: "documents"},
			Satisfied:   hasAllRequiredDocTypes,
		},
		{
			ID: ItemCoApplicantInvitesDone, Label: "Co-applicant invites completed",
			Description: "Every co-applicant and guarantor has completed their invite.",
			Required:    true,
			When:        func(s Snapshot) bool { return len(s.Applicants) > 1 },
			Satisfied: func(s Snapshot) bool {
				for _, a := range s.Applicants {
					if a.Type == ApplicantPrimary {
						continue
					}
					if a.InviteStatus != InviteCompleted {
						return false
					}
				}
				return true
			},
		},
	},
	StageDocumentsReceived: {
		{
			ID: ItemGovernmentIDVerified, Label: "Government ID verified",
			Required:  true,
			Satisfied: anyDocVerified(DocTypeGovernmentID),
		},
		{
			ID: ItemIncomeDocumentVerified, Label: "Income document verified",
			Description: "At least one paystub or bank statement is verified.",
			Required:    true,
			Satisfied: func(s Snapshot) bool {
				return anyDocVerified(DocTypePaystub)(s) || anyDocVerified(DocTypeBankStatement)(s)
			},
		},
		{
			ID: ItemNoRejectedDocuments, Label: "No rejected documents",
			Required: true,
			Satisfied: func(s Snapshot) bool {
				for _, d := range s.Documents {
					if d.Status == VerificationRejected {
						return false
					}
				}
				return true
			},
		},
		{
			ID: ItemAllDocumentsVerified, Label: "All documents verified",
			Required: false,
			Satisfied: func(s Snapshot) bool {
				for _, d := range s.Documents {
					if d.Status != VerificationVerified {
						return false
					}
				}
				return len(s.Documents) > 0
			},
		},
	},
	StageAIEvaluated: {
		{
			ID: ItemAIScorePresent, Label: "AI evaluation completed",
			Required:  true,
			Satisfied: func(s Snapshot) bool { return s.AIScore != nil },
		},
		{
			ID: ItemAIScoreReviewed, Label: "AI score reviewed",
			Required: true,
		},
		{
			ID: ItemAIScoreThreshold, Label: "AI score meets minimum threshold",
			Description: "Aggregate screening score is at least 50.",
			Required:    true,
			Satisfied:   func(s Snapshot) bool { return s.AIScore != nil && *s.AIScore >= AIScoreThreshold },
		},
		{
			ID: ItemAllApplicantsScored, Label: "All applicants individually scored",
			Required: false,
			Satisfied: func(s Snapshot) bool {
				for _, a := range s.Applicants {
					if a.AIScore == nil {
						return false
					}
				}
				return len(s.Applicants) > 0
			},
		},
	},
	StageScreening: {
		{
			ID: ItemBackgroundCheckStarted, Label: "Background check initiated",
			Required: true,
		},
		{
			ID: ItemBackgroundChecksComplete, Label: "Background checks complete",
			Description: "Every applicant's background check has a final status.",
			Required:    true,
			Satisfied: func(s Snapshot) bool {
				for _, a := range s.Applicants {
					if a.BackgroundCheckStatus == BackgroundCheckNotStarted ||
						a.BackgroundCheckStatus == BackgroundCheckPending {
						return false
					}
				}
				return len(s.Applicants) > 0
			},
		},
		{ID: ItemCriminalHistoryReviewed, Label: "Criminal history reviewed", Required: true},
		{ID: ItemEvictionHistoryReviewed, Label: "Eviction history reviewed", Required: true},
		{ID: ItemReferencesVerified, Label: "References verified", Required: false},
	},
	StageApproved: {
		{ID: ItemFullApplicationReviewed, Label: "Full application reviewed", Required: true},
		{ID: ItemDecisionMade, Label: "Approval decision made", Required: true},
		{ID: ItemApplicantNotified, Label: "Applicant notified of decision", Required: true},
		{ID: ItemHoldingDepositCollected, Label: "Holding deposit collected", Required: false},
	},
	// lease_sent and lease_signed are covered by the lease onboarding
	// checklist, which lives outside this engine.
	StageLeaseSent:   {},
	StageLeaseSigned: {},
}

func hasAllRequiredDocTypes(s Snapshot) bool {
	for _, req := range RequiredDocTypes {
		found := false
		for _, d := range s.Documents {
			if d.Type == req {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func anyDocVerified(t DocType) func(Snapshot) bool {
	return func(s Snapshot) bool {
		for _, d := range s.Documents {
			if d.Type == t && d.Status == VerificationVerified {
				return true
			}
		}
		return false
	}
}

// BuildChecklist evaluates the stage's rule table against the snapshot and
// returns a fresh checklist. The result is a point-in-time view: re-evaluate
// by calling again. Manual items come back unchecked; overlay persisted
// operator state with MergeToggles. Unknown stages yield an empty list.
func BuildChecklist(stage Stage, snap Snapshot) []ChecklistItem {
	rules := stageChecklists[stage]
	items := make([]ChecklistItem, 0, len(rules))
	for _, r := range rules {
		if r.When != nil && !r.When(snap) {
			continue
		}
		item := ChecklistItem{
			ID:          r.ID,
			Label:       r.Label,
			Description: r.Description,
			Required:    r.Required,
			Manual:      r.Satisfied == nil,
			Link:        r.Link,
		}
		if r.Satisfied != nil {
			item.Checked = r.Satisfied(snap)
		}
		items = append(items, item)
	}
	return items
}

// MergeToggles overlays persisted operator acknowledgments onto manual
// items, keyed by item id. Derived items are never overridden; their state
// is always recomputed from data.
func MergeToggles(items []ChecklistItem, toggles map[string]bool) []ChecklistItem {
	if len(toggles) == 0 {
		return items
	}
	merged := make([]ChecklistItem, len(items))
	copy(merged, items)
	for i := range merged {
		if !merged[i].Manual {
			continue
		}
		if checked, ok := toggles[merged[i].ID]; ok {
			merged[i].Checked = checked
		}
	}
	return merged
}
