package domain

import "unicode/utf16"

// MinBypassReasonLength is the minimum justification length for a bypass,
// counted in UTF-16 code units to match the dashboard's own length check.
const MinBypassReasonLength = 10

type BypassRequest struct {
	Requested bool   `json:"requested"`
	Reason    string `json:"reason,omitempty"`
}

type TransitionDecision struct {
	Allowed                bool     `json:"allowed"`
	RequiresBypass         bool     `json:"requires_bypass"`
	MissingRequiredItemIDs []string `json:"missing_required_item_ids"`
}

// DecideTransition gates a stage change on the current stage's required
// checklist items. toggles carries persisted operator acknowledgments for
// manual items. The engine performs no authorization: canBypass is supplied
// by the caller from the operator's role, and the engine only enforces the
// justification contract once a bypass is claimed. Validation and
// authorization failures surface as Allowed=false, never as errors.
func DecideTransition(stage Stage, snap Snapshot, toggles map[string]bool, bypass BypassRequest, canBypass bool) TransitionDecision {
	items := MergeToggles(BuildChecklist(stage, snap), toggles)

	missing := make([]string, 0, len(items))
	for _, item := range items {
		if item.Required && !item.Checked {
			missing = append(missing, item.ID)
		}
	}
	if len(missing) == 0 {
		return TransitionDecision{Allowed: true, MissingRequiredItemIDs: missing}
	}

	decision := TransitionDecision{MissingRequiredItemIDs: missing}
	if !canBypass {
		return decision
	}
	if !bypass.Requested {
		// Signal the caller that a bypass prompt should be offered.
		decision.RequiresBypass = true
		return decision
	}
	if !ValidBypassReason(bypass.Reason) {
		return decision
	}
	// Caller must persist the reason alongside the stage change for audit.
	decision.Allowed = true
	return decision
}

func ValidBypassReason(reason string) bool {
	return len(utf16.Encode([]rune(reason))) >= MinBypassReasonLength
}
