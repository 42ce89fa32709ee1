package temporal

import "rental-ops/internal/domain"

const ScreeningReviewSignalName = "screeningReview"

// ScreeningReviewSignal resolves a low-score screening that is waiting for
// an operator decision.
type ScreeningReviewSignal struct {
	Decision domain.ScreeningReviewDecision `json:"decision"`
	Reviewer string                         `json:"reviewer,omitempty"`
	Note     string                         `json:"note,omitempty"`
}
