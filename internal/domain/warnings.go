package domain

import (
	"fmt"
	"strings"
)

// BuildWarnings reports the risks of moving an application from one stage to
// another. Each rule is evaluated independently; no rule suppresses another.
// Warnings never block a transition, they only inform the operator.
func BuildWarnings(from, to Stage, snap Snapshot) []string {
	warnings := make([]string, 0, 4)

	if to == StageAIEvaluated && snap.AIScore != nil && *snap.AIScore < AIScoreThreshold {
		warnings = append(warnings, fmt.Sprintf(
			"AI score is below recommended threshold (%d). Consider reviewing manually.", AIScoreThreshold))
	}

	if to == StageApproved {
		if failed := applicantsWithStatus(snap, BackgroundCheckFailed); len(failed) > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"Background check failed for %s. Approving may conflict with screening policy.",
				strings.Join(failed, ", ")))
		}
		if review := applicantsWithStatus(snap, BackgroundCheckReviewRequired); len(review) > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"Background check for %s requires manual review before approval.",
				strings.Join(review, ", ")))
		}
	}

	if skipped := skippedStages(from, to); skipped > 0 {
		noun := "stages"
		if skipped == 1 {
			noun = "stage"
		}
		warnings = append(warnings, fmt.Sprintf(
			"This transition skips %d %s. Skipping pipeline stages may raise compliance concerns.",
			skipped, noun))
	}

	return warnings
}

// skippedStages is toIndex - fromIndex - 1 when positive. Backward and
// single-step forward moves yield zero or negative and never warn.
func skippedStages(from, to Stage) int {
	fromIdx, okFrom := StageIndex(from)
	toIdx, okTo := StageIndex(to)
	if !okFrom || !okTo {
		return 0
	}
	return toIdx - fromIdx - 1
}

func applicantsWithStatus(snap Snapshot, status BackgroundCheckStatus) []string {
	names := make([]string, 0, len(snap.Applicants))
	for _, a := range snap.Applicants {
		if a.BackgroundCheckStatus != status {
			continue
		}
		name := a.FullName
		if name == "" {
			name = string(a.Type) + " applicant"
		}
		names = append(names, name)
	}
	return names
}
