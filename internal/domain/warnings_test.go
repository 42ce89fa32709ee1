package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWarningsLowScoreOnAIEvaluated(t *testing.T) {
	score := 42.0
	snap := Snapshot{AIScore: &score}

	warnings := BuildWarnings(StageDocumentsReceived, StageAIEvaluated, snap)
	require.NotEmpty(t, warnings)
	require.Contains(t, warnings[0], "below recommended threshold (50)")

	// Same score, different target stage: rule does not fire.
	for _, w := range BuildWarnings(StageAIEvaluated, StageScreening, snap) {
		require.NotContains(t, w, "threshold")
	}

	ok := 50.0
	require.Empty(t, BuildWarnings(StageDocumentsReceived, StageAIEvaluated, Snapshot{AIScore: &ok}))
	require.Empty(t, BuildWarnings(StageDocumentsReceived, StageAIEvaluated, Snapshot{}))
}

func TestWarningsBackgroundChecksOnApproval(t *testing.T) {
	snap := Snapshot{Applicants: []Applicant{
		{Type: ApplicantPrimary, FullName: "Jane Doe", BackgroundCheckStatus: BackgroundCheckFailed},
		{Type: ApplicantCoApplicant, FullName: "John Doe", BackgroundCheckStatus: BackgroundCheckReviewRequired},
	}}

	warnings := BuildWarnings(StageScreening, StageApproved, snap)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0], "failed")
	require.Contains(t, warnings[0], "Jane Doe")
	require.Contains(t, warnings[1], "manual review")
	require.Contains(t, warnings[1], "John Doe")

	// Only fires when approving.
	require.Empty(t, BuildWarnings(StageAIEvaluated, StageScreening, snap))
}

func TestWarningsSkipArithmetic(t *testing.T) {
	snap := Snapshot{}

	warnings := BuildWarnings(StageNew, StageScreening, snap)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "skips 3 stages")

	warnings = BuildWarnings(StageNew, StageDocumentsReceived, snap)
	require.Len(t, warnings, 1)
	require.Contains(t, warnings[0], "skips 1 stage.")
	require.NotContains(t, warnings[0], "skips 1 stages")

	require.Empty(t, BuildWarnings(StageNew, StageDocumentsPending, snap))
	require.Empty(t, BuildWarnings(StageScreening, StageNew, snap))
	require.Empty(t, BuildWarnings(StageApproved, StageApproved, snap))
}

func TestWarningsRulesConcatenate(t *testing.T) {
	score := 30.0
	snap := Snapshot{
		AIScore: &score,
		Applicants: []Applicant{
			{Type: ApplicantPrimary, FullName: "Jane Doe", BackgroundCheckStatus: BackgroundCheckFailed},
		},
	}

	// new -> approved: skip warning fires alongside the background warning.
	warnings := BuildWarnings(StageNew, StageApproved, snap)
	require.Len(t, warnings, 2)
	joined := strings.Join(warnings, "\n")
	require.Contains(t, joined, "failed")
	require.Contains(t, joined, "skips 4 stages")
}
