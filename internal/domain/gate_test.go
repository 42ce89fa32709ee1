package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGateAllowsWhenAllRequiredMet(t *testing.T) {
	snap := completeSnapshot()
	toggles := map[string]bool{ItemApplicationReviewed: true}

	decision := DecideTransition(StageNew, snap, toggles, BypassRequest{}, false)
	require.True(t, decision.Allowed)
	require.False(t, decision.RequiresBypass)
	require.Empty(t, decision.MissingRequiredItemIDs)
}

func TestGateBlocksWithoutBypassAuthority(t *testing.T) {
	low := 42.0
	snap := completeSnapshot()
	snap.AIScore = &low
	toggles := map[string]bool{ItemAIScoreReviewed: true}

	decision := DecideTransition(StageAIEvaluated, snap, toggles, BypassRequest{}, false)
	require.False(t, decision.Allowed)
	require.False(t, decision.RequiresBypass)
	require.Contains(t, decision.MissingRequiredItemIDs, ItemAIScoreThreshold)

	// Claiming a bypass without the authority still refuses.
	decision = DecideTransition(StageAIEvaluated, snap, toggles,
		BypassRequest{Requested: true, Reason: "applicant has a strong rental history"}, false)
	require.False(t, decision.Allowed)
}

func TestGateSignalsBypassPrompt(t *testing.T) {
	snap := completeSnapshot()

	decision := DecideTransition(StageNew, snap, nil, BypassRequest{}, true)
	require.False(t, decision.Allowed)
	require.True(t, decision.RequiresBypass)
	require.Equal(t, []string{ItemApplicationReviewed}, decision.MissingRequiredItemIDs)
}

func TestGateBypassReasonLength(t *testing.T) {
	snap := completeSnapshot()

	short := DecideTransition(StageNew, snap, nil, BypassRequest{Requested: true, Reason: "short"}, true)
	require.False(t, short.Allowed)

	empty := DecideTransition(StageNew, snap, nil, BypassRequest{Requested: true}, true)
	require.False(t, empty.Allowed)

	ok := DecideTransition(StageNew, snap, nil, BypassRequest{Requested: true, Reason: "1234567890"}, true)
	require.True(t, ok.Allowed)
	require.NotEmpty(t, ok.MissingRequiredItemIDs, "bypassed items remain reported for audit")
}

func TestBypassReasonCountsUTF16CodeUnits(t *testing.T) {
	// Emoji outside the BMP encode as surrogate pairs: 5 emoji = 10 code
	// units. Matches the dashboard's .length check, compatibility over
	// strictness.
	require.True(t, ValidBypassReason("😀😀😀😀😀"))
	require.False(t, ValidBypassReason("😀😀😀😀"))
	require.True(t, ValidBypassReason("0123456789"))
	require.False(t, ValidBypassReason("012345678"))
}

func TestGateIgnoresOptionalItems(t *testing.T) {
	snap := completeSnapshot()
	// Drop the optional all-documents-verified signal; decision unchanged.
	snap.Documents = append(snap.Documents, Document{ID: "doc-4", Type: DocTypeOther, Status: VerificationPending})

	decision := DecideTransition(StageDocumentsReceived, snap, nil, BypassRequest{}, false)
	require.True(t, decision.Allowed)
	require.NotContains(t, decision.MissingRequiredItemIDs, ItemAllDocumentsVerified)
}

func TestGateLowScoreScenario(t *testing.T) {
	low := 42.0
	snap := completeSnapshot()
	snap.AIScore = &low

	decision := DecideTransition(StageAIEvaluated, snap, nil, BypassRequest{}, false)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.MissingRequiredItemIDs, ItemAIScoreThreshold)

	warnings := BuildWarnings(StageDocumentsReceived, StageAIEvaluated, snap)
	require.NotEmpty(t, warnings)
	require.Contains(t, warnings[0], "below recommended threshold")
}

func TestGateEmptyChecklistStageAlwaysAllows(t *testing.T) {
	decision := DecideTransition(StageLeaseSent, Snapshot{}, nil, BypassRequest{}, false)
	require.True(t, decision.Allowed)
	require.Empty(t, decision.MissingRequiredItemIDs)
}
