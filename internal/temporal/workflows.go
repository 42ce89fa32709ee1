package temporal

import (
	"go.temporal.io/sdk/workflow"

	"rental-ops/internal/domain"
)

const ApplicantScreeningWorkflowName = "ApplicantScreeningWorkflow"

type WorkflowInput struct {
	ApplicationID string
}

type WorkflowResult struct {
	ApplicationID string
	Score         float64
	ReviewOutcome string
}

const (
	reviewOutcomeNone      = ""
	reviewOutcomeAccepted  = "ACCEPTED"
	reviewOutcomeDismissed = "DISMISSED"
	reviewOutcomeRescored  = "RESCORED"
)

// ApplicantScreeningWorkflow scores every applicant on an application with
// the screening model, persists the aggregate, and routes low scores through
// an operator review signal before completing.
func ApplicantScreeningWorkflow(ctx workflow.Context, input WorkflowInput) (WorkflowResult, error) {
	ctxLoad := mustActivityContext(ctx, ActivityPolicyLoadApplicants)
	ctxScore := mustActivityContext(ctx, ActivityPolicyScoreApplicant)
	ctxPersist := mustActivityContext(ctx, ActivityPolicyPersistAggregateScore)
	ctxQueue := mustActivityContext(ctx, ActivityPolicyQueueScreeningReview)
	ctxResolve := mustActivityContext(ctx, ActivityPolicyResolveScreeningReview)

	var loaded LoadApplicantsOutput
	if err := workflow.ExecuteActivity(ctxLoad, (*Activities).LoadApplicantsActivity, LoadApplicantsInput{
		ApplicationID: input.ApplicationID,
	}).Get(ctx, &loaded); err != nil {
		return WorkflowResult{}, err
	}

	outcome := reviewOutcomeNone
	for {
		var total float64
		riskFactors := make([]string, 0)
		for _, applicant := range loaded.Applicants {
			var scored ScoreApplicantOutput
			if err := workflow.ExecuteActivity(ctxScore, (*Activities).ScoreApplicantActivity, ScoreApplicantInput{
				ApplicationID: input.ApplicationID,
				Applicant:     applicant,
				Documents:     loaded.Documents,
			}).Get(ctx, &scored); err != nil {
				return WorkflowResult{}, err
			}
			total += scored.Score
			riskFactors = append(riskFactors, scored.RiskFactors...)
		}
		aggregate := total / float64(len(loaded.Applicants))

		if err := workflow.ExecuteActivity(ctxPersist, (*Activities).PersistAggregateScoreActivity, PersistAggregateScoreInput{
			ApplicationID: input.ApplicationID,
			Score:         aggregate,
			RiskFactors:   riskFactors,
		}).Get(ctx, nil); err != nil {
			return WorkflowResult{}, err
		}

		if aggregate >= domain.AIScoreThreshold {
			return WorkflowResult{ApplicationID: input.ApplicationID, Score: aggregate, ReviewOutcome: outcome}, nil
		}

		if err := workflow.ExecuteActivity(ctxQueue, (*Activities).QueueScreeningReviewActivity, QueueScreeningReviewInput{
			ApplicationID: input.ApplicationID,
			Score:         aggregate,
			RiskFactors:   riskFactors,
		}).Get(ctx, nil); err != nil {
			return WorkflowResult{}, err
		}

		signalChan := workflow.GetSignalChannel(ctx, ScreeningReviewSignalName)
		rescore := false
		for !rescore {
			var decision ScreeningReviewSignal
			signalChan.Receive(ctx, &decision)

			switch decision.Decision {
			case domain.ScreeningReviewAccept:
				if err := workflow.ExecuteActivity(ctxResolve, (*Activities).ResolveScreeningReviewActivity, ResolveScreeningReviewInput{
					ApplicationID: input.ApplicationID,
					Resolution:    reviewOutcomeAccepted,
					Reviewer:      decision.Reviewer,
				}).Get(ctx, nil); err != nil {
					return WorkflowResult{}, err
				}
				return WorkflowResult{ApplicationID: input.ApplicationID, Score: aggregate, ReviewOutcome: reviewOutcomeAccepted}, nil
			case domain.ScreeningReviewDismiss:
				if err := workflow.ExecuteActivity(ctxResolve, (*Activities).ResolveScreeningReviewActivity, ResolveScreeningReviewInput{
					ApplicationID: input.ApplicationID,
					Resolution:    reviewOutcomeDismissed,
					Reviewer:      decision.Reviewer,
				}).Get(ctx, nil); err != nil {
					return WorkflowResult{}, err
				}
				return WorkflowResult{ApplicationID: input.ApplicationID, Score: aggregate, ReviewOutcome: reviewOutcomeDismissed}, nil
			case domain.ScreeningReviewRescore:
				if err := workflow.ExecuteActivity(ctxResolve, (*Activities).ResolveScreeningReviewActivity, ResolveScreeningReviewInput{
					ApplicationID: input.ApplicationID,
					Resolution:    reviewOutcomeRescored,
					Reviewer:      decision.Reviewer,
				}).Get(ctx, nil); err != nil {
					return WorkflowResult{}, err
				}
				outcome = reviewOutcomeRescored
				rescore = true
			default:
				// Unknown decision: stay on the signal channel.
			}
		}
	}
}
