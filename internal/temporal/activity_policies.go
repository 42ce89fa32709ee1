package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	ActivityPolicyLoadApplicants         = "load_applicants"
	ActivityPolicyScoreApplicant         = "score_applicant"
	ActivityPolicyPersistAggregateScore  = "persist_aggregate_score"
	ActivityPolicyQueueScreeningReview   = "queue_screening_review"
	ActivityPolicyResolveScreeningReview = "resolve_screening_review"
)

type activityPolicy struct {
	StartToCloseTimeout time.Duration
	RetryPolicy         temporal.RetryPolicy
}

var defaultRetry = temporal.RetryPolicy{
	InitialInterval:    1 * time.Second,
	BackoffCoefficient: 2,
	MaximumInterval:    10 * time.Second,
	MaximumAttempts:    3,
}

var activityPolicies = map[string]activityPolicy{
	ActivityPolicyLoadApplicants: {
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	// The LLM call retries internally with backoff; Temporal must not stack
	// its own retries on top.
	ActivityPolicyScoreApplicant: {
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         temporal.RetryPolicy{MaximumAttempts: 1},
	},
	ActivityPolicyPersistAggregateScore: {
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	ActivityPolicyQueueScreeningReview: {
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
	ActivityPolicyResolveScreeningReview: {
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy:         defaultRetry,
	},
}

func ActivityOptionsFor(policyName string) (workflow.ActivityOptions, error) {
	policy, ok := activityPolicies[policyName]
	if !ok {
		return workflow.ActivityOptions{}, fmt.Errorf("unknown activity policy: %s", policyName)
	}

	retry := policy.RetryPolicy
	return workflow.ActivityOptions{
		StartToCloseTimeout: policy.StartToCloseTimeout,
		RetryPolicy:         &retry,
	}, nil
}

func mustActivityContext(ctx workflow.Context, policyName string) workflow.Context {
	ao, err := ActivityOptionsFor(policyName)
	if err != nil {
		panic(err)
	}
	return workflow.WithActivityOptions(ctx, ao)
}
