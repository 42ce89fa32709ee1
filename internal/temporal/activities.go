package temporal

import (
	"context"
	"fmt"
	"time"

	"rental-ops/internal/domain"
	"rental-ops/internal/openai"
)

const (
	modelOutputPhaseScreen1 = "SCREEN_ATTEMPT_1"
	modelOutputPhaseRepair1 = "REPAIR_ATTEMPT_1"
	modelOutputPhaseScreen2 = "SCREEN_ATTEMPT_2"
)

type ActivityStore interface {
	LoadSnapshot(ctx context.Context, applicationID string) (domain.Snapshot, error)
	SaveApplicantScore(ctx context.Context, applicantID string, score float64) error
	SaveApplicationScore(ctx context.Context, applicationID string, score float64) error
	SaveModelOutput(ctx context.Context, applicationID, applicantID, phase, output string) error
	QueueScreeningReview(ctx context.Context, applicationID string, score float64, riskFactors []string) error
	ResolveScreeningReview(ctx context.Context, applicationID string, resolution string) error
	InsertAudit(ctx context.Context, applicationID string, state domain.AuditState, detail any) error
}

type Activities struct {
	Store          ActivityStore
	LLM            openai.Client
	OpenAIModel    string
	OpenAITimeout  time.Duration
	OpenAIMaxRetry int
}

type LoadApplicantsInput struct {
	ApplicationID string
}

type LoadApplicantsOutput struct {
	Applicants []domain.Applicant
	Documents  []domain.Document
}

type ScoreApplicantInput struct {
	ApplicationID string
	Applicant     domain.Applicant
	Documents     []domain.Document
}

type ScoreApplicantOutput struct {
	ApplicantID string
	Score       float64
	RiskFactors []string
	Confidence  float64
}

type PersistAggregateScoreInput struct {
	ApplicationID string
	Score         float64
	RiskFactors   []string
}

type QueueScreeningReviewInput struct {
	ApplicationID string
	Score         float64
	RiskFactors   []string
}

type ResolveScreeningReviewInput struct {
	ApplicationID string
	Resolution    string
	Reviewer      string
}

func (a *Activities) LoadApplicantsActivity(ctx context.Context, input LoadApplicantsInput) (LoadApplicantsOutput, error) {
	snap, err := a.Store.LoadSnapshot(ctx, input.ApplicationID)
	if err != nil {
		return LoadApplicantsOutput{}, err
	}
	if len(snap.Applicants) == 0 {
		return LoadApplicantsOutput{}, fmt.Errorf("application %s has no applicants to screen", input.ApplicationID)
	}
	return LoadApplicantsOutput{Applicants: snap.Applicants, Documents: snap.Documents}, nil
}

func (a *Activities) ScoreApplicantActivity(ctx context.Context, input ScoreApplicantInput) (ScoreApplicantOutput, error) {
	profile := openai.BuildApplicantProfile(input.Applicant, input.Documents)
	prompt := openai.BuildScreeningPrompt(profile)

	first, err := a.callOpenAIWithRetry(ctx, openai.SCREEN_SYSTEM, prompt)
	if err != nil {
		return ScoreApplicantOutput{}, err
	}
	_ = a.Store.SaveModelOutput(ctx, input.ApplicationID, input.Applicant.ID, modelOutputPhaseScreen1, first)

	extraction, _, parseErr := openai.ParseScreening(first)
	if parseErr != nil {
		repair, err := a.callOpenAIWithRetry(ctx, openai.REPAIR_SYSTEM, openai.BuildRepairPrompt(first))
		if err != nil {
			return ScoreApplicantOutput{}, err
		}
		_ = a.Store.SaveModelOutput(ctx, input.ApplicationID, input.Applicant.ID, modelOutputPhaseRepair1, repair)
		extraction, _, parseErr = openai.ParseScreening(repair)
	}
	if parseErr != nil {
		second, err := a.callOpenAIWithRetry(ctx, openai.SCREEN_SYSTEM, prompt)
		if err != nil {
			return ScoreApplicantOutput{}, err
		}
		_ = a.Store.SaveModelOutput(ctx, input.ApplicationID, input.Applicant.ID, modelOutputPhaseScreen2, second)
		extraction, _, parseErr = openai.ParseScreening(second)
	}
	if parseErr != nil {
		return ScoreApplicantOutput{}, fmt.Errorf("screening failed after screen+repair+screen: %w", parseErr)
	}

	if err := a.Store.SaveApplicantScore(ctx, input.Applicant.ID, extraction.Score); err != nil {
		return ScoreApplicantOutput{}, err
	}
	return ScoreApplicantOutput{
		ApplicantID: input.Applicant.ID,
		Score:       extraction.Score,
		RiskFactors: extraction.RiskFactors,
		Confidence:  extraction.Confidence,
	}, nil
}

func (a *Activities) PersistAggregateScoreActivity(ctx context.Context, input PersistAggregateScoreInput) error {
	if err := a.Store.SaveApplicationScore(ctx, input.ApplicationID, input.Score); err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, input.ApplicationID, domain.AuditScored, map[string]any{
		"score":        input.Score,
		"risk_factors": input.RiskFactors,
	})
}

func (a *Activities) QueueScreeningReviewActivity(ctx context.Context, input QueueScreeningReviewInput) error {
	if err := a.Store.QueueScreeningReview(ctx, input.ApplicationID, input.Score, input.RiskFactors); err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, input.ApplicationID, domain.AuditScreeningQueued, map[string]any{
		"score":        input.Score,
		"risk_factors": input.RiskFactors,
	})
}

func (a *Activities) ResolveScreeningReviewActivity(ctx context.Context, input ResolveScreeningReviewInput) error {
	if err := a.Store.ResolveScreeningReview(ctx, input.ApplicationID, input.Resolution); err != nil {
		return err
	}
	return a.Store.InsertAudit(ctx, input.ApplicationID, domain.AuditScreeningResolved, map[string]any{
		"resolution": input.Resolution,
		"reviewer":   input.Reviewer,
	})
}

func (a *Activities) callOpenAIWithRetry(ctx context.Context, systemPrompt string, userPrompt string) (string, error) {
	maxRetry := a.OpenAIMaxRetry
	if maxRetry <= 0 {
		maxRetry = 3
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetry; attempt++ {
		out, err := a.LLM.CompleteJSON(ctx, openai.CompletionRequest{
			Model:        a.OpenAIModel,
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt,
			Timeout:      a.OpenAITimeout,
		})
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt == maxRetry {
			break
		}
		delay := time.Duration(200*(1<<(attempt-1))) * time.Millisecond
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("openai retry exhausted: %w", lastErr)
}
