package openai

import (
	"strings"
	"testing"

	"rental-ops/internal/domain"
)

func TestBuildScreeningPromptEmbedsSchemaAndProfile(t *testing.T) {
	prompt := BuildScreeningPrompt("Employment status: full_time\n")
	if !strings.Contains(prompt, `"score"`) || !strings.Contains(prompt, "full_time") {
		t.Fatalf("prompt missing schema or profile: %s", prompt)
	}
	if strings.Contains(prompt, "{{") {
		t.Fatalf("unrendered template variable in prompt: %s", prompt)
	}
}

func TestBuildApplicantProfile(t *testing.T) {
	profile := BuildApplicantProfile(domain.Applicant{
		Type:             domain.ApplicantPrimary,
		FullName:         "Jane Doe",
		Email:            "jane@example.com",
		EmploymentStatus: "full_time",
		EmployerName:     "ACME",
		InviteStatus:     domain.InviteCompleted,
	}, []domain.Document{
		{Type: domain.DocTypePaystub, Status: domain.VerificationVerified},
	})

	if !strings.Contains(profile, "full_time") || !strings.Contains(profile, "paystub (verified)") {
		t.Fatalf("profile missing fields: %s", profile)
	}
	// PII stays out of the scoring prompt.
	if strings.Contains(profile, "jane@example.com") {
		t.Fatalf("profile must not carry contact details: %s", profile)
	}
}

func TestBuildApplicantProfileEmpty(t *testing.T) {
	profile := BuildApplicantProfile(domain.Applicant{Type: domain.ApplicantGuarantor, InviteStatus: domain.InviteSent}, nil)
	if !strings.Contains(profile, "not provided") || !strings.Contains(profile, "none") {
		t.Fatalf("empty profile should state missing fields: %s", profile)
	}
}
