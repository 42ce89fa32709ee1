package openai

import (
	"fmt"
	"strings"

	"rental-ops/internal/domain"
)

const SCREEN_SYSTEM = `You are a rental application screening engine.
You must output ONLY valid JSON and nothing else.
No markdown. No comments. No extra keys.
score is a number between 0 and 100 where 100 is an ideal tenant profile.
confidence is a number between 0 and 1.
risk_factors is an array of short strings, empty when there are none.`

const SCREEN_USER_TEMPLATE = `You will score a rental applicant based on the profile below.
Return JSON that matches EXACTLY the schema below.

Rules:
- Output JSON only.
- Use the schema keys exactly.
- Do not add keys not in the schema.
- Base the score on employment stability, income documentation and profile completeness.
- If the profile is too thin to assess, score below 50 and set confidence below 0.6.

Schema (JSON Schema):
{{JSON_SCHEMA}}

Applicant profile:
{{PROFILE}}

Return JSON only.`

const REPAIR_SYSTEM = `You are a strict JSON repair engine.
You receive an output that failed parsing or schema validation.
You must return ONLY corrected JSON that matches the provided schema exactly.
No markdown. No commentary. No extra keys. No surrounding text.`

const REPAIR_USER_TEMPLATE = `The previous model output was invalid or did not match the schema.

Schema (JSON Schema):
{{JSON_SCHEMA}}

Invalid output:
{{MODEL_OUTPUT}}

Fix the output so it matches the schema exactly.
Return JSON only.`

func RenderTemplate(tpl string, vars map[string]string) string {
	rendered := tpl
	for k, v := range vars {
		rendered = strings.ReplaceAll(rendered, "{{"+k+"}}", v)
	}
	return rendered
}

func BuildScreeningPrompt(profile string) string {
	return RenderTemplate(SCREEN_USER_TEMPLATE, map[string]string{
		"JSON_SCHEMA": domain.ScreeningJSONSchema,
		"PROFILE":     profile,
	})
}

func BuildRepairPrompt(modelOutput string) string {
	return RenderTemplate(REPAIR_USER_TEMPLATE, map[string]string{
		"JSON_SCHEMA":  domain.ScreeningJSONSchema,
		"MODEL_OUTPUT": modelOutput,
	})
}

// BuildApplicantProfile renders the applicant and their uploaded documents
// into the plain-text profile the screening prompt embeds. Contact details
// stay out of the prompt; the model scores the profile, not the person's
// reachability.
func BuildApplicantProfile(a domain.Applicant, docs []domain.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Applicant role: %s\n", a.Type)
	writeField(&b, "Employment status", a.EmploymentStatus)
	writeField(&b, "Employer", a.EmployerName)
	fmt.Fprintf(&b, "Invite status: %s\n", a.InviteStatus)
	if a.BackgroundCheckStatus != domain.BackgroundCheckNotStarted {
		fmt.Fprintf(&b, "Background check: %s\n", a.BackgroundCheckStatus)
	}

	if len(docs) == 0 {
		b.WriteString("Documents provided: none\n")
		return b.String()
	}
	b.WriteString("Documents provided:\n")
	for _, d := range docs {
		fmt.Fprintf(&b, "- %s (%s)\n", d.Type, d.Status)
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		value = "not provided"
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
