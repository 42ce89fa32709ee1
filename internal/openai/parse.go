package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"rental-ops/internal/domain"
)

var screeningAllowedKeys = map[string]struct{}{
	"score":        {},
	"summary":      {},
	"risk_factors": {},
	"confidence":   {},
}

var screeningRequiredKeys = []string{"score", "summary", "risk_factors", "confidence"}

// ParseScreening validates and normalizes raw model output into a screening
// extraction. Any deviation from the schema is an error so the caller can
// run the repair path.
func ParseScreening(raw string) (domain.ScreeningExtraction, []byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.ScreeningExtraction{}, nil, fmt.Errorf("empty model output")
	}

	if err := validateKeys(trimmed, screeningAllowedKeys, screeningRequiredKeys); err != nil {
		return domain.ScreeningExtraction{}, nil, err
	}

	var v domain.ScreeningExtraction
	if err := strictDecode([]byte(trimmed), &v); err != nil {
		return domain.ScreeningExtraction{}, nil, err
	}
	if v.Score < 0 || v.Score > 100 {
		return domain.ScreeningExtraction{}, nil, fmt.Errorf("score %v outside 0-100", v.Score)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return domain.ScreeningExtraction{}, nil, fmt.Errorf("confidence %v outside 0-1", v.Confidence)
	}
	if v.RiskFactors == nil {
		v.RiskFactors = []string{}
	}

	out, err := json.Marshal(v)
	if err != nil {
		return domain.ScreeningExtraction{}, nil, err
	}
	return v, out, nil
}

func strictDecode(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("unexpected trailing data")
	}
	return nil
}

func validateKeys(raw string, allowed map[string]struct{}, required []string) error {
	var rawMap map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &rawMap); err != nil {
		return err
	}
	for k := range rawMap {
		if _, ok := allowed[k]; !ok {
			keys := sortedKeys(allowed)
			return fmt.Errorf("unknown key %q, allowed: %v", k, keys)
		}
	}
	for _, req := range required {
		if _, ok := rawMap[req]; !ok {
			return fmt.Errorf("missing required key %q", req)
		}
	}
	return nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
