package openai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseScreeningValid(t *testing.T) {
	v, out, err := ParseScreening(`{"score":78,"summary":"stable income","risk_factors":[],"confidence":0.9}`)
	require.NoError(t, err)
	require.Equal(t, 78.0, v.Score)
	require.NotNil(t, v.Summary)
	require.Empty(t, v.RiskFactors)
	require.JSONEq(t, `{"score":78,"summary":"stable income","risk_factors":[],"confidence":0.9}`, string(out))
}

func TestParseScreeningNullSummaryAndRisks(t *testing.T) {
	v, _, err := ParseScreening(`{"score":40,"summary":null,"risk_factors":["short employment history"],"confidence":0.55}`)
	require.NoError(t, err)
	require.Nil(t, v.Summary)
	require.Equal(t, []string{"short employment history"}, v.RiskFactors)
}

func TestParseScreeningRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"truncated":      `{"score":78,"summary":"x"`,
		"unknown key":    `{"score":78,"summary":null,"risk_factors":[],"confidence":0.9,"verdict":"approve"}`,
		"missing key":    `{"score":78,"summary":null,"confidence":0.9}`,
		"score too high": `{"score":140,"summary":null,"risk_factors":[],"confidence":0.9}`,
		"bad confidence": `{"score":70,"summary":null,"risk_factors":[],"confidence":1.4}`,
		"trailing data":  `{"score":70,"summary":null,"risk_factors":[],"confidence":0.9}{}`,
	}
	for name, raw := range cases {
		_, _, err := ParseScreening(raw)
		require.Error(t, err, name)
	}
}
