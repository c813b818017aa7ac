package ensemble

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPayload = `{"trade_score": 72, "extension_risk": 40, "exhaustion_risk": 35,
"float_rotation_risk": 20, "market_alignment": 55, "expected_rr": 2.1,
"confidence": 68, "should_trade": true, "reasoning": "Momentum intact with market support."}`

func TestParseOutput_ValidPayload(t *testing.T) {
	out, err := ParseOutput("anthropic", validPayload)
	require.NoError(t, err)

	assert.InDelta(t, 72, out.TradeScore, 1e-9)
	assert.InDelta(t, 55, out.MarketAlignment, 1e-9)
	assert.InDelta(t, 2.1, out.ExpectedRR, 1e-9)
	assert.True(t, out.ShouldTrade)
	assert.Equal(t, "Momentum intact with market support.", out.Reasoning)
}

func TestParseOutput_MarkdownFence(t *testing.T) {
	response := "Here is my assessment:\n```json\n" + validPayload + "\n```\nLet me know if you need more."
	out, err := ParseOutput("openai", response)
	require.NoError(t, err)
	assert.InDelta(t, 72, out.TradeScore, 1e-9)
}

func TestParseOutput_UnknownFieldStripped(t *testing.T) {
	response := strings.Replace(validPayload, `"trade_score": 72,`,
		`"trade_score": 72, "surprise_field": "ignored",`, 1)

	out, err := ParseOutput("google", response)
	require.NoError(t, err, "an otherwise valid payload with one extra field must be accepted")
	assert.InDelta(t, 72, out.TradeScore, 1e-9)
}

func TestParseOutput_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  string
	}{
		{
			name:     "empty response",
			response: "",
			wantErr:  "no JSON object",
		},
		{
			name:     "prose without JSON",
			response: "I cannot evaluate this trade.",
			wantErr:  "no JSON object",
		},
		{
			name:     "malformed JSON",
			response: `{"trade_score": 72, "confidence":`,
			wantErr:  "no JSON object",
		},
		{
			name:     "trade score above range",
			response: strings.Replace(validPayload, `"trade_score": 72`, `"trade_score": 140`, 1),
			wantErr:  "validate",
		},
		{
			name:     "market alignment below range",
			response: strings.Replace(validPayload, `"market_alignment": 55`, `"market_alignment": -150`, 1),
			wantErr:  "validate",
		},
		{
			name:     "negative expected rr",
			response: strings.Replace(validPayload, `"expected_rr": 2.1`, `"expected_rr": -0.5`, 1),
			wantErr:  "validate",
		},
		{
			name:     "missing should_trade",
			response: strings.Replace(validPayload, `"should_trade": true,`, ``, 1),
			wantErr:  "should_trade",
		},
		{
			name: "oversized reasoning",
			response: strings.Replace(validPayload,
				"Momentum intact with market support.", strings.Repeat("x", 501), 1),
			wantErr: "reasoning exceeds 500 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ParseOutput("test", tt.response)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	response := strings.Replace(validPayload,
		"Momentum intact with market support.",
		"Pattern {flag} held through midday.", 1)

	got := extractJSON(response)
	require.NotEmpty(t, got)
	assert.True(t, strings.HasSuffix(got, "}"))

	out, err := ParseOutput("test", response)
	require.NoError(t, err)
	assert.Contains(t, out.Reasoning, "{flag}")
}
