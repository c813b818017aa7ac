package ensemble

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/marketbridge/go-council/internal/domain"
)

var validate = validator.New()

// rawOutput mirrors ValidatedOutput with pointer fields so that a payload
// missing a required field is distinguishable from one carrying a legitimate
// zero. Unknown fields in the provider response are silently dropped by the
// decoder rather than merged.
type rawOutput struct {
	TradeScore        *float64 `json:"trade_score"`
	ExtensionRisk     *float64 `json:"extension_risk"`
	ExhaustionRisk    *float64 `json:"exhaustion_risk"`
	FloatRotationRisk *float64 `json:"float_rotation_risk"`
	MarketAlignment   *float64 `json:"market_alignment"`
	ExpectedRR        *float64 `json:"expected_rr"`
	Confidence        *float64 `json:"confidence"`
	ShouldTrade       *bool    `json:"should_trade"`
	Reasoning         string   `json:"reasoning"`
}

// ParseOutput extracts and validates the structured payload from a raw
// provider response. It tolerates markdown fences and surrounding prose but
// requires exactly one JSON object; any missing or out-of-range field fails
// validation. On failure the returned PayloadError describes the stage that
// failed so the adapter can surface it on the evaluation.
func ParseOutput(provider, response string) (*domain.ValidatedOutput, error) {
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return nil, domain.NewPayloadError(provider, "parse",
			fmt.Errorf("no JSON object found in response (%d chars)", len(response)))
	}

	var raw rawOutput
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, domain.NewPayloadError(provider, "parse", err)
	}

	if err := checkRequired(raw); err != nil {
		return nil, domain.NewPayloadError(provider, "validate", err)
	}

	out := &domain.ValidatedOutput{
		TradeScore:        *raw.TradeScore,
		ExtensionRisk:     *raw.ExtensionRisk,
		ExhaustionRisk:    *raw.ExhaustionRisk,
		FloatRotationRisk: *raw.FloatRotationRisk,
		MarketAlignment:   *raw.MarketAlignment,
		ExpectedRR:        *raw.ExpectedRR,
		Confidence:        *raw.Confidence,
		ShouldTrade:       *raw.ShouldTrade,
		Reasoning:         raw.Reasoning,
	}

	if utf8.RuneCountInString(out.Reasoning) > domain.MaxReasoningChars {
		return nil, domain.NewPayloadError(provider, "validate",
			fmt.Errorf("reasoning exceeds %d characters", domain.MaxReasoningChars))
	}
	if err := validate.Struct(out); err != nil {
		return nil, domain.NewPayloadError(provider, "validate", err)
	}

	return out, nil
}

// checkRequired rejects payloads that omit any structural field. A zero
// trade score is valid; an absent one is not.
func checkRequired(raw rawOutput) error {
	missing := make([]string, 0, 8)
	if raw.TradeScore == nil {
		missing = append(missing, "trade_score")
	}
	if raw.ExtensionRisk == nil {
		missing = append(missing, "extension_risk")
	}
	if raw.ExhaustionRisk == nil {
		missing = append(missing, "exhaustion_risk")
	}
	if raw.FloatRotationRisk == nil {
		missing = append(missing, "float_rotation_risk")
	}
	if raw.MarketAlignment == nil {
		missing = append(missing, "market_alignment")
	}
	if raw.ExpectedRR == nil {
		missing = append(missing, "expected_rr")
	}
	if raw.Confidence == nil {
		missing = append(missing, "confidence")
	}
	if raw.ShouldTrade == nil {
		missing = append(missing, "should_trade")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// extractJSON attempts to extract a single JSON object from a response that
// might contain additional text before or after it, including markdown code
// blocks. Returns an empty string when no balanced object is found.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```json") {
		start := strings.Index(response, "```json")
		if start != -1 {
			start += 7
			end := strings.Index(response[start:], "```")
			if end != -1 {
				return strings.TrimSpace(response[start : start+end])
			}
		}
	}

	if strings.Contains(response, "```") {
		start := strings.Index(response, "```")
		if start != -1 {
			start += 3
			// Skip any language identifier on the fence line.
			if newlineIdx := strings.Index(response[start:], "\n"); newlineIdx != -1 {
				start += newlineIdx + 1
			}
			end := strings.Index(response[start:], "```")
			if end != -1 {
				candidate := strings.TrimSpace(response[start : start+end])
				if strings.HasPrefix(candidate, "{") {
					return candidate
				}
			}
		}
	}

	start := strings.Index(response, "{")
	if start == -1 {
		return ""
	}

	// Find the matching closing brace, tracking strings and escapes so
	// braces inside reasoning text don't end the object early.
	braceCount := 0
	inString := false
	escapeNext := false

	for i := start; i < len(response); i++ {
		char := response[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if char == '\\' {
			escapeNext = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return response[start : i+1]
				}
			}
		}
	}

	return ""
}
