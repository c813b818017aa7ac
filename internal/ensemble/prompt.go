// Package ensemble implements the evaluation runner: it renders one prompt
// from a feature vector, fans it out to every registered forecast provider
// concurrently with independent timeouts, and collects exactly one
// evaluation per provider regardless of individual failures.
package ensemble

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"text/template"
)

// SystemInstructions is the fixed system prompt sent to every provider.
// It pins the response contract so the payload validator can be strict.
const SystemInstructions = `You are a disciplined intraday trading analyst. ` +
	`Evaluate the candidate trade described by the user using only the data provided. ` +
	`Respond with a single JSON object and nothing else, in exactly this shape:
{"trade_score": <0-100>, "extension_risk": <0-100>, "exhaustion_risk": <0-100>, ` +
	`"float_rotation_risk": <0-100>, "market_alignment": <-100-100>, "expected_rr": <number >= 0>, ` +
	`"confidence": <0-100>, "should_trade": <true|false>, "reasoning": "<at most 500 characters>"}
Do not add fields, markdown, or commentary outside the JSON object.`

// userPromptTemplate renders the per-evaluation user prompt. Optional entry
// and stop prices render as "not set" so the prompt shape stays identical
// across requests and providers.
const userPromptTemplate = `Evaluate this {{.Direction}} setup for {{.Symbol}}.

Proposed entry: {{if .Entry}}{{printf "%.2f" (deref .Entry)}}{{else}}not set{{end}}
Proposed stop: {{if .Stop}}{{printf "%.2f" (deref .Stop)}}{{else}}not set{{end}}

Market snapshot at {{.Features.Timestamp.Format "2006-01-02T15:04:05Z07:00"}}:
- last price: {{printf "%.2f" .Features.LastPrice}}
- relative volume: {{printf "%.2f" .Features.RelativeVolume}}
- VWAP deviation: {{printf "%.2f" .Features.VWAPDeviationPct}}%
- ATR: {{printf "%.2f" .Features.ATRPct}}%
- price extension: {{printf "%.2f" .Features.PriceExtensionPct}}%
- gap: {{printf "%.2f" .Features.GapPct}}%
- volume acceleration: {{printf "%.2f" .Features.VolumeAcceleration}}
- float rotation: {{printf "%.2f" .Features.FloatRotation}}
- SPY change: {{printf "%.2f" .Features.SPYChangePct}}%
- QQQ change: {{printf "%.2f" .Features.QQQChangePct}}%
- market alignment: {{.Features.MarketAlignment}}
- volatility regime: {{.Features.VolatilityRegime}}
- liquidity: {{.Features.LiquidityBucket}}
- time of day: {{.Features.TimeOfDay}} ({{.Features.MinutesSinceOpen}} minutes since open)`

var promptTemplate = template.Must(
	template.New("evalPrompt").
		Funcs(template.FuncMap{
			"deref": func(p *float64) float64 { return *p },
		}).
		Parse(userPromptTemplate),
)

// buildPrompt renders the user prompt for a request. The same text is sent
// unchanged to every provider in the ensemble.
func buildPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("failed to render evaluation prompt: %w", err)
	}
	return buf.String(), nil
}

// Fingerprint returns the deterministic hex SHA-256 of the system
// instructions and the user prompt. Evaluations carrying the same
// fingerprint were produced from byte-identical prompts.
func Fingerprint(system, userPrompt string) string {
	sum := sha256.Sum256([]byte(system + "\n" + userPrompt))
	return hex.EncodeToString(sum[:])
}
