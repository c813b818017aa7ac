// Package drift recomputes per-provider health metrics from outcome-linked
// evaluation history: rolling accuracy over short and long windows,
// calibration error, and regime-shift detection. Every report is built
// from scratch over a snapshot of history; nothing is cached or
// incrementally updated, so a report is only ever as stale as its input.
package drift

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ports"
)

const (
	// ShortWindow and LongWindow are the rolling-accuracy window sizes.
	ShortWindow = 10
	LongWindow  = 50

	// DefaultRegimeGap is how far short-window accuracy must fall below
	// long-window accuracy before a provider is flagged. Exposed as
	// configuration because the right threshold depends on how noisy the
	// providers' hit rates run in practice.
	DefaultRegimeGap = 0.3

	// minShiftSamples is the smallest history for which a regime-shift
	// verdict is meaningful: one full short window.
	minShiftSamples = ShortWindow
)

// Config tunes a Detector.
type Config struct {
	// RegimeGap is the accuracy drop (long-window minus short-window)
	// that flags a regime shift. Nil means use DefaultRegimeGap; an
	// explicit zero flags on any drop.
	RegimeGap *float64 `yaml:"regime_gap" validate:"omitempty,gte=0,lte=1"`
}

// Detector computes drift reports over an evaluation history store.
type Detector struct {
	reader    ports.EvaluationReader
	regimeGap float64
	now       func() time.Time
	logger    zerolog.Logger
}

// NewDetector creates a Detector reading history through reader.
func NewDetector(reader ports.EvaluationReader, cfg Config, logger zerolog.Logger) *Detector {
	gap := DefaultRegimeGap
	if cfg.RegimeGap != nil {
		gap = *cfg.RegimeGap
	}
	return &Detector{
		reader:    reader,
		regimeGap: gap,
		now:       time.Now,
		logger:    logger.With().Str("component", "drift_detector").Logger(),
	}
}

// Report loads all outcome-linked evaluations since the given time and
// computes a full drift report over them.
func (d *Detector) Report(ctx context.Context, since time.Time) (domain.DriftReport, error) {
	rows, err := d.reader.LinkedEvaluations(ctx, since)
	if err != nil {
		return domain.DriftReport{}, fmt.Errorf("loading linked evaluations: %w", err)
	}
	report := Compute(rows, d.regimeGap, d.now())
	d.logger.Info().
		Int("rows", len(rows)).
		Int("providers", len(report.Providers)).
		Bool("regime_shift", report.RegimeShiftDetected).
		Msg("drift report computed")
	return report, nil
}

// Compute builds a drift report from outcome-linked rows. It is a pure
// function over its inputs. With no rows it returns a well-formed empty
// report rather than an error: insufficient data is a finding, not a
// failure.
func Compute(rows []domain.LinkedEvaluation, regimeGap float64, generatedAt time.Time) domain.DriftReport {
	report := domain.DriftReport{GeneratedAt: generatedAt}
	if len(rows) == 0 {
		report.Recommendation = "insufficient data: no outcome-linked evaluations recorded yet"
		return report
	}

	byProvider := make(map[string][]domain.LinkedEvaluation)
	for _, row := range rows {
		byProvider[row.Provider] = append(byProvider[row.Provider], row)
	}

	providers := make([]string, 0, len(byProvider))
	for p := range byProvider {
		providers = append(providers, p)
	}
	sort.Strings(providers)

	var totalCorrect, totalRows int
	shifted := make([]string, 0, 1)

	for _, p := range providers {
		group := byProvider[p]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Timestamp.Before(group[j].Timestamp)
		})

		row := providerRow(p, group, regimeGap)
		totalRows += len(group)
		totalCorrect += correctCount(group)
		if row.RegimeShift {
			shifted = append(shifted, p)
		}
		report.Providers = append(report.Providers, row)
	}

	report.OverallAccuracy = float64(totalCorrect) / float64(totalRows)
	report.RegimeShiftDetected = len(shifted) > 0
	report.Recommendation = recommend(report.OverallAccuracy, shifted)
	return report
}

func providerRow(provider string, ordered []domain.LinkedEvaluation, regimeGap float64) domain.ProviderDrift {
	n := len(ordered)
	row := domain.ProviderDrift{Provider: provider, Evaluations: n}

	row.Rolling.Last10 = windowAccuracy(ordered, ShortWindow)
	row.Rolling.Last50 = windowAccuracy(ordered, LongWindow)

	var scoreSum, brierSum float64
	var winScoreSum, lossScoreSum float64
	var wins, losses int
	for _, ev := range ordered {
		scoreSum += ev.TradeScore / 100.0

		win := ev.Outcome.Win()
		actual := 0.0
		if win {
			actual = 1.0
			winScoreSum += ev.TradeScore
			wins++
		} else {
			lossScoreSum += ev.TradeScore
			losses++
		}
		prob := ev.Confidence / 100.0
		brierSum += (prob - actual) * (prob - actual)
	}

	row.WinRate = float64(wins) / float64(n)
	row.CalibrationError = math.Abs(scoreSum/float64(n) - row.WinRate)
	row.Brier = brierSum / float64(n)

	var avgWinScore, avgLossScore float64
	if wins > 0 {
		avgWinScore = winScoreSum / float64(wins)
	}
	if losses > 0 {
		avgLossScore = lossScoreSum / float64(losses)
	}
	row.Discrimination = avgWinScore - avgLossScore

	// Regime shift only makes sense once a full short window exists;
	// before that the short-window rate is too noisy to act on.
	if n >= minShiftSamples {
		row.RegimeShift = row.Rolling.Last50-row.Rolling.Last10 >= regimeGap
	}
	return row
}

// windowAccuracy is the correctness rate over the most recent w rows,
// clipped to however many exist.
func windowAccuracy(ordered []domain.LinkedEvaluation, w int) float64 {
	if len(ordered) == 0 {
		return 0
	}
	if len(ordered) > w {
		ordered = ordered[len(ordered)-w:]
	}
	return float64(correctCount(ordered)) / float64(len(ordered))
}

func correctCount(rows []domain.LinkedEvaluation) int {
	correct := 0
	for _, row := range rows {
		if row.Correct() {
			correct++
		}
	}
	return correct
}

func recommend(overall float64, shifted []string) string {
	if len(shifted) > 0 {
		return fmt.Sprintf(
			"regime shift detected for %s: reduce size or pause trading until recent accuracy recovers",
			strings.Join(shifted, ", "))
	}
	if overall < 0.5 {
		return fmt.Sprintf(
			"overall accuracy %.0f%% is below break-even: review provider weights before continuing",
			overall*100)
	}
	return fmt.Sprintf("ensemble healthy: overall accuracy %.0f%%, no regime shift", overall*100)
}
