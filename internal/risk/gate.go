// Package risk implements the admission-control gate consulted before any
// order is placed. The gate is a small state machine over one trading
// session: while active it evaluates proposed orders against exposure,
// loss, and cadence limits; once locked it rejects everything until an
// explicit unlock. All money math runs on decimals so that limit
// comparisons are exact at the boundary.
package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SessionState is the gate's lifecycle state.
type SessionState string

const (
	// StateActive admits orders subject to the configured limits.
	StateActive SessionState = "active"

	// StateLocked rejects every order regardless of limits until an
	// explicit unlock.
	StateLocked SessionState = "locked"
)

// OrderSide distinguishes buys from sells on a proposed order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType distinguishes limit orders, which carry their own price, from
// market orders, which rely on a quoted estimate.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Limits is the risk configuration in force for a session.
type Limits struct {
	// AccountEquity is the equity base notional checks run against.
	AccountEquity decimal.Decimal `yaml:"account_equity" validate:"required"`

	// MaxPositionPct caps a single order's notional as a percentage of
	// account equity.
	MaxPositionPct float64 `yaml:"max_position_pct" validate:"gt=0,lte=100"`

	// MaxDailyLossPct caps cumulative realized session loss as a
	// percentage of account equity; breaching it locks the gate.
	MaxDailyLossPct float64 `yaml:"max_daily_loss_pct" validate:"gt=0,lte=100"`

	// MaxConcentrationPct caps total notional committed to one symbol
	// across the session, as a percentage of account equity.
	MaxConcentrationPct float64 `yaml:"max_concentration_pct" validate:"gt=0,lte=100"`

	// MaxConsecutiveLosses is the losing streak at which further orders
	// are refused.
	MaxConsecutiveLosses int `yaml:"max_consecutive_losses" validate:"gt=0"`

	// VolatilityScalar scales the position cap down (or up) with the
	// prevailing volatility regime; 1 means no adjustment.
	VolatilityScalar float64 `yaml:"volatility_scalar" validate:"gt=0"`

	// WindowStartMin and WindowEndMin bound the trading window in
	// venue-local minutes from midnight.
	WindowStartMin int `yaml:"window_start_min" validate:"gte=0,lt=1440"`
	WindowEndMin   int `yaml:"window_end_min" validate:"gt=0,lte=1440"`
}

// DefaultLimits returns a conservative limit set for the given equity.
func DefaultLimits(equity decimal.Decimal) Limits {
	return Limits{
		AccountEquity:        equity,
		MaxPositionPct:       10,
		MaxDailyLossPct:      3,
		MaxConcentrationPct:  20,
		MaxConsecutiveLosses: 3,
		VolatilityScalar:     1,
		WindowStartMin:       9*60 + 30,
		WindowEndMin:         16 * 60,
	}
}

// CheckParams describes a proposed order.
type CheckParams struct {
	Symbol    string
	Side      OrderSide
	Type      OrderType
	Quantity  decimal.Decimal
	// LimitPrice is the order's own price; nil for market orders.
	LimitPrice *decimal.Decimal
	// EstimatedPrice is the quoted execution estimate a market order
	// falls back to; nil when no quote is available.
	EstimatedPrice *decimal.Decimal
}

// CheckResult is the gate's verdict on a proposed order. A rejection is a
// normal negative result, not an error, and always carries a reason.
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func rejected(format string, args ...any) CheckResult {
	return CheckResult{Reason: fmt.Sprintf(format, args...)}
}

// Snapshot is a read-only copy of the session for inspection by callers.
type Snapshot struct {
	State             SessionState    `json:"state"`
	RealizedPnl       decimal.Decimal `json:"realized_pnl"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	TradeCount        int             `json:"trade_count"`
	Limits            Limits          `json:"limits"`
}

// Gate is the per-session admission gate. One mutex covers order checks
// and outcome recording so that two concurrent checks can never both
// observe a stale loss figure and both slip past a limit they jointly
// violate.
type Gate struct {
	mu sync.Mutex

	state             SessionState
	realizedPnl       decimal.Decimal
	consecutiveLosses int
	tradeCount        int
	committedNotional map[string]decimal.Decimal

	limits Limits
	now    func() time.Time
	logger zerolog.Logger
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock injects the venue-local time source used for trading-window
// checks.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates an active gate with zeroed counters.
func NewGate(limits Limits, logger zerolog.Logger, opts ...Option) *Gate {
	g := &Gate{
		state:             StateActive,
		committedNotional: make(map[string]decimal.Decimal),
		limits:            limits,
		now:               time.Now,
		logger:            logger.With().Str("component", "risk_gate").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check evaluates a proposed order against the session limits, in a fixed
// order: lock state, trading window, usable price, position size,
// concentration, daily loss, losing streak. The first failed check wins.
// An allowed order commits its notional against the symbol's
// concentration budget.
func (g *Gate) Check(params CheckParams) CheckResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StateLocked {
		return rejected("session locked: unlock or reset before trading")
	}

	minutes := localMinutes(g.now())
	if minutes < g.limits.WindowStartMin || minutes >= g.limits.WindowEndMin {
		return rejected("outside trading window (%s, window %s-%s)",
			formatMinutes(minutes),
			formatMinutes(g.limits.WindowStartMin),
			formatMinutes(g.limits.WindowEndMin))
	}

	price, ok := usablePrice(params)
	if !ok {
		return rejected("no usable price: market order without a quoted estimate")
	}

	notional := price.Mul(params.Quantity)
	maxPosition := g.limits.AccountEquity.
		Mul(decimal.NewFromFloat(g.limits.MaxPositionPct)).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(g.limits.VolatilityScalar))
	if notional.GreaterThan(maxPosition) {
		return rejected("position size %s exceeds limit %s (%.1f%% of equity)",
			notional.StringFixed(2), maxPosition.StringFixed(2), g.limits.MaxPositionPct)
	}

	maxConcentration := g.limits.AccountEquity.
		Mul(decimal.NewFromFloat(g.limits.MaxConcentrationPct)).
		Div(decimal.NewFromInt(100))
	committed := g.committedNotional[params.Symbol].Add(notional)
	if committed.GreaterThan(maxConcentration) {
		return rejected("concentration in %s would reach %s, over the %.1f%% cap",
			params.Symbol, committed.StringFixed(2), g.limits.MaxConcentrationPct)
	}

	maxLoss := g.limits.AccountEquity.
		Mul(decimal.NewFromFloat(g.limits.MaxDailyLossPct)).
		Div(decimal.NewFromInt(100))
	if g.realizedPnl.IsNegative() && g.realizedPnl.Neg().GreaterThanOrEqual(maxLoss) {
		return rejected("daily loss %s has reached the %.1f%% limit",
			g.realizedPnl.Neg().StringFixed(2), g.limits.MaxDailyLossPct)
	}

	if g.consecutiveLosses >= g.limits.MaxConsecutiveLosses {
		return rejected("%d consecutive losses: cool off before the next order",
			g.consecutiveLosses)
	}

	g.committedNotional[params.Symbol] = committed
	g.tradeCount++
	return CheckResult{Allowed: true}
}

// RecordOutcome applies a settled trade result to the session counters. A
// win resets the losing streak; a loss extends it. If the updated
// cumulative loss breaches the daily limit, or the losing streak reaches
// its maximum, the gate locks itself.
func (g *Gate) RecordOutcome(win bool, realizedPnl decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.realizedPnl = g.realizedPnl.Add(realizedPnl)
	if win {
		g.consecutiveLosses = 0
	} else {
		g.consecutiveLosses++
	}

	maxLoss := g.limits.AccountEquity.
		Mul(decimal.NewFromFloat(g.limits.MaxDailyLossPct)).
		Div(decimal.NewFromInt(100))
	breachedLoss := g.realizedPnl.IsNegative() && g.realizedPnl.Neg().GreaterThanOrEqual(maxLoss)
	breachedStreak := g.consecutiveLosses >= g.limits.MaxConsecutiveLosses

	if g.state == StateActive && (breachedLoss || breachedStreak) {
		g.state = StateLocked
		g.logger.Warn().
			Str("realized_pnl", g.realizedPnl.String()).
			Int("consecutive_losses", g.consecutiveLosses).
			Bool("daily_loss_breach", breachedLoss).
			Msg("risk gate auto-locked")
	}
}

// Lock transitions the gate to locked. Idempotent.
func (g *Gate) Lock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateLocked {
		g.state = StateLocked
		g.logger.Info().Msg("risk gate locked")
	}
}

// Unlock returns a locked gate to active without touching counters.
func (g *Gate) Unlock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != StateActive {
		g.state = StateActive
		g.logger.Info().Msg("risk gate unlocked")
	}
}

// Reset returns the gate to active with all counters zeroed. Used at
// session or day boundaries.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateActive
	g.realizedPnl = decimal.Zero
	g.consecutiveLosses = 0
	g.tradeCount = 0
	g.committedNotional = make(map[string]decimal.Decimal)
	g.logger.Info().Msg("risk session reset")
}

// State returns a snapshot of the session for inspection.
func (g *Gate) State() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		State:             g.state,
		RealizedPnl:       g.realizedPnl,
		ConsecutiveLosses: g.consecutiveLosses,
		TradeCount:        g.tradeCount,
		Limits:            g.limits,
	}
}

// usablePrice resolves the price a notional check runs on: the order's own
// limit price when present, otherwise the quoted estimate. A market order
// with neither has no usable price.
func usablePrice(params CheckParams) (decimal.Decimal, bool) {
	if params.LimitPrice != nil && params.LimitPrice.IsPositive() {
		return *params.LimitPrice, true
	}
	if params.EstimatedPrice != nil && params.EstimatedPrice.IsPositive() {
		return *params.EstimatedPrice, true
	}
	return decimal.Zero, false
}

func localMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
