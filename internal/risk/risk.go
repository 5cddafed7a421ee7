// Package risk turns an admitted candidate into a position plan under a fixed per-trade risk budget.
package risk

import (
	"errors"
	"math"

	"spot-swing-bot/internal/ta"
)

var (
	ErrInvalidStop      = errors.New("risk: stop must be below a positive entry")
	ErrBelowMinNotional = errors.New("risk: order notional below exchange minimum")
	ErrInvalidQuantity  = errors.New("risk: non-positive quantity")
)

// StopPrice picks the tighter of the recent swing low and the ATR stop.
//
// Two candidates:
//   - swing low: min of the last lookback lows
//   - ATR: entry - atrMult*atr
//
// Returns:
//   - stop: the higher of the two; the swing low alone when atr is absent
func StopPrice(lows []float64, entry, atr float64, lookback int, atrMult float64) float64 {
	swing := math.NaN()
	for _, l := range ta.Tail(lows, lookback) {
		if ta.Valid(l) && (math.IsNaN(swing) || l < swing) {
			swing = l
		}
	}
	if !ta.Valid(atr) {
		return swing
	}
	atrStop := entry - atrMult*atr
	if math.IsNaN(swing) {
		return atrStop
	}
	return math.Max(swing, atrStop)
}

// Sizer holds the account-level sizing rules.
type Sizer struct {
	RiskFraction  float64 // share of free balance lost if the stop is hit
	MinRewardRisk float64 // take-profit distance in multiples of the stop distance
	MinNotional   float64 // exchange minimum order value in quote currency

	// FallbackNotional is bought instead when the risk-sized order is below MinNotional. Zero disables it.
	FallbackNotional float64
}

// Plan is a sized order.
type Plan struct {
	Entry       float64 `json:"entry"`
	Stop        float64 `json:"stop"`
	TakeProfit  float64 `json:"take_profit"`
	Qty         float64 `json:"qty"`
	RiskBudget  float64 `json:"risk_budget"`
	LossPerUnit float64 `json:"loss_per_unit"`
	Notional    float64 `json:"notional"`
	Capped      bool    `json:"capped,omitempty"`
	Degraded    bool    `json:"degraded,omitempty"`
}

// Size computes quantity and take-profit.
//
// Parameters:
//   - balance: free quote balance
//   - entry: expected fill price
//   - stop: protective stop, strictly below entry
//
// Returns:
//   - plan: the order; Capped when the notional was cut to the free balance, Degraded when the
//     fallback notional replaced the risk-sized one
//   - err: ErrInvalidStop, ErrBelowMinNotional or ErrInvalidQuantity
func (s Sizer) Size(balance, entry, stop float64) (Plan, error) {
	if !(entry > 0) || !ta.Valid(stop) || stop >= entry {
		return Plan{}, ErrInvalidStop
	}
	p := Plan{Entry: entry, Stop: stop}
	p.LossPerUnit = entry - stop
	p.RiskBudget = balance * s.RiskFraction
	p.Qty = p.RiskBudget / p.LossPerUnit
	p.TakeProfit = entry + s.MinRewardRisk*p.LossPerUnit
	p.Notional = p.Qty * entry

	if p.Notional > balance {
		p.Qty = balance / entry
		p.Notional = balance
		p.Capped = true
	}

	if p.Notional < s.MinNotional {
		if s.FallbackNotional <= 0 || s.FallbackNotional > balance {
			return p, ErrBelowMinNotional
		}
		p.Qty = s.FallbackNotional / entry
		p.Notional = s.FallbackNotional
		p.Degraded = true
	}

	if !(p.Qty > 0) || math.IsInf(p.Qty, 0) {
		return p, ErrInvalidQuantity
	}
	return p, nil
}
