// Package session holds per-user conversation state for the trading bot:
// which account is active, which workflow is in flight, and which free-text
// input the bot expects next. It performs no I/O of its own.
package session

import "github.com/shopspring/decimal"

// State is the closed set of free-text input prompts. A nil State means idle:
// no text is expected and stray messages are dropped. Variants carry the
// partial inputs already collected, so an interrupted prompt holds everything
// needed to resume or restart it.
type State interface {
	sessionState()
}

// AwaitingCustomLot expects a lot size for the straddle being built.
type AwaitingCustomLot struct{}

// AwaitingStopTriggerPct expects the stop-loss trigger as a percentage from
// entry.
type AwaitingStopTriggerPct struct{}

// AwaitingStopLimitPct expects the stop-loss limit as a percentage from
// entry, after the trigger has been collected.
type AwaitingStopLimitPct struct {
	TriggerPct decimal.Decimal
}

// AwaitingStopTriggerPrice expects the stop-loss trigger as an absolute
// price.
type AwaitingStopTriggerPrice struct{}

// AwaitingStopLimitPrice expects the stop-loss limit as an absolute price.
type AwaitingStopLimitPrice struct {
	TriggerPrice decimal.Decimal
}

// AwaitingTargetTriggerPct expects the take-profit trigger as a percentage
// from entry.
type AwaitingTargetTriggerPct struct{}

// AwaitingTargetLimitPct expects the take-profit limit as a percentage from
// entry.
type AwaitingTargetLimitPct struct {
	TriggerPct decimal.Decimal
}

// AwaitingTargetTriggerPrice expects the take-profit trigger as an absolute
// price.
type AwaitingTargetTriggerPrice struct{}

// AwaitingTargetLimitPrice expects the take-profit limit as an absolute
// price.
type AwaitingTargetLimitPrice struct {
	TriggerPrice decimal.Decimal
}

// AwaitingMultiStopTriggerPct expects the shared stop-loss trigger percentage
// for every selected position. Multi-leg flows are percentage-only; each
// leg's price is derived from its own entry.
type AwaitingMultiStopTriggerPct struct{}

// AwaitingMultiStopLimitPct expects the shared stop-loss limit percentage.
type AwaitingMultiStopLimitPct struct {
	TriggerPct decimal.Decimal
}

// AwaitingMultiTargetTriggerPct expects the shared take-profit trigger
// percentage.
type AwaitingMultiTargetTriggerPct struct{}

// AwaitingMultiTargetLimitPct expects the shared take-profit limit
// percentage.
type AwaitingMultiTargetLimitPct struct {
	TriggerPct decimal.Decimal
}

func (AwaitingCustomLot) sessionState()             {}
func (AwaitingStopTriggerPct) sessionState()        {}
func (AwaitingStopLimitPct) sessionState()          {}
func (AwaitingStopTriggerPrice) sessionState()      {}
func (AwaitingStopLimitPrice) sessionState()        {}
func (AwaitingTargetTriggerPct) sessionState()      {}
func (AwaitingTargetLimitPct) sessionState()        {}
func (AwaitingTargetTriggerPrice) sessionState()    {}
func (AwaitingTargetLimitPrice) sessionState()      {}
func (AwaitingMultiStopTriggerPct) sessionState()   {}
func (AwaitingMultiStopLimitPct) sessionState()     {}
func (AwaitingMultiTargetTriggerPct) sessionState() {}
func (AwaitingMultiTargetLimitPct) sessionState()   {}
