// Package trader contains the position-lifecycle core: the execution state
// machine that turns a signal into a protected position, and the monitor
// that reconciles tracked positions against live venue state.
package trader

import (
	"time"

	"kestrel/internal/strategy"
)

// CycleState enumerates the execution state machine. A cycle walks
// Idle -> Flattening -> Sizing -> EntrySubmitted -> BracketPlacing -> Open,
// with Aborted reachable from every step.
type CycleState string

const (
	StateIdle           CycleState = "idle"
	StateFlattening     CycleState = "flattening"
	StateSizing         CycleState = "sizing"
	StateEntrySubmitted CycleState = "entry_submitted"
	StateBracketPlacing CycleState = "bracket_placing"
	StateOpen           CycleState = "open"
	StateAborted        CycleState = "aborted"
)

// Position is the tracked view of an open trade. It is owned by the
// executor while a cycle runs and by the monitor afterwards; both writers
// are serialized by the per-symbol guard in Book.
type Position struct {
	CycleID         string
	Symbol          string
	Side            strategy.Action // ActionLong or ActionShort
	Size            float64
	EntryPrice      float64
	Leverage        int
	TakeProfitPrice float64
	StopLossPrice   float64
	UnrealizedPnL   float64
	Confidence      float64

	// EntryBalance is the account total recorded right before entry;
	// realized PnL on closure is the balance delta against it.
	EntryBalance float64
	OpenedAt     time.Time
}
