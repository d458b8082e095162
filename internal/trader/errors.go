package trader

import (
	"errors"
	"fmt"
)

// Guard rejections. A trigger firing while a cycle is in flight or a
// position is open is a no-op, never a queued retry.
var (
	ErrCycleInFlight = errors.New("entry cycle already in flight for symbol")
	ErrPositionOpen  = errors.New("position already open for symbol")
)

// CriticalExposureError reports the one failure that must not be folded into
// catch-log-continue: the entry filled but the protective bracket could not
// be placed. Flattened records whether the compensating close succeeded.
type CriticalExposureError struct {
	Symbol    string
	CycleID   string
	Flattened bool
	Err       error
}

func (e *CriticalExposureError) Error() string {
	status := "position flattened"
	if !e.Flattened {
		status = "POSITION STILL OPEN UNPROTECTED"
	}
	return fmt.Sprintf("critical exposure on %s (cycle %s, %s): %v", e.Symbol, e.CycleID, status, e.Err)
}

func (e *CriticalExposureError) Unwrap() error { return e.Err }
