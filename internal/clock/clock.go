// Package clock abstracts time so the test scheduler can be driven
// deterministically.
package clock

import "time"

// Clock is the time source used by the scheduler and phase stopwatches.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks like time.Ticker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Real is the wall clock.
type Real struct{}

// New returns the wall clock.
func New() Clock { return Real{} }

func (Real) Now() time.Time                  { return time.Now() }
func (Real) Since(t time.Time) time.Duration { return time.Since(t) }

func (Real) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Stopwatch measures elapsed time on a Clock.
type Stopwatch struct {
	clk   Clock
	start time.Time
}

// StartStopwatch starts measuring from clk.Now().
func StartStopwatch(clk Clock) *Stopwatch {
	return &Stopwatch{clk: clk, start: clk.Now()}
}

// Started returns when the stopwatch was started.
func (s *Stopwatch) Started() time.Time { return s.start }

// Elapsed returns the time since the stopwatch was started.
func (s *Stopwatch) Elapsed() time.Duration { return s.clk.Since(s.start) }
