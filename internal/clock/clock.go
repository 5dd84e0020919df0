// Package clock provides the single monotonic-ms time source threaded
// through every component that schedules or times out (C3, C5, C6, C7, C8,
// C9). It mirrors github.com/juju/ratelimit's Clock interface, the same
// shape used for injecting a fake clock into rate-limited code under test.
package clock

import (
	"fmt"
	"time"

	"github.com/juju/ratelimit"
)

// Clock is satisfied by both Real and Sim, and by *ratelimit.Bucket's clock
// parameter, should callers ever need a token-bucket rate limit.
type Clock interface {
	ratelimit.Clock
}

// Real is the production clock: wall time, real sleeps.
type Real struct {
	start time.Time
}

// NewReal returns a Clock whose NowMS() is 0 at construction time.
func NewReal() *Real {
	return &Real{start: time.Now()}
}

func (r *Real) Now() time.Time { return time.Now() }

func (r *Real) Sleep(d time.Duration) { time.Sleep(d) }

// NowMS returns milliseconds elapsed since the clock was constructed, i.e.
// mission time. It wraps at 2^32 the same as a firmware's 32-bit
// millisecond counter would.
func (r *Real) NowMS() uint32 {
	return uint32(time.Since(r.start).Milliseconds())
}

// Sim is a deterministic clock for simulated-clock tests: time only
// advances when Advance is called.
type Sim struct {
	now time.Time
	ms  uint32
}

// NewSim returns a simulated Clock starting at mission time 0.
func NewSim() *Sim {
	return &Sim{now: time.Unix(0, 0)}
}

func (s *Sim) Now() time.Time { return s.now }

// Sleep on a Sim clock is a no-op advance by d; tests drive time explicitly
// with Advance rather than blocking the test goroutine.
func (s *Sim) Sleep(d time.Duration) {
	s.Advance(d)
}

func (s *Sim) Advance(d time.Duration) {
	s.now = s.now.Add(d)
	s.ms += uint32(d.Milliseconds())
}

func (s *Sim) NowMS() uint32 { return s.ms }

// ElapsedMS computes (now - then) as unsigned subtraction so a 32-bit
// millisecond counter wrap never produces a spurious huge/negative interval.
func ElapsedMS(now, then uint32) uint32 {
	return now - then
}

// FormatHHMMSS renders an elapsed millisecond count as "HH:MM:SS", the
// mission-time format shared by the beacon (C5), Ping reply and telemetry
// line (C11).
func FormatHHMMSS(elapsedMS uint32) string {
	totalSec := elapsedMS / 1000
	h := totalSec / 3600
	m := (totalSec % 3600) / 60
	sec := totalSec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}
