// Package watchdog implements C2: a monotonic clock accessor and a periodic
// kick of the hardware watchdog primitive (init(timeout, panic_on_timeout),
// reset). The systemd kick this generalizes into a Primitive interface is
// the same shape as any fixed-cadence "kick a liveness primitive every N
// iterations" call, so a hardware backend can be substituted without
// touching callers.
package watchdog

import (
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/clock"
)

const (
	// FeedInterval is the target cadence for feeding the watchdog.
	FeedInterval = 10 * time.Second
	// Timeout is the hardware watchdog deadline.
	Timeout = 60 * time.Second
)

// Primitive is the external hardware watchdog collaborator contract.
type Primitive interface {
	Init(timeout time.Duration, panicOnTimeout bool) error
	Reset()
}

// Gate is C2. Feed must be called at most every FeedInterval; callers that
// are about to run an operation whose worst case approaches 5s (radio init,
// directory iteration, a file I/O test, a recording tick, a chunk decode)
// must call Feed first regardless of how long it has been since the last
// feed.
type Gate struct {
	prim  Primitive
	clk   clock.Clock
	start time.Time
	last  time.Time
}

func NewGate(prim Primitive, clk clock.Clock) *Gate {
	return &Gate{prim: prim, clk: clk, start: clk.Now(), last: clk.Now()}
}

// Init arms the hardware watchdog.
func (g *Gate) Init() error {
	return g.prim.Init(Timeout, true)
}

// NowMS returns the elapsed monotonic milliseconds since the gate was
// constructed — the single clock source other components read through C2
// rather than calling time.Now directly.
func (g *Gate) NowMS() uint64 {
	return uint64(g.clk.Now().Sub(g.start).Milliseconds())
}

// Feed kicks the watchdog unconditionally. Callers that want to respect the
// "at most every FeedInterval" contract can use ShouldFeed first; Feed
// itself never refuses so that call-before-long-operation sites are always
// safe to call without extra bookkeeping.
func (g *Gate) Feed() {
	g.prim.Reset()
	g.last = g.clk.Now()
}

// ShouldFeed reports whether FeedInterval has elapsed since the last feed,
// for the main loop's periodic tick.
func (g *Gate) ShouldFeed() bool {
	return g.clk.Now().Sub(g.last) >= FeedInterval
}
