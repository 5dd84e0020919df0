package watchdog

import (
	"time"

	"github.com/coreos/go-systemd/daemon"
)

// SystemdPrimitive kicks the systemd watchdog via
// daemon.SdNotify(false, "WATCHDOG=1"). It is the default Primitive on the
// Linux-capable flight computer this firmware targets; Init is a no-op
// because systemd's own unit file declares WatchdogSec, not this process.
type SystemdPrimitive struct{}

func (SystemdPrimitive) Init(timeout time.Duration, panicOnTimeout bool) error {
	return nil
}

func (SystemdPrimitive) Reset() {
	daemon.SdNotify(false, "WATCHDOG=1")
}

// NullPrimitive is a Primitive that does nothing, used in tests and in
// environments with no supervising watchdog (e.g. the host simulation
// harness).
type NullPrimitive struct {
	Resets int
}

func (p *NullPrimitive) Init(timeout time.Duration, panicOnTimeout bool) error {
	return nil
}

func (p *NullPrimitive) Reset() {
	p.Resets++
}
