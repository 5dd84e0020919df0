// Package antenna implements C7: the heat/cool/retry sub-state machine
// driving the burn-wire release mechanism, using a dispatch table rather
// than nested conditionals: Tick looks up the current state's handler in a
// map rather than branching on it, the same shape as any small interface
// table keyed by state.
package antenna

import "time"

type State int

const (
	Idle State = iota
	Heating
	Cooling
	RetryWait
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Heating:
		return "Heating"
	case Cooling:
		return "Cooling"
	case RetryWait:
		return "RetryWait"
	case Complete:
		return "Complete"
	default:
		return "Unknown"
	}
}

const (
	HeatTime     = 90 * time.Second
	CoolTime     = 90 * time.Second
	RetryWait_   = 15 * time.Minute
	MaxRetries   = 3
)

// Watchdog is the subset of the watchdog gate C7 needs.
type Watchdog interface {
	Feed()
}

// Deployer is C7.
type Deployer struct {
	state       State
	burnWire    OutputPin
	switchPin   InputPin
	wd          Watchdog
	entryTime   time.Time
	retries     int
	failed      bool
	handlers    map[State]func(now time.Time, switchHigh bool) State
}

func NewDeployer(burnWire OutputPin, switchPin InputPin, wd Watchdog) *Deployer {
	d := &Deployer{
		state:     Idle,
		burnWire:  burnWire,
		switchPin: switchPin,
		wd:        wd,
	}
	d.handlers = map[State]func(now time.Time, switchHigh bool) State{
		Idle:      d.tickIdle,
		Heating:   d.tickHeating,
		Cooling:   d.tickCooling,
		RetryWait: d.tickRetryWait,
		Complete:  d.tickComplete,
	}
	return d
}

// Reset puts the sub-state machine back to Idle, used when the mission
// state machine (re)enters Deploying.
func (d *Deployer) Reset() {
	d.state = Idle
	d.retries = 0
	d.failed = false
	d.burnWire.Out(false)
}

func (d *Deployer) State() State { return d.state }

// Failed reports whether Complete was reached via retry exhaustion rather
// than a successful release, for the mission state machine's
// ERR:ANT_DEPLOY_FAILED report.
func (d *Deployer) Failed() bool { return d.failed }

// Tick feeds the watchdog, samples the switch, and dispatches to the
// current state's handler via the table built in NewDeployer.
func (d *Deployer) Tick(now time.Time) State {
	d.wd.Feed()

	switchHigh, _ := d.switchPin.ReadHigh()

	handler, ok := d.handlers[d.state]
	if !ok {
		d.state = Idle
		return d.state
	}
	next := handler(now, switchHigh)

	// Safety invariant: burn-wire must be LOW in every state other than
	// Heating.
	if next != Heating {
		d.burnWire.Out(false)
	}

	d.state = next
	return d.state
}

func (d *Deployer) tickIdle(now time.Time, switchHigh bool) State {
	if !switchHigh {
		return Complete
	}
	if d.entryTime.IsZero() {
		d.entryTime = now
		d.burnWire.Out(true)
	}
	return Heating
}

func (d *Deployer) tickHeating(now time.Time, switchHigh bool) State {
	if !switchHigh {
		d.entryTime = time.Time{}
		return Complete
	}
	if now.Sub(d.entryTime) >= HeatTime {
		d.entryTime = now
		return Cooling
	}
	return Heating
}

func (d *Deployer) tickCooling(now time.Time, switchHigh bool) State {
	if d.entryTime.IsZero() {
		d.entryTime = now
	}
	if now.Sub(d.entryTime) < CoolTime {
		return Cooling
	}
	if !switchHigh {
		d.entryTime = time.Time{}
		return Complete
	}
	d.retries++
	if d.retries >= MaxRetries {
		d.entryTime = time.Time{}
		d.failed = true
		return Complete
	}
	d.entryTime = now
	return RetryWait
}

func (d *Deployer) tickRetryWait(now time.Time, switchHigh bool) State {
	if !switchHigh {
		d.entryTime = time.Time{}
		return Complete
	}
	if d.entryTime.IsZero() {
		d.entryTime = now
	}
	if now.Sub(d.entryTime) >= RetryWait_ {
		d.entryTime = time.Time{}
		return Idle
	}
	return RetryWait
}

func (d *Deployer) tickComplete(now time.Time, switchHigh bool) State {
	return Complete
}
