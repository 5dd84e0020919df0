// Package mission implements C6: the top-level mission state machine, a
// tagged enum whose Tick switches on the current state and calls one
// handler method per state (antenna.Deployer, one level down, looks its
// handlers up in a map instead). This package owns
// Boot/WaitDeploy/Deploying/Operational/Error and delegates command
// handling to command.Dispatcher.
package mission

import (
	"fmt"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/accel"
	"github.com/edsonpavoni/orbitalTemple/internal/antenna"
	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/codec"
	"github.com/edsonpavoni/orbitalTemple/internal/command"
	"github.com/edsonpavoni/orbitalTemple/internal/errs"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/imageupload"
	"github.com/edsonpavoni/orbitalTemple/internal/nvstore"
	"github.com/edsonpavoni/orbitalTemple/internal/radiation"
	"github.com/edsonpavoni/orbitalTemple/internal/radio"
	"github.com/edsonpavoni/orbitalTemple/internal/soak"
	"github.com/edsonpavoni/orbitalTemple/internal/telemetry"
)

// State is the top-level mission state.
type State int

const (
	Boot State = iota
	WaitDeploy
	Deploying
	Operational
	Error
)

func (s State) String() string {
	switch s {
	case Boot:
		return "Boot"
	case WaitDeploy:
		return "WaitDeploy"
	case Deploying:
		return "Deploying"
	case Operational:
		return "Operational"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

const (
	// DeployWaitTimeMS is how long WaitDeploy waits before arming deployment.
	DeployWaitTimeMS = 5 * 60 * 1000
	// StatusIntervalMS is the status/telemetry emission interval.
	StatusIntervalMS = 60 * 1000
	// ErrorRetryIntervalMS is how often Error attempts recovery.
	ErrorRetryIntervalMS = 5 * 1000
)

// Watchdog is the subset of C2 the mission loop needs.
type Watchdog interface {
	Feed()
}

// Machine is C6.
type Machine struct {
	rad     *radiation.Store
	store   nvstore.Store
	antenna *antenna.Deployer
	link    *radio.Link
	beacon  *beacon.Scheduler
	img     *imageupload.Uploader
	accel   *accel.Recorder
	tele    *telemetry.Composer
	soak    *soak.Logger
	wd      Watchdog
	clk     clock.Clock
	fs      fsext.FS

	dispatcher *command.Dispatcher

	waitDeployEntryMS uint32
	lastTelemMS       uint32
	errorEnteredMS    uint32
	restartRequested  bool

	missionStartMS uint32
	firstAccelDone bool

	lastTXErrors uint32
	lastRXErrors uint32
}

// Deps bundles the collaborators NewMachine wires together, since C6 sits
// at the top of the dependency graph and touches every other component.
type Deps struct {
	Rad     *radiation.Store
	Store   nvstore.Store
	Antenna *antenna.Deployer
	Link    *radio.Link
	Beacon  *beacon.Scheduler
	Img     *imageupload.Uploader
	Accel   *accel.Recorder
	Tele    *telemetry.Composer
	Soak    *soak.Logger
	FS      fsext.FS
	WD      Watchdog
	Clk     clock.Clock

	// BootNowMS stamps MissionStartMS on a genuinely fresh first boot (no
	// valid checkpoint to load one from).
	BootNowMS uint32
}

// NewMachine constructs C6 and loads the nonvolatile checkpoint, falling
// back to a fresh first-boot state on any checkpoint corruption (any
// mismatch means the caller initializes a fresh checkpoint).
func NewMachine(d Deps) *Machine {
	m := &Machine{
		rad:     d.Rad,
		store:   d.Store,
		antenna: d.Antenna,
		link:    d.Link,
		beacon:  d.Beacon,
		img:     d.Img,
		accel:   d.Accel,
		tele:    d.Tele,
		soak:    d.Soak,
		wd:      d.WD,
		clk:     d.Clk,
		fs:      d.FS,
	}
	m.dispatcher = command.NewDispatcher(d.FS, d.Accel, d.Img, d.Rad, m, m.tele, d.Clk)

	cp, ok, _ := radiation.Load(d.Store)
	if ok {
		m.rad.Write(radiation.CellMissionState, uint32(Boot))
		m.rad.Write(radiation.CellAntennaDeployed, boolToU32(cp.AntennaDeployed))
		m.rad.Write(radiation.CellBootCount, cp.BootCount+1)
		m.missionStartMS = cp.MissionStartMS
		m.firstAccelDone = cp.FirstAccelDone
	} else {
		m.rad.Write(radiation.CellMissionState, uint32(Boot))
		m.rad.Write(radiation.CellAntennaDeployed, 0)
		m.rad.Write(radiation.CellBootCount, 1)
		m.missionStartMS = d.BootNowMS
		m.firstAccelDone = false
	}
	m.persist()
	return m
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func (m *Machine) state() State {
	v, catastrophic := m.rad.Read(radiation.CellMissionState)
	if catastrophic {
		m.rad.Write(radiation.CellMissionState, uint32(Error))
		return Error
	}
	return State(v)
}

func (m *Machine) setState(s State) {
	m.rad.Write(radiation.CellMissionState, uint32(s))
	m.persist()
}

// StateNum, BootCount, AntennaDeployed, ForceOperational, Persist and
// Restart together satisfy command.Mission, so C10 can report and mutate
// mission state without this package importing it back.
func (m *Machine) StateNum() int { return int(m.state()) }

func (m *Machine) BootCount() uint32 {
	v, catastrophic := m.rad.Read(radiation.CellBootCount)
	if catastrophic {
		m.rad.Write(radiation.CellBootCount, 1)
		return 1
	}
	return v
}

func (m *Machine) AntennaDeployed() bool {
	v, catastrophic := m.rad.Read(radiation.CellAntennaDeployed)
	if catastrophic {
		m.rad.Write(radiation.CellAntennaDeployed, 0)
		return false
	}
	return v == 1
}

func (m *Machine) ForceOperational() {
	m.rad.Write(radiation.CellAntennaDeployed, 1)
	m.setState(Operational)
}

func (m *Machine) Persist() error { return m.persist() }

func (m *Machine) Restart() { m.restartRequested = true }

// RestartRequested reports whether a command or recovery failure has asked
// the main loop to perform a soft reset.
func (m *Machine) RestartRequested() bool { return m.restartRequested }

func (m *Machine) persist() error {
	err := radiation.Save(m.store, radiation.Checkpoint{
		MissionState:    byte(m.state()),
		BootCount:       m.BootCount(),
		AntennaDeployed: m.AntennaDeployed(),
		MissionStartMS:  m.missionStartMS,
		FirstAccelDone:  m.firstAccelDone,
	})
	if err != nil {
		// Avoid recursing back into persist(): record the fault directly
		// in the TMR cell and let the next tick's checkpoint attempt retry.
		m.rad.Write(radiation.CellMissionState, uint32(Error))
	}
	return err
}

// HandleFrame registers ground contact, dispatches an authenticated command
// frame, and updates the soak logger's ok/failed counters. A successful
// parse (the caller only reaches HandleFrame on one) is the sole trigger
// for registerGroundContact; its first-ever firing in turn triggers C8's
// one-shot accelerometer capture.
func (m *Machine) HandleFrame(f codec.Frame, nowMS uint32) []string {
	if m.beacon.RegisterGroundContact(nowMS) {
		m.checkFirstContactRecording(nowMS)
	}

	lines := m.dispatcher.Dispatch(f, nowMS)
	ok := len(lines) > 0 && !(len(lines[0]) >= 4 && lines[0][:4] == "ERR:")
	if m.soak != nil {
		if ok {
			m.soak.IncCommandOK()
		} else {
			m.soak.IncCommandFailed()
		}
	}
	return lines
}

func (m *Machine) checkFirstContactRecording(nowMS uint32) {
	if m.accel.CheckFirstContactRecording(m.firstAccelDone, nowMS) {
		m.firstAccelDone = true
		m.persist()
	}
}

// Tick advances the mission state machine by one loop iteration: scrub the
// TMR store, dispatch to the current top-level state's handler, and run
// the soak logger's periodic rollup.
func (m *Machine) Tick(nowMS uint32) []string {
	m.wd.Feed()
	m.rad.ScrubAll(nowMS)
	m.rad.Write(radiation.CellAntennaState, uint32(m.antenna.State()))
	m.rad.Write(radiation.CellGroundContactEstablished, boolToU32(m.beacon.GroundContactEstablished()))
	m.rad.Write(radiation.CellRadioOK, boolToU32(m.link.RFOK()))
	m.rad.Write(radiation.CellIMUOK, boolToU32(m.accel.IMUAvailable()))
	m.rad.Write(radiation.CellSDOK, boolToU32(fsext.CheckFreeSpace(m.fs, 0)))

	var out []string
	switch m.state() {
	case Boot:
		m.waitDeployEntryMS = nowMS
		m.setState(WaitDeploy)
	case WaitDeploy:
		out = m.tickWaitDeploy(nowMS)
	case Deploying:
		out = m.tickDeploying(nowMS)
	case Operational:
		out = m.tickOperational(nowMS)
	case Error:
		out = m.tickError(nowMS)
	}

	if m.soak != nil {
		m.syncRadioErrorCounters()
		m.soak.SetExternalStats(m.rad.SEUCorrections(), m.rad.CatastrophicCount(), m.link.ConsecutiveTXFailures(), m.link.ConsecutiveRXFailures(), m.antenna.Failed())
		m.soak.IncLoopIteration()
		m.soak.Tick(nowMS)
	}
	return out
}

// syncRadioErrorCounters folds the radio link's cumulative TX/RX error
// counts into the soak logger's monotonic counters, one Inc call per new
// error since the link and the logger track the same failures separately
// (the link for NeedsRecovery, the logger for the hourly/daily rollup).
func (m *Machine) syncRadioErrorCounters() {
	for tx := m.link.TXErrors(); m.lastTXErrors != tx; m.lastTXErrors++ {
		m.soak.IncTXError()
	}
	for rx := m.link.RXErrors(); m.lastRXErrors != rx; m.lastRXErrors++ {
		m.soak.IncRXError()
	}
}

func (m *Machine) tickWaitDeploy(nowMS uint32) []string {
	var out []string
	if clock.ElapsedMS(nowMS, m.waitDeployEntryMS) >= DeployWaitTimeMS {
		m.antenna.Reset()
		m.setState(Deploying)
		return out
	}
	if m.beacon.DueForBeacon(nowMS) {
		out = append(out, m.emitBeacon(nowMS))
	}
	return out
}

func (m *Machine) tickDeploying(nowMS uint32) []string {
	var out []string
	st := m.antenna.Tick(time.UnixMilli(int64(nowMS)))
	if st == antenna.Complete {
		if m.antenna.Failed() {
			out = append(out, errs.AntDeployFailed)
		} else {
			m.rad.Write(radiation.CellAntennaDeployed, 1)
		}
		m.setState(Operational)
	}
	return out
}

func (m *Machine) tickOperational(nowMS uint32) []string {
	var out []string

	if m.beacon.DueForBeacon(nowMS) {
		out = append(out, m.emitBeacon(nowMS))
	}
	if clock.ElapsedMS(nowMS, m.lastTelemMS) >= StatusIntervalMS {
		m.lastTelemMS = nowMS
		out = append(out, m.tele.Compose(nowMS))
	}
	if m.link.NeedsRecovery() {
		if m.link.Recover() {
			if m.soak != nil {
				m.soak.IncRadioReset()
			}
		} else {
			m.persist()
			m.Restart()
		}
	}
	if resp, timedOut := m.img.TimeoutCheck(nowMS); timedOut {
		out = append(out, resp)
	}
	return out
}

func (m *Machine) tickError(nowMS uint32) []string {
	if clock.ElapsedMS(nowMS, m.errorEnteredMS) < ErrorRetryIntervalMS {
		return nil
	}
	m.errorEnteredMS = nowMS
	if m.link.Recover() {
		m.setState(Operational)
	}
	return nil
}

func (m *Machine) emitBeacon(nowMS uint32) string {
	line, skipped := m.beacon.Emit(nowMS, beacon.Telemetry{BootCount: m.BootCount()})
	if m.soak != nil {
		if skipped {
			m.soak.IncBeaconSkipped()
		} else {
			m.soak.IncBeaconSent()
		}
	}
	if skipped {
		return fmt.Sprintf("BEACON_SKIPPED|T+%s", clock.FormatHHMMSS(nowMS))
	}
	return line
}
