package mission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edsonpavoni/orbitalTemple/internal/accel"
	"github.com/edsonpavoni/orbitalTemple/internal/antenna"
	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/codec"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/imageupload"
	"github.com/edsonpavoni/orbitalTemple/internal/nvstore"
	"github.com/edsonpavoni/orbitalTemple/internal/phy"
	"github.com/edsonpavoni/orbitalTemple/internal/radiation"
	"github.com/edsonpavoni/orbitalTemple/internal/radio"
	"github.com/edsonpavoni/orbitalTemple/internal/sensors"
	"github.com/edsonpavoni/orbitalTemple/internal/soak"
	"github.com/edsonpavoni/orbitalTemple/internal/telemetry"
)

type fakeWatchdog struct{ fed int }

func (w *fakeWatchdog) Feed() { w.fed++ }

// harness bundles every collaborator so tests can reach into the ones
// they need to drive (pin, loopback, clk) without threading them through
// Deps piecemeal each time.
type harness struct {
	store *nvstore.Memory
	pin   *antenna.FakePin
	phyLo *phy.Loopback
	link  *radio.Link
	clk   *clock.Sim
	imu   *sensors.StubIMU
	fs    *fsext.MemFS
	m     *Machine
}

func newHarness(t *testing.T, bootNowMS uint32) *harness {
	t.Helper()
	store := nvstore.NewMemory(radiation.MinSize)
	pin := &antenna.FakePin{SwitchHigh: true}
	wd := &fakeWatchdog{}
	clk := clock.NewSim()
	fs := fsext.NewMemFS(0)
	imu := sensors.NewStubIMU(sensors.Vec3{X: 1})
	bat := sensors.StubBattery{V: 7.4}
	lo := phy.NewLoopback()

	rad := radiation.NewStore()
	ant := antenna.NewDeployer(pin, pin, wd)
	link := radio.NewLink(lo, clk)
	bcn := beacon.NewScheduler(bat, bootNowMS)
	img := imageupload.NewUploader(fs, bat)
	acc := accel.NewRecorder(fs, imu, bat, wd)
	tele := telemetry.NewComposer(fs, imu, bat, sensors.StubThermistor{C: 20}, sensors.StubLuminance{L: 5}, link, rad)
	sk := soak.NewLogger(nil, fs)

	m := NewMachine(Deps{
		Rad: rad, Store: store, Antenna: ant, Link: link, Beacon: bcn,
		Img: img, Accel: acc, Tele: tele, Soak: sk, FS: fs, WD: wd, Clk: clk,
		BootNowMS: bootNowMS,
	})

	return &harness{store: store, pin: pin, phyLo: lo, link: link, clk: clk, imu: imu, fs: fs, m: m}
}

func TestFreshBootInitializesCheckpoint(t *testing.T) {
	h := newHarness(t, 500)

	assert.Equal(t, int(Boot), h.m.StateNum())
	assert.Equal(t, uint32(1), h.m.BootCount())
	assert.False(t, h.m.AntennaDeployed())

	cp, ok, err := radiation.Load(h.store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(500), cp.MissionStartMS)
	assert.Equal(t, uint32(1), cp.BootCount)
	assert.False(t, cp.FirstAccelDone)
}

func TestBootAdvancesToWaitDeployOnFirstTick(t *testing.T) {
	h := newHarness(t, 0)

	h.m.Tick(0)

	assert.Equal(t, int(WaitDeploy), h.m.StateNum())
}

func TestWaitDeployTimesOutIntoDeployingThenCompletes(t *testing.T) {
	h := newHarness(t, 0)
	h.pin.SwitchHigh = false // switch already low: antenna deploys instantly

	h.m.Tick(0) // Boot -> WaitDeploy
	require.Equal(t, int(WaitDeploy), h.m.StateNum())

	h.m.Tick(DeployWaitTimeMS + 1) // WaitDeploy -> Deploying
	require.Equal(t, int(Deploying), h.m.StateNum())

	h.m.Tick(DeployWaitTimeMS + 2) // Deploying: antenna Idle->Complete immediately
	assert.Equal(t, int(Operational), h.m.StateNum())
	assert.True(t, h.m.AntennaDeployed())
}

func TestDeployFailureReportsErrWithoutBlockingOperational(t *testing.T) {
	h := newHarness(t, 0)
	h.pin.SwitchHigh = true // forces heat/cool/retry cycles to exhaustion

	h.m.Tick(0)
	h.m.Tick(DeployWaitTimeMS + 1)
	require.Equal(t, int(Deploying), h.m.StateNum())

	now := uint32(DeployWaitTimeMS + 2)
	var lines []string
	for i := 0; i < 40 && h.m.StateNum() != int(Operational); i++ {
		now += uint32(antenna.HeatTime.Milliseconds()) + uint32(antenna.CoolTime.Milliseconds()) + uint32(antenna.RetryWait_.Milliseconds()) + 1
		lines = h.m.Tick(now)
	}

	require.Equal(t, int(Operational), h.m.StateNum())
	assert.False(t, h.m.AntennaDeployed())
	found := false
	for _, l := range lines {
		if l == "ERR:ANT_DEPLOY_FAILED" {
			found = true
		}
	}
	assert.True(t, found, "expected ERR:ANT_DEPLOY_FAILED among %v", lines)
}

func TestOperationalEmitsBeaconAndTelemetryOnSchedule(t *testing.T) {
	h := newHarness(t, 0)
	h.m.ForceOperational()

	// Both the no-contact beacon interval and the status interval equal
	// StatusIntervalMS, so the first tick at that mark fires both at once.
	lines := h.m.Tick(StatusIntervalMS)

	require.Len(t, lines, 2)
	foundBeacon, foundTelem := false, false
	for _, l := range lines {
		if len(l) >= 2 && l[:2] == "T+" {
			foundTelem = true
		} else if l != "" {
			foundBeacon = true
		}
	}
	assert.True(t, foundBeacon, "expected a beacon line among %v", lines)
	assert.True(t, foundTelem, "expected a telemetry line among %v", lines)
}

func TestRadioRecoverySucceedsAndIncrementsSoakReset(t *testing.T) {
	h := newHarness(t, 0)
	h.m.ForceOperational()

	h.phyLo.FailBeginN = 1000
	for i := 0; i < 8; i++ {
		h.link.Send("x")
	}
	require.True(t, h.link.NeedsRecovery())

	h.phyLo.FailBeginN = 0 // next Begin call succeeds
	h.m.Tick(1)

	assert.False(t, h.link.NeedsRecovery())
	assert.False(t, h.m.RestartRequested())
	assert.Equal(t, uint32(1), h.m.soak.Counters().RadioResets)
}

func TestRadioRecoveryFailurePersistsAndRequestsRestart(t *testing.T) {
	h := newHarness(t, 0)
	h.m.ForceOperational()

	h.phyLo.FailBeginN = 1000
	for i := 0; i < 8; i++ {
		h.link.Send("x")
	}
	require.True(t, h.link.NeedsRecovery())

	h.m.Tick(1) // Recover() still fails: FailBeginN untouched

	assert.True(t, h.m.RestartRequested())
}

func TestErrorStateRetriesEveryFiveSecondsAndRecovers(t *testing.T) {
	h := newHarness(t, 0)
	h.m.setState(Error)
	h.m.errorEnteredMS = 0
	h.phyLo.FailBeginN = 0

	h.m.Tick(ErrorRetryIntervalMS - 1) // too soon, stays in Error
	assert.Equal(t, int(Error), h.m.StateNum())

	h.m.Tick(ErrorRetryIntervalMS)
	assert.Equal(t, int(Operational), h.m.StateNum())
}

func TestHandleFrameTriggersFirstContactRecordingOnce(t *testing.T) {
	h := newHarness(t, 0)
	h.m.ForceOperational()

	f := codec.Frame{SatID: "SAT1", Command: "PING", Path: "", Data: ""}
	h.m.HandleFrame(f, 10)

	assert.Equal(t, accel.Recording, h.m.accel.Phase())
	assert.True(t, h.m.firstAccelDone)

	h.m.accel.Cancel()
	h.m.HandleFrame(f, 20)
	assert.Equal(t, accel.Idle, h.m.accel.Phase(), "second ground contact must not re-trigger recording")

	cp, ok, err := radiation.Load(h.store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, cp.FirstAccelDone)
}

func TestHandleFrameCountsSoakOkAndFailed(t *testing.T) {
	h := newHarness(t, 0)
	h.m.ForceOperational()

	h.m.HandleFrame(codec.Frame{SatID: "SAT1", Command: "Ping"}, 0)
	h.m.HandleFrame(codec.Frame{SatID: "SAT1", Command: "BOGUS_VERB"}, 0)

	assert.Equal(t, uint32(1), h.m.soak.Counters().CommandsOK)
	assert.Equal(t, uint32(1), h.m.soak.Counters().CommandsFailed)
}

func TestTickFoldsRadioSendFailuresIntoSoakCounters(t *testing.T) {
	h := newHarness(t, 0)
	h.m.ForceOperational()

	h.phyLo.FailTransmitN = 1
	_, err := h.link.Send("x")
	assert.Error(t, err)

	h.m.Tick(1)

	assert.Equal(t, uint32(1), h.m.soak.Counters().TXErrors)

	// A second tick with no new link errors must not double-count.
	h.m.Tick(2)
	assert.Equal(t, uint32(1), h.m.soak.Counters().TXErrors)
}

func TestCatastrophicDivergenceSelfHealsStateToError(t *testing.T) {
	h := newHarness(t, 0)
	h.m.rad.InjectForTest(radiation.CellMissionState, 1, 2, 3)

	assert.Equal(t, int(Error), h.m.StateNum())
	v, catastrophic := h.m.rad.Read(radiation.CellMissionState)
	assert.False(t, catastrophic)
	assert.Equal(t, uint32(Error), v)
}

func TestCatastrophicDivergenceSelfHealsBootCountAndDeployedFlag(t *testing.T) {
	h := newHarness(t, 0)
	h.m.rad.InjectForTest(radiation.CellBootCount, 5, 6, 7)
	h.m.rad.InjectForTest(radiation.CellAntennaDeployed, 0, 1, 2)

	assert.Equal(t, uint32(1), h.m.BootCount())
	assert.False(t, h.m.AntennaDeployed())
}

func TestCheckpointSurvivesAcrossReboot(t *testing.T) {
	h := newHarness(t, 1000)
	h.m.ForceOperational()
	require.NoError(t, h.m.Persist())

	rad2 := radiation.NewStore()
	pin2 := &antenna.FakePin{SwitchHigh: false}
	wd2 := &fakeWatchdog{}
	clk2 := clock.NewSim()
	fs2 := fsext.NewMemFS(0)
	imu2 := sensors.NewStubIMU(sensors.Vec3{})
	bat2 := sensors.StubBattery{V: 7.4}
	lo2 := phy.NewLoopback()
	ant2 := antenna.NewDeployer(pin2, pin2, wd2)
	link2 := radio.NewLink(lo2, clk2)
	bcn2 := beacon.NewScheduler(bat2, 0)
	img2 := imageupload.NewUploader(fs2, bat2)
	acc2 := accel.NewRecorder(fs2, imu2, bat2, wd2)
	tele2 := telemetry.NewComposer(fs2, imu2, bat2, sensors.StubThermistor{C: 20}, sensors.StubLuminance{L: 5}, link2, rad2)
	sk2 := soak.NewLogger(nil, fs2)

	m2 := NewMachine(Deps{
		Rad: rad2, Store: h.store, Antenna: ant2, Link: link2, Beacon: bcn2,
		Img: img2, Accel: acc2, Tele: tele2, Soak: sk2, FS: fs2, WD: wd2, Clk: clk2,
		BootNowMS: 99999, // must be ignored: a valid checkpoint was loaded
	})

	assert.Equal(t, uint32(2), m2.BootCount())
	assert.True(t, m2.AntennaDeployed())
	cp, ok, err := radiation.Load(h.store)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(1000), cp.MissionStartMS)
}
