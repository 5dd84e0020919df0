// Package accel implements C8: fixed-rate accelerometer capture to a
// fixed-size binary file, with a one-shot auto-trigger on first ground
// contact. Each sample is encoded and written to the open file as it is
// taken rather than buffering the whole recording in memory.
package accel

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/errs"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/sensors"
)

const (
	SampleRateHz   = 30
	DurationSec    = 60
	SampleCount    = SampleRateHz * DurationSec // 1800
	SampleBytes    = 12                         // 3 x float32 LE
	HeaderBytes    = 16
	PayloadBytes   = SampleCount * SampleBytes // 21600
	TotalFileBytes = HeaderBytes + PayloadBytes // 21616

	magic   = "ACCEL30"
	version = 1

	sampleIntervalMS = 1000 / SampleRateHz // ~33ms

	progressIntervalMS = 10 * 1000

	// requiredFreeBytes is the storage headroom Start requires: the file
	// itself plus a 1024B margin.
	requiredFreeBytes = TotalFileBytes + 1024
)

type Phase int

const (
	Idle Phase = iota
	Recording
	ErrorPhase
)

// Watchdog is the subset of the watchdog gate C8 needs.
type Watchdog interface {
	Feed()
}

// Recorder is C8.
type Recorder struct {
	fs  fsext.FS
	imu sensors.IMU
	bat sensors.Battery
	wd  Watchdog

	phase            Phase
	file             fsext.File
	path             string
	count            int
	lastSampleMS     uint32
	lastProgressMS   uint32
	startedAtMS      uint32
}

func NewRecorder(fs fsext.FS, imu sensors.IMU, bat sensors.Battery, wd Watchdog) *Recorder {
	return &Recorder{fs: fs, imu: imu, bat: bat, wd: wd, phase: Idle}
}

func (r *Recorder) Phase() Phase { return r.phase }
func (r *Recorder) Path() string { return r.path }

// IMUAvailable reports the IMU's liveness, for the mission state machine's
// CellIMUOK health cell.
func (r *Recorder) IMUAvailable() bool { return r.imu.Available() }

// CheckFirstContactRecording implements the one-shot auto trigger: on the
// mission's first ground contact, if no such recording has ever completed
// and none is in progress, start one. alreadyDone is the persisted
// first-accel-done flag, owned by the caller since it lives in the same
// checkpoint as the mission state.
func (r *Recorder) CheckFirstContactRecording(alreadyDone bool, nowMS uint32) (started bool) {
	if alreadyDone || r.phase == Recording {
		return false
	}
	_, err := r.Start(nowMS)
	return err == nil
}

// Start checks busy/battery/IMU/storage preconditions, then opens the
// output file and writes its header. A recording never starts on a voltage
// already below the beacon's low-battery threshold.
func (r *Recorder) Start(nowMS uint32) (string, error) {
	if r.phase == Recording {
		return "", errAlreadyRecording
	}
	if r.bat != nil {
		if v := r.bat.VoltageV(); v > 0 && v < beacon.MinBatteryVoltage {
			return "", errLowBattery
		}
	}
	if !r.imu.Available() {
		return "", errIMUUnavailable
	}
	if !fsext.CheckFreeSpace(r.fs, requiredFreeBytes) {
		return "", errNoStorage
	}

	path := fmt.Sprintf("/accel/rec_%d.bin", nowMS)
	f, err := r.fs.Open(path, true)
	if err != nil {
		return "", err
	}
	header := make([]byte, HeaderBytes)
	copy(header[0:7], magic)
	header[7] = version
	binary.LittleEndian.PutUint16(header[8:10], uint16(SampleRateHz))
	binary.LittleEndian.PutUint16(header[10:12], uint16(SampleCount))
	if _, err := f.Write(header); err != nil {
		f.Close()
		return "", err
	}

	r.file = f
	r.path = path
	r.count = 0
	r.startedAtMS = nowMS
	r.lastSampleMS = nowMS
	r.lastProgressMS = nowMS
	r.phase = Recording
	return path, nil
}

// Tick samples at ~33ms intervals, emits a progress message every 10s, and
// completes the recording at SampleCount.
func (r *Recorder) Tick(nowMS uint32) (response string, done bool) {
	if r.phase != Recording {
		return "", false
	}
	if clock.ElapsedMS(nowMS, r.lastSampleMS) < sampleIntervalMS {
		return "", false
	}
	// Advance the sample schedule by one interval rather than snapping it to
	// nowMS, so a coarse tick granularity does not stretch the recording.
	r.lastSampleMS += sampleIntervalMS
	r.wd.Feed()

	sample, err := r.imu.ReadAccel()
	if err != nil {
		r.failAndClose()
		return errs.IMUNotAvailable, true
	}

	buf := make([]byte, SampleBytes)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(sample.X))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(sample.Y))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(sample.Z))
	if _, err := r.file.Write(buf); err != nil {
		r.failAndClose()
		return errs.AccelWriteFailed, true
	}
	r.count++

	if clock.ElapsedMS(nowMS, r.lastProgressMS) >= progressIntervalMS {
		r.lastProgressMS = nowMS
		pct := r.count * 100 / SampleCount
		response = fmt.Sprintf("ACCEL:PROGRESS:%d%%", pct)
	}

	if r.count >= SampleCount {
		r.file.Close()
		size := TotalFileBytes
		path := r.path
		r.phase = Idle
		r.file = nil
		return fmt.Sprintf("OK:ACCEL_COMPLETE:%s:%dB", path, size), true
	}

	return response, false
}

// Cancel closes and removes the partial file. It also clears a prior
// ErrorPhase, the one operator-initiated way out of that state.
func (r *Recorder) Cancel() error {
	if r.phase != Recording && r.phase != ErrorPhase {
		return nil
	}
	path := r.path
	if r.file != nil {
		r.file.Close()
	}
	r.phase = Idle
	r.file = nil
	err := r.fs.Remove(path)
	r.path = ""
	return err
}

// failAndClose closes the file and moves to ErrorPhase, leaving the
// partial file on storage for Cancel to clean up.
func (r *Recorder) failAndClose() {
	if r.file != nil {
		r.file.Close()
	}
	r.phase = ErrorPhase
	r.file = nil
}

// TimeSince is exposed for tests that need the mission-time timestamp used
// to name the recording file.
func TimeSince(t0 time.Time) uint32 {
	return uint32(time.Since(t0).Milliseconds())
}
