// Package beacon implements C5: adaptive downlink cadence and beacon
// composition. It tracks the last beacon time and compares the time elapsed
// since then against an interval picked from the contact window, the same
// "compare elapsed against a threshold, pick the matching
// interval" shape as a periodic heartbeat scheduler, extended here to a
// three-tier interval selection.
package beacon

import (
	"fmt"

	"github.com/edsonpavoni/orbitalTemple/internal/clock"
)

const (
	// IntervalNoContact is used before ground contact is ever established.
	IntervalNoContact = 60 * 1000 // ms
	// LostThreshold is how long since last contact before cadence degrades.
	LostThreshold = 24 * 60 * 60 * 1000 // ms
	// IntervalLost applies once LostThreshold has elapsed.
	IntervalLost = 5 * 60 * 1000 // ms
	// IntervalNormal is the steady-state cadence.
	IntervalNormal = 60 * 60 * 1000 // ms

	// MinBatteryVoltage below which a beacon is skipped (but still
	// scheduled) to conserve power.
	MinBatteryVoltage = 6.0
)

// Status mirrors the interval choice, used as the beacon's status prefix.
type Status string

const (
	StatusSearching Status = "searching"
	StatusLost      Status = "lost"
	StatusConnected Status = "connected"
)

// BatteryReader is the minimal sensor contract C5 needs.
type BatteryReader interface {
	VoltageV() float64
}

// Scheduler is C5.
type Scheduler struct {
	battery BatteryReader

	groundContactEstablished bool
	lastGroundContactMS      uint32
	lastBeaconTimeMS         uint32
	missionStartMS           uint32

	skippedCount uint32
}

func NewScheduler(battery BatteryReader, missionStartMS uint32) *Scheduler {
	return &Scheduler{battery: battery, missionStartMS: missionStartMS}
}

// SelectInterval applies the three-tier cadence rule: no contact yet,
// contact lost past the threshold, or normal connected cadence.
func (s *Scheduler) SelectInterval(nowMS uint32) (intervalMS uint32, status Status) {
	if !s.groundContactEstablished {
		return IntervalNoContact, StatusSearching
	}
	if nowMS-s.lastGroundContactMS > LostThreshold {
		return IntervalLost, StatusLost
	}
	return IntervalNormal, StatusConnected
}

// DueForBeacon reports whether the selected interval has elapsed since the
// last beacon (emitted or skipped).
func (s *Scheduler) DueForBeacon(nowMS uint32) bool {
	interval, _ := s.SelectInterval(nowMS)
	return nowMS-s.lastBeaconTimeMS >= interval
}

// Telemetry the beacon composes from, kept minimal and supplied by the
// caller (C6) so this package has no dependency on the full sensor set.
type Telemetry struct {
	BootCount uint32
}

// Emit composes and "sends" (returns the line for C3 to transmit) the
// beacon, or skips it on low battery while still updating lastBeaconTime
// and the skipped counter to preserve the interval rhythm.
func (s *Scheduler) Emit(nowMS uint32, t Telemetry) (line string, skipped bool) {
	s.lastBeaconTimeMS = nowMS

	v := s.battery.VoltageV()
	if v > 0 && v < MinBatteryVoltage {
		s.skippedCount++
		return "", true
	}

	_, status := s.SelectInterval(nowMS)
	contact := "NO"
	if s.groundContactEstablished {
		contact = "YES"
	}
	elapsed := nowMS - s.missionStartMS
	line = fmt.Sprintf("%s|T+%s|B:%d|C:%s|V:%.2f", status, clock.FormatHHMMSS(elapsed), t.BootCount, contact, v)
	return line, false
}

// RegisterGroundContact sets groundContactEstablished true on its first
// call, updates lastGroundContact, and signals the caller should run
// checkFirstContactRecording (C8) — returned as a boolean so this package
// stays free of a direct dependency on the accelerometer recorder.
func (s *Scheduler) RegisterGroundContact(nowMS uint32) (firstContact bool) {
	first := !s.groundContactEstablished
	s.groundContactEstablished = true
	s.lastGroundContactMS = nowMS
	return first
}

func (s *Scheduler) GroundContactEstablished() bool { return s.groundContactEstablished }
func (s *Scheduler) SkippedCount() uint32           { return s.skippedCount }
