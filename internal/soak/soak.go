// Package soak implements C12: monotonic health counters and periodic
// hourly/daily rollup reports. It gates report emission by an elapsed-time
// interval rather than by an explicit timer/goroutine, the same
// elapsed-since-last-emission gate used to suppress repeated log output,
// generalized from "same message, too soon" to "report period not yet
// elapsed".
package soak

import (
	"fmt"
	"io"

	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
)

const (
	HourlyIntervalMS = 3600 * 1000
	DailyIntervalMS  = 24 * HourlyIntervalMS

	// errorRateAlarm is the TX/RX error-rate-over-loop-iterations fraction
	// above which the daily verdict is CHECK.
	errorRateAlarm = 0.10
)

// Counters holds the monotonic, wrap-tolerant health counters. They are
// plain u32s incremented from the single-threaded main loop, so no
// synchronization is needed.
type Counters struct {
	BeaconsSent    uint32
	BeaconsSkipped uint32
	CommandsOK     uint32
	CommandsFailed uint32
	TXErrors       uint32
	RXErrors       uint32
	RadioResets    uint32
	LoopIterations uint32
}

// Logger is C12.
type Logger struct {
	counters Counters

	console io.Writer
	fs      fsext.FS

	lastHourlyMS uint32
	lastDailyMS  uint32

	// External stats, set by the mission state machine each tick since
	// they're owned by C1/C3, not this package.
	seuCorrections      uint32
	catastrophicDiverge uint32
	contE, contR        uint32
	antennaDeployFailed bool
}

func NewLogger(console io.Writer, fs fsext.FS) *Logger {
	return &Logger{console: console, fs: fs}
}

// SetExternalStats records the radiation/radio stats the hourly report and
// daily verdict need but that this package has no business owning.
func (l *Logger) SetExternalStats(seuCorrections, catastrophicDiverge, contE, contR uint32, antennaDeployFailed bool) {
	l.seuCorrections = seuCorrections
	l.catastrophicDiverge = catastrophicDiverge
	l.contE = contE
	l.contR = contR
	l.antennaDeployFailed = antennaDeployFailed
}

func (l *Logger) IncBeaconSent()    { l.counters.BeaconsSent++ }
func (l *Logger) IncBeaconSkipped() { l.counters.BeaconsSkipped++ }
func (l *Logger) IncCommandOK()     { l.counters.CommandsOK++ }
func (l *Logger) IncCommandFailed() { l.counters.CommandsFailed++ }
func (l *Logger) IncTXError()       { l.counters.TXErrors++ }
func (l *Logger) IncRXError()       { l.counters.RXErrors++ }
func (l *Logger) IncRadioReset()    { l.counters.RadioResets++ }
func (l *Logger) IncLoopIteration() { l.counters.LoopIterations++ }

func (l *Logger) Counters() Counters { return l.counters }

// Tick checks whether an hourly or daily report is due and emits it. It is
// meant to be called once per main-loop iteration, mirroring every other
// component's tick(now) shape.
func (l *Logger) Tick(nowMS uint32) {
	if clock.ElapsedMS(nowMS, l.lastHourlyMS) >= HourlyIntervalMS {
		l.lastHourlyMS = nowMS
		l.emitHourly(nowMS)
	}
	if clock.ElapsedMS(nowMS, l.lastDailyMS) >= DailyIntervalMS {
		l.lastDailyMS = nowMS
		l.emitDaily(nowMS)
	}
}

func (l *Logger) emitHourly(nowMS uint32) {
	lines := l.hourlyReport(nowMS)
	l.emit(nowMS, lines)
}

func (l *Logger) hourlyReport(nowMS uint32) []string {
	c := l.counters
	return []string{
		fmt.Sprintf("SOAK:HOURLY|T+%s", clock.FormatHHMMSS(nowMS)),
		fmt.Sprintf("BEACONS:sent=%d,skipped=%d", c.BeaconsSent, c.BeaconsSkipped),
		fmt.Sprintf("COMMANDS:ok=%d,failed=%d", c.CommandsOK, c.CommandsFailed),
		fmt.Sprintf("RADIO:tx_err=%d,rx_err=%d,resets=%d,contE=%d,contR=%d", c.TXErrors, c.RXErrors, c.RadioResets, l.contE, l.contR),
		fmt.Sprintf("TMR:seu=%d,catastrophic=%d", l.seuCorrections, l.catastrophicDiverge),
		fmt.Sprintf("LOOPS:%d", c.LoopIterations),
	}
}

func (l *Logger) emitDaily(nowMS uint32) {
	lines := l.hourlyReport(nowMS)
	lines[0] = fmt.Sprintf("SOAK:DAILY|T+%s|VERDICT:%s", clock.FormatHHMMSS(nowMS), l.verdict())
	l.emit(nowMS, lines)
}

// verdict reports CHECK when the TX/RX error rate exceeds 10%, any
// catastrophic TMR divergence occurred, or the antenna failed to deploy;
// HEALTHY otherwise. The error rate is computed from the counters
// accumulated since boot; it is not reset at each daily report.
func (l *Logger) verdict() string {
	c := l.counters
	if l.catastrophicDiverge > 0 || l.antennaDeployFailed {
		return "CHECK"
	}
	loops := c.LoopIterations
	if loops == 0 {
		loops = 1
	}
	rate := float64(c.TXErrors+c.RXErrors) / float64(loops)
	if rate > errorRateAlarm {
		return "CHECK"
	}
	return "HEALTHY"
}

func (l *Logger) emit(nowMS uint32, lines []string) {
	for _, line := range lines {
		if l.console != nil {
			fmt.Fprintln(l.console, line)
		}
	}
	if l.fs == nil {
		return
	}
	f, err := l.fs.Open("/log.txt", true)
	if err != nil {
		return
	}
	defer f.Close()
	f.Seek(0, 2)
	for _, line := range lines {
		fmt.Fprintf(f, "%d %s\n", nowMS, line)
	}
}
