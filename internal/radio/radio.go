// Package radio implements C3: PHY configuration for RX/TX, transmit with
// automatic return-to-RX, and health counters that drive recovery. Send
// retries a fallible hardware operation with fixed spacing and
// unconditionally leaves the driver in a known state afterwards — retry up
// to 3x, then unconditionally return to RX regardless of outcome.
package radio

import (
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/phy"
)

const (
	rxFreqMHz = 401.5
	txFreqMHz = 468.5
	bwKHz     = 125
	sf        = 9
	cr        = 7
	syncWord  = 0x12
	preamble  = 8

	txRetries      = 3
	txRetrySpacing = 1 * time.Second

	// RecoveryThreshold is the consecutive-failure count at which
	// NeedsRecovery becomes true.
	RecoveryThreshold = 5
)

// SendErrorKind enumerates the kinds surfaced by Send.
type SendErrorKind int

const (
	SendOK SendErrorKind = iota
	SendTooLong
	SendTimeout
	SendOtherError
)

// MaxMessageLen bounds a single transmission; exceeding it is SendTooLong.
const MaxMessageLen = 500

// Link is C3.
type Link struct {
	driver phy.Driver
	clk    clock.Clock

	receivedFlag bool // set by the RX-complete callback, drained by poll

	contE uint32 // consecutive TX failures
	contR uint32 // consecutive RX-config failures
	rfOK  bool

	txErrors   uint32
	rxErrors   uint32
	resetCount uint32
}

func NewLink(driver phy.Driver, clk clock.Clock) *Link {
	return &Link{driver: driver, clk: clk, rfOK: true}
}

// Init configures RX and installs the RX-complete callback, which only
// ever sets a flag — the sole observer is the main loop via PollRX, so the
// hand-off is a trivial test-and-clear with no queue needed.
func (l *Link) Init() bool {
	l.driver.SetPacketReceivedAction(func() {
		l.receivedFlag = true
	})
	if err := l.driver.Begin(rxFreqMHz, bwKHz, sf, cr, syncWord, preamble); err != nil {
		l.contR++
		l.rfOK = false
		return false
	}
	if err := l.driver.StartReceive(); err != nil {
		l.contR++
		l.rfOK = false
		return false
	}
	l.contR = 0
	l.rfOK = true
	return true
}

// Send reconfigures to TX (retrying up to txRetries times with
// txRetrySpacing), transmits, then unconditionally returns to RX with the
// same parameters — an indivisible unit from the caller's point of view.
func (l *Link) Send(msg string) (SendErrorKind, error) {
	if len(msg) > MaxMessageLen {
		l.txErrors++
		l.reconfigureRX()
		return SendTooLong, errTooLong
	}

	var lastErr error
	ok := false
	for attempt := 0; attempt < txRetries; attempt++ {
		if err := l.driver.Begin(txFreqMHz, bwKHz, sf, cr, syncWord, preamble); err != nil {
			lastErr = err
			l.clk.Sleep(txRetrySpacing)
			continue
		}
		ok = true
		break
	}
	if !ok {
		l.contE++
		l.txErrors++
		l.reconfigureRX()
		return SendTimeout, lastErr
	}

	if err := l.driver.Transmit(msg); err != nil {
		l.contE++
		l.txErrors++
		l.reconfigureRX()
		return SendOtherError, err
	}

	l.contE = 0
	l.reconfigureRX()
	return SendOK, nil
}

func (l *Link) reconfigureRX() {
	if err := l.driver.Begin(rxFreqMHz, bwKHz, sf, cr, syncWord, preamble); err != nil {
		l.contR++
		l.rfOK = false
		return
	}
	if err := l.driver.StartReceive(); err != nil {
		l.contR++
		l.rfOK = false
		return
	}
	l.contR = 0
	l.rfOK = true
}

// PollRX drains the received flag, returning the frame if one is waiting.
func (l *Link) PollRX() (string, bool) {
	if !l.receivedFlag {
		return "", false
	}
	l.receivedFlag = false
	data, err := l.driver.ReadData()
	if err != nil {
		l.rxErrors++
		return "", false
	}
	return data, true
}

// NeedsRecovery is true when either health counter exceeds
// RecoveryThreshold or the RF-OK flag is cleared.
func (l *Link) NeedsRecovery() bool {
	return l.contE > RecoveryThreshold || l.contR > RecoveryThreshold || !l.rfOK
}

// Recover resets the counters and re-runs Init.
func (l *Link) Recover() bool {
	l.contE = 0
	l.contR = 0
	ok := l.Init()
	if ok {
		l.resetCount++
	}
	return ok
}

// Health counters, telemetered by C11/C12.
func (l *Link) ConsecutiveTXFailures() uint32 { return l.contE }
func (l *Link) ConsecutiveRXFailures() uint32 { return l.contR }
func (l *Link) RFOK() bool                    { return l.rfOK }
func (l *Link) TXErrors() uint32              { return l.txErrors }
func (l *Link) RXErrors() uint32              { return l.rxErrors }
func (l *Link) ResetCount() uint32            { return l.resetCount }
