// Package console defines the serial debug console external collaborator
// contract and a tarm/serial-backed implementation, following a
// serial.Config/serial.OpenPort/Read/Write pattern narrowed to the one
// thing the core needs from the console: a place to write log and report
// lines.
package console

import (
	"bufio"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Console is the debug serial console contract. soak.Logger writes its
// report lines to it; nothing in the core reads from it — the console is an output-only external
// collaborator.
type Console interface {
	io.Writer
}

// Serial is the host-backed Console, a tarm/serial port opened at a fixed
// baud rate with a short read timeout (unused here, kept so a future
// debug-input feature does not need to change the config shape).
type Serial struct {
	port *serial.Port
}

// OpenSerial opens the named serial device at baud.
func OpenSerial(name string, baud int) (*Serial, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: 100 * time.Millisecond}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return &Serial{port: port}, nil
}

func (s *Serial) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *Serial) Close() error                { return s.port.Close() }

// Buffered wraps any io.Writer (a Serial, os.Stdout, or a test buffer) in
// a bufio.Writer and flushes after every write, so a caller writing
// line-at-a-time reports never blocks waiting on a fuller buffer.
type Buffered struct {
	w *bufio.Writer
}

func NewBuffered(w io.Writer) *Buffered {
	return &Buffered{w: bufio.NewWriter(w)}
}

func (b *Buffered) Write(p []byte) (int, error) {
	n, err := b.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, b.w.Flush()
}
