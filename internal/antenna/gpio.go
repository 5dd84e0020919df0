package antenna

import (
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
)

// OutputPin and InputPin are the minimal GPIO contracts C7 needs: driving
// the burn-wire and reading the continuity switch. Grounded on the
// teacher's main.go cycleCameraPower, which drives a periph.io gpioreg pin
// with gpio.Low/gpio.High exactly this way.
type OutputPin interface {
	Out(high bool) error
}

type InputPin interface {
	ReadHigh() (bool, error)
}

// PeriphOutputPin wraps a periph.io pin looked up by name.
type PeriphOutputPin struct {
	pin gpio.PinIO
}

func NewPeriphOutputPin(name string) (*PeriphOutputPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errPinNotFound
	}
	return &PeriphOutputPin{pin: pin}, nil
}

func (p *PeriphOutputPin) Out(high bool) error {
	if high {
		return p.pin.Out(gpio.High)
	}
	return p.pin.Out(gpio.Low)
}

// PeriphInputPin wraps a periph.io pin configured as input, used to sample
// the antenna continuity switch.
type PeriphInputPin struct {
	pin gpio.PinIO
}

func NewPeriphInputPin(name string) (*PeriphInputPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errPinNotFound
	}
	return &PeriphInputPin{pin: pin}, nil
}

func (p *PeriphInputPin) ReadHigh() (bool, error) {
	return p.pin.Read() == gpio.High, nil
}

// FakePin is an in-memory OutputPin+InputPin for tests: writes to the
// burn-wire set the switch low after a configurable number of Heating
// ticks, simulating the wire melting through.
type FakePin struct {
	High           bool
	SwitchHigh     bool
	MeltAfterTicks int
	ticks          int
}

func (p *FakePin) Out(high bool) error {
	p.High = high
	return nil
}

func (p *FakePin) ReadHigh() (bool, error) {
	if p.High && p.MeltAfterTicks > 0 {
		p.ticks++
		if p.ticks >= p.MeltAfterTicks {
			p.SwitchHigh = false
		}
	}
	return p.SwitchHigh, nil
}
