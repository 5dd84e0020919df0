package antenna

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nullWatchdog struct{ fed int }

func (w *nullWatchdog) Feed() { w.fed++ }

func TestBurnWireLowInEveryStateExceptHeating(t *testing.T) {
	pin := &FakePin{SwitchHigh: true}
	d := NewDeployer(pin, pin, &nullWatchdog{})

	now := time.Now()
	d.Tick(now) // Idle -> Heating
	assert.Equal(t, Heating, d.State())
	assert.True(t, pin.High)

	now = now.Add(HeatTime + time.Second)
	d.Tick(now) // Heating -> Cooling (switch still high)
	assert.Equal(t, Cooling, d.State())
	assert.False(t, pin.High)
}

func TestIdleSkipsToCompleteWhenAlreadyDeployed(t *testing.T) {
	pin := &FakePin{SwitchHigh: false}
	d := NewDeployer(pin, pin, &nullWatchdog{})

	d.Tick(time.Now())
	assert.Equal(t, Complete, d.State())
	assert.False(t, d.Failed())
}

func TestHeatingCompletesWhenSwitchGoesLowDuringHeat(t *testing.T) {
	pin := &FakePin{SwitchHigh: true, MeltAfterTicks: 2}
	d := NewDeployer(pin, pin, &nullWatchdog{})

	now := time.Now()
	d.Tick(now) // Idle -> Heating; the switch is read before the burn-wire turns on, so no melt tick counts yet
	// Drive a few short ticks, each within HeatTime, until switch melts low.
	for i := 0; i < 5 && d.State() != Complete; i++ {
		now = now.Add(time.Second)
		d.Tick(now)
	}
	assert.Equal(t, Complete, d.State())
	assert.False(t, d.Failed())
	assert.False(t, pin.High)
}

func TestRetriesExhaustedFlagsFailure(t *testing.T) {
	pin := &FakePin{SwitchHigh: true}
	d := NewDeployer(pin, pin, &nullWatchdog{})

	now := time.Now()
	for cycle := 0; cycle < MaxRetries; cycle++ {
		d.Tick(now) // -> Heating
		require.Equal(t, Heating, d.State())
		now = now.Add(HeatTime + time.Second)
		d.Tick(now) // -> Cooling
		require.Equal(t, Cooling, d.State())
		now = now.Add(CoolTime + time.Second)
		d.Tick(now) // -> RetryWait or Complete(failed)
		if d.State() == Complete {
			break
		}
		require.Equal(t, RetryWait, d.State())
		now = now.Add(RetryWait_ + time.Second)
		d.Tick(now) // -> Idle
		require.Equal(t, Idle, d.State())
	}

	assert.Equal(t, Complete, d.State())
	assert.True(t, d.Failed())
}

func TestRetryWaitCompletesEarlyIfSwitchGoesLow(t *testing.T) {
	pin := &FakePin{SwitchHigh: true}
	d := NewDeployer(pin, pin, &nullWatchdog{})

	now := time.Now()
	d.Tick(now) // -> Heating
	now = now.Add(HeatTime + time.Second)
	d.Tick(now) // -> Cooling
	now = now.Add(CoolTime + time.Second)
	d.Tick(now) // -> RetryWait
	require.Equal(t, RetryWait, d.State())

	pin.SwitchHigh = false
	d.Tick(now.Add(time.Second))
	assert.Equal(t, Complete, d.State())
	assert.False(t, d.Failed())
}

func TestFeedCalledEveryTick(t *testing.T) {
	pin := &FakePin{SwitchHigh: false}
	wd := &nullWatchdog{}
	d := NewDeployer(pin, pin, wd)
	d.Tick(time.Now())
	assert.Equal(t, 1, wd.fed)
}
