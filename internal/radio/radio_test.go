package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/phy"
)

func TestInitConfiguresRXAndReceives(t *testing.T) {
	drv := phy.NewLoopback()
	link := NewLink(drv, clock.NewSim())

	require.True(t, link.Init())
	assert.True(t, link.RFOK())

	drv.InjectGroundMessage("hello")
	data, ok := link.PollRX()
	require.True(t, ok)
	assert.Equal(t, "hello", data)

	// Flag is cleared after drain.
	_, ok = link.PollRX()
	assert.False(t, ok)
}

func TestSendReturnsToRXAfterSuccess(t *testing.T) {
	drv := phy.NewLoopback()
	link := NewLink(drv, clock.NewSim())
	require.True(t, link.Init())

	kind, err := link.Send("ack")
	require.NoError(t, err)
	assert.Equal(t, SendOK, kind)
	assert.Equal(t, float64(401.5), drv.LastFreqMHz)
}

func TestSendTooLong(t *testing.T) {
	drv := phy.NewLoopback()
	link := NewLink(drv, clock.NewSim())
	require.True(t, link.Init())

	big := make([]byte, MaxMessageLen+1)
	kind, err := link.Send(string(big))
	assert.Error(t, err)
	assert.Equal(t, SendTooLong, kind)
}

func TestNeedsRecoveryAfterRepeatedTXFailures(t *testing.T) {
	drv := phy.NewLoopback()
	drv.FailTransmitN = 100
	link := NewLink(drv, clock.NewSim())
	require.True(t, link.Init())

	for i := 0; i < RecoveryThreshold+1; i++ {
		link.Send("x")
	}
	assert.True(t, link.NeedsRecovery())
}

func TestRecoverResetsCountersAndReinits(t *testing.T) {
	drv := phy.NewLoopback()
	drv.FailTransmitN = 100
	link := NewLink(drv, clock.NewSim())
	require.True(t, link.Init())
	for i := 0; i < RecoveryThreshold+1; i++ {
		link.Send("x")
	}
	require.True(t, link.NeedsRecovery())

	drv.FailTransmitN = 0
	ok := link.Recover()
	assert.True(t, ok)
	assert.False(t, link.NeedsRecovery())
	assert.Equal(t, uint32(1), link.ResetCount())
}
