package telemetry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/phy"
	"github.com/edsonpavoni/orbitalTemple/internal/radiation"
	"github.com/edsonpavoni/orbitalTemple/internal/radio"
	"github.com/edsonpavoni/orbitalTemple/internal/sensors"
)

func TestComposeFormatsAllFields(t *testing.T) {
	fs := fsext.NewMemFS(1000)
	imu := sensors.NewStubIMU(sensors.Vec3{X: 1, Y: 2, Z: 3})
	bat := sensors.StubBattery{V: 3.7}
	therm := sensors.StubThermistor{C: 21.5}
	lux := sensors.StubLuminance{L: 100}
	link := radio.NewLink(phy.NewLoopback(), nil)
	rad := radiation.NewStore()

	c := NewComposer(fs, imu, bat, therm, lux, link, rad)
	line := c.Compose(3661000)

	assert.True(t, strings.HasPrefix(line, "T+01:01:01|IMU:ok,SD:ok,RF:"))
	assert.Contains(t, line, "BAT:3.70V")
	assert.Contains(t, line, "TEMP:21.5C")
	assert.Contains(t, line, "LUX:100.0")
	assert.Contains(t, line, "GYR:0.00,0.00,0.00")
	assert.Contains(t, line, "ACC:1.00,2.00,3.00")
	assert.Contains(t, line, "SEU:0")
}

func TestComposeAppendsToLog(t *testing.T) {
	fs := fsext.NewMemFS(1000)
	imu := sensors.NewStubIMU(sensors.Vec3{})
	bat := sensors.StubBattery{V: 3.7}
	therm := sensors.StubThermistor{C: 20}
	lux := sensors.StubLuminance{L: 5}
	link := radio.NewLink(phy.NewLoopback(), nil)
	rad := radiation.NewStore()
	c := NewComposer(fs, imu, bat, therm, lux, link, rad)

	c.Compose(1000)
	c.Compose(2000)

	f, err := fs.Open("/log.txt", false)
	require.NoError(t, err)
	buf := make([]byte, 4096)
	n, _ := f.Read(buf)
	content := string(buf[:n])

	assert.Equal(t, 2, strings.Count(content, "\n"))
	assert.True(t, strings.HasPrefix(content, "1000 T+"))
}

func TestComposeReportsIMUUnavailable(t *testing.T) {
	fs := fsext.NewMemFS(1000)
	imu := sensors.NewStubIMU(sensors.Vec3{})
	imu.Healthy = false
	bat := sensors.StubBattery{V: 3.7}
	therm := sensors.StubThermistor{C: 20}
	lux := sensors.StubLuminance{L: 5}
	link := radio.NewLink(phy.NewLoopback(), nil)
	rad := radiation.NewStore()
	c := NewComposer(fs, imu, bat, therm, lux, link, rad)

	line := c.Compose(0)
	assert.Contains(t, line, "IMU:fail")
}
