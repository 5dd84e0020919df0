// Package telemetry implements C11: a snapshot of every subsystem, formatted
// into a single downlink line and appended to /log.txt. Grounded on the
// teacher's output/fields.go, which flattens a fixed struct of scalar
// fields into one delimited encoded record; this package does the same
// flattening into an ASCII, pipe-delimited line instead of a binary buffer.
package telemetry

import (
	"fmt"

	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/radiation"
	"github.com/edsonpavoni/orbitalTemple/internal/radio"
	"github.com/edsonpavoni/orbitalTemple/internal/sensors"
)

const logPath = "/log.txt"

// Composer is C11.
type Composer struct {
	fs    fsext.FS
	imu   sensors.IMU
	bat   sensors.Battery
	therm sensors.Thermistor
	lux   sensors.Luminance
	link  *radio.Link
	rad   *radiation.Store
}

func NewComposer(fs fsext.FS, imu sensors.IMU, bat sensors.Battery, therm sensors.Thermistor, lux sensors.Luminance, link *radio.Link, rad *radiation.Store) *Composer {
	return &Composer{fs: fs, imu: imu, bat: bat, therm: therm, lux: lux, link: link, rad: rad}
}

// Compose reads every sensor, formats the fixed telemetry line, and appends
// it to /log.txt with a monotonic-ms prefix when the filesystem is
// available.
func (c *Composer) Compose(nowMS uint32) string {
	imuStatus := "fail"
	var gyro, accel, mag sensors.Vec3
	if c.imu.Available() {
		imuStatus = "ok"
		gyro, _ = c.imu.ReadGyro()
		accel, _ = c.imu.ReadAccel()
		mag, _ = c.imu.ReadMag()
	}

	sdStatus := "ok"
	sdFreePct := 100
	total := c.fs.TotalBytes()
	if total == 0 {
		sdStatus = "fail"
		sdFreePct = 0
	} else {
		used := c.fs.UsedBytes()
		free := int64(total) - int64(used)
		if free < 0 {
			free = 0
		}
		sdFreePct = int(free * 100 / int64(total))
	}

	rfStatus := "fail"
	if c.link != nil && c.link.RFOK() {
		rfStatus = "ok"
	}

	line := fmt.Sprintf(
		"T+%s|IMU:%s,SD:%s,RF:%s|BAT:%.2fV|TEMP:%.1fC|LUX:%.1f|GYR:%.2f,%.2f,%.2f|ACC:%.2f,%.2f,%.2f|MAG:%.2f,%.2f,%.2f|SD:%d%%|SEU:%d",
		clock.FormatHHMMSS(nowMS),
		imuStatus, sdStatus, rfStatus,
		c.bat.VoltageV(),
		c.therm.TemperatureC(),
		c.lux.Lux(),
		gyro.X, gyro.Y, gyro.Z,
		accel.X, accel.Y, accel.Z,
		mag.X, mag.Y, mag.Z,
		sdFreePct,
		c.rad.SEUCorrections(),
	)

	c.appendToLog(nowMS, line)
	return line
}

func (c *Composer) appendToLog(nowMS uint32, line string) {
	if c.fs == nil {
		return
	}
	f, err := c.fs.Open(logPath, true)
	if err != nil {
		return
	}
	defer f.Close()
	f.Seek(0, 2)
	fmt.Fprintf(f, "%d %s\n", nowMS, line)
}
