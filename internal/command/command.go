// Package command implements C10: the verb-table dispatcher that turns an
// authenticated codec.Frame into one or more downlink response lines. A
// switch over a small fixed command set, each case delegating to one
// collaborator and returning a response string, generalized into a
// []string return so ListDir's streamed per-entry messages fit the same
// shape as every other verb.
package command

import (
	"fmt"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/accel"
	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/codec"
	"github.com/edsonpavoni/orbitalTemple/internal/errs"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/imageupload"
	"github.com/edsonpavoni/orbitalTemple/internal/radiation"
)

const (
	writeRetries = 3
	retrySpacing = 100 * time.Millisecond
	listDirMax   = 100
)

// Mission is the subset of C6 the dispatcher needs for state-reporting and
// mutating verbs (GetState, ForceOperational, MCURestart).
type Mission interface {
	StateNum() int
	BootCount() uint32
	AntennaDeployed() bool
	ForceOperational()
	Persist() error
	Restart()
}

// Telemetry is the subset of C11 the dispatcher needs for Status.
type Telemetry interface {
	Compose(nowMS uint32) string
}

// Dispatcher is C10.
type Dispatcher struct {
	fs      fsext.FS
	accel   *accel.Recorder
	img     *imageupload.Uploader
	rad     *radiation.Store
	mission Mission
	tele    Telemetry
	clk     clock.Clock
}

func NewDispatcher(fs fsext.FS, ar *accel.Recorder, img *imageupload.Uploader, rad *radiation.Store, mission Mission, tele Telemetry, clk clock.Clock) *Dispatcher {
	return &Dispatcher{fs: fs, accel: ar, img: img, rad: rad, mission: mission, tele: tele, clk: clk}
}

// Dispatch looks up the verb table and returns one or more response lines;
// callers that transmit over the radio must pace each line by 50-100ms per
// the streaming constraint.
func (d *Dispatcher) Dispatch(f codec.Frame, nowMS uint32) []string {
	switch f.Command {
	case "Ping":
		return one(fmt.Sprintf("PONG|%s", clock.FormatHHMMSS(nowMS)))
	case "Status":
		return one(d.tele.Compose(nowMS))

	case "ListDir":
		return d.listDir(f.Path)

	case "CreateDir":
		if err := d.fs.Mkdir(f.Path); err != nil {
			return one(errs.MkdirFailed)
		}
		return one(fmt.Sprintf("OK:MKDIR:%s", f.Path))

	case "RemoveDir":
		if err := d.fs.Rmdir(f.Path); err != nil {
			return one(errs.RmdirFailed)
		}
		return one(fmt.Sprintf("OK:RMDIR:%s", f.Path))

	case "RenameFile":
		newPath := f.Data
		if err := d.fs.Rename(f.Path, newPath); err != nil {
			return one(errs.RenameFailed)
		}
		return one(fmt.Sprintf("OK:RENAMED:%s:%s", f.Path, newPath))

	case "DeleteFile":
		if err := d.fs.Remove(f.Path); err != nil {
			return one(errs.DeleteFailed)
		}
		return one(fmt.Sprintf("OK:DELETED:%s", f.Path))

	case "WriteFile":
		return one(d.writeWithRetry(f.Path, []byte(f.Data), false))

	case "AppendFile":
		return one(d.writeWithRetry(f.Path, []byte(f.Data), true))

	case "ReadFile":
		return one(d.readFile(f.Path))

	case "TestFileIO":
		return one(d.testFileIO(f.Path))

	case "MCURestart":
		d.mission.Persist()
		d.mission.Restart()
		return one("OK:RESTARTING")

	case "GetState":
		ant := "PENDING"
		if d.mission.AntennaDeployed() {
			ant = "DEPLOYED"
		}
		return one(fmt.Sprintf("STATE:%d|BOOTS:%d|ANT:%s", d.mission.StateNum(), d.mission.BootCount(), ant))

	case "ForceOperational":
		d.mission.ForceOperational()
		d.mission.Persist()
		return one("OK:FORCED_OPERATIONAL")

	case "GetRadStatus":
		secAgo := d.rad.LastScrubAgoMS(nowMS) / 1000
		return one(fmt.Sprintf("RAD:SEU_TOTAL:%d|LAST_SCRUB:%ds_ago", d.rad.SEUCorrections(), secAgo))

	case "ImageStart":
		return one(d.img.Start(f.Path, f.Data, nowMS))
	case "ImageChunk":
		return one(d.img.Chunk(f.Path, f.Data, nowMS))
	case "ImageEnd":
		return one(d.img.End())
	case "ImageCancel":
		return one(d.img.Cancel())
	case "ImageStatus":
		return one(d.img.Status())

	default:
		return one(fmt.Sprintf("%s:%s", errs.UnknownCmd, f.Command))
	}
}

func one(s string) []string { return []string{s} }

func (d *Dispatcher) writeWithRetry(path string, data []byte, isAppend bool) string {
	if !fsext.CheckFreeSpace(d.fs, len(data)) {
		return errs.SDFull
	}

	for attempt := 0; attempt < writeRetries; attempt++ {
		if attempt > 0 && d.clk != nil {
			d.clk.Sleep(retrySpacing)
		}
		f, err := d.fs.Open(path, true)
		if err != nil {
			continue
		}
		if isAppend {
			if _, err := f.Seek(0, 2); err != nil {
				f.Close()
				continue
			}
		} else if err := f.Truncate(0); err != nil {
			f.Close()
			continue
		}
		_, werr := f.Write(data)
		f.Close()
		if werr != nil {
			continue
		}
		if isAppend {
			return fmt.Sprintf("OK:APPENDED:%s:%dB", path, len(data))
		}
		return fmt.Sprintf("OK:WRITTEN:%s:%dB", path, len(data))
	}
	if isAppend {
		return errs.AppendFailed
	}
	return errs.WriteFailed
}

func (d *Dispatcher) readFile(path string) string {
	f, err := d.fs.Open(path, false)
	if err != nil {
		return errs.OpenFileFailed
	}
	defer f.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 512)
	for {
		n, err := f.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return fmt.Sprintf("OK:READ:%s:%dB:%s", path, len(buf), string(buf))
}

func (d *Dispatcher) testFileIO(path string) string {
	const probe = "IOTEST"
	if !fsext.CheckFreeSpace(d.fs, len(probe)) {
		return errs.SDFull
	}
	f, err := d.fs.Open(path, true)
	if err != nil {
		return "ERR:FILEIO_FAIL"
	}
	f.Truncate(0)
	if _, err := f.Write([]byte(probe)); err != nil {
		f.Close()
		return "ERR:FILEIO_FAIL"
	}
	f.Seek(0, 0)
	back := make([]byte, len(probe))
	n, _ := f.Read(back)
	f.Close()
	d.fs.Remove(path)
	if n != len(probe) || string(back[:n]) != probe {
		return "ERR:FILEIO_FAIL"
	}
	return "OK:FILEIO_PASS"
}

func (d *Dispatcher) listDir(dir string) []string {
	entries, err := d.fs.ReadDir(dir)
	if err != nil {
		return one(errs.OpenFileFailed)
	}

	lines := make([]string, 0, len(entries)+2)
	lines = append(lines, fmt.Sprintf("DIR:%s", dir))
	n := len(entries)
	if n > listDirMax {
		n = listDirMax
	}
	for i := 0; i < n; i++ {
		e := entries[i]
		if e.IsDir {
			lines = append(lines, fmt.Sprintf("D:%s", e.Name))
		} else {
			lines = append(lines, fmt.Sprintf("F:%s,%d", e.Name, e.Size))
		}
	}
	lines = append(lines, "END:DIR")
	return lines
}
