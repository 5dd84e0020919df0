// Package imageupload implements C9: a chunked, base64-decoded, resumable
// inbound image transfer. It writes incrementally into an open temp file
// and renames it into place on completion, generalizing that
// rename-on-complete idiom to chunks that can arrive out of order.
package imageupload

import (
	"fmt"
	"strconv"

	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
	"github.com/edsonpavoni/orbitalTemple/internal/clock"
	"github.com/edsonpavoni/orbitalTemple/internal/errs"
	"github.com/edsonpavoni/orbitalTemple/internal/fsext"
	"github.com/edsonpavoni/orbitalTemple/internal/sensors"
)

const (
	chunkSize = 128

	MinTotalChunks = 1
	MaxTotalChunks = 64
	MinExpectedSize = 1
	MaxExpectedSize = 8192

	TimeoutMS = 60 * 1000

	maxMissingListed = 5

	// tempImagePath is the single fixed sink every transfer writes into
	// before being renamed to its final name on completion.
	tempImagePath = "/temp_image.bin"
)

type Phase int

const (
	Idle Phase = iota
	Receiving
	Complete
)

// Uploader is C9.
type Uploader struct {
	fs  fsext.FS
	bat sensors.Battery

	phase Phase

	finalPath    string
	totalChunks  int
	expectedSize int

	file            fsext.File
	receivedMask    []bool
	receivedCount   int
	lastChunkMS     uint32
}

func NewUploader(fs fsext.FS, bat sensors.Battery) *Uploader {
	return &Uploader{fs: fs, bat: bat, phase: Idle}
}

func (u *Uploader) Phase() Phase { return u.phase }

// Start implements ImageStart: path=filename, data="<totalChunks>:<expectedSize>".
// A transfer never starts on a voltage already below the beacon's
// low-battery threshold; this reuses ImageBusy rather than introduce a new
// error tag.
func (u *Uploader) Start(path, data string, nowMS uint32) string {
	if u.phase == Receiving {
		return errs.ImageBusy
	}
	if u.bat != nil {
		if v := u.bat.VoltageV(); v > 0 && v < beacon.MinBatteryVoltage {
			return errs.ImageBusy
		}
	}

	totalChunks, expectedSize, ok := parseStartData(data)
	if !ok || totalChunks < MinTotalChunks || totalChunks > MaxTotalChunks {
		return errs.ImageInvalidChunks
	}
	if expectedSize < MinExpectedSize || expectedSize > MaxExpectedSize {
		return errs.ImageTooLarge
	}
	if !fsext.CheckFreeSpace(u.fs, expectedSize) {
		return errs.SDFull
	}

	f, err := u.fs.Open(tempImagePath, true)
	if err != nil {
		return errs.OpenFileFailed
	}
	if err := f.Truncate(0); err != nil {
		f.Close()
		return errs.OpenFileFailed
	}

	u.finalPath = path
	u.totalChunks = totalChunks
	u.expectedSize = expectedSize
	u.file = f
	u.receivedMask = make([]bool, totalChunks)
	u.receivedCount = 0
	u.lastChunkMS = nowMS
	u.phase = Receiving
	return "OK:IMG_START"
}

// Chunk implements ImageChunk: path="<k>", data=<base64>.
func (u *Uploader) Chunk(kStr, data string, nowMS uint32) string {
	if u.phase != Receiving {
		return errs.ImageNotStarted
	}
	k, err := strconv.Atoi(kStr)
	if err != nil || k < 0 || k >= u.totalChunks {
		return errs.ImageInvalidChunk
	}
	if u.receivedMask[k] {
		return fmt.Sprintf("OK:IMG_DUP:%d", k)
	}
	if data == "" {
		return errs.ImageEmptyChunk
	}

	decoded, ok := decodeBase64(data)
	if !ok {
		return errs.ImageDecode
	}

	if _, err := u.file.Seek(int64(k)*chunkSize, 0); err != nil {
		return errs.ImageWrite
	}
	if _, err := u.file.Write(decoded); err != nil {
		return errs.ImageWrite
	}

	u.receivedMask[k] = true
	u.receivedCount++
	u.lastChunkMS = nowMS
	return fmt.Sprintf("OK:IMG_CHUNK:%d", k)
}

// End implements ImageEnd.
func (u *Uploader) End() string {
	if u.phase != Receiving {
		return errs.ImageNotStarted
	}
	if u.receivedCount < u.totalChunks {
		return errs.ImageMissing + ":" + missingList(u.receivedMask, maxMissingListed)
	}

	u.file.Close()
	if err := u.fs.Rename(tempImagePath, u.finalPath); err != nil {
		u.phase = Idle
		return errs.RenameFailed
	}

	path := u.finalPath
	size := u.expectedSize
	u.phase = Complete
	u.file = nil
	return fmt.Sprintf("OK:IMG_COMPLETE:%s:%dB", path, size)
}

// Cancel implements ImageCancel.
func (u *Uploader) Cancel() string {
	if u.phase != Receiving {
		u.phase = Idle
		return "OK:IMG_CANCELLED"
	}
	if u.file != nil {
		u.file.Close()
	}
	u.fs.Remove(tempImagePath)
	u.phase = Idle
	u.file = nil
	return "OK:IMG_CANCELLED"
}

// Status implements ImageStatus.
func (u *Uploader) Status() string {
	switch u.phase {
	case Receiving:
		return fmt.Sprintf("IMG:RECEIVING|RECEIVED:%d/%d", u.receivedCount, u.totalChunks)
	case Complete:
		return "IMG:COMPLETE"
	default:
		return "IMG:IDLE"
	}
}

// TimeoutCheck implements imageTimeoutCheck, called every loop iteration in
// Operational.
func (u *Uploader) TimeoutCheck(nowMS uint32) (response string, timedOut bool) {
	if u.phase != Receiving {
		return "", false
	}
	if clock.ElapsedMS(nowMS, u.lastChunkMS) <= TimeoutMS {
		return "", false
	}
	u.Cancel()
	return errs.ImageTimeout, true
}

func parseStartData(data string) (totalChunks, expectedSize int, ok bool) {
	for i := 0; i < len(data); i++ {
		if data[i] == ':' {
			tc, err1 := strconv.Atoi(data[:i])
			sz, err2 := strconv.Atoi(data[i+1:])
			if err1 != nil || err2 != nil {
				return 0, 0, false
			}
			return tc, sz, true
		}
	}
	return 0, 0, false
}

// missingList lists up to max missing chunk indices, comma-separated.
func missingList(mask []bool, max int) string {
	out := ""
	n := 0
	for i, got := range mask {
		if got {
			continue
		}
		if n > 0 {
			out += ","
		}
		out += strconv.Itoa(i)
		n++
		if n >= max {
			break
		}
	}
	return out
}

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// decodeBase64 uses a 6-bit accumulator, emitting bytes once the buffer
// holds >= 8 bits; '=' padding terminates decoding, any other
// non-alphabet byte is rejected.
func decodeBase64(s string) ([]byte, bool) {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i, c := range base64Alphabet {
		table[byte(c)] = int8(i)
	}

	out := make([]byte, 0, len(s))
	var acc uint32
	var bits int
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '=' {
			break
		}
		v := table[c]
		if v < 0 {
			return nil, false
		}
		acc = (acc << 6) | uint32(v)
		bits += 6
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>uint(bits)))
		}
	}
	return out, true
}
