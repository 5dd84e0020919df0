package radiation

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/edsonpavoni/orbitalTemple/internal/nvstore"
)

// Checkpoint layout. hash/crc32's IEEE table is exactly the required
// polynomial (0xEDB88320, init/final XOR 0xFFFFFFFF), the same CRC32 usage
// style as a length-prefixed protocol frame codec.
const (
	offMagic          = 0
	offMissionState   = 1
	offBootCount      = 2
	offAntennaDeploy  = 6
	offMissionStart   = 7
	offCRC            = 100
	offFirstAccelDone = 200

	crcWindow = 100 // bytes [0,100) are covered by the CRC

	magicByte         = 0xAB
	firstAccelDoneSet = 0xAA

	// MinSize is the minimum nonvolatile store size this layout requires.
	MinSize = 512
)

// Checkpoint is the decoded form of the fixed nonvolatile layout.
type Checkpoint struct {
	MissionState      byte
	BootCount         uint32
	AntennaDeployed   bool
	MissionStartMS    uint32
	FirstAccelDone    bool
}

// Save writes every field, computes the CRC32 over bytes [0,100), writes it
// at offset 100, and commits — atomic at the nonvolatile-store level.
// FirstAccelDone lives outside the CRC window by construction (offset 200),
// so toggling it alone (see C8's checkFirstContactRecording) never requires
// recomputing the CRC over the rest of the checkpoint.
func Save(store nvstore.Store, cp Checkpoint) error {
	if err := store.Begin(MinSize); err != nil {
		return err
	}
	buf := make([]byte, crcWindow)
	buf[offMagic] = magicByte
	buf[offMissionState] = cp.MissionState
	binary.LittleEndian.PutUint32(buf[offBootCount:], cp.BootCount)
	if cp.AntennaDeployed {
		buf[offAntennaDeploy] = 1
	}
	binary.LittleEndian.PutUint32(buf[offMissionStart:], cp.MissionStartMS)

	for i, b := range buf {
		if err := store.Write(i, b); err != nil {
			return err
		}
	}

	sum := crc32.ChecksumIEEE(buf)
	crcBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(crcBuf, sum)
	for i, b := range crcBuf {
		if err := store.Write(offCRC+i, b); err != nil {
			return err
		}
	}

	firstAccel := byte(0)
	if cp.FirstAccelDone {
		firstAccel = firstAccelDoneSet
	}
	if err := store.Write(offFirstAccelDone, firstAccel); err != nil {
		return err
	}

	return store.Commit()
}

// Load verifies magic then CRC; on any mismatch it returns ok=false and the
// caller must initialize a fresh checkpoint.
func Load(store nvstore.Store) (cp Checkpoint, ok bool, err error) {
	if err = store.Begin(MinSize); err != nil {
		return Checkpoint{}, false, err
	}

	buf := make([]byte, crcWindow)
	for i := range buf {
		b, rerr := store.Read(i)
		if rerr != nil {
			return Checkpoint{}, false, rerr
		}
		buf[i] = b
	}

	if buf[offMagic] != magicByte {
		return Checkpoint{}, false, nil
	}

	crcBuf := make([]byte, 4)
	for i := range crcBuf {
		b, rerr := store.Read(offCRC + i)
		if rerr != nil {
			return Checkpoint{}, false, rerr
		}
		crcBuf[i] = b
	}
	storedCRC := binary.LittleEndian.Uint32(crcBuf)
	if crc32.ChecksumIEEE(buf) != storedCRC {
		return Checkpoint{}, false, nil
	}

	firstAccelByte, rerr := store.Read(offFirstAccelDone)
	if rerr != nil {
		return Checkpoint{}, false, rerr
	}

	cp = Checkpoint{
		MissionState:    buf[offMissionState],
		BootCount:       binary.LittleEndian.Uint32(buf[offBootCount:]),
		AntennaDeployed: buf[offAntennaDeploy] == 1,
		MissionStartMS:  binary.LittleEndian.Uint32(buf[offMissionStart:]),
		FirstAccelDone:  firstAccelByte == firstAccelDoneSet,
	}
	return cp, true, nil
}
