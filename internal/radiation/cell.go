// Package radiation implements C1: triple modular redundancy over a fixed
// set of replicated variables, periodic scrubbing, and a CRC32-protected
// nonvolatile checkpoint. It uses a generic replicated-cell container keyed
// by cell id, in the same small-container style as a tiny interface table
// or a fixed small field encoder elsewhere in the firmware.
package radiation

import "log"

// CellID names one of the fixed set of replicated variables. Declaring them
// as a closed enum (rather than accepting arbitrary keys) lets Scrub
// iterate a known array instead of a map, so the compiler can't merge the
// three copies of any individual cell behind the model's back.
type CellID int

const (
	CellMissionState CellID = iota
	CellAntennaState
	CellAntennaDeployed
	CellGroundContactEstablished
	CellRadioOK
	CellIMUOK
	CellSDOK
	CellBootCount
	cellCount
)

// Value is the payload of a replicated cell. Every cell in this firmware
// happens to fit in a uint32, which keeps the container non-generic and
// avoids any of the three copies being optimised into one by value
// identity — int width is also what a bare-metal TMR implementation would
// naturally copy three ways in memory.
type Value = uint32

type replica struct {
	c1, c2, c3 Value
}

// Store holds all replicated cells plus the SEU-correction and
// catastrophic-divergence counters telemetered by C11/C12.
type Store struct {
	cells           [cellCount]replica
	seuCorrections  uint32
	catastrophic    uint32
	lastScrubAtMS   uint32
}

func NewStore() *Store {
	return &Store{}
}

// Write is the set-all-three operation: the only way a cell's value may
// change. Any caller that wants a cell to read back a particular value must
// come through here.
func (s *Store) Write(id CellID, v Value) {
	s.cells[id] = replica{v, v, v}
}

// Read applies the 2-of-3 majority vote. If all three copies differ, it is a
// catastrophic fault: it is logged, the catastrophic counter is
// incremented, and the caller's policy (see mission package) is expected to
// force the cell to a safe default via Write and continue — Read itself
// only ever returns copy1 in that case, never panics.
func (s *Store) Read(id CellID) (v Value, catastrophic bool) {
	r := s.cells[id]
	switch {
	case r.c1 == r.c2 || r.c1 == r.c3:
		return r.c1, false
	case r.c2 == r.c3:
		return r.c2, false
	default:
		s.catastrophic++
		log.Printf("radiation: catastrophic TMR divergence on cell %d: %d/%d/%d", id, r.c1, r.c2, r.c3)
		return r.c1, true
	}
}

// ScrubAll rewrites any minority copy of every cell to match the majority
// value, and returns the number of individual copies corrected. Cells in
// catastrophic divergence are left untouched here — the caller (C6) is
// responsible for forcing those to a safe default via Write, since only it
// knows what "safe" means for that cell.
func (s *Store) ScrubAll(nowMS uint32) int {
	s.lastScrubAtMS = nowMS
	corrections := 0
	for i := range s.cells {
		r := &s.cells[i]
		var majority Value
		var ok bool
		switch {
		case r.c1 == r.c2 || r.c1 == r.c3:
			majority, ok = r.c1, true
		case r.c2 == r.c3:
			majority, ok = r.c2, true
		default:
			ok = false
		}
		if !ok {
			continue
		}
		if r.c1 != majority {
			r.c1 = majority
			corrections++
		}
		if r.c2 != majority {
			r.c2 = majority
			corrections++
		}
		if r.c3 != majority {
			r.c3 = majority
			corrections++
		}
	}
	if corrections > 0 {
		s.seuCorrections += uint32(corrections)
	}
	return corrections
}

// SEUCorrections is the cumulative SEU-correction counter telemetered by
// C11/GetRadStatus.
func (s *Store) SEUCorrections() uint32 { return s.seuCorrections }

// CatastrophicCount is the cumulative count of catastrophic (3-way)
// divergences observed across all cells.
func (s *Store) CatastrophicCount() uint32 { return s.catastrophic }

// LastScrubAgoMS reports how long ago (in ms) the last ScrubAll call ran,
// for GetRadStatus's "LAST_SCRUB:<s>s_ago" field.
func (s *Store) LastScrubAgoMS(nowMS uint32) uint32 {
	return nowMS - s.lastScrubAtMS
}

// InjectForTest seeds a cell with three independent copies, bypassing the
// Write invariant. It exists solely so tests can reproduce a single-event
// upset (one divergent copy) or a catastrophic fault (three divergent
// copies).
func (s *Store) InjectForTest(id CellID, c1, c2, c3 Value) {
	s.cells[id] = replica{c1, c2, c3}
}
