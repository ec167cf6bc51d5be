// Package tournament runs multi-table tournaments: registration, seating,
// blind progression, table consolidation, eliminations, and final standings.
package tournament

import (
	"encoding/json"
	"fmt"
	"time"
)

// BlindLevel is one step of the escalation schedule. A Duration of zero marks
// the terminal level, which lasts until the tournament ends. BreakAfter adds a
// pause after the level elapses, before the next level's clock starts.
type BlindLevel struct {
	SmallBlind int
	BigBlind   int
	Duration   time.Duration
	BreakAfter time.Duration
}

// blindLevelJSON is the persisted form. duration_seconds is null on the
// terminal level.
type blindLevelJSON struct {
	Index             int  `json:"index"`
	SmallBlind        int  `json:"small_blind"`
	BigBlind          int  `json:"big_blind"`
	DurationSeconds   *int `json:"duration_seconds"`
	BreakAfterSeconds int  `json:"break_after_seconds,omitempty"`
}

// Schedule is an ordered list of blind levels.
type Schedule []BlindLevel

func (s Schedule) MarshalJSON() ([]byte, error) {
	out := make([]blindLevelJSON, len(s))
	for i, lvl := range s {
		out[i] = blindLevelJSON{
			Index:             i,
			SmallBlind:        lvl.SmallBlind,
			BigBlind:          lvl.BigBlind,
			BreakAfterSeconds: int(lvl.BreakAfter / time.Second),
		}
		if lvl.Duration > 0 {
			secs := int(lvl.Duration / time.Second)
			out[i].DurationSeconds = &secs
		}
	}
	return json.Marshal(out)
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	var raw []blindLevelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	levels := make(Schedule, len(raw))
	for i, lvl := range raw {
		levels[i] = BlindLevel{
			SmallBlind: lvl.SmallBlind,
			BigBlind:   lvl.BigBlind,
			BreakAfter: time.Duration(lvl.BreakAfterSeconds) * time.Second,
		}
		if lvl.DurationSeconds != nil {
			levels[i].Duration = time.Duration(*lvl.DurationSeconds) * time.Second
		}
	}
	*s = levels
	return nil
}

// Validate checks the schedule is well formed: at least one level, positive
// blinds with SB < BB, non-decreasing big blinds, and no level after the
// first zero-duration one.
func (s Schedule) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("blind schedule is empty")
	}
	prevBB := 0
	for i, lvl := range s {
		if lvl.SmallBlind <= 0 || lvl.BigBlind <= 0 {
			return fmt.Errorf("level %d: blinds must be positive", i)
		}
		if lvl.SmallBlind >= lvl.BigBlind {
			return fmt.Errorf("level %d: small blind %d must be below big blind %d", i, lvl.SmallBlind, lvl.BigBlind)
		}
		if lvl.BigBlind < prevBB {
			return fmt.Errorf("level %d: big blind %d decreases from %d", i, lvl.BigBlind, prevBB)
		}
		prevBB = lvl.BigBlind
		if lvl.Duration < 0 || lvl.BreakAfter < 0 {
			return fmt.Errorf("level %d: negative duration", i)
		}
		if lvl.Duration == 0 && i != len(s)-1 {
			return fmt.Errorf("level %d: zero duration is only valid on the final level", i)
		}
	}
	return nil
}

// LevelAt returns the index of the level in effect after elapsed play time.
// Break time counts toward the elapsed clock, so a level's window is its
// duration plus its trailing break. A zero-duration level never expires.
func (s Schedule) LevelAt(elapsed time.Duration) int {
	var cum time.Duration
	for i, lvl := range s {
		if lvl.Duration == 0 {
			return i
		}
		cum += lvl.Duration + lvl.BreakAfter
		if elapsed < cum {
			return i
		}
	}
	return len(s) - 1
}

// OnBreakAt reports whether the elapsed clock falls inside a level's trailing
// break window.
func (s Schedule) OnBreakAt(elapsed time.Duration) bool {
	var cum time.Duration
	for _, lvl := range s {
		if lvl.Duration == 0 {
			return false
		}
		cum += lvl.Duration
		if elapsed < cum {
			return false
		}
		cum += lvl.BreakAfter
		if elapsed < cum {
			return true
		}
	}
	return false
}
