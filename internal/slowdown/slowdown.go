// Package slowdown decides what multiplier applies to a controller's base
// refresh interval for a given time of day. Windows are user-authored and
// assumed non-overlapping; when they do overlap, the first configured match
// wins so that misconfiguration stays deterministic.
package slowdown

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RawWindow is a slowdown window as found in the config file, with clock
// times in HH:MM or HH:MM:SS form and the multiplier under "sdf".
type RawWindow struct {
	From string `json:"from"`
	To   string `json:"to"`
	SDF  int    `json:"sdf"`
}

// Window is a prepared slowdown window. From may be negative: a window that
// crosses midnight is normalized by shifting its start back 24 hours so the
// range stays contiguous.
type Window struct {
	From   float64
	To     float64
	Factor int
}

// Prepare converts raw clock-time windows into decimal-hour windows. A nil
// input yields a nil output, which callers must keep distinct from an empty
// list; both disable slowdown.
func Prepare(raw []RawWindow) ([]Window, error) {
	if raw == nil {
		return nil, nil
	}

	windows := make([]Window, 0, len(raw))
	for _, r := range raw {
		from, err := parseClock(r.From)
		if err != nil {
			return nil, fmt.Errorf("slowdown window %q-%q: %w", r.From, r.To, err)
		}
		to, err := parseClock(r.To)
		if err != nil {
			return nil, fmt.Errorf("slowdown window %q-%q: %w", r.From, r.To, err)
		}
		if from > to {
			from -= 24
		}
		windows = append(windows, Window{From: from, To: to, Factor: r.SDF})
	}
	return windows, nil
}

// Factor returns the multiplier of the first window containing the given
// time of day, bounds inclusive, or 1 when no window matches.
func Factor(windows []Window, t time.Time) int {
	if len(windows) == 0 {
		return 1
	}

	positive := float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0
	negative := positive - 24

	for _, w := range windows {
		if (positive >= w.From && positive <= w.To) || (negative >= w.From && negative <= w.To) {
			return w.Factor
		}
	}
	return 1
}

func parseClock(s string) (float64, error) {
	fields := strings.Split(s, ":")
	if len(fields) < 2 || len(fields) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}

	var parts [3]float64
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
		}
		parts[i] = float64(v)
	}
	return parts[0] + parts[1]/60.0 + parts[2]/3600.0, nil
}
