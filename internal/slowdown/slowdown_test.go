package slowdown

import (
	"testing"
	"time"
)

func clock(hh, mm, ss int) time.Time {
	return time.Date(2024, 6, 15, hh, mm, ss, 0, time.UTC)
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name     string
		raw      RawWindow
		wantFrom float64
		wantTo   float64
	}{
		{
			name:     "crossing midnight shifts from back a day",
			raw:      RawWindow{From: "22:00", To: "06:00", SDF: 2},
			wantFrom: -2.0,
			wantTo:   6.0,
		},
		{
			name:     "daytime window unchanged",
			raw:      RawWindow{From: "08:30", To: "12:00", SDF: 2},
			wantFrom: 8.5,
			wantTo:   12.0,
		},
		{
			name:     "seconds contribute to the decimal value",
			raw:      RawWindow{From: "01:00:36", To: "02:00", SDF: 3},
			wantFrom: 1.01,
			wantTo:   2.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows, err := Prepare([]RawWindow{tt.raw})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(windows) != 1 {
				t.Fatalf("expected one window, got %d", len(windows))
			}
			if windows[0].From != tt.wantFrom || windows[0].To != tt.wantTo {
				t.Errorf("got from=%v to=%v, want from=%v to=%v",
					windows[0].From, windows[0].To, tt.wantFrom, tt.wantTo)
			}
			if windows[0].Factor != tt.raw.SDF {
				t.Errorf("got factor=%d, want %d", windows[0].Factor, tt.raw.SDF)
			}
		})
	}
}

func TestPrepareNilStaysNil(t *testing.T) {
	windows, err := Prepare(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if windows != nil {
		t.Errorf("expected nil windows, got %v", windows)
	}
}

func TestPrepareRejectsBadClock(t *testing.T) {
	for _, bad := range []string{"8h30", "08", "08:3x", "08:30:15:00", ""} {
		if _, err := Prepare([]RawWindow{{From: bad, To: "12:00", SDF: 2}}); err == nil {
			t.Errorf("expected error for clock time %q", bad)
		}
	}
}

func TestFactor(t *testing.T) {
	tests := []struct {
		name    string
		windows []Window
		at      time.Time
		want    int
	}{
		{
			name:    "nil windows default to 1",
			windows: nil,
			at:      clock(10, 0, 0),
			want:    1,
		},
		{
			name:    "empty windows default to 1",
			windows: []Window{},
			at:      clock(10, 0, 0),
			want:    1,
		},
		{
			name:    "lower bound inclusive",
			windows: []Window{{From: 8.5, To: 12.0, Factor: 2}},
			at:      clock(8, 30, 0),
			want:    2,
		},
		{
			name:    "upper bound inclusive",
			windows: []Window{{From: 8.5, To: 12.0, Factor: 2}},
			at:      clock(12, 0, 0),
			want:    2,
		},
		{
			name:    "outside window defaults to 1",
			windows: []Window{{From: 8.5, To: 12.0, Factor: 2}},
			at:      clock(13, 0, 0),
			want:    1,
		},
		{
			name:    "midnight crossing matched on negative branch",
			windows: []Window{{From: -2.0, To: 6.5, Factor: 4}},
			at:      clock(23, 0, 0),
			want:    4,
		},
		{
			name:    "midnight crossing matched on positive branch",
			windows: []Window{{From: -2.0, To: 6.5, Factor: 4}},
			at:      clock(1, 0, 0),
			want:    4,
		},
		{
			name: "first match wins on overlap",
			windows: []Window{
				{From: 8.0, To: 12.0, Factor: 2},
				{From: 10.0, To: 14.0, Factor: 3},
			},
			at:   clock(11, 0, 0),
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Factor(tt.windows, tt.at); got != tt.want {
				t.Errorf("Factor() = %d, want %d", got, tt.want)
			}
		})
	}
}
