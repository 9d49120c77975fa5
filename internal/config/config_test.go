package config

import (
	"testing"

	"github.com/thatsimonsguy/netro-controller/internal/slowdown"
)

func validConfig() Config {
	cfg := Config{
		Controllers: []Controller{
			{Serial: "SN1", Key: "key-1"},
		},
		Sensors: []Sensor{
			{Serial: "WS1", Key: "key-2"},
		},
		SlowdownFactors: []slowdown.RawWindow{
			{From: "22:00", To: "06:00", SDF: 4},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.validate() // should not panic
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.HTTPPort != 8420 {
		t.Errorf("expected default http port 8420, got %d", cfg.HTTPPort)
	}
	if cfg.Netro.TimeoutSeconds != 30 {
		t.Errorf("expected default timeout 30s, got %d", cfg.Netro.TimeoutSeconds)
	}
	if cfg.Controllers[0].RefreshIntervalMinutes != 2 {
		t.Errorf("expected default controller refresh 2m, got %d", cfg.Controllers[0].RefreshIntervalMinutes)
	}
	if cfg.Controllers[0].ScheduleMonthsBefore != 2 || cfg.Controllers[0].ScheduleMonthsAfter != 2 {
		t.Error("expected default schedule window of 2 months each way")
	}
	if cfg.Sensors[0].RefreshIntervalMinutes != 30 {
		t.Errorf("expected default sensor refresh 30m, got %d", cfg.Sensors[0].RefreshIntervalMinutes)
	}
	if cfg.Sensors[0].DaysBeforeToday != 1 {
		t.Errorf("expected default lookback of 1 day, got %d", cfg.Sensors[0].DaysBeforeToday)
	}
}

func expectPanic(t *testing.T, reason string, cfg Config) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic due to %s, but got none", reason)
		}
	}()
	cfg.validate()
}

func TestValidate_NoDevices(t *testing.T) {
	expectPanic(t, "empty device list", Config{})
}

func TestValidate_MissingKey(t *testing.T) {
	cfg := validConfig()
	cfg.Controllers[0].Key = ""
	expectPanic(t, "missing controller key", cfg)
}

func TestValidate_DuplicateSerial(t *testing.T) {
	cfg := validConfig()
	cfg.Sensors[0].Serial = "SN1"
	expectPanic(t, "duplicate serial", cfg)
}

func TestValidate_RefreshIntervalOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Controllers[0].RefreshIntervalMinutes = 500
	expectPanic(t, "out of range refresh interval", cfg)
}

func TestValidate_BadSlowdownWindow(t *testing.T) {
	cfg := validConfig()
	cfg.SlowdownFactors = []slowdown.RawWindow{{From: "22:00", To: "22:00", SDF: 4}}
	expectPanic(t, "degenerate slowdown window", cfg)
}

func TestValidate_UnparseableSlowdownClock(t *testing.T) {
	cfg := validConfig()
	cfg.SlowdownFactors = []slowdown.RawWindow{{From: "10 PM", To: "06:00", SDF: 4}}
	expectPanic(t, "unparseable clock string", cfg)
}

func TestValidate_ZeroSDF(t *testing.T) {
	cfg := validConfig()
	cfg.SlowdownFactors[0].SDF = 0
	expectPanic(t, "sdf below one", cfg)
}

func TestValidate_WeatherBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Weather = Weather{Enabled: true, Latitude: 95, Longitude: 0, IntervalHours: 1}
	expectPanic(t, "latitude out of range", cfg)
}

func TestValidate_DatadogNeedsAddr(t *testing.T) {
	cfg := validConfig()
	cfg.EnableDatadog = true
	expectPanic(t, "missing datadog agent address", cfg)
}

func TestParseLogLevel(t *testing.T) {
	if got := parseLogLevel("debug"); got.String() != "debug" {
		t.Errorf("expected debug, got %s", got)
	}
	if got := parseLogLevel("bogus"); got.String() != "info" {
		t.Errorf("expected fallback to info, got %s", got)
	}
}
