package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/thatsimonsguy/netro-controller/internal/slowdown"
)

// Controller configures one Netro irrigation controller. Name, hardware and
// software versions are optional; when left empty they are filled in from
// the first device info poll.
type Controller struct {
	Serial                 string `json:"serial"`
	Key                    string `json:"key"`
	Name                   string `json:"name"`
	HWVersion              string `json:"hw_version"`
	SWVersion              string `json:"sw_version"`
	RefreshIntervalMinutes int    `json:"refresh_interval_minutes"`
	ScheduleMonthsBefore   int    `json:"schedule_months_before"`
	ScheduleMonthsAfter    int    `json:"schedule_months_after"`
}

// Sensor configures one Netro soil sensor.
type Sensor struct {
	Serial                 string `json:"serial"`
	Key                    string `json:"key"`
	Name                   string `json:"name"`
	HWVersion              string `json:"hw_version"`
	SWVersion              string `json:"sw_version"`
	RefreshIntervalMinutes int    `json:"refresh_interval_minutes"`
	DaysBeforeToday        int    `json:"days_before_today"`
}

type Netro struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type Weather struct {
	Enabled       bool    `json:"enabled"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	IntervalHours int     `json:"interval_hours"`
}

type Config struct {
	ConfigFile  string
	HistoryFile string
	LogLevel    zerolog.Level
	LogFile     string

	HTTPPort int `json:"http_port"`

	Netro           Netro                `json:"netro"`
	Controllers     []Controller         `json:"controllers"`
	Sensors         []Sensor             `json:"sensors"`
	SlowdownFactors []slowdown.RawWindow `json:"slowdown_factors"`
	Weather         Weather              `json:"weather"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&cfg.HistoryFile, "history-file", "data/history.db", "Path to the poll history database")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Optional log file, in addition to stderr")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = 8420
	}
	if cfg.Netro.TimeoutSeconds == 0 {
		cfg.Netro.TimeoutSeconds = 30
	}
	if cfg.Weather.IntervalHours == 0 {
		cfg.Weather.IntervalHours = 1
	}
	for i := range cfg.Controllers {
		c := &cfg.Controllers[i]
		if c.RefreshIntervalMinutes == 0 {
			c.RefreshIntervalMinutes = 2
		}
		if c.ScheduleMonthsBefore == 0 {
			c.ScheduleMonthsBefore = 2
		}
		if c.ScheduleMonthsAfter == 0 {
			c.ScheduleMonthsAfter = 2
		}
	}
	for i := range cfg.Sensors {
		s := &cfg.Sensors[i]
		if s.RefreshIntervalMinutes == 0 {
			s.RefreshIntervalMinutes = 30
		}
		if s.DaysBeforeToday == 0 {
			s.DaysBeforeToday = 1
		}
	}
}

func (cfg *Config) validate() {
	var problems []string

	if len(cfg.Controllers) == 0 && len(cfg.Sensors) == 0 {
		problems = append(problems, "at least one controller or sensor is required")
	}

	seen := map[string]bool{}
	for i, c := range cfg.Controllers {
		tag := fmt.Sprintf("controllers[%d]", i)
		if c.Serial == "" {
			problems = append(problems, tag+": serial is required")
		} else if seen[c.Serial] {
			problems = append(problems, tag+": duplicate serial "+c.Serial)
		} else {
			seen[c.Serial] = true
		}
		if c.Key == "" {
			problems = append(problems, tag+": key is required")
		}
		if c.RefreshIntervalMinutes < 1 || c.RefreshIntervalMinutes > 120 {
			problems = append(problems, tag+": refresh_interval_minutes must be between 1 and 120")
		}
		if c.ScheduleMonthsBefore < 1 || c.ScheduleMonthsBefore > 6 {
			problems = append(problems, tag+": schedule_months_before must be between 1 and 6")
		}
		if c.ScheduleMonthsAfter < 1 || c.ScheduleMonthsAfter > 6 {
			problems = append(problems, tag+": schedule_months_after must be between 1 and 6")
		}
	}
	for i, s := range cfg.Sensors {
		tag := fmt.Sprintf("sensors[%d]", i)
		if s.Serial == "" {
			problems = append(problems, tag+": serial is required")
		} else if seen[s.Serial] {
			problems = append(problems, tag+": duplicate serial "+s.Serial)
		} else {
			seen[s.Serial] = true
		}
		if s.Key == "" {
			problems = append(problems, tag+": key is required")
		}
		if s.RefreshIntervalMinutes < 1 || s.RefreshIntervalMinutes > 720 {
			problems = append(problems, tag+": refresh_interval_minutes must be between 1 and 720")
		}
		if s.DaysBeforeToday < 1 || s.DaysBeforeToday > 7 {
			problems = append(problems, tag+": days_before_today must be between 1 and 7")
		}
	}

	for i, w := range cfg.SlowdownFactors {
		tag := fmt.Sprintf("slowdown_factors[%d]", i)
		if w.SDF < 1 {
			problems = append(problems, tag+": sdf must be at least 1")
		}
		if w.From == w.To {
			problems = append(problems, tag+": from and to must differ")
		}
	}
	if _, err := slowdown.Prepare(cfg.SlowdownFactors); err != nil {
		problems = append(problems, "slowdown_factors: "+err.Error())
	}

	if cfg.Weather.Enabled {
		if cfg.Weather.Latitude < -90 || cfg.Weather.Latitude > 90 {
			problems = append(problems, "weather.latitude must be between -90 and 90")
		}
		if cfg.Weather.Longitude < -180 || cfg.Weather.Longitude > 180 {
			problems = append(problems, "weather.longitude must be between -180 and 180")
		}
		if len(cfg.Controllers) == 0 {
			problems = append(problems, "weather reporting requires at least one controller")
		}
	}

	if cfg.EnableDatadog && cfg.DDAgentAddr == "" {
		problems = append(problems, "dd_agent_addr is required when enable_datadog is set")
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, ", "))
	}
}
