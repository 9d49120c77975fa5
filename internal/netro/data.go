package netro

// Wire types for the Netro Public API (NPA). Timestamps arrive as bare
// ISO-8601 strings in UTC ("2023-05-07T06:30:00"); they are parsed by the
// coordinator layer so that a bad timestamp fails the whole poll.

// Meta is the quota/version envelope block carried by every NPA response.
type Meta struct {
	Time           string `json:"time"`
	TID            string `json:"tid"`
	Version        string `json:"version"`
	TokenLimit     int    `json:"token_limit"`
	TokenRemaining int    `json:"token_remaining"`
	TokenReset     string `json:"token_reset"`
	LastActive     string `json:"last_active"`
}

type ZoneInfo struct {
	Ith     int    `json:"ith"`
	Enabled bool   `json:"enabled"`
	Smart   string `json:"smart"`
	Name    string `json:"name"`
}

type Device struct {
	Name       string     `json:"name"`
	Serial     string     `json:"serial"`
	ZoneNum    int        `json:"zone_num"`
	Status     string     `json:"status"`
	Version    string     `json:"version"`
	SWVersion  string     `json:"sw_version"`
	LastActive string     `json:"last_active"`
	Zones      []ZoneInfo `json:"zones"`

	// Only battery-powered controllers (Pixie) report this. Some firmware
	// reports it as a 0..1 fraction.
	BatteryLevel *float64 `json:"battery_level,omitempty"`
}

type InfoResponse struct {
	Status string `json:"status"`
	Meta   Meta   `json:"meta"`
	Data   struct {
		Device Device `json:"device"`
	} `json:"data"`
}

type Moisture struct {
	ID       int64   `json:"id"`
	Zone     int     `json:"zone"`
	Moisture float64 `json:"moisture"`
	Date     string  `json:"date"`
}

type MoisturesResponse struct {
	Status string `json:"status"`
	Meta   Meta   `json:"meta"`
	Data   struct {
		Moistures []Moisture `json:"moistures"`
	} `json:"data"`
}

type Schedule struct {
	ID             int64  `json:"id"`
	Zone           int    `json:"zone"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	LocalDate      string `json:"local_date"`
	LocalStartTime string `json:"local_start_time"`
	LocalEndTime   string `json:"local_end_time"`
	Status         string `json:"status"`
	Source         string `json:"source"`
}

type SchedulesResponse struct {
	Status string `json:"status"`
	Meta   Meta   `json:"meta"`
	Data   struct {
		Schedules []Schedule `json:"schedules"`
	} `json:"data"`
}

type SensorSample struct {
	ID           int64   `json:"id"`
	Time         string  `json:"time"`
	LocalDate    string  `json:"local_date"`
	LocalTime    string  `json:"local_time"`
	Moisture     float64 `json:"moisture"`
	Sunlight     float64 `json:"sunlight"`
	Celsius      float64 `json:"celsius"`
	Fahrenheit   float64 `json:"fahrenheit"`
	BatteryLevel float64 `json:"battery_level"`
}

type SensorDataResponse struct {
	Status string `json:"status"`
	Meta   Meta   `json:"meta"`
	Data   struct {
		SensorData []SensorSample `json:"sensor_data"`
	} `json:"data"`
}

// WeatherObservation carries the optional fields of a report_weather call.
// Nil fields are omitted from the request.
type WeatherObservation struct {
	Condition *int
	Rain      *float64
	RainProb  *float64
	Temp      *float64
	TMin      *float64
	TMax      *float64
	TDew      *float64
	WindSpeed *float64
	Humidity  *float64
	Pressure  *float64
}
