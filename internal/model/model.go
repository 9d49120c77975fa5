package model

import "time"

const (
	Domain       = "netro_watering"
	Manufacturer = "Netro"

	// Controller models are distinguished at runtime: battery-powered
	// controllers (Pixie) report a battery level, mains-powered ones
	// (Sprite) do not.
	ModelPixie  = "Pixie"
	ModelSprite = "Sprite"
	ModelSensor = "Whisperer"
	ModelZone   = "Zone"
)

type ControllerStatus string

const (
	StatusOnline   ControllerStatus = "ONLINE"
	StatusStandby  ControllerStatus = "STANDBY"
	StatusWatering ControllerStatus = "WATERING"
	StatusSetup    ControllerStatus = "SETUP"
	StatusOffline  ControllerStatus = "OFFLINE"
	StatusSleeping ControllerStatus = "SLEEPING"
	StatusPoweroff ControllerStatus = "POWEROFF"
)

type ScheduleStatus string

const (
	ScheduleValid     ScheduleStatus = "VALID"
	ScheduleExecuted  ScheduleStatus = "EXECUTED"
	ScheduleExecuting ScheduleStatus = "EXECUTING"
)

type ScheduleSource string

const (
	SourceFix    ScheduleSource = "FIX"
	SourceSmart  ScheduleSource = "SMART"
	SourceManual ScheduleSource = "MANUAL"
)

// Schedule is a past, present or future watering event for a zone.
type Schedule struct {
	Zone      int            `json:"zone"`
	StartTime time.Time      `json:"start_time"`
	EndTime   time.Time      `json:"end_time"`
	Status    ScheduleStatus `json:"status"`
	Source    ScheduleSource `json:"source"`
}

// Moisture is a single moisture report for a zone, kept in the order the
// Netro API returned it.
type Moisture struct {
	Zone     int     `json:"zone"`
	Moisture float64 `json:"moisture"`
	Date     string  `json:"date"`
}

type CalendarEvent struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
}

// DeviceInfo is the identity tuple handed to hosting surfaces when they
// build device records for a controller, zone or sensor.
type DeviceInfo struct {
	Name         string `json:"name"`
	Domain       string `json:"domain"`
	Serial       string `json:"serial"`
	Manufacturer string `json:"manufacturer"`
	HWVersion    string `json:"hw_version,omitempty"`
	SWVersion    string `json:"sw_version,omitempty"`
	Model        string `json:"model"`
}
