package coordinator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/netro-controller/internal/model"
	"github.com/thatsimonsguy/netro-controller/internal/netro"
	"github.com/thatsimonsguy/netro-controller/internal/slowdown"
)

// ControllerAPI is what the controller coordinator needs from the Netro
// client. *netro.Client satisfies it.
type ControllerAPI interface {
	GetInfo(ctx context.Context) (*netro.InfoResponse, error)
	GetMoistures(ctx context.Context) (*netro.MoisturesResponse, error)
	GetSchedules(ctx context.Context, zones []int, startDate, endDate string) (*netro.SchedulesResponse, error)
	SetStatus(ctx context.Context, enabled bool) error
	Water(ctx context.Context, durationMinutes int, zones []int, delayMinutes int, startTime string) error
	StopWater(ctx context.Context) error
	NoWater(ctx context.Context, days int) error
	SetMoisture(ctx context.Context, moisture int, zones []int) error
}

type ControllerConfig struct {
	SerialNumber    string
	DeviceName      string
	HWVersion       string
	SWVersion       string
	RefreshInterval time.Duration
	SlowdownWindows []slowdown.Window
	MonthsBefore    int
	MonthsAfter     int
}

// ControllerCoordinator polls one irrigation controller and reconciles its
// schedules and moistures into per-zone views. Poll invocations are
// serialized by the runner; the mutex only guards reads that happen while a
// poll is writing.
type ControllerCoordinator struct {
	api ControllerAPI
	now func() time.Time

	serialNumber string
	deviceName   string
	hwVersion    string
	swVersion    string

	refreshInterval time.Duration
	windows         []slowdown.Window
	monthsBefore    int
	monthsAfter     int

	mu             sync.RWMutex
	meta           *Meta
	zoneNum        int
	status         model.ControllerStatus
	batteryLevel   *float64
	activeZones    map[int]*Zone
	schedules      []model.Schedule
	slowdownFactor int
}

func NewController(api ControllerAPI, cfg ControllerConfig) *ControllerCoordinator {
	return &ControllerCoordinator{
		api:             api,
		now:             func() time.Time { return time.Now().UTC() },
		serialNumber:    cfg.SerialNumber,
		deviceName:      cfg.DeviceName,
		hwVersion:       cfg.HWVersion,
		swVersion:       cfg.SWVersion,
		refreshInterval: cfg.RefreshInterval,
		windows:         cfg.SlowdownWindows,
		monthsBefore:    cfg.MonthsBefore,
		monthsAfter:     cfg.MonthsAfter,
		activeZones:     map[int]*Zone{},
		slowdownFactor:  1,
	}
}

// Poll fetches device info, moistures and schedules, in that order, and
// rebuilds the zone views. Any failure propagates untouched; fields are only
// written after their response has been fully parsed, so a failed poll never
// corrupts previously good state.
func (c *ControllerCoordinator) Poll(ctx context.Context) error {
	// The slowdown factor is fixed at cycle start so a slow poll still uses
	// the multiplier that was valid when it began.
	factor := slowdown.Factor(c.windows, c.now())
	c.mu.Lock()
	c.slowdownFactor = factor
	c.mu.Unlock()

	log.Info().
		Str("controller", c.deviceName).
		Dur("interval", c.EffectiveInterval()).
		Int("slowdown_factor", factor).
		Msg("Polling controller")

	info, err := c.api.GetInfo(ctx)
	if err != nil {
		return err
	}
	meta, err := parseMeta(info.Meta)
	if err != nil {
		return err
	}

	device := info.Data.Device
	battery := normalizeBattery(device.BatteryLevel)

	zones := make(map[int]*Zone, len(device.Zones))
	for _, z := range device.Zones {
		if !z.Enabled {
			continue
		}
		name := z.Name
		if name == "" {
			// Pixie zones come back unnamed.
			name = fmt.Sprintf("%s-%d", c.deviceName, z.Ith)
		}
		zones[z.Ith] = newZone(c, z.Ith, z.Smart, name)
	}

	c.mu.Lock()
	c.meta = meta
	c.zoneNum = device.ZoneNum
	c.status = model.ControllerStatus(device.Status)
	c.batteryLevel = battery
	c.activeZones = zones
	c.mu.Unlock()

	mres, err := c.api.GetMoistures(ctx)
	if err != nil {
		return err
	}
	moistures := make([]model.Moisture, 0, len(mres.Data.Moistures))
	for _, m := range mres.Data.Moistures {
		moistures = append(moistures, model.Moisture{Zone: m.Zone, Moisture: m.Moisture, Date: m.Date})
	}

	c.mu.Lock()
	c.applyMoistures(moistures)
	c.mu.Unlock()

	today := c.now()
	sres, err := c.api.GetSchedules(ctx, nil,
		addMonths(today, -c.monthsBefore).Format(dateLayout),
		addMonths(today, c.monthsAfter).Format(dateLayout))
	if err != nil {
		return err
	}
	schedules, err := convertSchedules(sres.Data.Schedules)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.applySchedules(schedules, c.now())
	c.mu.Unlock()

	return nil
}

func normalizeBattery(raw *float64) *float64 {
	if raw == nil || *raw == 0 {
		return nil
	}
	level := *raw
	if level <= 1 {
		level = math.Round(level * 100)
	}
	return &level
}

func convertSchedules(raw []netro.Schedule) ([]model.Schedule, error) {
	schedules := make([]model.Schedule, 0, len(raw))
	for _, s := range raw {
		start, err := parseNetroTime(s.StartTime)
		if err != nil {
			return nil, fmt.Errorf("schedule start_time: %w", err)
		}
		end, err := parseNetroTime(s.EndTime)
		if err != nil {
			return nil, fmt.Errorf("schedule end_time: %w", err)
		}
		schedules = append(schedules, model.Schedule{
			Zone:      s.Zone,
			StartTime: start,
			EndTime:   end,
			Status:    model.ScheduleStatus(s.Status),
			Source:    model.ScheduleSource(s.Source),
		})
	}
	return schedules, nil
}

// applyMoistures partitions the flat moisture list over the active zones,
// preserving remote order. Caller holds the write lock.
func (c *ControllerCoordinator) applyMoistures(moistures []model.Moisture) {
	for _, zone := range c.activeZones {
		filtered := make([]model.Moisture, 0)
		for _, m := range moistures {
			if m.Zone == zone.ith {
				filtered = append(filtered, m)
			}
		}
		zone.moistures = filtered
	}
}

// applySchedules stores the full schedule list sorted ascending by start
// time and partitions it over the active zones: past schedules (executed or
// executing, most recent first) and coming schedules (valid and starting
// after now, soonest first). Caller holds the write lock.
func (c *ControllerCoordinator) applySchedules(schedules []model.Schedule, now time.Time) {
	sort.SliceStable(schedules, func(i, j int) bool {
		return schedules[i].StartTime.Before(schedules[j].StartTime)
	})
	c.schedules = schedules

	for _, zone := range c.activeZones {
		past := make([]model.Schedule, 0)
		coming := make([]model.Schedule, 0)
		for _, s := range schedules {
			if s.Zone != zone.ith {
				continue
			}
			switch {
			case s.Status == model.ScheduleExecuted || s.Status == model.ScheduleExecuting:
				past = append(past, s)
			case s.Status == model.ScheduleValid && s.StartTime.After(now):
				coming = append(coming, s)
			}
		}
		sort.SliceStable(past, func(i, j int) bool {
			return past[j].StartTime.Before(past[i].StartTime)
		})
		zone.pastSchedules = past
		zone.comingSchedules = coming
	}
}

// EffectiveInterval is the base refresh interval multiplied by the slowdown
// factor computed at the start of the last poll. The runner re-reads it
// after every poll.
func (c *ControllerCoordinator) EffectiveInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshInterval * time.Duration(c.slowdownFactor)
}

func (c *ControllerCoordinator) SlowdownFactor() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slowdownFactor
}

func (c *ControllerCoordinator) SerialNumber() string { return c.serialNumber }
func (c *ControllerCoordinator) DeviceName() string   { return c.deviceName }

func (c *ControllerCoordinator) Status() model.ControllerStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Enabled reports whether the controller is operational (not in standby or
// offline).
func (c *ControllerCoordinator) Enabled() bool {
	switch c.Status() {
	case model.StatusOnline, model.StatusWatering, model.StatusSetup:
		return true
	}
	return false
}

func (c *ControllerCoordinator) Watering() bool {
	return c.Status() == model.StatusWatering
}

func (c *ControllerCoordinator) ZoneNum() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoneNum
}

func (c *ControllerCoordinator) Metadata() *Meta {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta
}

func (c *ControllerCoordinator) TokenRemaining() *int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.meta == nil {
		return nil
	}
	remaining := c.meta.TokenRemaining
	return &remaining
}

// BatteryLevel is only present for battery-powered controllers (Pixie).
func (c *ControllerCoordinator) BatteryLevel() *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.batteryLevel
}

// Zone returns the active zone with the given index, if any.
func (c *ControllerCoordinator) Zone(ith int) (*Zone, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	z, ok := c.activeZones[ith]
	return z, ok
}

// Zones returns the active zones ordered by index.
func (c *ControllerCoordinator) Zones() []*Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()

	zones := make([]*Zone, 0, len(c.activeZones))
	for _, z := range c.activeZones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].ith < zones[j].ith })
	return zones
}

// MoistureReadings returns the moisture reports of all active zones in one
// flat list, zone order ascending, remote order within a zone.
func (c *ControllerCoordinator) MoistureReadings() []model.Moisture {
	c.mu.RLock()
	defer c.mu.RUnlock()

	iths := make([]int, 0, len(c.activeZones))
	for ith := range c.activeZones {
		iths = append(iths, ith)
	}
	sort.Ints(iths)

	out := make([]model.Moisture, 0)
	for _, ith := range iths {
		out = append(out, c.activeZones[ith].moistures...)
	}
	return out
}

// Schedules returns all known schedules, ascending by start time.
func (c *ControllerCoordinator) Schedules() []model.Schedule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Schedule, len(c.schedules))
	copy(out, c.schedules)
	return out
}

func (c *ControllerCoordinator) DeviceInfo() model.DeviceInfo {
	deviceModel := model.ModelSprite
	if c.BatteryLevel() != nil {
		deviceModel = model.ModelPixie
	}
	return model.DeviceInfo{
		Name:         c.deviceName,
		Domain:       model.Domain,
		Serial:       c.serialNumber,
		Manufacturer: model.Manufacturer,
		HWVersion:    c.hwVersion,
		SWVersion:    c.swVersion,
		Model:        deviceModel,
	}
}

// Action methods call straight through to the NPA and return. They do not
// refresh coordinator state; callers trigger a poll when they want fresh
// data.

func (c *ControllerCoordinator) Enable(ctx context.Context) error {
	log.Info().Str("controller", c.deviceName).Msg("Enabling controller")
	return c.api.SetStatus(ctx, true)
}

func (c *ControllerCoordinator) Disable(ctx context.Context) error {
	log.Info().Str("controller", c.deviceName).Msg("Disabling controller")
	return c.api.SetStatus(ctx, false)
}

// StartWatering waters all zones consecutively for the given duration. A
// non-nil startTime takes precedence over delayMinutes; a zero delay means
// immediately.
func (c *ControllerCoordinator) StartWatering(ctx context.Context, durationMinutes, delayMinutes int, startTime *time.Time) error {
	return c.water(ctx, durationMinutes, nil, delayMinutes, startTime)
}

// StopWatering stops all zones. The NPA has no per-zone stop.
func (c *ControllerCoordinator) StopWatering(ctx context.Context) error {
	log.Info().Str("controller", c.deviceName).Msg("Stopping watering")
	return c.api.StopWater(ctx)
}

// NoWater suppresses watering for the given number of days, defaulting to
// one day.
func (c *ControllerCoordinator) NoWater(ctx context.Context, days int) error {
	if days <= 0 {
		days = 1
	}
	log.Info().Str("controller", c.deviceName).Int("days", days).Msg("Suppressing watering")
	return c.api.NoWater(ctx, days)
}

func (c *ControllerCoordinator) water(ctx context.Context, durationMinutes int, zones []int, delayMinutes int, startTime *time.Time) error {
	formatted := ""
	if startTime != nil {
		formatted = startTime.Format("2006-01-02 15:04")
	}
	log.Info().
		Str("controller", c.deviceName).
		Ints("zones", zones).
		Int("duration_minutes", durationMinutes).
		Int("delay_minutes", delayMinutes).
		Str("start_time", formatted).
		Msg("Starting watering")
	return c.api.Water(ctx, durationMinutes, zones, delayMinutes, formatted)
}
