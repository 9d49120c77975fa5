package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/thatsimonsguy/netro-controller/internal/model"
)

// Zone is a per-zone view owned by its controller coordinator. All of its
// data is injected during the controller's poll; it never polls on its own.
// Action methods pass through to the controller with this zone's index.
type Zone struct {
	controller *ControllerCoordinator

	ith          int
	smart        string
	name         string
	serialNumber string // virtual: "<controller serial>_<ith>"

	// Guarded by controller.mu. Initialized per instance so zones never
	// share backing arrays.
	pastSchedules   []model.Schedule
	comingSchedules []model.Schedule
	moistures       []model.Moisture
}

func newZone(c *ControllerCoordinator, ith int, smart, name string) *Zone {
	return &Zone{
		controller:      c,
		ith:             ith,
		smart:           smart,
		name:            name,
		serialNumber:    fmt.Sprintf("%s_%d", c.serialNumber, ith),
		pastSchedules:   []model.Schedule{},
		comingSchedules: []model.Schedule{},
		moistures:       []model.Moisture{},
	}
}

func (z *Zone) Ith() int             { return z.ith }
func (z *Zone) Name() string         { return z.name }
func (z *Zone) Smart() string        { return z.smart }
func (z *Zone) SerialNumber() string { return z.serialNumber }

// LastRun is the most recent executed or executing schedule, if any.
func (z *Zone) LastRun() *model.Schedule {
	z.controller.mu.RLock()
	defer z.controller.mu.RUnlock()
	if len(z.pastSchedules) == 0 {
		return nil
	}
	run := z.pastSchedules[0]
	return &run
}

// NextRun is the soonest valid schedule starting in the future, if any.
func (z *Zone) NextRun() *model.Schedule {
	z.controller.mu.RLock()
	defer z.controller.mu.RUnlock()
	if len(z.comingSchedules) == 0 {
		return nil
	}
	run := z.comingSchedules[0]
	return &run
}

// Watering reports whether this zone's most recent run is still executing.
func (z *Zone) Watering() bool {
	run := z.LastRun()
	return run != nil && run.Status == model.ScheduleExecuting
}

// CurrentMoisture is the most recently reported moisture, if any.
func (z *Zone) CurrentMoisture() *float64 {
	z.controller.mu.RLock()
	defer z.controller.mu.RUnlock()
	if len(z.moistures) == 0 {
		return nil
	}
	moisture := z.moistures[0].Moisture
	return &moisture
}

func (z *Zone) PastSchedules() []model.Schedule {
	z.controller.mu.RLock()
	defer z.controller.mu.RUnlock()
	out := make([]model.Schedule, len(z.pastSchedules))
	copy(out, z.pastSchedules)
	return out
}

func (z *Zone) ComingSchedules() []model.Schedule {
	z.controller.mu.RLock()
	defer z.controller.mu.RUnlock()
	out := make([]model.Schedule, len(z.comingSchedules))
	copy(out, z.comingSchedules)
	return out
}

func (z *Zone) Moistures() []model.Moisture {
	z.controller.mu.RLock()
	defer z.controller.mu.RUnlock()
	out := make([]model.Moisture, len(z.moistures))
	copy(out, z.moistures)
	return out
}

func (z *Zone) DeviceInfo() model.DeviceInfo {
	return model.DeviceInfo{
		Name:         z.name,
		Domain:       model.Domain,
		Serial:       z.serialNumber,
		Manufacturer: model.Manufacturer,
		Model:        model.ModelZone,
	}
}

// StartWatering waters only this zone.
func (z *Zone) StartWatering(ctx context.Context, durationMinutes, delayMinutes int, startTime *time.Time) error {
	return z.controller.water(ctx, durationMinutes, []int{z.ith}, delayMinutes, startTime)
}

// StopWatering stops the whole controller; the NPA has no per-zone stop.
func (z *Zone) StopWatering(ctx context.Context) error {
	return z.controller.StopWatering(ctx)
}

// SetMoisture overrides the reported moisture for this zone.
func (z *Zone) SetMoisture(ctx context.Context, moisture int) error {
	return z.controller.api.SetMoisture(ctx, moisture, []int{z.ith})
}
