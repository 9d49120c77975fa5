package coordinator

import (
	"fmt"
	"math"
	"time"

	"github.com/thatsimonsguy/netro-controller/internal/model"
)

var sourceLabels = map[model.ScheduleSource]string{
	model.SourceFix:    "schedule from programs",
	model.SourceSmart:  "Netro generated schedule",
	model.SourceManual: "manual watering",
}

var statusLabels = map[model.ScheduleStatus]string{
	model.ScheduleExecuted:  "has been executed",
	model.ScheduleExecuting: "currently being executed",
	model.ScheduleValid:     "is planned",
}

// CurrentCalendarEvent returns the running or next upcoming schedule as a
// calendar event, or nil when nothing ends after now.
func (c *ControllerCoordinator) CurrentCalendarEvent() *model.CalendarEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	for _, s := range c.schedules {
		if s.EndTime.After(now) {
			event := c.calendarEvent(s)
			return &event
		}
	}
	return nil
}

// CalendarEvents returns all schedules overlapping the given range as
// calendar events. A nil bound leaves that side unbounded.
func (c *ControllerCoordinator) CalendarEvents(start, end *time.Time) []model.CalendarEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()

	events := make([]model.CalendarEvent, 0)
	for _, s := range c.schedules {
		if start != nil && !s.EndTime.After(*start) {
			continue
		}
		if end != nil && !s.StartTime.Before(*end) {
			continue
		}
		events = append(events, c.calendarEvent(s))
	}
	return events
}

// calendarEvent shapes one schedule for calendar surfaces. Caller holds at
// least the read lock.
func (c *ControllerCoordinator) calendarEvent(s model.Schedule) model.CalendarEvent {
	summary := fmt.Sprintf("%s-%d", c.deviceName, s.Zone)
	if zone, ok := c.activeZones[s.Zone]; ok {
		summary = zone.name
	}

	source, ok := sourceLabels[s.Source]
	if !ok {
		source = fmt.Sprintf("unknown source(%s)", s.Source)
	}
	status, ok := statusLabels[s.Status]
	if !ok {
		status = fmt.Sprintf("unknown status(%s)", s.Status)
	}

	minutes := int(math.Round(s.EndTime.Sub(s.StartTime).Minutes()))
	return model.CalendarEvent{
		Start:       s.StartTime,
		End:         s.EndTime,
		Summary:     summary,
		Description: fmt.Sprintf("Duration: %d minutes, %s, %s.", minutes, source, status),
	}
}
