package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/netro-controller/internal/model"
	"github.com/thatsimonsguy/netro-controller/internal/netro"
)

// SensorAPI is what the sensor coordinator needs from the Netro client.
type SensorAPI interface {
	GetSensorData(ctx context.Context, startDate, endDate string) (*netro.SensorDataResponse, error)
}

type SensorConfig struct {
	SerialNumber    string
	DeviceName      string
	HWVersion       string
	SWVersion       string
	RefreshInterval time.Duration
	DaysBeforeToday int
}

// SensorCoordinator polls one soil sensor. Only the most recent report of
// each poll is kept; an empty response leaves the previous measurement in
// place rather than clearing it.
type SensorCoordinator struct {
	api SensorAPI
	now func() time.Time

	serialNumber string
	deviceName   string
	hwVersion    string
	swVersion    string

	refreshInterval time.Duration
	daysBeforeToday int

	mu            sync.RWMutex
	meta          *Meta
	measurementID *int64
	moisture      *float64
	sunlight      *float64
	celsius       *float64
	fahrenheit    *float64
	batteryLevel  *float64
	measuredAt    *time.Time
	localDate     string
	localTime     string
}

func NewSensor(api SensorAPI, cfg SensorConfig) *SensorCoordinator {
	return &SensorCoordinator{
		api:             api,
		now:             func() time.Time { return time.Now().UTC() },
		serialNumber:    cfg.SerialNumber,
		deviceName:      cfg.DeviceName,
		hwVersion:       cfg.HWVersion,
		swVersion:       cfg.SWVersion,
		refreshInterval: cfg.RefreshInterval,
		daysBeforeToday: cfg.DaysBeforeToday,
	}
}

// Poll fetches sensor reports for the configured lookback window and keeps
// the most recent one. Failures propagate before any state is written.
func (s *SensorCoordinator) Poll(ctx context.Context) error {
	log.Info().
		Str("sensor", s.deviceName).
		Dur("interval", s.refreshInterval).
		Msg("Polling sensor")

	today := s.now()
	res, err := s.api.GetSensorData(ctx,
		today.AddDate(0, 0, -s.daysBeforeToday).Format(dateLayout),
		today.Format(dateLayout))
	if err != nil {
		return err
	}

	meta, err := parseMeta(res.Meta)
	if err != nil {
		return err
	}

	if len(res.Data.SensorData) == 0 {
		s.mu.Lock()
		s.meta = meta
		s.mu.Unlock()
		return nil
	}

	// The NPA returns reports most recent first.
	sample := res.Data.SensorData[0]
	measuredAt, err := parseNetroTime(sample.Time)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.meta = meta
	s.measurementID = &sample.ID
	s.moisture = &sample.Moisture
	s.sunlight = &sample.Sunlight
	s.celsius = &sample.Celsius
	s.fahrenheit = &sample.Fahrenheit
	s.batteryLevel = &sample.BatteryLevel
	s.measuredAt = &measuredAt
	s.localDate = sample.LocalDate
	s.localTime = sample.LocalTime
	s.mu.Unlock()

	return nil
}

func (s *SensorCoordinator) EffectiveInterval() time.Duration { return s.refreshInterval }
func (s *SensorCoordinator) SerialNumber() string             { return s.serialNumber }
func (s *SensorCoordinator) DeviceName() string               { return s.deviceName }

func (s *SensorCoordinator) Metadata() *Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func (s *SensorCoordinator) TokenRemaining() *int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.meta == nil {
		return nil
	}
	remaining := s.meta.TokenRemaining
	return &remaining
}

func (s *SensorCoordinator) MeasurementID() *int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.measurementID
}

func (s *SensorCoordinator) Moisture() *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.moisture
}

func (s *SensorCoordinator) Sunlight() *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sunlight
}

func (s *SensorCoordinator) Celsius() *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.celsius
}

func (s *SensorCoordinator) Fahrenheit() *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fahrenheit
}

func (s *SensorCoordinator) BatteryLevel() *float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batteryLevel
}

func (s *SensorCoordinator) MeasuredAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.measuredAt
}

func (s *SensorCoordinator) LocalDate() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localDate
}

func (s *SensorCoordinator) LocalTime() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.localTime
}

func (s *SensorCoordinator) DeviceInfo() model.DeviceInfo {
	return model.DeviceInfo{
		Name:         s.deviceName,
		Domain:       model.Domain,
		Serial:       s.serialNumber,
		Manufacturer: model.Manufacturer,
		HWVersion:    s.hwVersion,
		SWVersion:    s.swVersion,
		Model:        model.ModelSensor,
	}
}
