package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/netro-controller/internal/model"
	"github.com/thatsimonsguy/netro-controller/internal/netro"
)

type fakeSensorAPI struct {
	res   *netro.SensorDataResponse
	err   error
	start string
	end   string
}

func (f *fakeSensorAPI) GetSensorData(ctx context.Context, startDate, endDate string) (*netro.SensorDataResponse, error) {
	f.start = startDate
	f.end = endDate
	return f.res, f.err
}

func sensorResponse(samples ...netro.SensorSample) *netro.SensorDataResponse {
	res := &netro.SensorDataResponse{Status: "OK", Meta: validMeta()}
	res.Data.SensorData = samples
	return res
}

func newTestSensor(api SensorAPI) *SensorCoordinator {
	s := NewSensor(api, SensorConfig{
		SerialNumber:    "WS1",
		DeviceName:      "Garden bed",
		HWVersion:       "1.0",
		SWVersion:       "2.0",
		RefreshInterval: 30 * time.Minute,
		DaysBeforeToday: 1,
	})
	s.now = func() time.Time { return testNow }
	return s
}

func TestSensorPoll(t *testing.T) {
	api := &fakeSensorAPI{res: sensorResponse(
		netro.SensorSample{
			ID:           901,
			Time:         "2023-05-07T11:30:00",
			LocalDate:    "2023-05-07",
			LocalTime:    "04:30:00",
			Moisture:     41,
			Sunlight:     812.5,
			Celsius:      18.5,
			Fahrenheit:   65.3,
			BatteryLevel: 92,
		},
		netro.SensorSample{ID: 900, Time: "2023-05-07T10:30:00", Moisture: 44},
	)}
	s := newTestSensor(api)
	require.NoError(t, s.Poll(context.Background()))

	assert.Equal(t, "2023-05-06", api.start)
	assert.Equal(t, "2023-05-07", api.end)

	require.NotNil(t, s.MeasurementID())
	assert.Equal(t, int64(901), *s.MeasurementID(), "only the most recent report is kept")
	assert.Equal(t, 41.0, *s.Moisture())
	assert.Equal(t, 812.5, *s.Sunlight())
	assert.Equal(t, 18.5, *s.Celsius())
	assert.Equal(t, 65.3, *s.Fahrenheit())
	assert.Equal(t, 92.0, *s.BatteryLevel())
	assert.Equal(t, time.Date(2023, 5, 7, 11, 30, 0, 0, time.UTC), *s.MeasuredAt())
	assert.Equal(t, "2023-05-07", s.LocalDate())
	assert.Equal(t, "04:30:00", s.LocalTime())
	require.NotNil(t, s.TokenRemaining())
	assert.Equal(t, 1850, *s.TokenRemaining())
}

func TestSensorPollEmptyKeepsLastMeasurement(t *testing.T) {
	api := &fakeSensorAPI{res: sensorResponse(
		netro.SensorSample{ID: 901, Time: "2023-05-07T11:30:00", Moisture: 41},
	)}
	s := newTestSensor(api)
	require.NoError(t, s.Poll(context.Background()))

	// Sensors can go hours without reporting; the poll still succeeds and
	// refreshes quota metadata.
	later := validMeta()
	later.TokenRemaining = 1700
	api.res = &netro.SensorDataResponse{Status: "OK", Meta: later}
	require.NoError(t, s.Poll(context.Background()))

	require.NotNil(t, s.MeasurementID())
	assert.Equal(t, int64(901), *s.MeasurementID())
	assert.Equal(t, 41.0, *s.Moisture())
	assert.Equal(t, 1700, *s.TokenRemaining())
}

func TestSensorPollEmptyFromStart(t *testing.T) {
	api := &fakeSensorAPI{res: sensorResponse()}
	s := newTestSensor(api)
	require.NoError(t, s.Poll(context.Background()))

	assert.Nil(t, s.MeasurementID())
	assert.Nil(t, s.Moisture())
	assert.Nil(t, s.MeasuredAt())
	require.NotNil(t, s.Metadata())
}

func TestSensorPollFailures(t *testing.T) {
	t.Run("transport error propagates", func(t *testing.T) {
		boom := errors.New("timeout")
		s := newTestSensor(&fakeSensorAPI{err: boom})
		require.ErrorIs(t, s.Poll(context.Background()), boom)
		assert.Nil(t, s.Metadata())
	})

	t.Run("bad meta timestamp fails the poll", func(t *testing.T) {
		res := sensorResponse(netro.SensorSample{ID: 1, Time: "2023-05-07T11:30:00"})
		res.Meta.TokenReset = "soon"
		s := newTestSensor(&fakeSensorAPI{res: res})
		require.Error(t, s.Poll(context.Background()))
		assert.Nil(t, s.Metadata())
		assert.Nil(t, s.MeasurementID())
	})

	t.Run("bad sample timestamp fails without partial writes", func(t *testing.T) {
		res := sensorResponse(netro.SensorSample{ID: 1, Time: "garbage", Moisture: 40})
		s := newTestSensor(&fakeSensorAPI{res: res})
		require.Error(t, s.Poll(context.Background()))
		assert.Nil(t, s.Metadata())
		assert.Nil(t, s.Moisture())
	})
}

func TestSensorDeviceInfo(t *testing.T) {
	s := newTestSensor(&fakeSensorAPI{})
	info := s.DeviceInfo()
	assert.Equal(t, "Garden bed", info.Name)
	assert.Equal(t, "WS1", info.Serial)
	assert.Equal(t, model.ModelSensor, info.Model)
	assert.Equal(t, model.Manufacturer, info.Manufacturer)
}

func TestParseNetroTime(t *testing.T) {
	got, err := parseNetroTime("2023-05-07T06:30:15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 5, 7, 6, 30, 15, 0, time.UTC), got)

	got, err = parseNetroTime("2023-05-07T06:30:15+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 5, 7, 4, 30, 15, 0, time.UTC), got.UTC())

	_, err = parseNetroTime("07/05/2023")
	require.Error(t, err)
}
