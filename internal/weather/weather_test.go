package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/netro-controller/internal/netro"
)

const dailyPayload = `{
	"daily": {
		"time": ["2023-05-07"],
		"temperature_2m_max": [24.5],
		"temperature_2m_min": [12.1],
		"precipitation_sum": [3.2],
		"precipitation_probability_max": [80],
		"wind_speed_10m_max": [18.4]
	}
}`

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f := NewFetcher(46.05, 14.5)
	f.baseURL = srv.URL
	return f
}

func TestFetcherToday(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "46.050000", r.URL.Query().Get("latitude"))
		w.Write([]byte(dailyPayload))
	})

	date, obs, err := f.Today(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2023-05-07", date)
	require.NotNil(t, obs.TMax)
	assert.Equal(t, 24.5, *obs.TMax)
	require.NotNil(t, obs.TMin)
	assert.Equal(t, 12.1, *obs.TMin)
	require.NotNil(t, obs.Temp)
	assert.InDelta(t, 18.3, *obs.Temp, 0.001)
	require.NotNil(t, obs.Rain)
	assert.Equal(t, 3.2, *obs.Rain)
	require.NotNil(t, obs.RainProb)
	assert.Equal(t, 0.8, *obs.RainProb, "percent scaled to probability")
	require.NotNil(t, obs.WindSpeed)
	assert.Equal(t, 18.4, *obs.WindSpeed)
}

func TestFetcherErrors(t *testing.T) {
	t.Run("http error status", func(t *testing.T) {
		f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		})
		_, _, err := f.Today(context.Background())
		require.Error(t, err)
	})

	t.Run("empty daily block", func(t *testing.T) {
		f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"daily": {"time": []}}`))
		})
		_, _, err := f.Today(context.Background())
		require.Error(t, err)
	})
}

type countingReporter struct {
	calls atomic.Int32
	date  string
}

func (c *countingReporter) ReportWeather(ctx context.Context, date string, obs netro.WeatherObservation) error {
	c.calls.Add(1)
	c.date = date
	return nil
}

func TestReporterPushesToAllTargets(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(dailyPayload))
	})

	first := &countingReporter{}
	second := &countingReporter{}
	rep := NewReporter(f, time.Hour)
	rep.AddTarget("SN1", first)
	rep.AddTarget("SN2", second)

	rep.reportOnce(context.Background())

	assert.Equal(t, int32(1), first.calls.Load())
	assert.Equal(t, int32(1), second.calls.Load())
	assert.Equal(t, "2023-05-07", first.date)
}
