// Package weather feeds local observations to Netro so smart schedules get
// better input than the cloud's own forecast for the area. Data comes from
// the Open-Meteo forecast API, which needs no key.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/netro-controller/internal/netro"
)

const defaultBaseURL = "https://api.open-meteo.com/v1/forecast"

type Fetcher struct {
	baseURL   string
	latitude  float64
	longitude float64
	http      *http.Client
}

func NewFetcher(latitude, longitude float64) *Fetcher {
	return &Fetcher{
		baseURL:   defaultBaseURL,
		latitude:  latitude,
		longitude: longitude,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

type dailyResponse struct {
	Daily struct {
		Time              []string  `json:"time"`
		TempMax           []float64 `json:"temperature_2m_max"`
		TempMin           []float64 `json:"temperature_2m_min"`
		PrecipitationSum  []float64 `json:"precipitation_sum"`
		PrecipitationProb []float64 `json:"precipitation_probability_max"`
		WindSpeedMax      []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// Today fetches today's daily aggregates for the configured location.
func (f *Fetcher) Today(ctx context.Context) (string, netro.WeatherObservation, error) {
	u := fmt.Sprintf(
		"%s?latitude=%f&longitude=%f&daily=temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,wind_speed_10m_max&forecast_days=1&timezone=UTC",
		f.baseURL, f.latitude, f.longitude,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", netro.WeatherObservation{}, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return "", netro.WeatherObservation{}, fmt.Errorf("failed to fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", netro.WeatherObservation{}, fmt.Errorf("weather API returned status %d: %s", resp.StatusCode, body)
	}

	var parsed dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", netro.WeatherObservation{}, fmt.Errorf("failed to decode weather response: %w", err)
	}
	if len(parsed.Daily.Time) == 0 {
		return "", netro.WeatherObservation{}, fmt.Errorf("weather API returned no daily data")
	}

	obs := netro.WeatherObservation{}
	if len(parsed.Daily.TempMax) > 0 {
		obs.TMax = &parsed.Daily.TempMax[0]
	}
	if len(parsed.Daily.TempMin) > 0 {
		obs.TMin = &parsed.Daily.TempMin[0]
	}
	if len(parsed.Daily.TempMax) > 0 && len(parsed.Daily.TempMin) > 0 {
		mean := (parsed.Daily.TempMax[0] + parsed.Daily.TempMin[0]) / 2
		obs.Temp = &mean
	}
	if len(parsed.Daily.PrecipitationSum) > 0 {
		obs.Rain = &parsed.Daily.PrecipitationSum[0]
	}
	if len(parsed.Daily.PrecipitationProb) > 0 {
		// Netro wants a 0..1 probability, Open-Meteo reports percent.
		prob := parsed.Daily.PrecipitationProb[0] / 100
		obs.RainProb = &prob
	}
	if len(parsed.Daily.WindSpeedMax) > 0 {
		obs.WindSpeed = &parsed.Daily.WindSpeedMax[0]
	}

	return parsed.Daily.Time[0], obs, nil
}

// WeatherReporter is the slice of the Netro client the reporter pushes to.
type WeatherReporter interface {
	ReportWeather(ctx context.Context, date string, obs netro.WeatherObservation) error
}

type target struct {
	serial string
	api    WeatherReporter
}

// Reporter periodically pushes observations to every registered controller.
type Reporter struct {
	fetcher  *Fetcher
	interval time.Duration
	targets  []target
}

func NewReporter(fetcher *Fetcher, interval time.Duration) *Reporter {
	return &Reporter{fetcher: fetcher, interval: interval}
}

func (r *Reporter) AddTarget(serial string, api WeatherReporter) {
	r.targets = append(r.targets, target{serial: serial, api: api})
}

// Run reports once immediately and then on every interval tick until ctx is
// done.
func (r *Reporter) Run(ctx context.Context) {
	log.Info().
		Dur("interval", r.interval).
		Int("targets", len(r.targets)).
		Msg("Starting weather reporter")

	r.reportOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping weather reporter")
			return
		case <-ticker.C:
			r.reportOnce(ctx)
		}
	}
}

func (r *Reporter) reportOnce(ctx context.Context) {
	date, obs, err := r.fetcher.Today(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch weather observations")
		return
	}

	for _, t := range r.targets {
		if err := t.api.ReportWeather(ctx, date, obs); err != nil {
			log.Warn().Err(err).Str("serial", t.serial).Msg("Failed to report weather")
			continue
		}
		log.Debug().Str("serial", t.serial).Str("date", date).Msg("Weather reported")
	}
}
