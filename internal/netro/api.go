package netro

import (
	"context"
	"net/url"
	"strconv"
)

// GetInfo returns basic information about the device, including its zones.
func (c *Client) GetInfo(ctx context.Context) (*InfoResponse, error) {
	var v InfoResponse
	if err := c.get(ctx, epInfo, url.Values{}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetMoistures returns the moisture history for all zones, most recent first.
func (c *Client) GetMoistures(ctx context.Context) (*MoisturesResponse, error) {
	var v MoisturesResponse
	if err := c.get(ctx, epMoistures, url.Values{}, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetSchedules returns watering schedules between the given yyyy-mm-dd dates,
// optionally restricted to the given zones.
func (c *Client) GetSchedules(ctx context.Context, zones []int, startDate, endDate string) (*SchedulesResponse, error) {
	params := url.Values{}
	if len(zones) > 0 {
		params.Set("zones", zonesParam(zones))
	}
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}

	var v SchedulesResponse
	if err := c.get(ctx, epSchedules, params, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// GetSensorData returns sensor reports between the given yyyy-mm-dd dates,
// most recent first.
func (c *Client) GetSensorData(ctx context.Context, startDate, endDate string) (*SensorDataResponse, error) {
	params := url.Values{}
	if startDate != "" {
		params.Set("start_date", startDate)
	}
	if endDate != "" {
		params.Set("end_date", endDate)
	}

	var v SensorDataResponse
	if err := c.get(ctx, epSensorData, params, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// SetStatus sets the device online (enabled) or to standby.
func (c *Client) SetStatus(ctx context.Context, enabled bool) error {
	status := "0"
	if enabled {
		status = "1"
	}
	return c.post(ctx, epSetStatus, url.Values{"status": {status}}, nil)
}

// Water starts watering for the given duration in minutes. With no zones the
// controller waters all zones consecutively. A non-empty startTime
// ("yyyy-mm-dd hh:mm") takes precedence over the delay in minutes.
func (c *Client) Water(ctx context.Context, durationMinutes int, zones []int, delayMinutes int, startTime string) error {
	form := url.Values{"duration": {strconv.Itoa(durationMinutes)}}
	if len(zones) > 0 {
		form.Set("zones", zonesParam(zones))
	}
	if startTime != "" {
		form.Set("start_time", startTime)
	} else if delayMinutes > 0 {
		form.Set("delay", strconv.Itoa(delayMinutes))
	}
	return c.post(ctx, epWater, form, nil)
}

// StopWater stops watering on all zones. The NPA has no per-zone stop.
func (c *Client) StopWater(ctx context.Context) error {
	return c.post(ctx, epStopWater, url.Values{}, nil)
}

// NoWater suppresses watering for the given number of days.
func (c *Client) NoWater(ctx context.Context, days int) error {
	return c.post(ctx, epNoWater, url.Values{"days": {strconv.Itoa(days)}}, nil)
}

// SetMoisture overrides the moisture reading of the given zones.
func (c *Client) SetMoisture(ctx context.Context, moisture int, zones []int) error {
	form := url.Values{"moisture": {strconv.Itoa(moisture)}}
	if len(zones) > 0 {
		form.Set("zones", zonesParam(zones))
	}
	return c.post(ctx, epSetMoisture, form, nil)
}

// ReportWeather feeds locally observed weather (yyyy-mm-dd date) to Netro so
// that smart schedules can account for it.
func (c *Client) ReportWeather(ctx context.Context, date string, obs WeatherObservation) error {
	form := url.Values{"date": {date}}
	if obs.Condition != nil {
		form.Set("condition", strconv.Itoa(*obs.Condition))
	}
	setFloat := func(name string, v *float64) {
		if v != nil {
			form.Set(name, formatFloat(*v))
		}
	}
	setFloat("rain", obs.Rain)
	setFloat("rain_prob", obs.RainProb)
	setFloat("temp", obs.Temp)
	setFloat("t_min", obs.TMin)
	setFloat("t_max", obs.TMax)
	setFloat("t_dew", obs.TDew)
	setFloat("wind_speed", obs.WindSpeed)
	setFloat("humidity", obs.Humidity)
	setFloat("pressure", obs.Pressure)
	return c.post(ctx, epReportWeather, form, nil)
}
