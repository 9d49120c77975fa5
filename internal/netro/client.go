// Package netro is a client for the Netro Public API (NPA), documented at
// http://www.netrohome.com/en/shop/articles/10. One client is bound to one
// device key; coordinators never share a client.
package netro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://api.netrohome.com/npa/v1"
	DefaultTimeout = 30 * time.Second

	statusOK    = "OK"
	statusError = "ERROR"
)

// NPA endpoints.
const (
	epInfo          = "info.json"
	epSchedules     = "schedules.json"
	epMoistures     = "moistures.json"
	epSensorData    = "sensor_data.json"
	epSetStatus     = "set_status.json"
	epWater         = "water.json"
	epStopWater     = "stop_water.json"
	epNoWater       = "no_water.json"
	epSetMoisture   = "set_moisture.json"
	epReportWeather = "report_weather.json"
)

type Client struct {
	baseURL string
	key     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a client for one device key. The base URL is an explicit
// argument so tests and alternate deployments can point elsewhere.
func NewClient(baseURL, key string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     "netro-api",
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

// MaskKey hides most of a device key so it can be logged safely.
func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", len(key)-4)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, v any) error {
	params.Set("key", c.key)

	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	log.Debug().
		Str("endpoint", endpoint).
		Str("key", MaskKey(c.key)).
		Msg("netro GET")

	return c.do(req, v)
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, v any) error {
	form.Set("key", c.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Debug().
		Str("endpoint", endpoint).
		Str("key", MaskKey(c.key)).
		Msg("netro POST")

	return c.do(req, v)
}

func (c *Client) do(req *http.Request, v any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		res, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("netro request failed: %w", err)
		}
		defer res.Body.Close()

		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("could not read netro response: %w", err)
		}

		// The NPA reports application errors inside a 200 or 400 body, so
		// the envelope is checked before the HTTP status.
		var env struct {
			Status string `json:"status"`
			Errors []struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"errors"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("not a JSON object: %v", err)}
		}

		switch env.Status {
		case statusError:
			if len(env.Errors) == 0 {
				return nil, &MalformedResponseError{Reason: "ERROR status without errors block"}
			}
			return nil, &APIError{Code: env.Errors[0].Code, Message: env.Errors[0].Message}
		case statusOK:
		default:
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("unexpected status %q", env.Status)}
		}

		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("netro request failed with HTTP status %d", res.StatusCode)
		}

		if v != nil {
			if err := json.Unmarshal(body, v); err != nil {
				return nil, &MalformedResponseError{Reason: fmt.Sprintf("decoding body: %v", err)}
			}
		}
		return nil, nil
	})
	return err
}

func zonesParam(zones []int) string {
	parts := make([]string, len(zones))
	for i, z := range zones {
		parts[i] = strconv.Itoa(z)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
