// Package coordinator holds the periodically polled state of Netro devices:
// one SensorCoordinator per soil sensor and one ControllerCoordinator per
// irrigation controller, the latter owning the per-zone reconciliation of
// flat schedule and moisture lists.
package coordinator

import (
	"fmt"
	"time"

	"github.com/thatsimonsguy/netro-controller/internal/netro"
)

// netroTimeLayout is how the NPA serializes timestamps: bare ISO-8601 in UTC.
const netroTimeLayout = "2006-01-02T15:04:05"

// Meta is the parsed quota/identity block from an NPA response. A timestamp
// that does not parse fails the whole poll rather than silently nulling out.
type Meta struct {
	Version        string    `json:"version"`
	TokenLimit     int       `json:"token_limit"`
	TokenRemaining int       `json:"token_remaining"`
	TID            string    `json:"tid"`
	LastActive     time.Time `json:"last_active"`
	Time           time.Time `json:"time"`
	TokenReset     time.Time `json:"token_reset"`
}

func parseMeta(m netro.Meta) (*Meta, error) {
	lastActive, err := parseNetroTime(m.LastActive)
	if err != nil {
		return nil, fmt.Errorf("meta last_active: %w", err)
	}
	at, err := parseNetroTime(m.Time)
	if err != nil {
		return nil, fmt.Errorf("meta time: %w", err)
	}
	tokenReset, err := parseNetroTime(m.TokenReset)
	if err != nil {
		return nil, fmt.Errorf("meta token_reset: %w", err)
	}

	return &Meta{
		Version:        m.Version,
		TokenLimit:     m.TokenLimit,
		TokenRemaining: m.TokenRemaining,
		TID:            m.TID,
		LastActive:     lastActive,
		Time:           at,
		TokenReset:     tokenReset,
	}, nil
}

func parseNetroTime(s string) (time.Time, error) {
	if t, err := time.ParseInLocation(netroTimeLayout, s, time.UTC); err == nil {
		return t, nil
	}
	// Some NPA deployments include an explicit offset.
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid netro timestamp %q", s)
	}
	return t, nil
}
