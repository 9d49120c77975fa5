// Package runner drives the poll loops. Each registered device gets one
// goroutine that polls, waits out the device's effective interval and polls
// again, with exponential backoff retries on transient failures.
package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/netro-controller/internal/datadog"
	"github.com/thatsimonsguy/netro-controller/internal/history"
	"github.com/thatsimonsguy/netro-controller/internal/model"
	"github.com/thatsimonsguy/netro-controller/internal/netro"
)

// Pollable is one polled device. Both coordinator types satisfy it.
type Pollable interface {
	Poll(ctx context.Context) error
	EffectiveInterval() time.Duration
	SerialNumber() string
	DeviceName() string
	TokenRemaining() *int
}

type device struct {
	p       Pollable
	trigger chan struct{}
	healthy atomic.Bool
}

type Runner struct {
	hist *history.History

	mu      sync.RWMutex
	devices map[string]*device
}

func New(hist *history.History) *Runner {
	return &Runner{
		hist:    hist,
		devices: map[string]*device{},
	}
}

func (r *Runner) Add(p Pollable) {
	d := &device{p: p, trigger: make(chan struct{}, 1)}
	d.healthy.Store(true)

	r.mu.Lock()
	r.devices[p.SerialNumber()] = d
	r.mu.Unlock()
}

// Refresh requests an immediate out-of-cycle poll for the given device. It
// returns false when the serial is unknown. A refresh that arrives while one
// is already pending is coalesced.
func (r *Runner) Refresh(serial string) bool {
	r.mu.RLock()
	d, ok := r.devices[serial]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case d.trigger <- struct{}{}:
	default:
	}
	return true
}

// Healthy reports whether the device's last poll cycle succeeded.
func (r *Runner) Healthy(serial string) (bool, bool) {
	r.mu.RLock()
	d, ok := r.devices[serial]
	r.mu.RUnlock()
	if !ok {
		return false, false
	}
	return d.healthy.Load(), true
}

// Start launches one poll loop per registered device and blocks until ctx is
// done and all loops have drained.
func (r *Runner) Start(ctx context.Context) {
	r.mu.RLock()
	devices := make([]*device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, d := range devices {
		wg.Add(1)
		go func(d *device) {
			defer wg.Done()
			r.run(ctx, d)
		}(d)
	}
	wg.Wait()
}

func (r *Runner) run(ctx context.Context, d *device) {
	log.Info().
		Str("device", d.p.DeviceName()).
		Str("serial", d.p.SerialNumber()).
		Msg("Starting poll loop")

	r.pollOnce(ctx, d)

	for {
		// The interval is re-read every cycle so slowdown windows take
		// effect on the next wait, not the one after.
		timer := time.NewTimer(d.p.EffectiveInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Str("device", d.p.DeviceName()).Msg("Stopping poll loop")
			return
		case <-timer.C:
		case <-d.trigger:
			timer.Stop()
			log.Info().Str("device", d.p.DeviceName()).Msg("Manual refresh requested")
		}
		r.pollOnce(ctx, d)
	}
}

func (r *Runner) pollOnce(ctx context.Context, d *device) {
	started := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxElapsedTime = 2 * time.Minute

	err := backoff.Retry(func() error {
		err := d.p.Poll(ctx)
		if err == nil {
			return nil
		}
		// Burning more tokens will not fix a quota or auth problem.
		if netro.IsExceedLimit(err) || netro.IsInvalidKey(err) {
			return backoff.Permanent(err)
		}
		log.Warn().
			Err(err).
			Str("device", d.p.DeviceName()).
			Msg("Poll failed, retrying")
		return err
	}, backoff.WithContext(bo, ctx))

	d.healthy.Store(err == nil)
	r.record(d, started, err)

	if err != nil {
		log.Error().
			Err(err).
			Str("device", d.p.DeviceName()).
			Str("serial", d.p.SerialNumber()).
			Msg("Poll failed")
		return
	}

	log.Debug().
		Str("device", d.p.DeviceName()).
		Dur("elapsed", time.Since(started)).
		Msg("Poll complete")
}

func (r *Runner) record(d *device, started time.Time, pollErr error) {
	serial := d.p.SerialNumber()
	tags := []string{"serial:" + serial}

	datadog.Count("poll.total", 1, tags...)
	if pollErr != nil {
		datadog.Count("poll.failures", 1, tags...)
	}
	if remaining := d.p.TokenRemaining(); remaining != nil {
		datadog.Gauge("tokens.remaining", float64(*remaining), tags...)
	}

	factor := 1
	if sf, ok := d.p.(interface{ SlowdownFactor() int }); ok {
		factor = sf.SlowdownFactor()
	}

	if r.hist == nil {
		return
	}
	record := history.PollRecord{
		Serial:         serial,
		PolledAt:       started.UTC(),
		Success:        pollErr == nil,
		TokenRemaining: d.p.TokenRemaining(),
		SlowdownFactor: factor,
	}
	if pollErr != nil {
		record.Error = pollErr.Error()
	}
	if err := r.hist.RecordPoll(record); err != nil {
		log.Warn().Err(err).Str("serial", serial).Msg("Failed to record poll history")
	}

	if pollErr != nil {
		return
	}
	if mr, ok := d.p.(interface{ MoistureReadings() []model.Moisture }); ok {
		for _, m := range mr.MoistureReadings() {
			if err := r.hist.RecordMoisture(serial, m.Zone, m.Date, m.Moisture); err != nil {
				log.Warn().Err(err).Str("serial", serial).Msg("Failed to record moisture history")
				break
			}
		}
	}
}
