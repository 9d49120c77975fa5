package runner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/netro-controller/internal/history"
	"github.com/thatsimonsguy/netro-controller/internal/model"
	"github.com/thatsimonsguy/netro-controller/internal/netro"
)

type fakePollable struct {
	serial string
	polls  atomic.Int32
	err    error
}

func (f *fakePollable) Poll(ctx context.Context) error {
	f.polls.Add(1)
	return f.err
}

func (f *fakePollable) EffectiveInterval() time.Duration { return time.Hour }
func (f *fakePollable) SerialNumber() string             { return f.serial }
func (f *fakePollable) DeviceName() string               { return "dev-" + f.serial }
func (f *fakePollable) TokenRemaining() *int             { return nil }

func TestRefreshUnknownSerial(t *testing.T) {
	r := New(nil)
	assert.False(t, r.Refresh("nope"))
}

func TestStartPollsImmediately(t *testing.T) {
	r := New(nil)
	p := &fakePollable{serial: "SN1"}
	r.Add(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.polls.Load() >= 1 }, time.Second, 10*time.Millisecond)

	healthy, ok := r.Healthy("SN1")
	require.True(t, ok)
	assert.True(t, healthy)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop after cancel")
	}
}

func TestRefreshTriggersPoll(t *testing.T) {
	r := New(nil)
	p := &fakePollable{serial: "SN1"}
	r.Add(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Start(ctx)

	require.Eventually(t, func() bool { return p.polls.Load() == 1 }, time.Second, 10*time.Millisecond)

	require.True(t, r.Refresh("SN1"))
	require.Eventually(t, func() bool { return p.polls.Load() == 2 }, time.Second, 10*time.Millisecond)
}

type moistureFake struct {
	fakePollable
}

func (m *moistureFake) MoistureReadings() []model.Moisture {
	return []model.Moisture{{Zone: 1, Moisture: 37, Date: "2023-05-07"}}
}

func TestPollRecordedInHistory(t *testing.T) {
	hist, err := history.Open(":memory:")
	require.NoError(t, err)
	defer hist.Close()

	r := New(hist)
	p := &moistureFake{fakePollable{serial: "SN1"}}
	r.Add(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Start(ctx)

	require.Eventually(t, func() bool {
		records, err := hist.RecentPolls("SN1", 10)
		return err == nil && len(records) == 1
	}, time.Second, 10*time.Millisecond)

	records, err := hist.RecentPolls("SN1", 10)
	require.NoError(t, err)
	assert.True(t, records[0].Success)
}

func TestQuotaErrorNotRetried(t *testing.T) {
	r := New(nil)
	p := &fakePollable{
		serial: "SN1",
		err:    &netro.APIError{Code: netro.CodeExceedLimit, Message: "Exceed query limit"},
	}
	r.Add(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Start(ctx)

	require.Eventually(t, func() bool { return p.polls.Load() == 1 }, time.Second, 10*time.Millisecond)
	// Give the backoff loop a chance to (wrongly) fire again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), p.polls.Load(), "quota errors must not be retried")

	healthy, ok := r.Healthy("SN1")
	require.True(t, ok)
	assert.False(t, healthy)
}
