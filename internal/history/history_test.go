package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRecordAndReadPolls(t *testing.T) {
	h := openTestHistory(t)

	remaining := 1800
	first := PollRecord{
		Serial:         "SN1",
		PolledAt:       time.Date(2023, 5, 7, 12, 0, 0, 0, time.UTC),
		Success:        true,
		TokenRemaining: &remaining,
		SlowdownFactor: 1,
	}
	require.NoError(t, h.RecordPoll(first))
	require.NoError(t, h.RecordPoll(PollRecord{
		Serial:         "SN1",
		PolledAt:       time.Date(2023, 5, 7, 12, 2, 0, 0, time.UTC),
		Success:        false,
		Error:          "netro API error 3: Exceed query limit",
		SlowdownFactor: 4,
	}))
	require.NoError(t, h.RecordPoll(PollRecord{
		Serial:   "OTHER",
		PolledAt: time.Date(2023, 5, 7, 12, 3, 0, 0, time.UTC),
		Success:  true,
	}))

	records, err := h.RecentPolls("SN1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2, "other devices excluded")

	assert.False(t, records[0].Success, "most recent first")
	assert.Equal(t, "netro API error 3: Exceed query limit", records[0].Error)
	assert.Equal(t, 4, records[0].SlowdownFactor)
	assert.Nil(t, records[0].TokenRemaining)

	assert.True(t, records[1].Success)
	require.NotNil(t, records[1].TokenRemaining)
	assert.Equal(t, 1800, *records[1].TokenRemaining)
	assert.Equal(t, first.PolledAt, records[1].PolledAt)
}

func TestRecentPollsLimit(t *testing.T) {
	h := openTestHistory(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, h.RecordPoll(PollRecord{
			Serial:   "SN1",
			PolledAt: time.Now().UTC(),
			Success:  true,
		}))
	}

	records, err := h.RecentPolls("SN1", 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRecordCommand(t *testing.T) {
	h := openTestHistory(t)
	require.NoError(t, h.RecordCommand("SN1", "water", "duration=15 zones=[1]", true))
	require.NoError(t, h.RecordCommand("SN1", "stop_water", "", false))
}

func TestRecordMoistureUpserts(t *testing.T) {
	h := openTestHistory(t)

	require.NoError(t, h.RecordMoisture("SN1", 1, "2023-05-07", 37))
	require.NoError(t, h.RecordMoisture("SN1", 1, "2023-05-07", 39))
	require.NoError(t, h.RecordMoisture("SN1", 2, "2023-05-07", 55))

	var count int
	var moisture float64
	require.NoError(t, h.db.QueryRow(`SELECT COUNT(*) FROM moisture_readings`).Scan(&count))
	assert.Equal(t, 2, count, "same zone and date overwrites")
	require.NoError(t, h.db.QueryRow(
		`SELECT moisture FROM moisture_readings WHERE serial = ? AND zone = 1`, "SN1").Scan(&moisture))
	assert.Equal(t, 39.0, moisture)
}
