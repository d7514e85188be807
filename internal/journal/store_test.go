package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/probenode/internal/probe"
)

func testReading(channel string, raw int64, minutesAgo int) probe.Reading {
	return probe.Reading{
		Channel: channel,
		Raw:     raw,
		Value:   float64(raw) * 0.5,
		Unit:    "C",
		At:      time.Now().Add(-time.Duration(minutesAgo) * time.Minute),
	}
}

// storeCases runs the same behavior checks against every Store.
func storeCases(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("WriteAndQuery", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.WriteReadings(ctx, []probe.Reading{
			testReading("temperature", 40, 10),
			testReading("temperature", 42, 5),
			testReading("water_level", 512, 5),
		}))

		results, total, err := store.Query(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, results, 3)
		assert.False(t, results[0].At.Before(results[2].At), "newest first")
	})

	t.Run("FilterChannel", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.WriteReadings(ctx, []probe.Reading{
			testReading("temperature", 40, 10),
			testReading("water_level", 512, 5),
		}))

		results, total, err := store.Query(ctx, QueryOptions{Channel: "water_level"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, results, 1)
		assert.Equal(t, int64(512), results[0].Raw)
	})

	t.Run("TimeWindow", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.WriteReadings(ctx, []probe.Reading{
			testReading("temperature", 1, 120),
			testReading("temperature", 2, 30),
			testReading("temperature", 3, 1),
		}))

		since := time.Now().Add(-time.Hour)
		until := time.Now().Add(-10 * time.Minute)
		results, total, err := store.Query(ctx, QueryOptions{Since: &since, Until: &until})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, results, 1)
		assert.Equal(t, int64(2), results[0].Raw)
	})

	t.Run("Limit", func(t *testing.T) {
		store := newStore(t)
		var batch []probe.Reading
		for i := 0; i < 5; i++ {
			batch = append(batch, testReading("temperature", int64(i), 5-i))
		}
		require.NoError(t, store.WriteReadings(ctx, batch))

		results, total, err := store.Query(ctx, QueryOptions{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		require.Len(t, results, 2)
		assert.Equal(t, int64(4), results[0].Raw)
		assert.Equal(t, int64(3), results[1].Raw)
	})

	t.Run("SummarizeWholeWindow", func(t *testing.T) {
		store := newStore(t)
		base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		const n = 8280 // 23h at a 10s interval, well past MaxLimit
		batch := make([]probe.Reading, 0, 500)
		for i := 0; i < n; i++ {
			batch = append(batch, probe.Reading{
				Channel: "temperature", Raw: int64(i), Value: float64(i), Unit: "C",
				At: base.Add(time.Duration(i) * 10 * time.Second),
			})
			if len(batch) == cap(batch) || i == n-1 {
				require.NoError(t, store.WriteReadings(ctx, batch))
				batch = batch[:0]
			}
		}
		require.NoError(t, store.WriteReadings(ctx, []probe.Reading{
			{Channel: "water_level", Raw: 512, Value: 512, At: base.Add(time.Hour)},
			{Channel: "temperature", Raw: -1, Value: -1000, Unit: "C", At: base.Add(-time.Minute)},
		}))

		summary, err := store.Summarize(ctx, base, base.Add(24*time.Hour))
		require.NoError(t, err)
		require.Len(t, summary.Channels, 2)

		temp := summary.Channels["temperature"]
		assert.Equal(t, n, temp.Count)
		assert.Equal(t, "C", temp.Unit)
		assert.Equal(t, 0.0, temp.Min, "reading before the window is excluded")
		assert.Equal(t, float64(n-1), temp.Max)
		assert.InDelta(t, float64(n-1)/2, temp.Mean, 1e-9)
		assert.True(t, temp.First.Equal(base))
		assert.True(t, temp.Last.Equal(base.Add(time.Duration(n-1)*10*time.Second)))
		assert.Equal(t, TrendRising, temp.Trend)

		water := summary.Channels["water_level"]
		assert.Equal(t, 1, water.Count)
		assert.Equal(t, TrendSteady, water.Trend)
	})

	t.Run("SummarizeEmpty", func(t *testing.T) {
		store := newStore(t)
		summary, err := store.Summarize(ctx, time.Now().Add(-time.Hour), time.Now())
		require.NoError(t, err)
		assert.NotNil(t, summary.Channels)
		assert.Empty(t, summary.Channels)
	})

	t.Run("EmptyWrite", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.WriteReadings(ctx, nil))
		results, total, err := store.Query(ctx, DefaultQueryOptions())
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, results)
	})
}

func TestMemoryStore(t *testing.T) {
	storeCases(t, func(t *testing.T) Store { return NewMemoryStore() })
}

func TestSQLiteStore(t *testing.T) {
	storeCases(t, func(t *testing.T) Store {
		store, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteStore_RoundTripsFields(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	in := probe.Reading{Channel: "temperature", Raw: 100, Value: 0.001525878, Unit: "C", At: time.Unix(1700000000, 42)}
	require.NoError(t, store.WriteReadings(ctx, []probe.Reading{in}))

	out, _, err := store.Query(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in.Channel, out[0].Channel)
	assert.Equal(t, in.Raw, out[0].Raw)
	assert.InDelta(t, in.Value, out[0].Value, 1e-12)
	assert.Equal(t, in.Unit, out[0].Unit)
	assert.True(t, in.At.Equal(out[0].At))
}
