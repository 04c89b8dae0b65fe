package cost

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trades-gate/internal/config"
	"trades-gate/internal/store"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	journal, err := NewJournal(st.DB(), nil)
	require.NoError(t, err)
	return journal
}

func TestNewJournal_RequiresDB(t *testing.T) {
	_, err := NewJournal(nil, nil)
	require.Error(t, err)
}

func TestJournal_AppendAndReplay(t *testing.T) {
	ctx := context.Background()
	journal := newTestJournal(t)

	gross := 4.5
	entries := []JournalEntry{
		{Sample: NewCostSample(baseTime.Add(-2*time.Hour), "btc/usdt", "buy", 1000, 0.1, 0.05, 0.02), GrossProfitUSD: &gross},
		{Sample: NewCostSample(baseTime.Add(-1*time.Hour), "ETH/USDT", "sell", 500, math.NaN(), 0.03, 0.01)},
		{Sample: NewCostSample(baseTime.Add(-30*time.Hour), "SOL/USDT", "buy", 200, 0.2, 0.1, 0.1)},
	}
	for _, e := range entries {
		require.NoError(t, journal.Append(ctx, e))
	}

	var replayed []JournalEntry
	count, err := journal.Replay(ctx, time.Time{}, func(e JournalEntry) error {
		replayed = append(replayed, e)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// 按时间排序。
	assert.Equal(t, "SOL/USDT", replayed[0].Sample.Symbol)
	assert.Equal(t, "BTC/USDT", replayed[1].Sample.Symbol)
	require.NotNil(t, replayed[1].GrossProfitUSD)
	assert.Equal(t, 4.5, *replayed[1].GrossProfitUSD)
	assert.True(t, replayed[1].Sample.Timestamp.Equal(baseTime.Add(-2*time.Hour)))
	assert.True(t, math.IsNaN(replayed[2].Sample.FeePct))
	assert.Nil(t, replayed[2].GrossProfitUSD)
}

func TestJournal_ReplaySinceAndCallbackError(t *testing.T) {
	ctx := context.Background()
	journal := newTestJournal(t)

	for i := 0; i < 4; i++ {
		s := NewCostSample(baseTime.Add(time.Duration(i)*time.Hour), "BTC/USDT", "buy", 100, 0.1, 0.05, 0.02)
		require.NoError(t, journal.Append(ctx, JournalEntry{Sample: s}))
	}

	count, err := journal.Replay(ctx, baseTime.Add(2*time.Hour), func(JournalEntry) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	boom := errors.New("boom")
	count, err = journal.Replay(ctx, time.Time{}, func(JournalEntry) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count)
}

func TestRebuild_RestoresEstimatorWindows(t *testing.T) {
	ctx := context.Background()
	journal := newTestJournal(t)

	for i := 0; i < 6; i++ {
		s := NewCostSample(baseTime.Add(-time.Duration(i)*time.Minute), "BTC/USDT", "buy", 1000, 0.1, 0.05, 0.05)
		require.NoError(t, journal.Append(ctx, JournalEntry{Sample: s}))
	}

	est, _ := newTestEstimator(t)
	count, err := Rebuild(ctx, journal, est, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	samples := est.Samples("BTC/USDT")
	require.Len(t, samples, 6)
	assert.True(t, samples[0].Timestamp.Before(samples[5].Timestamp))

	got := est.EstimateCost("BTC/USDT", "buy", 1000)
	assert.Equal(t, SourceSymbol, got.Source)
	assert.InDelta(t, 0.2*1.1, got.TotalPct, 1e-9)
}
