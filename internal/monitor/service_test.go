package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trades-gate/internal/config"
	"trades-gate/internal/cost"
	"trades-gate/internal/liquidity"
	"trades-gate/internal/risk"
	"trades-gate/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc, err := NewService(st, nil)
	require.NoError(t, err)
	return svc
}

func TestService_RecordAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	proposal := risk.Proposal{ID: "p-1", FromAsset: "USDT", ToAsset: "BTC", NotionalUSD: 250, ExpectedGrossProfitUSD: 4}
	result := risk.EvaluationResult{
		ProposalID:  "p-1",
		Symbol:      "BTC/USDT",
		Status:      risk.StatusProceed,
		Verdict:     liquidity.Verdict{OK: true, Code: liquidity.CodeAvailable},
		PWin:        0.93,
		Gated:       true,
		Threshold:   0.8,
		EvaluatedAt: at,
	}
	svc.RecordAdmission(ctx, proposal, result)

	sample := cost.NewCostSample(at.Add(time.Minute), "BTC/USDT", "buy", 250, 0.1, 0.05, 0.02)
	svc.RecordSettlement(ctx, risk.Settlement{ProposalID: "p-1", Symbol: "BTC/USDT"}, sample)
	svc.RecordError(ctx, "行情刷新失败", errors.New("timeout"), map[string]interface{}{"pair": "ETH/USDT"})

	events, err := svc.ListEvents(ctx, EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, EventSettlement, events[1].Type)
	assert.Equal(t, EventAdmission, events[2].Type)
	assert.True(t, events[2].Timestamp.Equal(at))

	raw, ok := events[2].Payload.(json.RawMessage)
	require.True(t, ok)
	var payload AdmissionPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, "p-1", payload.Result.ProposalID)
	assert.Equal(t, 0.93, payload.Result.PWin)
	assert.Equal(t, liquidity.CodeAvailable, payload.Result.Verdict.Code)
}

func TestService_ListEventsFilters(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		res := risk.EvaluationResult{ProposalID: "p", Status: risk.StatusDeny, EvaluatedAt: base.Add(time.Duration(i) * time.Minute)}
		svc.RecordAdmission(ctx, risk.Proposal{ID: "p"}, res)
	}
	svc.RecordError(ctx, "boom", nil, nil)

	admissions, err := svc.ListEvents(ctx, EventQuery{Type: EventAdmission, Limit: 2})
	require.NoError(t, err)
	require.Len(t, admissions, 2)
	assert.True(t, admissions[0].Timestamp.Equal(base.Add(4*time.Minute)))

	recent, err := svc.ListEvents(ctx, EventQuery{Type: EventAdmission, Since: base.Add(3 * time.Minute)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	errs, err := svc.ListEvents(ctx, EventQuery{Type: EventError})
	require.NoError(t, err)
	require.Len(t, errs, 1)

	var payload ErrorPayload
	require.NoError(t, json.Unmarshal(errs[0].Payload.(json.RawMessage), &payload))
	assert.Equal(t, "boom", payload.Message)
	assert.Empty(t, payload.Error)
}

func TestService_ListEventsSinceWithinSameSecond(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	since := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	svc.RecordAdmission(ctx, risk.Proposal{ID: "early"}, risk.EvaluationResult{ProposalID: "early", EvaluatedAt: since.Add(-time.Millisecond)})
	svc.RecordAdmission(ctx, risk.Proposal{ID: "a"}, risk.EvaluationResult{ProposalID: "a", EvaluatedAt: since.Add(500 * time.Millisecond)})
	svc.RecordAdmission(ctx, risk.Proposal{ID: "b"}, risk.EvaluationResult{ProposalID: "b", EvaluatedAt: since.Add(150 * time.Millisecond)})

	events, err := svc.ListEvents(ctx, EventQuery{Since: since})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.True(t, events[0].Timestamp.Equal(since.Add(150*time.Millisecond)))
	assert.True(t, events[1].Timestamp.Equal(since.Add(500*time.Millisecond)))

	exact, err := svc.ListEvents(ctx, EventQuery{Since: since.Add(500 * time.Millisecond)})
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, time.UTC, exact[0].Timestamp.Location())
}
