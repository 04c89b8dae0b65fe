package risk

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"trades-gate/internal/config"
	"trades-gate/internal/cost"
	"trades-gate/internal/gate"
	"trades-gate/internal/liquidity"
	"trades-gate/internal/store"
)

type stubValidator struct {
	verdict liquidity.Verdict
	calls   int
}

func (s *stubValidator) EnsureRoundTripAvailable(context.Context, string, string, float64, bool) liquidity.Verdict {
	s.calls++
	return s.verdict
}

type stubSampler struct {
	pct float64
}

func (s stubSampler) SampleTotalCostDraws(_, _ string, _ float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.pct
	}
	return out
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, cost.JournalEntry) error {
	return errors.New("disk full")
}

var fixedNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func testDeps(t *testing.T) (config.GateConfig, *cost.Estimator) {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	est := cost.NewEstimator(cfg.Estimator, nil, cost.WithClock(func() time.Time { return fixedNow }), cost.WithSeed(11))
	return cfg.Gate, est
}

func newTestManager(t *testing.T, verdict liquidity.Verdict, costPct float64, journal SettlementJournal) (*Manager, *stubValidator, *cost.Estimator) {
	t.Helper()
	gateCfg, est := testDeps(t)
	validator := &stubValidator{verdict: verdict}
	g := gate.New(gateCfg, stubSampler{pct: costPct}, nil)

	m, err := NewManager(gateCfg, validator, est, g, journal, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	m.now = func() time.Time { return fixedNow }
	return m, validator, est
}

var available = liquidity.Verdict{OK: true, Code: liquidity.CodeAvailable, Reason: "Round-trip available via 1 leg(s)"}

func TestNewManager_RequiresDependencies(t *testing.T) {
	gateCfg, est := testDeps(t)
	g := gate.New(gateCfg, est, nil)

	if _, err := NewManager(gateCfg, nil, est, g, nil, nil); err == nil {
		t.Fatal("expected error without validator")
	}
	if _, err := NewManager(gateCfg, &stubValidator{}, nil, g, nil, nil); err == nil {
		t.Fatal("expected error without cost model")
	}
	if _, err := NewManager(gateCfg, &stubValidator{}, est, nil, nil, nil); err == nil {
		t.Fatal("expected error without gate")
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		verdict    liquidity.Verdict
		costPct    float64
		proposal   Proposal
		wantStatus StatusType
		wantGated  bool
		wantPWin   float64
		wantNote   string
	}{
		{
			name:       "proceeds when path ok and costs low",
			verdict:    available,
			costPct:    1,
			proposal:   Proposal{FromAsset: "USDT", ToAsset: "BTC", Symbol: "btc/usdt", NotionalUSD: 100, ExpectedGrossProfitUSD: 5},
			wantStatus: StatusProceed,
			wantGated:  true,
			wantPWin:   1,
		},
		{
			name:       "denies when costs exceed profit",
			verdict:    available,
			costPct:    50,
			proposal:   Proposal{FromAsset: "USDT", ToAsset: "BTC", Symbol: "BTC/USDT", NotionalUSD: 100, ExpectedGrossProfitUSD: 1},
			wantStatus: StatusDeny,
			wantGated:  true,
			wantPWin:   0,
			wantNote:   "低于阈值",
		},
		{
			name:       "hard gate short-circuits probability",
			verdict:    liquidity.Verdict{OK: false, Code: liquidity.CodeNoPath, Reason: "No conversion path found for USDT->BTC"},
			costPct:    1,
			proposal:   Proposal{FromAsset: "USDT", ToAsset: "BTC", Symbol: "BTC/USDT", NotionalUSD: 100, ExpectedGrossProfitUSD: 5},
			wantStatus: StatusDeny,
			wantNote:   "No conversion path found",
		},
		{
			name:       "invalid notional",
			verdict:    available,
			costPct:    1,
			proposal:   Proposal{FromAsset: "USDT", ToAsset: "BTC", NotionalUSD: 0, ExpectedGrossProfitUSD: 5},
			wantStatus: StatusDeny,
			wantNote:   "名义金额无效",
		},
		{
			name:       "missing symbol and assets",
			verdict:    available,
			costPct:    1,
			proposal:   Proposal{NotionalUSD: 100},
			wantStatus: StatusDeny,
			wantNote:   "缺少交易对",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _ := newTestManager(t, tt.verdict, tt.costPct, nil)

			got := m.Evaluate(context.Background(), tt.proposal)

			if got.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s (notes %v)", got.Status, tt.wantStatus, got.Notes)
			}
			if got.Gated != tt.wantGated {
				t.Fatalf("gated = %v, want %v", got.Gated, tt.wantGated)
			}
			if got.PWin != tt.wantPWin {
				t.Fatalf("pwin = %v, want %v", got.PWin, tt.wantPWin)
			}
			if got.ProposalID == "" {
				t.Fatal("proposal id should be assigned")
			}
			if got.Threshold != 0.8 {
				t.Fatalf("threshold = %v", got.Threshold)
			}
			if tt.wantNote != "" && !strings.Contains(strings.Join(got.Notes, " "), tt.wantNote) {
				t.Fatalf("notes %v missing %q", got.Notes, tt.wantNote)
			}
		})
	}
}

func TestEvaluate_SkipsValidatorForInvalidProposal(t *testing.T) {
	m, validator, _ := newTestManager(t, available, 1, nil)

	m.Evaluate(context.Background(), Proposal{Symbol: "BTC/USDT", NotionalUSD: -5})

	if validator.calls != 0 {
		t.Fatalf("validator should not be called, got %d calls", validator.calls)
	}
}

func TestEvaluate_DerivesSymbolAndKeepsID(t *testing.T) {
	m, _, _ := newTestManager(t, available, 1, nil)

	got := m.Evaluate(context.Background(), Proposal{ID: "p-1", FromAsset: "usdt", ToAsset: "eth", NotionalUSD: 100, ExpectedGrossProfitUSD: 5})

	if got.Symbol != "ETH/USDT" {
		t.Fatalf("symbol = %q", got.Symbol)
	}
	if got.ProposalID != "p-1" {
		t.Fatalf("proposal id = %q", got.ProposalID)
	}
	if got.Estimate == nil || got.Estimate.Source != cost.SourceFallback {
		t.Fatalf("expected fallback estimate, got %+v", got.Estimate)
	}
}

func TestSettle_RecordsIntoEstimatorAndJournal(t *testing.T) {
	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer st.Close()

	journal, err := cost.NewJournal(st.DB(), nil)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}

	m, _, est := newTestManager(t, available, 1, journal)
	gross := 3.0

	sample, err := m.Settle(context.Background(), Settlement{
		Symbol: "btc/usdt", NotionalUSD: 1000, FeePct: 0.1, SpreadPct: 0.05, SlippagePct: 0.02, GrossProfitUSD: &gross,
	})
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if sample.Side != "buy" || !sample.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected sample %+v", sample)
	}
	if got := len(est.Samples("BTC/USDT")); got != 1 {
		t.Fatalf("estimator samples = %d", got)
	}

	var replayed []cost.JournalEntry
	if _, err := journal.Replay(context.Background(), time.Time{}, func(e cost.JournalEntry) error {
		replayed = append(replayed, e)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 || replayed[0].GrossProfitUSD == nil || *replayed[0].GrossProfitUSD != 3 {
		t.Fatalf("unexpected journal contents %+v", replayed)
	}
}

func TestSettle_JournalFailureKeepsSample(t *testing.T) {
	m, _, est := newTestManager(t, available, 1, failingJournal{})

	_, err := m.Settle(context.Background(), Settlement{Symbol: "ETH/USDT", Side: "sell", FeePct: 0.1})
	if err == nil {
		t.Fatal("expected journal error")
	}
	if got := len(est.Samples("ETH/USDT")); got != 1 {
		t.Fatalf("estimator samples = %d", got)
	}

	if _, err := m.Settle(context.Background(), Settlement{}); err == nil {
		t.Fatal("expected error for missing symbol")
	}
}
