package gate

import (
	"testing"
	"time"

	"trades-gate/internal/config"
	"trades-gate/internal/cost"
)

type fixedSampler struct {
	draws    []float64
	lastN    int
	lastSide string
}

func (f *fixedSampler) SampleTotalCostDraws(_ string, side string, _ float64, n int) []float64 {
	f.lastN = n
	f.lastSide = side
	out := make([]float64, n)
	for i := range out {
		out[i] = f.draws[i%len(f.draws)]
	}
	return out
}

func TestComputePWin(t *testing.T) {
	tests := []struct {
		name     string
		draws    []float64
		gross    float64
		notional float64
		want     float64
	}{
		{name: "cheap costs always win", draws: []float64{1.0}, gross: 5.0, notional: 100, want: 1.0},
		{name: "expensive costs always lose", draws: []float64{40, 45, 50, 55, 60}, gross: 1.0, notional: 100, want: 0.0},
		{name: "break even is not a win", draws: []float64{5.0}, gross: 5.0, notional: 100, want: 0.0},
		{name: "half the draws win", draws: []float64{1, 10}, gross: 5.0, notional: 100, want: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(config.GateConfig{WinThreshold: 0.8}, &fixedSampler{draws: tt.draws}, nil)
			if got := g.ComputePWin("BTC/USDT", tt.gross, tt.notional, 1000); got != tt.want {
				t.Fatalf("ComputePWin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputePWin_DefaultsSamplesAndSide(t *testing.T) {
	sampler := &fixedSampler{draws: []float64{1}}
	g := New(config.GateConfig{}, sampler, nil)

	g.ComputePWin("BTC/USDT", 5, 100, 0)

	if sampler.lastN != DefaultSamples {
		t.Fatalf("expected %d samples, got %d", DefaultSamples, sampler.lastN)
	}
	if sampler.lastSide != "buy" {
		t.Fatalf("expected default side buy, got %q", sampler.lastSide)
	}
}

func TestComputePWin_BoundedWithRealEstimator(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	est := cost.NewEstimator(cfg.Estimator, nil, cost.WithClock(func() time.Time { return now }), cost.WithSeed(3))
	for i := 0; i < 10; i++ {
		est.AddSample("BTC/USDT", "buy", 100, 0.1, 0.05, 0.05+float64(i)*0.05)
	}

	g := New(cfg.Gate, est, nil)
	pwin := g.ComputePWin("BTC/USDT", 0.3, 100, 500)

	if pwin < 0 || pwin > 1 {
		t.Fatalf("pwin out of range: %v", pwin)
	}
	if g.ComputePWin("BTC/USDT", 100, 100, 500) != 1 {
		t.Fatal("huge gross profit should always win")
	}
	if g.ComputePWin("BTC/USDT", -1, 100, 500) != 0 {
		t.Fatal("negative gross profit can never win")
	}
}

func TestWinFraction_Empty(t *testing.T) {
	if got := WinFraction(nil, 10, 100); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestAdmit(t *testing.T) {
	g := New(config.GateConfig{WinThreshold: 0.8}, nil, nil)
	if !g.Admit(0.8) || g.Admit(0.79) {
		t.Fatal("threshold comparison is inclusive")
	}
	if g.ComputePWin("BTC/USDT", 5, 100, 10) != 0 {
		t.Fatal("missing sampler yields zero probability")
	}
}
