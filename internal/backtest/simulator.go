package backtest

// Simulator 累计被闸门放行交易的实际净收益，模拟账户权益变化。
type Simulator struct {
	initialEquity float64
	equity        float64

	equityHistory []float64
	returnHistory []float64
	tradeCount    int
}

func NewSimulator(initialEquity float64) *Simulator {
	if initialEquity <= 0 {
		initialEquity = 10000
	}
	return &Simulator{
		initialEquity: initialEquity,
		equity:        initialEquity,
		equityHistory: []float64{initialEquity},
	}
}

// Apply 计入一笔已放行交易的净收益(美元)。
func (s *Simulator) Apply(netUSD float64) {
	prev := s.equity
	s.equity = prev + netUSD
	if prev != 0 {
		s.returnHistory = append(s.returnHistory, netUSD/prev)
	}
	s.equityHistory = append(s.equityHistory, s.equity)
	s.tradeCount++
}

func (s *Simulator) Equity() float64 {
	return s.equity
}

func (s *Simulator) TradeCount() int {
	return s.tradeCount
}

func (s *Simulator) EquityHistory() []float64 {
	return append([]float64(nil), s.equityHistory...)
}

func (s *Simulator) ReturnHistory() []float64 {
	return append([]float64(nil), s.returnHistory...)
}
