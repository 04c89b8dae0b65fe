package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "trades_gate"

// Collector 汇总准入闸门的 Prometheus 指标，使用独立注册表。
// nil *Collector 的方法均为空操作。
type Collector struct {
	registry *prometheus.Registry

	admissions       *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	pwin             prometheus.Histogram
	confidence       *prometheus.GaugeVec
	estimateTotalPct *prometheus.GaugeVec
	bookFailures     *prometheus.CounterVec
	tickerRefresh    *prometheus.CounterVec
}

// New 创建指标集合并注册到新的注册表。
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Admission decisions by status and validator reason code",
		}, []string{"status", "code"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Realized cost samples recorded, by symbol",
		}, []string{"symbol"}),
		pwin: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pwin",
			Help:      "Monte Carlo win probability of evaluated proposals",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		confidence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "estimate_confidence",
			Help:      "Confidence of the latest cost estimate per symbol",
		}, []string{"symbol", "source"}),
		estimateTotalPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "estimate_total_cost_pct",
			Help:      "Latest buffered total cost estimate in percent per symbol",
		}, []string{"symbol"}),
		bookFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orderbook_fetch_failures_total",
			Help:      "Live order book fetches that failed or timed out",
		}, []string{"pair"}),
		tickerRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticker_refresh_total",
			Help:      "Ticker cache refresh rounds by result",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		c.admissions,
		c.settlements,
		c.pwin,
		c.confidence,
		c.estimateTotalPct,
		c.bookFailures,
		c.tickerRefresh,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry 返回底层注册表。
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveAdmission 记录一次准入判定。
func (c *Collector) ObserveAdmission(status, code string, pwin float64, gated bool) {
	if c == nil {
		return
	}
	c.admissions.WithLabelValues(status, code).Inc()
	if gated {
		c.pwin.Observe(pwin)
	}
}

// ObserveEstimate 记录最新成本估计。
func (c *Collector) ObserveEstimate(symbol, source string, confidence, totalPct float64) {
	if c == nil {
		return
	}
	c.confidence.WithLabelValues(symbol, source).Set(confidence)
	c.estimateTotalPct.WithLabelValues(symbol).Set(totalPct)
}

// ObserveSettlement 记录一次结算样本。
func (c *Collector) ObserveSettlement(symbol string) {
	if c == nil {
		return
	}
	c.settlements.WithLabelValues(symbol).Inc()
}

// OrderBookFetchFailed 记录订单簿拉取失败。
func (c *Collector) OrderBookFetchFailed(pair string) {
	if c == nil {
		return
	}
	c.bookFailures.WithLabelValues(pair).Inc()
}

// ObserveTickerRefresh 记录一轮报价刷新结果。
func (c *Collector) ObserveTickerRefresh(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "partial_failure"
	}
	c.tickerRefresh.WithLabelValues(result).Inc()
}
