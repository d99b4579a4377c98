// internal/metrics/collector.go
package metrics

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricType представляет тип метрики
type MetricType string

const (
	SaleFetchCounterType    MetricType = "sale_fetch_counter"
	SaleFetchDurationType   MetricType = "sale_fetch_duration"
	SaleRaisedType          MetricType = "sale_raised"
	SaleParticipantsType    MetricType = "sale_participants"
	TransactionCounterType  MetricType = "transaction_counter"
	TransactionDurationType MetricType = "transaction_duration"
	WebsocketClientsType    MetricType = "websocket_clients"
)

const namespace = "presale"

// Collector owns the storefront metrics. It satisfies the reader and
// coordinator metric hooks.
type Collector struct {
	fetchTotal       *prometheus.CounterVec
	fetchDuration    prometheus.Histogram
	raised           prometheus.Gauge
	participants     prometheus.Gauge
	txTotal          *prometheus.CounterVec
	txDuration       *prometheus.HistogramVec
	websocketClients prometheus.Gauge
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sale_fetch_total",
				Help:      "Sale state fetch cycles by result",
			},
			[]string{"result"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sale_fetch_duration_seconds",
				Help:      "Duration of a sale state fetch cycle",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
			},
		),
		raised: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sale_raised_wei",
			Help:      "Total raised by the sale in wei",
		}),
		participants: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sale_participants",
			Help:      "Number of distinct sale participants",
		}),
		txTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Transaction ticket transitions",
			},
			[]string{"action", "status"},
		),
		txDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Time from submission to a settled ticket",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"action"},
		),
		websocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket view subscribers",
		}),
	}

	metricsMap := map[MetricType]prometheus.Collector{
		SaleFetchCounterType:    c.fetchTotal,
		SaleFetchDurationType:   c.fetchDuration,
		SaleRaisedType:          c.raised,
		SaleParticipantsType:    c.participants,
		TransactionCounterType:  c.txTotal,
		TransactionDurationType: c.txDuration,
		WebsocketClientsType:    c.websocketClients,
	}
	for _, metric := range metricsMap {
		if err := reg.Register(metric); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// FetchObserved records one fetch cycle. Skipped cycles have no duration.
func (c *Collector) FetchObserved(result string, elapsed time.Duration) {
	c.fetchTotal.WithLabelValues(result).Inc()
	if elapsed > 0 {
		c.fetchDuration.Observe(elapsed.Seconds())
	}
}

func (c *Collector) SaleObserved(raisedWei *uint256.Int, participants uint64) {
	if raisedWei != nil {
		f, _ := new(big.Float).SetInt(raisedWei.ToBig()).Float64()
		c.raised.Set(f)
	}
	c.participants.Set(float64(participants))
}

// TransactionObserved counts a ticket transition. Settled tickets also
// record their duration.
func (c *Collector) TransactionObserved(action, status string, elapsed time.Duration) {
	c.txTotal.WithLabelValues(action, status).Inc()
	if elapsed > 0 {
		c.txDuration.WithLabelValues(action).Observe(elapsed.Seconds())
	}
}

func (c *Collector) ClientConnected() {
	c.websocketClients.Inc()
}

func (c *Collector) ClientDisconnected() {
	c.websocketClients.Dec()
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.fetchTotal.Reset()
	c.txTotal.Reset()
	c.txDuration.Reset()
	c.raised.Set(0)
	c.participants.Set(0)
	c.websocketClients.Set(0)
}
