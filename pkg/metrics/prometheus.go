package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace 所有导出指标的前缀
const Namespace = "lxp_classifier"

// 分类结果标签
const (
	VerdictAccept = "accept"
	VerdictReject = "reject"
)

// Collector 导出分类相关的Prometheus指标
type Collector struct {
	payloads     *prometheus.CounterVec
	ruleMatches  *prometheus.CounterVec
	alerts       prometheus.Counter
	payloadBytes prometheus.Histogram
}

// NewCollector 创建指标并注册到reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		payloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "payloads_total",
			Help:      "Number of classified payloads by verdict.",
		}, []string{"verdict"}),
		ruleMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rule_matches_total",
			Help:      "Number of payloads accepted by each rule.",
		}, []string{"rule"}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_total",
			Help:      "Number of payloads whose action is alert.",
		}),
		payloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "payload_bytes",
			Help:      "Size of classified payloads.",
			Buckets:   prometheus.ExponentialBuckets(8, 2, 10),
		}),
	}
	reg.MustRegister(c.payloads, c.ruleMatches, c.alerts, c.payloadBytes)
	return c
}

// ObserveVerdict 记录一次分类结果
func (c *Collector) ObserveVerdict(accepted bool, rule string, size int) {
	if c == nil {
		return
	}
	c.payloadBytes.Observe(float64(size))
	if !accepted {
		c.payloads.WithLabelValues(VerdictReject).Inc()
		return
	}
	c.payloads.WithLabelValues(VerdictAccept).Inc()
	c.ruleMatches.WithLabelValues(rule).Inc()
}

// ObserveAlert 记录一次告警
func (c *Collector) ObserveAlert() {
	if c == nil {
		return
	}
	c.alerts.Inc()
}
