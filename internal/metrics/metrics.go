package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

// Metrics bundles Prometheus instruments for the watch daemon.
type Metrics struct {
	registry       *prometheus.Registry
	appliesTotal   prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	chainsPerTable *prometheus.GaugeVec
	rulesPerTable  *prometheus.GaugeVec
}

// NewMetrics constructs a Metrics instance with an isolated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	appliesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "iptkeeper",
		Name:      "applies_total",
		Help:      "Total number of ruleset restores applied to the system.",
	})

	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "iptkeeper",
		Name:      "errors_total",
		Help:      "Total number of watch daemon errors by type.",
	}, []string{"type"})

	chainsPerTable := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "iptkeeper",
		Name:      "chains",
		Help:      "Number of chains in the last applied ruleset, per table.",
	}, []string{"table"})

	rulesPerTable := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "iptkeeper",
		Name:      "rules",
		Help:      "Number of rules in the last applied ruleset, per table.",
	}, []string{"table"})

	registry.MustRegister(appliesTotal, errorsTotal, chainsPerTable, rulesPerTable)

	return &Metrics{
		registry:       registry,
		appliesTotal:   appliesTotal,
		errorsTotal:    errorsTotal,
		chainsPerTable: chainsPerTable,
		rulesPerTable:  rulesPerTable,
	}
}

// IncrementApply counts a completed restore.
func (m *Metrics) IncrementApply() {
	m.appliesTotal.Inc()
}

// IncrementError increments the error counter for the provided type label.
func (m *Metrics) IncrementError(errorType string) {
	m.errorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveRuleSet records per-table chain and rule counts for the ruleset
// that was just applied.
func (m *Metrics) ObserveRuleSet(rs *iptables.RuleSet) {
	m.chainsPerTable.Reset()
	m.rulesPerTable.Reset()
	for _, table := range rs.Tables {
		rules := 0
		for _, chain := range table.Chains {
			rules += len(chain.Rules)
		}
		m.chainsPerTable.WithLabelValues(table.Name).Set(float64(len(table.Chains)))
		m.rulesPerTable.WithLabelValues(table.Name).Set(float64(rules))
	}
}

// Handler exposes the Prometheus scrape handler bound to the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
