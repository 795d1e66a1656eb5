package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iptkeeper/iptkeeper/internal/iptables"
)

const sampleSave = "*filter\n:INPUT ACCEPT [0:0]\n:FORWARD ACCEPT [0:0]\n:OUTPUT ACCEPT [0:0]\n-A INPUT -j ACCEPT\n-A INPUT -j DROP\nCOMMIT\n*nat\n:PREROUTING ACCEPT [0:0]\n:INPUT ACCEPT [0:0]\n:OUTPUT ACCEPT [0:0]\n:POSTROUTING ACCEPT [0:0]\nCOMMIT\n"

func sampleRuleSet(t *testing.T) *iptables.RuleSet {
	t.Helper()
	rs, err := iptables.ParseString(sampleSave, nil)
	if err != nil {
		t.Fatalf("failed to parse sample ruleset: %v", err)
	}
	return rs
}

func TestNewMetricsRegistersInstruments(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	if m == nil {
		t.Fatal("expected metrics instance")
	}

	// Prime the vectors so every family appears in Gather results.
	m.IncrementError("bootstrap")
	m.ObserveRuleSet(sampleRuleSet(t))
	m.IncrementApply()

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	names := map[string]struct{}{}
	for _, family := range families {
		names[family.GetName()] = struct{}{}
	}

	for _, expected := range []string{"iptkeeper_applies_total", "iptkeeper_errors_total", "iptkeeper_chains", "iptkeeper_rules"} {
		if _, ok := names[expected]; !ok {
			t.Fatalf("expected metric %q to be registered", expected)
		}
	}
}

func TestMetricsIncrementApply(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.IncrementApply()
	m.IncrementApply()

	if got := testutil.ToFloat64(m.appliesTotal); got != 2 {
		t.Fatalf("expected applies counter to be 2, got %v", got)
	}
}

func TestMetricsIncrementError(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.IncrementError("parse")
	m.IncrementError("parse")
	m.IncrementError("restore")

	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("parse")); got != 2 {
		t.Fatalf("expected parse counter to be 2, got %v", got)
	}

	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("restore")); got != 1 {
		t.Fatalf("expected restore counter to be 1, got %v", got)
	}

	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("stat")); got != 0 {
		t.Fatalf("expected stat counter to be 0, got %v", got)
	}
}

func TestMetricsObserveRuleSet(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveRuleSet(sampleRuleSet(t))

	if got := testutil.ToFloat64(m.chainsPerTable.WithLabelValues("filter")); got != 3 {
		t.Fatalf("expected 3 filter chains, got %v", got)
	}
	if got := testutil.ToFloat64(m.rulesPerTable.WithLabelValues("filter")); got != 2 {
		t.Fatalf("expected 2 filter rules, got %v", got)
	}
	if got := testutil.ToFloat64(m.chainsPerTable.WithLabelValues("nat")); got != 4 {
		t.Fatalf("expected 4 nat chains, got %v", got)
	}
	if got := testutil.ToFloat64(m.rulesPerTable.WithLabelValues("nat")); got != 0 {
		t.Fatalf("expected 0 nat rules, got %v", got)
	}
}

func TestMetricsObserveRuleSetResetsStaleTables(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveRuleSet(sampleRuleSet(t))

	filterOnly, err := iptables.ParseString("*filter\n:INPUT ACCEPT [0:0]\n:FORWARD ACCEPT [0:0]\n:OUTPUT ACCEPT [0:0]\nCOMMIT\n", nil)
	if err != nil {
		t.Fatalf("failed to parse ruleset: %v", err)
	}
	m.ObserveRuleSet(filterOnly)

	if got := testutil.ToFloat64(m.chainsPerTable.WithLabelValues("nat")); got != 0 {
		t.Fatalf("expected stale nat gauge to reset to 0, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.IncrementApply()
	m.IncrementError("parse")
	m.IncrementError("parse")
	m.ObserveRuleSet(sampleRuleSet(t))

	handler := m.Handler()
	if handler == nil {
		t.Fatal("expected handler to be non-nil")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, snippet := range []string{
		"# HELP iptkeeper_applies_total",
		"iptkeeper_applies_total 1",
		"iptkeeper_errors_total{type=\"parse\"} 2",
		"iptkeeper_chains{table=\"filter\"} 3",
		"iptkeeper_rules{table=\"filter\"} 2",
	} {
		if !strings.Contains(body, snippet) {
			t.Fatalf("expected metrics output to contain %q, got %q", snippet, body)
		}
	}
}
