package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveMutation(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.ObserveMutation("insert", nil, time.Millisecond)
	m.ObserveMutation("insert", nil, time.Millisecond)
	m.ObserveMutation("delete", errors.New("disk full"), time.Millisecond)

	if got := testutil.ToFloat64(m.mutations.WithLabelValues("insert", "success")); got != 2 {
		t.Errorf("insert/success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.mutations.WithLabelValues("delete", "error")); got != 1 {
		t.Errorf("delete/error = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.duration); got != 2 {
		t.Errorf("expected 2 histogram series, got %d", got)
	}
}

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, _ := New(reg)

	m.ObserveRequest("GET", 200)
	m.ObserveRequest("POST", 400)

	expected := `
# HELP inventar_http_requests_total HTTP requests served, by method and status code.
# TYPE inventar_http_requests_total counter
inventar_http_requests_total{code="200",method="GET"} 1
inventar_http_requests_total{code="400",method="POST"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "inventar_http_requests_total"); err != nil {
		t.Error(err)
	}
}

func TestGaugeFunc(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, _ := New(reg)

	depth := 3.0
	if err := m.GaugeFunc("queue_depth", "Pending jobs.", func() float64 { return depth }); err != nil {
		t.Fatalf("GaugeFunc: %v", err)
	}
	// Registering the same gauge again is not an error.
	if err := m.GaugeFunc("queue_depth", "Pending jobs.", func() float64 { return depth }); err != nil {
		t.Fatalf("second GaugeFunc: %v", err)
	}

	expected := `
# HELP inventar_queue_depth Pending jobs.
# TYPE inventar_queue_depth gauge
inventar_queue_depth 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "inventar_queue_depth"); err != nil {
		t.Error(err)
	}
}

func TestNewTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(reg)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}

	a.ObserveRequest("GET", 200)
	b.ObserveRequest("GET", 200)
	if got := testutil.ToFloat64(a.requests.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("expected shared counter at 2, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveMutation("insert", nil, time.Second)
	m.ObserveRequest("GET", 200)
	if err := m.GaugeFunc("x", "y", func() float64 { return 0 }); err != nil {
		t.Error(err)
	}
}
