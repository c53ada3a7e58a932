package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"splitvep/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("Counter.Write() error = %v", err)
	}
	if m.GetCounter() == nil {
		t.Fatalf("metric did not contain Counter value")
	}
	return m.GetCounter().GetValue()
}

func summaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	if !ok {
		t.Fatalf("SummaryVec.WithLabelValues(...) does not implement prometheus.Metric")
	}
	m := &dto.Metric{}
	if err := metric.Write(m); err != nil {
		t.Fatalf("Summary.Write() error = %v", err)
	}
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		jobName     string
		gatewayURL  string
		wantErr     bool
		wantJobName string
	}{
		{name: "missing gateway URL", jobName: "vep", wantErr: true},
		{name: "default job name", gatewayURL: "http://pushgateway:9091", wantJobName: "splitvep"},
		{name: "explicit job name", jobName: "chr21", gatewayURL: "http://pushgateway:9091", wantJobName: "chr21"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBackend(tt.jobName, tt.gatewayURL)
			if tt.wantErr {
				if err == nil || b != nil {
					t.Fatalf("NewBackend(%q, %q) = %v, %v; want error", tt.jobName, tt.gatewayURL, b, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackend: %v", err)
			}
			if b.jobName != tt.wantJobName {
				t.Fatalf("jobName = %q, want %q", b.jobName, tt.wantJobName)
			}
		})
	}
}

func TestIncCounterAndObserve(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("vep", "http://example.com")
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}

	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "merge", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 7, metrics.Labels{"kind": "rows"})
	b.IncCounter(metrics.RecordsTotal, 2, metrics.Labels{"kind": "rows"})
	b.IncCounter(metrics.BlocksTotal, 3, nil)
	b.IncCounter(metrics.BatchesTotal, 0.5, nil)
	b.IncCounter("unknown_metric", 10, metrics.Labels{"kind": "rows"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 1.5, metrics.Labels{"step": "merge", "status": "success"})
	b.ObserveHistogram("other", 9, metrics.Labels{"step": "merge", "status": "success"})

	if got := counterValue(t, b.stepCounter.WithLabelValues("merge", "success")); got != 1 {
		t.Fatalf("step counter = %v, want 1", got)
	}
	if got := counterValue(t, b.recordCounter.WithLabelValues("rows")); got != 9 {
		t.Fatalf("record counter = %v, want 9", got)
	}
	if got := counterValue(t, b.blockCounter); got != 3 {
		t.Fatalf("block counter = %v, want 3", got)
	}
	if got := counterValue(t, b.batchCounter); got != 0.5 {
		t.Fatalf("batch counter = %v, want 0.5", got)
	}
	if n, sum := summaryCountSum(t, b.stepDuration, "merge", "success"); n != 1 || sum != 1.5 {
		t.Fatalf("summary = %d/%v, want 1/1.5", n, sum)
	}
}

// TestNilCollectors drives a zero-value Backend; nothing may panic.
func TestNilCollectors(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "success"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{"kind": "rows"})
	b.IncCounter(metrics.BlocksTotal, 1, nil)
	b.IncCounter(metrics.BatchesTotal, 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
}

func TestFlush(t *testing.T) {
	t.Parallel()

	type pushed struct {
		method, path, body string
	}
	reqCh := make(chan pushed, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		body, _ := io.ReadAll(r.Body)
		reqCh <- pushed{method: r.Method, path: r.URL.Path, body: string(body)}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b, err := NewBackend("vep-run", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	b.IncCounter(metrics.RecordsTotal, 42, metrics.Labels{"kind": "rows"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	var got pushed
	select {
	case got = <-reqCh:
	default:
		t.Fatal("Flush did not reach the Pushgateway")
	}
	if got.method != http.MethodPut {
		t.Fatalf("method = %s, want PUT", got.method)
	}
	if !strings.Contains(got.path, "/job/vep-run") {
		t.Fatalf("path = %q, want job grouping key", got.path)
	}
	if len(got.body) == 0 {
		t.Fatal("push body is empty")
	}
}

func TestFlush_GatewayError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := NewBackend("vep", srv.URL)
	if err != nil {
		t.Fatalf("NewBackend: %v", err)
	}
	if err := b.Flush(); err == nil {
		t.Fatal("Flush should fail on a 500 from the gateway")
	}
}

func BenchmarkIncCounterRecord(b *testing.B) {
	backend, err := NewBackend("vep", "http://example.com")
	if err != nil {
		b.Fatalf("NewBackend: %v", err)
	}
	labels := metrics.Labels{"kind": "rows"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		backend.IncCounter(metrics.RecordsTotal, 1, labels)
	}
}
