package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// findMetric locates a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func TestRecordEnrichment(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordEnrichment(ctx, "translate", 120*time.Millisecond)
	m.RecordEnrichment(ctx, "hints", 80*time.Millisecond)

	rm := collect(t, reader)
	met := findMetric(rm, "multivox.enrichment.duration")
	if met == nil {
		t.Fatal("enrichment duration metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) != 2 {
		t.Fatalf("got %d data points, want one per operation", len(hist.DataPoints))
	}
}

func TestSessionLifecycleMetrics(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionStarted(ctx, "live")
	m.SessionStarted(ctx, "step_by_step")
	m.SessionEnded(ctx, "live", 42*time.Second)

	rm := collect(t, reader)

	started := findMetric(rm, "multivox.sessions.started")
	if started == nil {
		t.Fatal("sessions started metric not found")
	}
	sum, ok := started.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("sessions started is not a sum")
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("sessions started = %d, want 2", total)
	}

	active := findMetric(rm, "multivox.active_sessions")
	if active == nil {
		t.Fatal("active sessions metric not found")
	}
	gauge, ok := active.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("active sessions is not a sum")
	}
	total = 0
	for _, dp := range gauge.DataPoints {
		total += dp.Value
	}
	if total != 1 {
		t.Errorf("active sessions = %d, want 1 after one session ended", total)
	}

	dur := findMetric(rm, "multivox.session.duration")
	if dur == nil {
		t.Fatal("session duration metric not found")
	}
}

func TestRecordMessage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordMessage(ctx, "audio", "user")
	m.RecordMessage(ctx, "audio", "user")
	m.RecordMessage(ctx, "hint", "assistant")

	rm := collect(t, reader)
	met := findMetric(rm, "multivox.messages")
	if met == nil {
		t.Fatal("messages metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("messages is not a sum")
	}
	if len(sum.DataPoints) != 2 {
		t.Errorf("got %d attribute sets, want 2", len(sum.DataPoints))
	}
}

func TestRecordProviderRequestAndError(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "gemini", "live", "ok")
	m.RecordProviderError(ctx, "whisper", "asr")

	rm := collect(t, reader)
	if findMetric(rm, "multivox.provider.requests") == nil {
		t.Error("provider requests metric not found")
	}
	if findMetric(rm, "multivox.provider.errors") == nil {
		t.Error("provider errors metric not found")
	}
}
