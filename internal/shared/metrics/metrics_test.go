package metrics

import (
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("expected per-bucket counts [1 1], got %v", snap.counts)
	}
	if snap.sum != 555 {
		t.Fatalf("expected sum 555, got %v", snap.sum)
	}
}

func TestRenderIncludesStageSeries(t *testing.T) {
	ObserveStage("parse", 120, false)
	ObserveStage("parse", 80, true)
	IncUploads()

	out := Render()
	for _, want := range []string{
		"resume_uploads_total",
		`stage_invocations_total{stage="parse"}`,
		`stage_failures_total{stage="parse"}`,
		`stage_duration_ms_bucket{stage="parse",le="+Inf"}`,
		`stage_duration_ms_count{stage="parse"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q\n%s", want, out)
		}
	}
}
