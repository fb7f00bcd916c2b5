package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	uploadsTotal             atomic.Uint64
	generationStartedTotal   atomic.Uint64
	generationCompletedTotal atomic.Uint64
	generationFailedTotal    atomic.Uint64

	stageBuckets = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000}

	stagesMu sync.Mutex
	stages   = map[string]*stageMetrics{}
)

type stageMetrics struct {
	invocations atomic.Uint64
	failures    atomic.Uint64
	duration    *histogram
}

// IncUploads counts a job created by an upload.
func IncUploads() {
	uploadsTotal.Add(1)
}

// IncGenerationStarted increments the started counter.
func IncGenerationStarted() {
	generationStartedTotal.Add(1)
}

// IncGenerationCompleted increments the completed counter.
func IncGenerationCompleted() {
	generationCompletedTotal.Add(1)
}

// IncGenerationFailed increments the failed counter.
func IncGenerationFailed() {
	generationFailedTotal.Add(1)
}

// ObserveStage records one external stage invocation.
func ObserveStage(stage string, durationMs float64, failed bool) {
	if durationMs < 0 {
		durationMs = 0
	}
	m := stageFor(stage)
	m.invocations.Add(1)
	if failed {
		m.failures.Add(1)
	}
	m.duration.Observe(durationMs)
}

func stageFor(stage string) *stageMetrics {
	stagesMu.Lock()
	defer stagesMu.Unlock()
	m, ok := stages[stage]
	if !ok {
		m = &stageMetrics{duration: newHistogram(stageBuckets)}
		stages[stage] = m
	}
	return m
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "resume_uploads_total", "Total jobs created from uploads", uploadsTotal.Load())
	writeCounter(&buf, "resume_generation_started_total", "Total generations started", generationStartedTotal.Load())
	writeCounter(&buf, "resume_generation_completed_total", "Total generations completed", generationCompletedTotal.Load())
	writeCounter(&buf, "resume_generation_failed_total", "Total generations failed", generationFailedTotal.Load())

	stagesMu.Lock()
	names := make([]string, 0, len(stages))
	for name := range stages {
		names = append(names, name)
	}
	snapshot := make(map[string]*stageMetrics, len(stages))
	for k, v := range stages {
		snapshot[k] = v
	}
	stagesMu.Unlock()
	sort.Strings(names)

	if len(names) > 0 {
		buf.WriteString("# HELP stage_invocations_total External stage invocations\n# TYPE stage_invocations_total counter\n")
		for _, name := range names {
			fmt.Fprintf(&buf, "stage_invocations_total{stage=%q} %d\n", name, snapshot[name].invocations.Load())
		}
		buf.WriteString("# HELP stage_failures_total External stage failures\n# TYPE stage_failures_total counter\n")
		for _, name := range names {
			fmt.Fprintf(&buf, "stage_failures_total{stage=%q} %d\n", name, snapshot[name].failures.Load())
		}
		buf.WriteString("# HELP stage_duration_ms External stage duration in milliseconds\n# TYPE stage_duration_ms histogram\n")
		for _, name := range names {
			writeHistogramSeries(&buf, "stage_duration_ms", name, snapshot[name].duration.Snapshot())
		}
	}
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value in its smallest bucket; rendering accumulates.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogramSeries(buf *bytes.Buffer, name, stage string, snap histogramSnapshot) {
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{stage=%q,le=\"%s\"} %d\n", name, stage, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{stage=%q,le=\"+Inf\"} %d\n", name, stage, snap.count)
	fmt.Fprintf(buf, "%s_sum{stage=%q} %s\n", name, stage, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count{stage=%q} %d\n", name, stage, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
