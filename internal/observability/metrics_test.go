package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := newLatencyWindow(8)
	w.Observe("voice_first_audio", 500)
	w.Observe("voice_first_audio", 700)
	w.Observe("voice_first_audio", 900)
	w.ObserveIndicator("offline_timeout")
	w.ObserveIndicator("offline_timeout")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Stages) != 1 {
		t.Fatalf("len(Stages) = %d, want 1", len(snap.Stages))
	}
	s := snap.Stages[0]
	if s.Samples != 3 || s.LastMS != 900 || s.P50MS != 700 {
		t.Fatalf("stage = %+v, want samples=3 last=900 p50=700", s)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 1500 {
		t.Fatalf("TargetP95MS = %.2f, want 1500", s.TargetP95MS)
	}
	if len(snap.Indicators) != 1 || snap.Indicators[0].Count != 2 {
		t.Fatalf("Indicators = %+v, want one with count 2", snap.Indicators)
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	w := newLatencyWindow(2)
	for _, v := range []float64{1, 2, 3} {
		w.Observe("analysis_online", v)
	}
	s := w.Snapshot().Stages[0]
	if s.Samples != 2 || s.AvgMS != 2.5 {
		t.Fatalf("stage = %+v, want samples=2 avg=2.5", s)
	}
}

func TestObserveAnalysisCounts(t *testing.T) {
	m := NewMetricsWithRegistry("test", prometheus.NewRegistry())
	m.ObserveAnalysis("offline", "timeout", 25*time.Second)
	m.ObserveAnalysis("online", "ok", time.Second)

	if got := testutil.ToFloat64(m.AnalysisOutcomes.WithLabelValues("offline", "timeout")); got != 1 {
		t.Fatalf("offline/timeout = %v, want 1", got)
	}
	snap := m.LatencySnapshot()
	if len(snap.Stages) != 1 || snap.Stages[0].Samples != 2 {
		t.Fatalf("snapshot = %+v, want analysis_total with 2 samples", snap)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveAnalysis("online", "ok", time.Second)
	m.ObserveVoiceEvent("connect")
	m.ObserveStage("voice_connect", time.Second)
	if snap := m.LatencySnapshot(); len(snap.Stages) != 0 {
		t.Fatalf("nil snapshot stages = %d, want 0", len(snap.Stages))
	}
}
