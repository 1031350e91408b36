package observers

import (
	"testing"
	"time"

	"github.com/harunnryd/swara/pkg/metrics"
)

func event(name, streamID string, at time.Time) metrics.MetricsEvent {
	return metrics.MetricsEvent{
		Name: name,
		Time: at,
		Tags: map[string]string{"stream_id": streamID},
	}
}

func TestLatencyObserverMeasuresFinalToFirstAudio(t *testing.T) {
	o := NewLatencyObserver(nil)
	base := time.Now()

	o.RecordEvent(event(metrics.EventASRFinal, "s1", base))
	o.RecordEvent(event(metrics.EventSynthAudio, "s1", base.Add(120*time.Millisecond)))
	// Later chunks of the same reply do not move the measurement.
	o.RecordEvent(event(metrics.EventSynthAudio, "s1", base.Add(400*time.Millisecond)))

	snap := o.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected one measurement, got %d", len(snap))
	}
	if snap[0].FinalToAudio != 120*time.Millisecond {
		t.Fatalf("unexpected latency %v", snap[0].FinalToAudio)
	}
}

func TestLatencyObserverResetsPerTurn(t *testing.T) {
	o := NewLatencyObserver(nil)
	base := time.Now()

	o.RecordEvent(event(metrics.EventASRFinal, "s1", base))
	o.RecordEvent(event(metrics.EventSynthAudio, "s1", base.Add(100*time.Millisecond)))
	o.RecordEvent(event(metrics.EventASRFinal, "s1", base.Add(time.Second)))
	o.RecordEvent(event(metrics.EventSynthAudio, "s1", base.Add(time.Second+50*time.Millisecond)))

	snap := o.Snapshot()
	if len(snap) != 1 || snap[0].FinalToAudio != 50*time.Millisecond {
		t.Fatalf("expected latest turn latency 50ms, got %+v", snap)
	}
}

func TestTimelineObserverBoundsHistory(t *testing.T) {
	o := NewTimelineObserver(3)
	base := time.Now()
	for i := 0; i < 5; i++ {
		o.RecordEvent(event(metrics.EventASRChunkIn, "s1", base.Add(time.Duration(i)*time.Millisecond)))
	}
	entries := o.Timeline("s1")
	if len(entries) != 3 {
		t.Fatalf("expected bounded history of 3, got %d", len(entries))
	}
	if !entries[0].Time.Before(entries[2].Time) {
		t.Fatalf("timeline out of order")
	}
	if o.Timeline("unknown") != nil && len(o.Timeline("unknown")) != 0 {
		t.Fatalf("unknown stream must be empty")
	}
}
