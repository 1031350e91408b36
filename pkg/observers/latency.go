package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/swara/pkg/metrics"
)

// LatencyObserver measures, per stream, the time from the final transcript
// to the first synthesized audio chunk of the reply.
type LatencyObserver struct {
	mu     sync.Mutex
	traces map[string]*trace
	log    *slog.Logger
}

type trace struct {
	asrFinal   time.Time
	synthFirst time.Time
}

// TurnLatency is one completed measurement.
type TurnLatency struct {
	StreamID     string
	FinalToAudio time.Duration
}

func NewLatencyObserver(log *slog.Logger) *LatencyObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LatencyObserver{
		traces: make(map[string]*trace),
		log:    log,
	}
}

func (o *LatencyObserver) RecordEvent(ev metrics.MetricsEvent) {
	streamID := ev.Tags["stream_id"]
	if streamID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.traces[streamID]
	if t == nil {
		t = &trace{}
		o.traces[streamID] = t
	}
	switch ev.Name {
	case metrics.EventASRFinal:
		// A new turn starts; prior partial measurement is stale.
		t.asrFinal = ev.Time
		t.synthFirst = time.Time{}
	case metrics.EventSynthAudio:
		if !t.asrFinal.IsZero() && t.synthFirst.IsZero() {
			t.synthFirst = ev.Time
			o.log.Info("turn_latency",
				slog.String("stream_id", streamID),
				slog.Duration("final_to_audio", t.synthFirst.Sub(t.asrFinal)))
		}
	}
}

// Snapshot returns completed measurements for all streams.
func (o *LatencyObserver) Snapshot() []TurnLatency {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]TurnLatency, 0, len(o.traces))
	for id, t := range o.traces {
		if t.asrFinal.IsZero() || t.synthFirst.IsZero() {
			continue
		}
		out = append(out, TurnLatency{
			StreamID:     id,
			FinalToAudio: t.synthFirst.Sub(t.asrFinal),
		})
	}
	return out
}
