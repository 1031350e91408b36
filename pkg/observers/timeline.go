package observers

import (
	"sync"
	"time"

	"github.com/harunnryd/swara/pkg/metrics"
)

// TimelineObserver keeps a bounded, ordered event history per stream for
// post-call inspection.
type TimelineObserver struct {
	mu       sync.Mutex
	maxPer   int
	timeline map[string][]TimelineEntry
}

type TimelineEntry struct {
	Name string
	Time time.Time
}

func NewTimelineObserver(maxPerStream int) *TimelineObserver {
	if maxPerStream <= 0 {
		maxPerStream = 512
	}
	return &TimelineObserver{
		maxPer:   maxPerStream,
		timeline: make(map[string][]TimelineEntry),
	}
}

func (o *TimelineObserver) RecordEvent(ev metrics.MetricsEvent) {
	streamID := ev.Tags["stream_id"]
	if streamID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	entries := append(o.timeline[streamID], TimelineEntry{Name: ev.Name, Time: ev.Time})
	if len(entries) > o.maxPer {
		entries = entries[len(entries)-o.maxPer:]
	}
	o.timeline[streamID] = entries
}

// Timeline returns a copy of the entries recorded for one stream.
func (o *TimelineObserver) Timeline(streamID string) []TimelineEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]TimelineEntry(nil), o.timeline[streamID]...)
}
