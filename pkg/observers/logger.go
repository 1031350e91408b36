// Package observers holds metrics.Observer implementations that turn raw
// pipeline events into logs and derived measurements.
package observers

import (
	"log/slog"

	"github.com/harunnryd/swara/pkg/metrics"
)

// LoggerObserver mirrors every event into structured logs at debug level,
// with errors promoted to warn.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	attrs := make([]any, 0, 2*len(ev.Tags)+2)
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	if ev.Value != 0 {
		attrs = append(attrs, slog.Float64("value", ev.Value))
	}
	switch ev.Name {
	case metrics.EventSynthError, metrics.EventASRChunkDropped, metrics.EventBreakerOpen:
		o.log.Warn(ev.Name, attrs...)
	default:
		o.log.Debug(ev.Name, attrs...)
	}
}
