package metrics

import "time"

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Well-known event names emitted by the audio core.
const (
	EventASRChunkIn      = "asr_chunk_in"
	EventASRChunkDropped = "asr_chunk_dropped"
	EventASRInterim      = "asr_interim"
	EventASRFinal        = "asr_final"
	EventSpeechStart     = "speech_start"
	EventSpeechEnd       = "speech_end"
	EventSynthRequest    = "synth_request"
	EventSynthAudio      = "synth_audio"
	EventSynthError      = "synth_error"
	EventRecorderFlush   = "recorder_flush"
	EventBreakerOpen     = "breaker_open"
	EventBreakerClose    = "breaker_close"
	EventBreakerDenied   = "breaker_denied"
)
