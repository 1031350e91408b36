package recognizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/swara/pkg/adapters/asr"
	"github.com/harunnryd/swara/pkg/audio"
	"github.com/harunnryd/swara/pkg/errorsx"
	"github.com/harunnryd/swara/pkg/frames"
	"github.com/harunnryd/swara/pkg/logging"
	"github.com/harunnryd/swara/pkg/metrics"
	"github.com/harunnryd/swara/pkg/redact"
	"github.com/harunnryd/swara/pkg/resilience"
)

// SessionConfig tunes the ingest queue and backend breaker.
type SessionConfig struct {
	StreamID         string
	QueueSize        int
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 10 * time.Second
	}
	return c
}

// Session runs a Recognizer behind a bounded ingest queue so resample and
// decode work happens on a dedicated worker, off the caller's goroutine.
// Chunks are consumed strictly in arrival order. One Session per call.
type Session struct {
	cfg     SessionConfig
	rec     *Recognizer
	in      chan frames.AudioFrame
	out     chan frames.Frame
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
	logger  *slog.Logger

	// breakerOpen mirrors the last observed breaker state; touched only by
	// the worker goroutine.
	breakerOpen bool

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewSession(dec asr.Decoder, cfg Config, scfg SessionConfig) *Session {
	scfg = scfg.withDefaults()
	logger := logging.NewComponentLogger(slog.Default(), "recognizer")
	return &Session{
		cfg:     scfg,
		rec:     New(dec, cfg, logger),
		in:      make(chan frames.AudioFrame, scfg.QueueSize),
		out:     make(chan frames.Frame, scfg.QueueSize),
		done:    make(chan struct{}),
		breaker: resilience.NewCircuitBreaker(scfg.BreakerThreshold, scfg.BreakerCooldown),
		obs:     metrics.NoopObserver{},
		logger:  logger,
	}
}

func (s *Session) Name() string { return "vad_recognizer" }

func (s *Session) SetObserver(obs metrics.Observer) {
	if obs != nil {
		s.obs = obs
	}
}

func (s *Session) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("session already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.loop()
	return nil
}

// SendAudio enqueues one capture frame. It blocks when the queue is full so
// that no chunk is silently dropped, and unblocks on Close.
func (s *Session) SendAudio(f frames.AudioFrame) error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return errors.New("session not running")
	}
	ctx := s.ctx
	s.mu.Unlock()

	select {
	case s.in <- f:
		return nil
	case <-ctx.Done():
		return errorsx.Wrap(ctx.Err(), errorsx.ReasonASROverflow)
	}
}

func (s *Session) Results() <-chan frames.Frame { return s.out }

// Close stops the worker, waits for it to drain, and releases the decoder.
// Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return nil
}

func (s *Session) loop() {
	defer close(s.done)
	defer close(s.out)
	for {
		select {
		case <-s.ctx.Done():
			return
		case f := <-s.in:
			s.process(f)
		}
	}
}

func (s *Session) process(f frames.AudioFrame) {
	streamID := s.cfg.StreamID
	s.record(metrics.EventASRChunkIn, nil)

	if !s.breaker.Allow() {
		if !s.breakerOpen {
			s.breakerOpen = true
			s.logger.Warn("breaker_open", slog.String("stream_id", streamID))
			s.record(metrics.EventBreakerOpen, nil)
		}
		s.record(metrics.EventBreakerDenied, nil)
		frames.ReleaseAudioFrame(f)
		return
	}

	wasSpeaking := s.rec.Speaking()
	samples := audio.DecodePCM16(f.RawPayload(), f.Channels())
	res, err := s.rec.Push(samples, f.Rate())
	frames.ReleaseAudioFrame(f)
	if err != nil {
		// Per-chunk failure: drop the chunk, keep the stream alive.
		s.logger.Warn("chunk_dropped",
			slog.String("stream_id", streamID),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("error", err.Error()))
		s.record(metrics.EventASRChunkDropped, nil)
		s.breaker.OnError(err)
		return
	}
	s.breaker.OnSuccess()
	if s.breakerOpen {
		s.breakerOpen = false
		s.logger.Info("breaker_closed", slog.String("stream_id", streamID))
		s.record(metrics.EventBreakerClose, nil)
	}

	if !wasSpeaking && s.rec.Speaking() {
		s.record(metrics.EventSpeechStart, nil)
		s.emit(frames.NewControlFrame(streamID, time.Now().UnixNano(), frames.ControlSpeechStart, map[string]string{
			frames.MetaSource: "asr",
			frames.MetaReason: "onset",
		}))
	}
	if res == nil {
		return
	}

	meta := map[string]string{
		frames.MetaSource:  "asr",
		frames.MetaIsFinal: "false",
	}
	if res.IsFinal {
		meta[frames.MetaIsFinal] = "true"
	}
	tf := frames.NewTextFrame(streamID, time.Now().UnixNano(), res.Text, meta)
	s.emit(tf)

	if res.IsFinal {
		s.logger.Info("asr_final",
			slog.String("stream_id", streamID),
			slog.String("text", redact.Text(res.Text)))
		s.record(metrics.EventASRFinal, map[string]any{"text": redact.Text(res.Text)})
		s.record(metrics.EventSpeechEnd, nil)
		s.emit(frames.NewControlFrame(streamID, time.Now().UnixNano(), frames.ControlSpeechEnd, map[string]string{
			frames.MetaSource: "asr",
			frames.MetaReason: "endpoint",
		}))
	} else {
		s.record(metrics.EventASRInterim, nil)
	}
}

func (s *Session) emit(f frames.Frame) {
	select {
	case s.out <- f:
	default:
		s.logger.Warn("results_channel_full", slog.String("stream_id", s.cfg.StreamID))
	}
}

func (s *Session) record(name string, fields map[string]any) {
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   map[string]string{frames.MetaStreamID: s.cfg.StreamID, "component": "asr"},
		Fields: fields,
	})
}
