// Package agent wires the audio core of one call together: capture audio
// fans out to the recognizer and the recording's user channel, final
// transcripts go through a responder, and synthesized audio fans out to the
// recording's agent channel and the playback output.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/harunnryd/swara/pkg/adapters/tts"
	"github.com/harunnryd/swara/pkg/errorsx"
	"github.com/harunnryd/swara/pkg/frames"
	"github.com/harunnryd/swara/pkg/logging"
	"github.com/harunnryd/swara/pkg/metrics"
	"github.com/harunnryd/swara/pkg/recognizer"
	"github.com/harunnryd/swara/pkg/recorder"
	"github.com/harunnryd/swara/pkg/redact"
)

// Responder turns one recognized utterance into the agent's reply text. An
// empty reply skips synthesis for that utterance.
type Responder interface {
	Respond(ctx context.Context, text string) (string, error)
}

type Config struct {
	SessionID string
	// Recording may be nil to run without an artifact.
	Recording *recorder.Recorder
}

// Session owns the per-call pipeline. One Session per call; not reusable.
type Session struct {
	cfg       Config
	rec       *recognizer.Session
	synth     tts.StreamingTTS
	responder Responder
	out       chan frames.Frame
	logger    *slog.Logger
	obs       metrics.Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
	path    string
}

func NewSession(cfg Config, rec *recognizer.Session, synth tts.StreamingTTS, responder Responder) *Session {
	return &Session{
		cfg:       cfg,
		rec:       rec,
		synth:     synth,
		responder: responder,
		out:       make(chan frames.Frame, 256),
		logger:    logging.NewComponentLogger(slog.Default(), "agent"),
		obs:       metrics.NoopObserver{},
	}
}

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

	if s.cfg.Recording != nil {
		path, err := s.cfg.Recording.Start(s.cfg.SessionID)
		if err != nil {
			return err
		}
		s.path = path
	}
	if err := s.synth.Start(ctx); err != nil {
		if s.cfg.Recording != nil {
			_, _ = s.cfg.Recording.Stop()
		}
		return err
	}
	if err := s.rec.Start(ctx); err != nil {
		_ = s.synth.Close()
		if s.cfg.Recording != nil {
			_, _ = s.cfg.Recording.Stop()
		}
		return err
	}

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.transcriptPump()
	go s.synthesisPump()

	s.logger.Info("session_started",
		slog.String("session_id", s.cfg.SessionID),
		slog.String("recording_path", s.path))
	return nil
}

// PushAudio feeds one capture frame into the call: the recording's user
// channel first, then the recognizer queue.
func (s *Session) PushAudio(f frames.AudioFrame) error {
	if s.cfg.Recording != nil {
		s.cfg.Recording.Write(recorder.ChannelUser, f.RawPayload())
	}
	return s.rec.SendAudio(f)
}

// Output carries synthesized audio and control frames toward playback.
func (s *Session) Output() <-chan frames.Frame { return s.out }

// RecordingPath returns the artifact location, empty when recording is off.
func (s *Session) RecordingPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

// Close tears the pipeline down in dependency order and returns the
// recording path. Idempotent.
func (s *Session) Close() (string, error) {
	s.mu.Lock()
	if !s.started || s.closed {
		s.mu.Unlock()
		return "", nil
	}
	s.closed = true
	s.mu.Unlock()

	_ = s.rec.Close()
	_ = s.synth.Close()
	s.cancel()
	s.wg.Wait()
	close(s.out)

	var path string
	var err error
	if s.cfg.Recording != nil {
		path, err = s.cfg.Recording.Stop()
	}
	s.logger.Info("session_closed",
		slog.String("session_id", s.cfg.SessionID),
		slog.String("recording_path", path))
	return path, err
}

// transcriptPump consumes recognizer output; each final transcript becomes
// one responder turn and one synthesis request.
func (s *Session) transcriptPump() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case f, ok := <-s.rec.Results():
			if !ok {
				return
			}
			tf, isText := f.(frames.TextFrame)
			if !isText || !tf.IsFinal() {
				continue
			}
			s.handleFinal(tf.Text())
		}
	}
}

func (s *Session) handleFinal(text string) {
	reply, err := s.responder.Respond(s.ctx, text)
	if err != nil {
		s.logger.Error("responder_failed",
			slog.String("session_id", s.cfg.SessionID),
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("error", err.Error()))
		return
	}
	if reply == "" {
		return
	}
	s.logger.Info("agent_reply",
		slog.String("session_id", s.cfg.SessionID),
		slog.String("text", redact.Text(reply)))
	if err := s.synth.SendText(reply); err != nil {
		s.logger.Error("synthesis_request_failed",
			slog.String("session_id", s.cfg.SessionID),
			slog.String("error", err.Error()))
	}
}

// synthesisPump tees synthesized audio into the recording's agent channel
// and forwards everything to the playback output.
func (s *Session) synthesisPump() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case f, ok := <-s.synth.Results():
			if !ok {
				return
			}
			if af, isAudio := f.(frames.AudioFrame); isAudio && s.cfg.Recording != nil {
				s.cfg.Recording.Write(recorder.ChannelAgent, af.RawPayload())
			}
			select {
			case s.out <- f:
			default:
				s.logger.Warn("output_buffer_full", slog.String("session_id", s.cfg.SessionID))
			}
		}
	}
}
