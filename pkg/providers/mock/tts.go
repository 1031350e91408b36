package mock

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/harunnryd/swara/pkg/adapters/tts"
	"github.com/harunnryd/swara/pkg/audio"
	"github.com/harunnryd/swara/pkg/frames"
)

type TTSConfig struct {
	StreamID   string
	SampleRate int
	// ToneHz is the pitch of the generated sine wave.
	ToneHz float64
	// MSPerChar scales synthetic audio duration with text length.
	MSPerChar int
}

// TTS synthesizes a sine tone whose duration tracks the text length, so
// downstream plumbing sees realistic frame sizes without a network hop.
// Frames carry generated timestamps because synthesis here outruns real time.
type TTS struct {
	cfg TTSConfig
	out chan frames.Frame
	pts *frames.PTSGen

	mu      sync.Mutex
	started bool
}

func NewTTS(cfg TTSConfig) *TTS {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.ToneHz == 0 {
		cfg.ToneHz = 440
	}
	if cfg.MSPerChar == 0 {
		cfg.MSPerChar = 20
	}
	return &TTS{cfg: cfg, out: make(chan frames.Frame, 256), pts: frames.NewPTSGen()}
}

func (s *TTS) Name() string { return "mock_tts" }

func (s *TTS) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("tts already started")
	}
	s.started = true
	return nil
}

func (s *TTS) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *TTS) SendText(text string) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("tts not started")
	}
	if text == "" {
		return nil
	}

	n := s.cfg.SampleRate * len(text) * s.cfg.MSPerChar / 1000
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*s.cfg.ToneHz*float64(i)/float64(s.cfg.SampleRate)))
	}
	meta := map[string]string{
		frames.MetaStreamID: s.cfg.StreamID,
		frames.MetaSource:   "mock",
	}
	f := frames.NewAudioFrame(s.cfg.StreamID, s.pts.Next(s.cfg.StreamID), audio.EncodePCM16(samples), s.cfg.SampleRate, 1, meta)
	select {
	case s.out <- f:
	default:
	}
	cf := frames.NewControlFrame(s.cfg.StreamID, s.pts.Next(s.cfg.StreamID), frames.ControlSynthDone, meta)
	select {
	case s.out <- cf:
	default:
	}
	return nil
}

func (s *TTS) Flush() {
drain:
	for {
		select {
		case <-s.out:
		default:
			break drain
		}
	}
}

func (s *TTS) Results() <-chan frames.Frame { return s.out }

var _ tts.StreamingTTS = (*TTS)(nil)
