package recognizer

import (
	"context"
	"testing"
	"time"

	"github.com/harunnryd/swara/pkg/audio"
	"github.com/harunnryd/swara/pkg/frames"
	"github.com/harunnryd/swara/pkg/metrics"
)

func pcmChunk(amp float32, n int) []byte {
	return audio.EncodePCM16(chunk(amp, n))
}

func sendFrame(t *testing.T, s *Session, pcm []byte) {
	t.Helper()
	f := frames.NewAudioFrame("stream-1", time.Now().UnixNano(), pcm, 16000, 1, nil)
	if err := s.SendAudio(f); err != nil {
		t.Fatalf("send audio: %v", err)
	}
}

func collectUntilFinal(t *testing.T, s *Session) frames.TextFrame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-s.Results():
			if !ok {
				t.Fatalf("results channel closed before final")
			}
			if tf, isText := f.(frames.TextFrame); isText && tf.IsFinal() {
				return tf
			}
		case <-deadline:
			t.Fatalf("timed out waiting for final result")
		}
	}
}

func TestSessionEmitsFinalTextFrame(t *testing.T) {
	dec := &fakeDecoder{hypothesis: "selamat pagi"}
	s := NewSession(dec, testConfig(), SessionConfig{StreamID: "stream-1"})
	obs := metrics.NewMemoryObserver()
	s.SetObserver(obs)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	sendFrame(t, s, pcmChunk(0.5, 160))
	for i := 0; i < testConfig().EndpointSilenceChunks; i++ {
		sendFrame(t, s, pcmChunk(0.001, 160))
	}

	tf := collectUntilFinal(t, s)
	if tf.Text() != "selamat pagi" {
		t.Fatalf("unexpected final text %q", tf.Text())
	}
	if tf.Meta()[frames.MetaStreamID] != "stream-1" {
		t.Fatalf("missing stream id on final frame")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(obs.Named(metrics.EventASRFinal)) != 1 {
		t.Fatalf("expected one asr_final event, got %d", len(obs.Named(metrics.EventASRFinal)))
	}
}

func waitForEvent(t *testing.T, obs *metrics.MemoryObserver, name string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(obs.Named(name)) > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s event", name)
}

func TestSessionEmitsSpeechStartAtOnset(t *testing.T) {
	dec := &fakeDecoder{hypothesis: "halo"}
	s := NewSession(dec, testConfig(), SessionConfig{StreamID: "stream-1"})
	obs := metrics.NewMemoryObserver()
	s.SetObserver(obs)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	sendFrame(t, s, pcmChunk(0.5, 160))
	for i := 0; i < testConfig().EndpointSilenceChunks; i++ {
		sendFrame(t, s, pcmChunk(0.001, 160))
	}

	var sawStart bool
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-s.Results():
			if !ok {
				t.Fatalf("results channel closed before final")
			}
			if cf, isControl := f.(frames.ControlFrame); isControl && cf.Code() == frames.ControlSpeechStart {
				sawStart = true
			}
			if tf, isText := f.(frames.TextFrame); isText && tf.IsFinal() {
				if !sawStart {
					t.Fatalf("final text arrived without a preceding speech_start")
				}
				if len(obs.Named(metrics.EventSpeechStart)) != 1 {
					t.Fatalf("expected one speech_start event, got %d", len(obs.Named(metrics.EventSpeechStart)))
				}
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for final result")
		}
	}
}

func TestSessionRecordsBreakerTransitions(t *testing.T) {
	dec := &fakeDecoder{hypothesis: "kembali"}
	s := NewSession(dec, testConfig(), SessionConfig{
		StreamID:         "stream-1",
		BreakerThreshold: 1,
		BreakerCooldown:  200 * time.Millisecond,
	})
	obs := metrics.NewMemoryObserver()
	s.SetObserver(obs)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	// One failing chunk trips the breaker; the next is denied.
	dec.acceptErr = context.DeadlineExceeded
	sendFrame(t, s, pcmChunk(0.5, 160))
	waitForEvent(t, obs, metrics.EventASRChunkDropped)
	sendFrame(t, s, pcmChunk(0.5, 160))
	waitForEvent(t, obs, metrics.EventBreakerOpen)
	waitForEvent(t, obs, metrics.EventBreakerDenied)

	// After the cooldown a successful chunk closes it again.
	time.Sleep(250 * time.Millisecond)
	sendFrame(t, s, pcmChunk(0.5, 160))
	waitForEvent(t, obs, metrics.EventBreakerClose)
}

func TestSessionRecyclesPooledFrames(t *testing.T) {
	dec := &fakeDecoder{hypothesis: "dari pool"}
	s := NewSession(dec, testConfig(), SessionConfig{StreamID: "stream-1"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	gen := frames.NewPTSGen()
	send := func(pcm []byte) {
		f := frames.NewAudioFrameFromPool("stream-1", gen.Next("stream-1"), pcm, 16000, 1, nil)
		if err := s.SendAudio(f); err != nil {
			t.Fatalf("send pooled audio: %v", err)
		}
	}
	send(pcmChunk(0.5, 160))
	for i := 0; i < testConfig().EndpointSilenceChunks; i++ {
		send(pcmChunk(0.001, 160))
	}

	tf := collectUntilFinal(t, s)
	if tf.Text() != "dari pool" {
		t.Fatalf("unexpected final text %q", tf.Text())
	}
}

func TestSessionSurvivesDecoderError(t *testing.T) {
	dec := &fakeDecoder{hypothesis: "tetap jalan"}
	s := NewSession(dec, testConfig(), SessionConfig{StreamID: "stream-1"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Close()

	dec.acceptErr = context.DeadlineExceeded
	sendFrame(t, s, pcmChunk(0.5, 160))

	// The failing chunk is dropped; the stream keeps going.
	sendFrame(t, s, pcmChunk(0.5, 160))
	for i := 0; i < testConfig().EndpointSilenceChunks; i++ {
		sendFrame(t, s, pcmChunk(0.001, 160))
	}

	tf := collectUntilFinal(t, s)
	if tf.Text() != "tetap jalan" {
		t.Fatalf("unexpected final text %q", tf.Text())
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	dec := &fakeDecoder{}
	s := NewSession(dec, testConfig(), SessionConfig{StreamID: "stream-1"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.SendAudio(frames.NewAudioFrame("stream-1", 0, pcmChunk(0.5, 160), 16000, 1, nil)); err == nil {
		t.Fatalf("expected send after close to fail")
	}
}
