package recorder

import (
	"encoding/binary"
	"os"
	"testing"
	"time"

	"github.com/harunnryd/swara/pkg/audio"
	"github.com/harunnryd/swara/pkg/metrics"
)

func testRecorderConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		OutputDir:    t.TempDir(),
		SampleRate:   16000,
		FrameSamples: 4,
		// Long enough that only the final flush in Stop runs; tests stay
		// deterministic.
		FlushInterval: time.Hour,
	}
}

// parseWav reads back the container and returns its header and PCM data.
func parseWav(t *testing.T, path string) (wavHeader, []byte) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open wav: %v", err)
	}
	defer f.Close()

	var h wavHeader
	if err := binary.Read(f, binary.LittleEndian, &h); err != nil {
		t.Fatalf("read wav header: %v", err)
	}
	data := make([]byte, h.Subchunk2Size)
	if _, err := f.Read(data); err != nil && h.Subchunk2Size > 0 {
		t.Fatalf("read wav data: %v", err)
	}
	return h, data
}

func tone(samples []float32) []byte { return audio.EncodePCM16(samples) }

func rising(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i+1) / float32(n+1)
	}
	return out
}

func TestWriteBeforeStartIsNoop(t *testing.T) {
	r := New(testRecorderConfig(t))
	r.Write(ChannelUser, tone(rising(8)))
	path, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if path != "" {
		t.Fatalf("expected no artifact, got %q", path)
	}
}

func TestSingleChannelPadsOtherWithSilence(t *testing.T) {
	cfg := testRecorderConfig(t)
	r := New(cfg)
	obs := metrics.NewMemoryObserver()
	r.SetObserver(obs)

	if _, err := r.Start("sess-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	userPCM := tone(rising(cfg.FrameSamples * 3))
	r.Write(ChannelUser, userPCM)

	path, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	h, data := parseWav(t, path)
	if h.NumChannels != 2 || h.SampleRate != 16000 || h.BitsPerSample != 16 {
		t.Fatalf("unexpected format: channels=%d rate=%d bits=%d", h.NumChannels, h.SampleRate, h.BitsPerSample)
	}
	if want := len(userPCM) * 2; len(data) != want {
		t.Fatalf("expected %d data bytes, got %d", want, len(data))
	}
	for i := 0; i < len(data); i += 4 {
		if data[i] != userPCM[i/2] || data[i+1] != userPCM[i/2+1] {
			t.Fatalf("left sample %d does not match input", i/4)
		}
		if data[i+2] != 0 || data[i+3] != 0 {
			t.Fatalf("right sample %d not silent", i/4)
		}
	}
	if len(obs.Named(metrics.EventRecorderFlush)) == 0 {
		t.Fatalf("expected recorder_flush event")
	}
}

func TestBothChannelsRoundTripBitExact(t *testing.T) {
	cfg := testRecorderConfig(t)
	r := New(cfg)

	if _, err := r.Start("sess-2"); err != nil {
		t.Fatalf("start: %v", err)
	}
	userPCM := tone(rising(cfg.FrameSamples * 2))
	agentPCM := tone(chunkOf(-0.25, cfg.FrameSamples*2))
	r.Write(ChannelUser, userPCM)
	r.Write(ChannelAgent, agentPCM)

	path, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	_, data := parseWav(t, path)
	if want := len(userPCM) * 2; len(data) != want {
		t.Fatalf("expected %d data bytes, got %d", want, len(data))
	}
	for i := 0; i < len(data); i += 4 {
		if data[i] != userPCM[i/2] || data[i+1] != userPCM[i/2+1] {
			t.Fatalf("left sample %d mismatch", i/4)
		}
		if data[i+2] != agentPCM[i/2] || data[i+3] != agentPCM[i/2+1] {
			t.Fatalf("right sample %d mismatch", i/4)
		}
	}
}

func TestPartialFrameHeldUntilComplete(t *testing.T) {
	cfg := testRecorderConfig(t)
	r := New(cfg)

	if _, err := r.Start("sess-3"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// One sample short of a frame: nothing may reach the container.
	r.Write(ChannelUser, tone(rising(cfg.FrameSamples-1)))

	path, err := r.Stop()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	h, data := parseWav(t, path)
	if h.Subchunk2Size != 0 || len(data) != 0 {
		t.Fatalf("expected empty data chunk, got %d bytes", len(data))
	}
}

func TestFrameCountersSpanSplitWrites(t *testing.T) {
	cfg := testRecorderConfig(t)
	r := New(cfg)

	if _, err := r.Start("sess-6"); err != nil {
		t.Fatalf("start: %v", err)
	}
	// Two half-frame writes make one whole frame; a lone half frame on the
	// other channel counts as zero.
	half := cfg.FrameSamples / 2
	r.Write(ChannelUser, tone(rising(half)))
	r.Write(ChannelUser, tone(rising(half)))
	r.Write(ChannelAgent, tone(rising(half)))

	r.mu.Lock()
	userFrames := r.userBytes / r.frameBytes()
	agentFrames := r.agentBytes / r.frameBytes()
	r.mu.Unlock()
	if userFrames != 1 {
		t.Fatalf("expected 1 user frame from split writes, got %d", userFrames)
	}
	if agentFrames != 0 {
		t.Fatalf("expected 0 agent frames, got %d", agentFrames)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	r := New(testRecorderConfig(t))
	if _, err := r.Start("sess-4"); err != nil {
		t.Fatalf("start: %v", err)
	}
	first, err := r.Stop()
	if err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if first == "" {
		t.Fatalf("expected artifact path from first stop")
	}
	second, err := r.Stop()
	if err != nil {
		t.Fatalf("second stop: %v", err)
	}
	if second != "" {
		t.Fatalf("expected empty path from second stop, got %q", second)
	}
	// Writes after stop are dropped.
	r.Write(ChannelUser, tone(rising(8)))
}

func TestStartWhileRecordingReturnsSamePath(t *testing.T) {
	r := New(testRecorderConfig(t))
	first, err := r.Start("sess-5")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := r.Start("sess-5")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if first != second {
		t.Fatalf("expected same path, got %q and %q", first, second)
	}
	if _, err := r.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func chunkOf(amp float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = amp
	}
	return out
}
