// Package recorder persists a call as one stereo WAV file: the user on the
// left channel, the agent on the right. The two producers write
// independently; a periodic flush interleaves both channels onto a single
// aligned timeline, padding whichever side has less audio with silence.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harunnryd/swara/pkg/audio"
	"github.com/harunnryd/swara/pkg/errorsx"
	"github.com/harunnryd/swara/pkg/logging"
	"github.com/harunnryd/swara/pkg/metrics"
)

// Channel addresses one side of the recording.
type Channel int

const (
	// ChannelUser is the capture side (left).
	ChannelUser Channel = iota
	// ChannelAgent is the synthesis side (right).
	ChannelAgent
)

// Config tunes the container format and flush cadence.
type Config struct {
	OutputDir string
	// SampleRate of both input streams; no resampling happens here.
	SampleRate int
	// FrameSamples is the alignment unit: flushing only moves whole
	// frames of this many samples per channel.
	FrameSamples  int
	FlushInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.OutputDir == "" {
		c.OutputDir = "recordings"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.FrameSamples <= 0 {
		c.FrameSamples = 480 // 30ms at 16kHz
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 100 * time.Millisecond
	}
	return c
}

// Recorder is a synchronized dual-channel recorder. One instance per call;
// Write and the flush task are serialized by a single mutex.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
	obs    metrics.Observer

	mu           sync.Mutex
	wav          *wavWriter
	path         string
	recording    bool
	userBuf      []byte
	agentBuf     []byte
	userBytes    int
	agentBytes   int
	syncedFrames int

	flushCancel context.CancelFunc
	flushDone   chan struct{}
}

func New(cfg Config) *Recorder {
	return &Recorder{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(slog.Default(), "recorder"),
		obs:    metrics.NoopObserver{},
	}
}

func (r *Recorder) SetObserver(obs metrics.Observer) {
	if obs != nil {
		r.obs = obs
	}
}

// Start opens the container and begins the periodic flush task. Calling
// Start while recording returns the current artifact path.
func (r *Recorder) Start(sessionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return r.path, nil
	}
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", errorsx.Wrap(fmt.Errorf("create output dir: %w", err), errorsx.ReasonRecorderIO)
	}
	if sessionID == "" {
		sessionID = "call"
	}
	name := fmt.Sprintf("%s_%s.wav", sessionID, time.Now().Format("20060102_150405"))
	path := filepath.Join(r.cfg.OutputDir, name)

	wav, err := newWavWriter(path, r.cfg.SampleRate, 2)
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonRecorderIO)
	}

	r.wav = wav
	r.path = path
	r.recording = true
	r.userBuf = r.userBuf[:0]
	r.agentBuf = r.agentBuf[:0]
	r.userBytes = 0
	r.agentBytes = 0
	r.syncedFrames = 0

	ctx, cancel := context.WithCancel(context.Background())
	r.flushCancel = cancel
	r.flushDone = make(chan struct{})
	go r.flushLoop(ctx, r.flushDone)

	r.logger.Info("recording_started", slog.String("path", path))
	return path, nil
}

// Write appends PCM bytes to one channel. Writes before Start or after
// Stop are no-ops.
func (r *Recorder) Write(ch Channel, pcm []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	switch ch {
	case ChannelUser:
		r.userBuf = append(r.userBuf, pcm...)
		r.userBytes += len(pcm)
	case ChannelAgent:
		r.agentBuf = append(r.agentBuf, pcm...)
		r.agentBytes += len(pcm)
	}
}

// Stop cancels the flush task, waits for it, performs the final flush and
// closes the container. It returns the artifact path; a second call returns
// an empty path.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return "", nil
	}
	r.recording = false
	cancel := r.flushCancel
	done := r.flushDone
	r.mu.Unlock()

	// Join the ticker goroutine before the final flush so nothing races
	// the container close.
	cancel()
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.flushLocked(); err != nil {
		_ = r.wav.Close()
		r.wav = nil
		return "", err
	}
	err := r.wav.Close()
	r.wav = nil
	path := r.path
	r.path = ""
	if err != nil {
		return "", errorsx.Wrap(err, errorsx.ReasonRecorderIO)
	}
	// Frame counts derive from total bytes so split writes still add up.
	r.logger.Info("recording_stopped",
		slog.String("path", path),
		slog.Int("user_frames", r.userBytes/r.frameBytes()),
		slog.Int("agent_frames", r.agentBytes/r.frameBytes()),
		slog.Int("synced_frames", r.syncedFrames))
	return path, nil
}

func (r *Recorder) flushLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.recording {
				if err := r.flushLocked(); err != nil {
					r.logger.Error("flush_failed", slog.String("error", err.Error()))
				}
			}
			r.mu.Unlock()
		}
	}
}

// flushLocked drains whole frames from both channel buffers onto the shared
// timeline. The longer channel decides how many stereo frames come out; the
// shorter one is padded with silence frame by frame. Caller holds the lock.
func (r *Recorder) flushLocked() error {
	frameBytes := r.frameBytes()
	userAvail := len(r.userBuf) / frameBytes
	agentAvail := len(r.agentBuf) / frameBytes
	toWrite := userAvail
	if agentAvail > toWrite {
		toWrite = agentAvail
	}
	if toWrite == 0 {
		return nil
	}

	silence := make([]byte, frameBytes)
	for i := 0; i < toWrite; i++ {
		left := silence
		if len(r.userBuf) >= frameBytes {
			left = r.userBuf[:frameBytes]
		}
		right := silence
		if len(r.agentBuf) >= frameBytes {
			right = r.agentBuf[:frameBytes]
		}
		if err := r.wav.Write(audio.InterleaveStereo(left, right)); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonRecorderIO)
		}
		if len(r.userBuf) >= frameBytes {
			r.userBuf = r.userBuf[frameBytes:]
		}
		if len(r.agentBuf) >= frameBytes {
			r.agentBuf = r.agentBuf[frameBytes:]
		}
		r.syncedFrames++
	}

	r.obs.RecordEvent(metrics.MetricsEvent{
		Name:  metrics.EventRecorderFlush,
		Time:  time.Now(),
		Value: float64(toWrite),
		Tags:  map[string]string{"component": "recorder"},
	})
	return nil
}

func (r *Recorder) frameBytes() int {
	return r.cfg.FrameSamples * 2 // 16-bit mono samples
}
