// Package recognizer implements a VAD-gated streaming speech recognizer.
// Raw audio chunks are resampled to a canonical rate, gated by a
// dual-threshold RMS state machine, and fed to an opaque decoder backend.
// A bounded lookback buffer recovers the audio immediately preceding a
// detected speech onset so that utterance starts are not clipped.
package recognizer

import (
	"log/slog"
	"strings"

	"github.com/harunnryd/swara/pkg/adapters/asr"
	"github.com/harunnryd/swara/pkg/audio"
	"github.com/harunnryd/swara/pkg/errorsx"
)

// Config tunes the VAD gate and the canonical decode rate.
type Config struct {
	// TargetSampleRate is the rate every chunk is resampled to before
	// energy gating and decoding.
	TargetSampleRate int
	// StartThreshold is the RMS bar a chunk must clear to enter Speaking.
	// Higher than EndThreshold so ambient noise does not trigger onsets.
	StartThreshold float64
	// EndThreshold is the RMS bar that keeps Speaking alive. Lower than
	// StartThreshold so mid-word energy dips do not cut utterances.
	EndThreshold float64
	// EndpointSilenceChunks is how many consecutive sub-EndThreshold
	// chunks finalize the utterance. This counts post-resample chunks,
	// not wall-clock time: the effective debounce duration depends on
	// the caller's chunk size.
	EndpointSilenceChunks int
	// LookbackChunks bounds the pre-onset history replayed into the
	// decoder when speech starts.
	LookbackChunks int
}

func (c Config) withDefaults() Config {
	if c.TargetSampleRate <= 0 {
		c.TargetSampleRate = 16000
	}
	if c.StartThreshold <= 0 {
		c.StartThreshold = 0.025
	}
	if c.EndThreshold <= 0 {
		c.EndThreshold = 0.015
	}
	if c.EndpointSilenceChunks <= 0 {
		c.EndpointSilenceChunks = 25
	}
	if c.LookbackChunks <= 0 {
		c.LookbackChunks = 25
	}
	return c
}

// Result is one recognition emission.
type Result struct {
	Text    string
	IsFinal bool
}

// Recognizer owns all per-call mutable recognition state: the decoder
// stream, the VAD counters, and the lookback buffer. Construct one per
// call; it is not safe for concurrent use.
type Recognizer struct {
	cfg    Config
	dec    asr.Decoder
	res    *resamplerCache
	logger *slog.Logger

	speaking      bool
	silenceChunks int
	maxRMS        float64
	lookback      [][]float32
	lastPartial   string
}

func New(dec asr.Decoder, cfg Config, logger *slog.Logger) *Recognizer {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{
		cfg:    cfg,
		dec:    dec,
		res:    newResamplerCache(cfg.TargetSampleRate, logger),
		logger: logger,
	}
}

// Push processes one mono chunk at sourceRate and returns a result when the
// state machine emits one. A non-nil error means the chunk was dropped; the
// recognizer stays consistent and the next chunk can be pushed normally.
func (r *Recognizer) Push(samples []float32, sourceRate int) (*Result, error) {
	chunk, err := r.res.resample(samples, sourceRate)
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonASRResample)
	}

	rms := audio.RMS(chunk)

	// Dual threshold: entering Speaking needs the higher bar, staying
	// in it only the lower one.
	var active bool
	if r.speaking {
		active = rms >= r.cfg.EndThreshold
	} else {
		active = rms >= r.cfg.StartThreshold
	}

	if !r.speaking && !active {
		r.bufferLookback(chunk)
		return nil, nil
	}

	if active {
		if !r.speaking {
			if err := r.flushLookback(); err != nil {
				return nil, err
			}
			r.speaking = true
			r.logger.Info("speech_start",
				slog.Float64("rms", rms),
				slog.Float64("start_threshold", r.cfg.StartThreshold))
		}
		r.silenceChunks = 0
		if rms > r.maxRMS {
			r.maxRMS = rms
		}
	}

	if err := r.feed(chunk); err != nil {
		return nil, err
	}

	if !active {
		r.silenceChunks++
		if r.silenceChunks >= r.cfg.EndpointSilenceChunks {
			return r.finalize()
		}
		return nil, nil
	}

	return r.interim()
}

// Speaking reports whether the gate is currently inside an utterance.
func (r *Recognizer) Speaking() bool { return r.speaking }

// Reset discards the current utterance: fresh decoder stream, counters
// zeroed. The lookback buffer is kept so ambient history survives into the
// next utterance; it is cleared only when consumed at onset. Idempotent.
func (r *Recognizer) Reset() error {
	r.speaking = false
	r.silenceChunks = 0
	r.maxRMS = 0
	r.lastPartial = ""
	if err := r.dec.Reset(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonASRDecode)
	}
	return nil
}

func (r *Recognizer) bufferLookback(chunk []float32) {
	r.lookback = append(r.lookback, chunk)
	if len(r.lookback) > r.cfg.LookbackChunks {
		r.lookback = r.lookback[len(r.lookback)-r.cfg.LookbackChunks:]
	}
}

// flushLookback replays buffered pre-onset chunks into the decoder in
// arrival order. Each chunk leaves the buffer before it is fed, so a replay
// that fails partway never feeds the same chunk twice at the next onset.
func (r *Recognizer) flushLookback() error {
	if len(r.lookback) > 0 {
		r.logger.Info("lookback_flush", slog.Int("chunks", len(r.lookback)))
	}
	for len(r.lookback) > 0 {
		past := r.lookback[0]
		r.lookback = r.lookback[1:]
		if err := r.dec.AcceptWaveform(r.cfg.TargetSampleRate, past); err != nil {
			return errorsx.Wrap(err, errorsx.ReasonASRDecode)
		}
	}
	return nil
}

func (r *Recognizer) feed(chunk []float32) error {
	if err := r.dec.AcceptWaveform(r.cfg.TargetSampleRate, chunk); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonASRDecode)
	}
	if err := r.dec.Decode(); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonASRDecode)
	}
	return nil
}

func (r *Recognizer) finalize() (*Result, error) {
	text, err := r.dec.Result()
	if err != nil {
		// Finalization must still reset state or the endpoint fires
		// again on the next chunk.
		_ = r.Reset()
		return nil, errorsx.Wrap(err, errorsx.ReasonASRDecode)
	}
	text = strings.TrimSpace(text)

	r.logger.Info("speech_end",
		slog.Int("silence_chunks", r.silenceChunks),
		slog.Float64("peak_rms", r.maxRMS))

	if err := r.Reset(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return &Result{Text: text, IsFinal: true}, nil
}

func (r *Recognizer) interim() (*Result, error) {
	text, err := r.dec.Result()
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonASRDecode)
	}
	text = strings.TrimSpace(text)
	if text == "" || text == r.lastPartial {
		return nil, nil
	}
	r.lastPartial = text
	return &Result{Text: text, IsFinal: false}, nil
}
