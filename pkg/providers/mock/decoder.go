// Package mock provides in-memory backends for local runs and tests: a
// scripted decoder, a tone-generating TTS and a canned responder.
package mock

import (
	"sync"

	"github.com/harunnryd/swara/pkg/adapters/asr"
)

type DecoderConfig struct {
	// Hypotheses are returned in order, one per utterance; the last one
	// repeats once the script runs out.
	Hypotheses []string
}

// Decoder pretends to recognize speech: it swallows waveforms and replays a
// scripted hypothesis per utterance.
type Decoder struct {
	cfg DecoderConfig

	mu        sync.Mutex
	utterance int
	samples   int
	closed    bool
}

func NewDecoder(cfg DecoderConfig) *Decoder {
	if len(cfg.Hypotheses) == 0 {
		cfg.Hypotheses = []string{"mock transcript"}
	}
	return &Decoder{cfg: cfg}
}

func (d *Decoder) Name() string { return "mock_decoder" }

func (d *Decoder) AcceptWaveform(rate int, samples []float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples += len(samples)
	return nil
}

func (d *Decoder) Decode() error { return nil }

func (d *Decoder) Result() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.samples == 0 {
		return "", nil
	}
	i := d.utterance
	if i >= len(d.cfg.Hypotheses) {
		i = len(d.cfg.Hypotheses) - 1
	}
	return d.cfg.Hypotheses[i], nil
}

func (d *Decoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.samples > 0 {
		d.utterance++
	}
	d.samples = 0
	return nil
}

func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

var _ asr.Decoder = (*Decoder)(nil)
