package swara

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/swara/pkg/adapters/asr"
	"github.com/harunnryd/swara/pkg/adapters/tts"
	"github.com/harunnryd/swara/pkg/configutil"
)

// DecoderFactory builds one decoder per call.
type DecoderFactory func(ctx context.Context, cfg ProviderConfig, streamID string) (asr.Decoder, error)

// SynthesisFactory builds one streaming synthesizer per call.
type SynthesisFactory func(cfg ProviderConfig, streamID string) (tts.StreamingTTS, error)

// ProviderRegistry maps provider names from configuration to constructors.
// Registration happens in the composition root so this package stays free of
// vendor imports.
type ProviderRegistry struct {
	decoders  map[string]DecoderFactory
	synthesis map[string]SynthesisFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		decoders:  make(map[string]DecoderFactory),
		synthesis: make(map[string]SynthesisFactory),
	}
}

func (r *ProviderRegistry) RegisterDecoder(name string, factory DecoderFactory) {
	r.decoders[normalizeName(name)] = factory
}

func (r *ProviderRegistry) RegisterSynthesis(name string, factory SynthesisFactory) {
	r.synthesis[normalizeName(name)] = factory
}

func (r *ProviderRegistry) BuildDecoder(ctx context.Context, cfg ProviderConfig, streamID string) (asr.Decoder, error) {
	fn := r.decoders[normalizeName(cfg.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("decoder provider not registered: %s", cfg.Provider)
	}
	return fn(ctx, cfg, streamID)
}

func (r *ProviderRegistry) BuildSynthesis(cfg ProviderConfig, streamID string) (tts.StreamingTTS, error) {
	fn := r.synthesis[normalizeName(cfg.Provider)]
	if fn == nil {
		return nil, fmt.Errorf("synthesis provider not registered: %s", cfg.Provider)
	}
	return fn(cfg, streamID)
}

// DecodeProviderSettings fills a vendor settings struct from the free-form
// settings map.
func DecodeProviderSettings(cfg ProviderConfig, out any) error {
	return configutil.DecodeSettings(cfg.Settings, out)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
