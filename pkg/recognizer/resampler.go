package recognizer

import (
	"fmt"
	"log/slog"

	resampling "github.com/tphakala/go-audio-resampling"
)

// resamplerCache holds one stateful stream resampler per source rate.
// Entries are created lazily and reused for the life of the recognizer;
// they are never shared across recognizer instances.
type resamplerCache struct {
	targetRate int
	byRate     map[int]resampling.Resampler
	logger     *slog.Logger
}

func newResamplerCache(targetRate int, logger *slog.Logger) *resamplerCache {
	return &resamplerCache{
		targetRate: targetRate,
		byRate:     make(map[int]resampling.Resampler),
		logger:     logger,
	}
}

func (c *resamplerCache) get(sourceRate int) (resampling.Resampler, error) {
	if rs, ok := c.byRate[sourceRate]; ok {
		return rs, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(sourceRate),
		OutputRate: float64(c.targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler %d->%d: %w", sourceRate, c.targetRate, err)
	}
	c.byRate[sourceRate] = rs
	c.logger.Info("resampler_created",
		slog.Int("source_rate", sourceRate),
		slog.Int("target_rate", c.targetRate))
	return rs, nil
}

// resample converts a mono chunk from sourceRate to the target rate.
// Chunks at the target rate pass through untouched.
func (c *resamplerCache) resample(samples []float32, sourceRate int) ([]float32, error) {
	if sourceRate == c.targetRate {
		return samples, nil
	}
	rs, err := c.get(sourceRate)
	if err != nil {
		return nil, err
	}
	in := make([]float64, len(samples))
	for i, v := range samples {
		in[i] = float64(v)
	}
	out, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample chunk: %w", err)
	}
	res := make([]float32, len(out))
	for i, v := range out {
		res[i] = float32(v)
	}
	return res, nil
}

// size reports how many cached stream resamplers exist.
func (c *resamplerCache) size() int { return len(c.byRate) }
