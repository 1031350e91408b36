// Package swara holds the top-level configuration and provider wiring for
// the voice audio core.
package swara

import (
	"fmt"
	"os"
	"reflect"

	"github.com/spf13/viper"

	"github.com/harunnryd/swara/pkg/configutil"
)

type Config struct {
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	Recognizer    RecognizerConfig    `mapstructure:"recognizer"`
	Recorder      RecorderConfig      `mapstructure:"recorder"`
	Decoder       ProviderConfig      `mapstructure:"decoder"`
	Synthesis     ProviderConfig      `mapstructure:"synthesis"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type RecognizerConfig struct {
	TargetSampleRate int     `mapstructure:"target_sample_rate"`
	StartThreshold   float64 `mapstructure:"start_threshold"`
	EndThreshold     float64 `mapstructure:"end_threshold"`
	// EndpointSilenceChunks counts post-resample chunks, not wall-clock
	// time, so the effective debounce depends on the caller's chunk size.
	EndpointSilenceChunks int `mapstructure:"endpoint_silence_chunks"`
	LookbackChunks        int `mapstructure:"lookback_chunks"`
	QueueSize             int `mapstructure:"queue_size"`
}

type RecorderConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	OutputDir       string `mapstructure:"output_dir"`
	SampleRate      int    `mapstructure:"sample_rate"`
	FrameSamples    int    `mapstructure:"frame_samples"`
	FlushIntervalMS int    `mapstructure:"flush_interval_ms"`
}

// ProviderConfig names a backend and carries its free-form settings, decoded
// per provider with configutil.DecodeSettings.
type ProviderConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type ObservabilityConfig struct {
	MetricsPath string  `mapstructure:"metrics_path"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	AsyncBuffer int     `mapstructure:"async_buffer"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("recognizer.target_sample_rate", 16000)
	v.SetDefault("recognizer.start_threshold", 0.025)
	v.SetDefault("recognizer.end_threshold", 0.015)
	v.SetDefault("recognizer.endpoint_silence_chunks", 25)
	v.SetDefault("recognizer.lookback_chunks", 25)
	v.SetDefault("recognizer.queue_size", 64)
	v.SetDefault("recorder.enabled", true)
	v.SetDefault("recorder.output_dir", "recordings")
	v.SetDefault("recorder.sample_rate", 16000)
	v.SetDefault("recorder.frame_samples", 480)
	v.SetDefault("recorder.flush_interval_ms", 100)
	v.SetDefault("observability.metrics_path", "")
	v.SetDefault("observability.sample_rate", 1.0)
	v.SetDefault("observability.async_buffer", 256)
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)
	cfg.Decoder.Settings = expandSettings(cfg.Decoder.Settings)
	cfg.Synthesis.Settings = expandSettings(cfg.Synthesis.Settings)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := configutil.RequireString(c.Decoder.Provider, "decoder.provider"); err != nil {
		return err
	}
	if err := configutil.RequireString(c.Synthesis.Provider, "synthesis.provider"); err != nil {
		return err
	}
	if c.Recognizer.StartThreshold < c.Recognizer.EndThreshold {
		return fmt.Errorf("recognizer.start_threshold must be >= end_threshold")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
