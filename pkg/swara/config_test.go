package swara

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
decoder:
  provider: mock
synthesis:
  provider: mock
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Recognizer.TargetSampleRate != 16000 {
		t.Fatalf("unexpected target sample rate %d", cfg.Recognizer.TargetSampleRate)
	}
	if cfg.Recognizer.StartThreshold != 0.025 || cfg.Recognizer.EndThreshold != 0.015 {
		t.Fatalf("unexpected thresholds %v/%v", cfg.Recognizer.StartThreshold, cfg.Recognizer.EndThreshold)
	}
	if cfg.Recognizer.EndpointSilenceChunks != 25 || cfg.Recognizer.LookbackChunks != 25 {
		t.Fatalf("unexpected window config %+v", cfg.Recognizer)
	}
	if cfg.Recorder.FrameSamples != 480 || cfg.Recorder.FlushIntervalMS != 100 {
		t.Fatalf("unexpected recorder defaults %+v", cfg.Recorder)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatalf("redaction must default on")
	}
}

func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("SWARA_TEST_TOKEN", "sekrit")
	path := writeConfig(t, `
decoder:
  provider: mock
synthesis:
  provider: volcengine
  settings:
    access_token: ${SWARA_TEST_TOKEN}
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Synthesis.Settings["access_token"]; got != "sekrit" {
		t.Fatalf("env not expanded, got %v", got)
	}
}

func TestLoadConfigRejectsMissingProvider(t *testing.T) {
	path := writeConfig(t, `
decoder:
  provider: mock
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for missing synthesis provider")
	}
}

func TestLoadConfigRejectsInvertedThresholds(t *testing.T) {
	path := writeConfig(t, `
decoder:
  provider: mock
synthesis:
  provider: mock
recognizer:
  start_threshold: 0.01
  end_threshold: 0.02
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for inverted thresholds")
	}
}

func TestProviderRegistryUnknownProvider(t *testing.T) {
	r := NewProviderRegistry()
	if _, err := r.BuildSynthesis(ProviderConfig{Provider: "nope"}, "s"); err == nil {
		t.Fatalf("expected error for unregistered provider")
	}
}
