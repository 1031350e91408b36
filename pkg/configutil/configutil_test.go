package configutil

import (
	"strings"
	"testing"
)

func TestValidateSettingsMissingAndUnknown(t *testing.T) {
	schema := Schema{
		Required: []string{"app_id", "access_token"},
		Optional: []string{"voice_type"},
	}
	err := ValidateSettings(map[string]any{
		"app_id": "app-1",
		"volume": 3,
	}, schema)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "access_token") {
		t.Fatalf("missing key not reported: %v", err)
	}
	if !strings.Contains(err.Error(), "volume") {
		t.Fatalf("unknown key not reported: %v", err)
	}
}

func TestValidateSettingsNormalizesKeys(t *testing.T) {
	schema := Schema{Required: []string{"api_key"}}
	if err := ValidateSettings(map[string]any{"API-Key": "sk-123"}, schema); err != nil {
		t.Fatalf("normalized key rejected: %v", err)
	}
	if err := ValidateSettings(map[string]any{"api_key": "   "}, schema); err == nil {
		t.Fatalf("blank required value accepted")
	}
}

func TestDecodeSettingsMatchesLooseKeys(t *testing.T) {
	var out struct {
		SampleRate int     `mapstructure:"sample_rate"`
		SpeedRatio float64 `mapstructure:"speed_ratio"`
	}
	err := DecodeSettings(map[string]any{
		"Sample-Rate": "24000",
		"speedratio":  1.1,
	}, &out)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SampleRate != 24000 {
		t.Fatalf("sample rate not decoded, got %d", out.SampleRate)
	}
	if out.SpeedRatio != 1.1 {
		t.Fatalf("speed ratio not decoded, got %v", out.SpeedRatio)
	}
}

func TestRequireString(t *testing.T) {
	if err := RequireString("volcengine", "synthesis.provider"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := RequireString("  ", "decoder.provider")
	if err == nil || !strings.Contains(err.Error(), "decoder.provider") {
		t.Fatalf("expected error naming the field, got %v", err)
	}
}
