package redact

import "testing"

func TestTextDisabledPassthrough(t *testing.T) {
	SetEnabled(false)
	in := "call me at +62 812 3456 7890"
	if got := Text(in); got != in {
		t.Fatalf("expected passthrough when disabled, got %q", got)
	}
}

func TestTextRedactsEmailAndPhone(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	got := Text("reach harun@example.com or +62 812 3456 7890 today")
	if got != "reach [REDACTED_EMAIL] or [REDACTED_PHONE] today" {
		t.Fatalf("unexpected redaction output: %q", got)
	}
}

func TestTextRedactsNationalID(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)

	if got := Text("nik saya 3175031234567890 ya"); got != "nik saya [REDACTED_ID] ya" {
		t.Fatalf("contiguous id not redacted: %q", got)
	}
	// Dictated transcripts arrive with the digits grouped.
	if got := Text("nomor 3175 0312 3456 7890 benar"); got != "nomor [REDACTED_ID] benar" {
		t.Fatalf("grouped id not redacted: %q", got)
	}
}
