package fingerprint

import (
	"strings"
	"testing"
)

func TestSanitize_StripsVolatileTokens(t *testing.T) {
	in := "Vital Signs\nForm Version: 2.0.4\nPulse: 72\nGenerated Time (GMT): 2024-01-05 11:22\nPage 3 of 120\n"
	out := Sanitize(in)

	for _, gone := range []string{"Form Version", "Generated Time", "Page 3 of 120"} {
		if strings.Contains(out, gone) {
			t.Errorf("expected %q to be stripped, got %q", gone, out)
		}
	}
	if !strings.Contains(out, "Pulse: 72") {
		t.Errorf("expected content to survive, got %q", out)
	}
}

func TestSanitize_CollapsesBlankRuns(t *testing.T) {
	out := Sanitize("a\n\n\n\nb")
	if out != "a\n\nb" {
		t.Errorf("expected collapsed blanks, got %q", out)
	}
}

func TestHash_IgnoresSuperficialFormatting(t *testing.T) {
	a := "Form: Urine Test\nResult:   Negative"
	b := "FORM: Urine Test\nResult: Negative\nPage 1 of 9"
	if Hash(a) != Hash(b) {
		t.Error("expected equal hashes for superficially different pages")
	}
}

func TestHash_DiffersForDifferentContent(t *testing.T) {
	if Hash("Result: Negative") == Hash("Result: Positive") {
		t.Error("expected different hashes for different content")
	}
}

func TestHashBlock_OrderSensitive(t *testing.T) {
	ab := HashBlock([]string{"page a", "page b"})
	ba := HashBlock([]string{"page b", "page a"})
	if ab == ba {
		t.Error("expected block hash to depend on page order")
	}
	if ab != HashBlock([]string{"page a", "page b"}) {
		t.Error("expected block hash to be stable")
	}
}
