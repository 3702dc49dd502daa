package intent

import "testing"

func TestNormalizeKeepsKnownLabels(t *testing.T) {
	for _, label := range Categories() {
		if got := Normalize(string(label)); got != label {
			t.Fatalf("expected %q to survive normalization, got %q", label, got)
		}
	}
}

func TestNormalizeCoercesUnknownToGeneral(t *testing.T) {
	for _, raw := range []string{"Pricing", "support", "", "  ", "BugReport"} {
		if got := Normalize(raw); got != General {
			t.Fatalf("expected %q to coerce to General, got %q", raw, got)
		}
	}
}

func TestNormalizeTrimsWhitespace(t *testing.T) {
	if got := Normalize("  Sales \n"); got != Sales {
		t.Fatalf("expected Sales, got %q", got)
	}
}
