package address

import "testing"

func strPtr(s string) *string { return &s }

func TestNormalizeJoinsAndTrimsLines(t *testing.T) {
	got := Normalize(Raw{
		Lines:         []string{"  Storgata 1 ", "", "Oppgang B"},
		PostalCode:    strPtr("0155"),
		KommuneNumber: strPtr("0301"),
		KommuneName:   strPtr("Oslo"),
	})

	if got.Line != "Storgata 1, Oppgang B" {
		t.Fatalf("expected joined line, got %q", got.Line)
	}
	if got.PostalCode != "0155" || got.KommuneNumber != "0301" || got.KommuneName != "Oslo" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
}

func TestNormalizeMissingFieldsBecomeEmptyStrings(t *testing.T) {
	got := Normalize(Raw{})

	if got.Line != "" || got.PostalCode != "" || got.KommuneNumber != "" || got.KommuneName != "" {
		t.Fatalf("expected all-empty normalized address, got %+v", got)
	}
	if !got.IsZero() {
		t.Fatalf("expected IsZero for empty address")
	}
}

func TestEqualIsExactAndCaseSensitive(t *testing.T) {
	a := Normalized{Line: "Main St 1", PostalCode: "0001", KommuneNumber: "0301", KommuneName: "Oslo"}
	b := a

	if !Equal(a, b) {
		t.Fatalf("expected identical addresses to be equal")
	}

	b.Line = "main st 1"
	if Equal(a, b) {
		t.Fatalf("expected case-sensitive comparison to differ")
	}

	b = a
	b.KommuneNumber = "4201"
	if Equal(a, b) {
		t.Fatalf("expected kommune change to differ")
	}
}
