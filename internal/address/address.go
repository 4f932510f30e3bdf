// Package address turns raw registry address payloads into the canonical
// form used for comparison and storage.
package address

import "strings"

// Kind distinguishes the two address series kept per company.
type Kind string

const (
	// KindBusiness is the registered business address (forretningsadresse).
	KindBusiness Kind = "business"
	// KindMailing is the registered mailing address (postadresse).
	KindMailing Kind = "mailing"
)

// Raw is an address payload as received from the registry. All fields are
// optional upstream; defaulting happens in Normalize, nowhere else.
type Raw struct {
	Lines         []string
	PostalCode    *string
	PostalCity    *string
	KommuneNumber *string
	KommuneName   *string
}

// Normalized is the canonical address triple (plus municipality name) used
// for equality checks and persistence. Fields are never empty-by-accident:
// missing upstream values become empty strings so comparisons stay total.
type Normalized struct {
	Line          string
	PostalCode    string
	KommuneNumber string
	KommuneName   string
}

// Normalize flattens a raw address into its canonical form. Street lines are
// trimmed and joined with ", "; blank lines are dropped.
func Normalize(raw Raw) Normalized {
	lines := make([]string, 0, len(raw.Lines))
	for _, line := range raw.Lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	return Normalized{
		Line:          strings.Join(lines, ", "),
		PostalCode:    deref(raw.PostalCode),
		KommuneNumber: deref(raw.KommuneNumber),
		KommuneName:   deref(raw.KommuneName),
	}
}

// Equal reports whether two normalized addresses are identical. The policy is
// exact match on all four fields, case-sensitive. Near-duplicate detection
// (abbreviations, spelling variants) is intentionally not attempted.
func Equal(a, b Normalized) bool {
	return a.Line == b.Line &&
		a.PostalCode == b.PostalCode &&
		a.KommuneNumber == b.KommuneNumber &&
		a.KommuneName == b.KommuneName
}

// IsZero reports whether the address carries no information at all.
func (n Normalized) IsZero() bool {
	return n.Line == "" && n.PostalCode == "" && n.KommuneNumber == "" && n.KommuneName == ""
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}
