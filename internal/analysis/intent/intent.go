package intent

import "strings"

// Label is one of the fixed intent categories a session can be classified
// into. The set is closed: anything the model invents outside it collapses
// to General.
type Label string

const (
	Support   Label = "Support"
	Sales     Label = "Sales"
	Feedback  Label = "Feedback"
	BugReport Label = "Bug Report"
	General   Label = "General"
)

var categories = []Label{Support, Sales, Feedback, BugReport, General}

// Categories returns the closed label set in classification order.
func Categories() []Label {
	return append([]Label(nil), categories...)
}

// Valid reports whether the label is a member of the fixed set.
func (l Label) Valid() bool {
	for _, c := range categories {
		if l == c {
			return true
		}
	}
	return false
}

// Normalize coerces raw classifier output to a member of the fixed set.
// Unrecognized values become General rather than failing the caller.
func Normalize(raw string) Label {
	candidate := Label(strings.TrimSpace(raw))
	if candidate.Valid() {
		return candidate
	}
	return General
}
