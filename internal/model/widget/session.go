package widget

import "time"

// SessionOrigin tags how a session came to exist.
type SessionOrigin string

const (
	OriginManual    SessionOrigin = "manual"
	OriginAutoStart SessionOrigin = "auto-start"
	OriginResumed   SessionOrigin = "resumed"
)

// Valid reports whether the origin is one of the known tags.
func (o SessionOrigin) Valid() bool {
	switch o {
	case OriginManual, OriginAutoStart, OriginResumed:
		return true
	}
	return false
}

// SessionState is the derived lifecycle tag for a session.
type SessionState string

const (
	StateOpen     SessionState = "open"
	StateAnalyzed SessionState = "analyzed"
)

// ChatSession is one bounded conversational context for a guest. A row is
// created only as a side effect of persisting its first message; summary
// fields are written exclusively by the analysis engine and overwritten on
// every re-run.
type ChatSession struct {
	ID                 string        `json:"id"`
	GuestID            string        `json:"guestId"`
	CreatedAt          time.Time     `json:"createdAt"`
	LastMessageAt      time.Time     `json:"lastMessageAt"`
	Origin             SessionOrigin `json:"origin"`
	Summary            string        `json:"summary,omitempty"`
	TopIntent          string        `json:"topIntent,omitempty"`
	SummaryGeneratedAt *time.Time    `json:"summaryGeneratedAt,omitempty"`
	Active             bool          `json:"active"`
}

// State derives the lifecycle tag from the summary freshness: a session is
// Analyzed only while no message has landed after the last analysis run.
// Storage never clears the summary fields; staleness alone flips a session
// back to Open.
func (s ChatSession) State() SessionState {
	if s.SummaryGeneratedAt == nil {
		return StateOpen
	}
	if s.LastMessageAt.After(*s.SummaryGeneratedAt) {
		return StateOpen
	}
	return StateAnalyzed
}
