package widget

import "time"

// Sender distinguishes the two sides of a turn.
type Sender string

const (
	SenderGuest Sender = "guest"
	SenderAI    Sender = "ai"
)

// Message is a single utterance within a session. Messages are append-only;
// the guest id is denormalized so owner dashboards can list a guest's
// history without joining through sessions.
type Message struct {
	ID        string    `json:"id"`
	GuestID   string    `json:"guestId"`
	SessionID string    `json:"sessionId"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}
