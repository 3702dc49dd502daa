package store

import (
	"context"
	"errors"
	"time"

	"github.com/stenlabs/sten/backend/internal/model/widget"
)

// ErrNotFound is returned when a record does not exist. Implementations
// wrap it so callers can match with errors.Is.
var ErrNotFound = errors.New("record not found")

// GuestStore persists guest identities and the natural-key lookups the
// identity resolver dedupes on.
type GuestStore interface {
	CreateGuest(ctx context.Context, guest widget.Guest) (widget.Guest, error)
	GuestByID(ctx context.Context, id string) (widget.Guest, error)
	GuestByEmail(ctx context.Context, widgetID, email string) (widget.Guest, error)
	GuestByPhone(ctx context.Context, widgetID, phone string) (widget.Guest, error)
	GuestsByWidget(ctx context.Context, widgetID string) ([]widget.Guest, error)
}

// SessionStore persists chat sessions. SaveAnalysis is the only mutation of
// the summary fields and always overwrites the previous run.
type SessionStore interface {
	CreateSession(ctx context.Context, session widget.ChatSession) (widget.ChatSession, error)
	SessionByID(ctx context.Context, id string) (widget.ChatSession, error)
	SessionsByGuest(ctx context.Context, guestID string) ([]widget.ChatSession, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	SaveAnalysis(ctx context.Context, id, summary, topIntent string, at time.Time) (widget.ChatSession, error)
}

// MessageStore is the append-only message ledger. There are deliberately no
// update or delete methods; listings are ascending by creation time with
// insertion order breaking ties.
type MessageStore interface {
	AppendMessage(ctx context.Context, message widget.Message) (widget.Message, error)
	MessagesBySession(ctx context.Context, sessionID string) ([]widget.Message, error)
	MessagesByGuest(ctx context.Context, guestID string) ([]widget.Message, error)
}

// Store aggregates the three record stores behind one durable backend.
type Store interface {
	GuestStore
	SessionStore
	MessageStore
}
