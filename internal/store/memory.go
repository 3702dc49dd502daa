package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stenlabs/sten/backend/internal/model/widget"
)

// Memory implements Store with mutex-guarded maps, suitable for tests and
// single-node deployments without a database.
type Memory struct {
	mu       sync.RWMutex
	guests   map[string]widget.Guest
	sessions map[string]widget.ChatSession
	messages map[string][]widget.Message // keyed by session id, insertion order
}

// NewMemory bootstraps an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		guests:   make(map[string]widget.Guest),
		sessions: make(map[string]widget.ChatSession),
		messages: make(map[string][]widget.Message),
	}
}

// CreateGuest persists a new guest, assigning id and creation time.
func (m *Memory) CreateGuest(_ context.Context, guest widget.Guest) (widget.Guest, error) {
	guest.ID = uuid.NewString()
	guest.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	m.guests[guest.ID] = guest
	m.mu.Unlock()

	return guest, nil
}

// GuestByID retrieves a guest by identifier.
func (m *Memory) GuestByID(_ context.Context, id string) (widget.Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	guest, ok := m.guests[id]
	if !ok {
		return widget.Guest{}, fmt.Errorf("guest %s: %w", id, ErrNotFound)
	}
	return guest, nil
}

// GuestByEmail looks up a guest by (widget id, email).
func (m *Memory) GuestByEmail(_ context.Context, widgetID, email string) (widget.Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, guest := range m.guests {
		if guest.WidgetID == widgetID && guest.Email != "" && guest.Email == email {
			return guest, nil
		}
	}
	return widget.Guest{}, fmt.Errorf("guest by email: %w", ErrNotFound)
}

// GuestByPhone looks up a guest by (widget id, phone).
func (m *Memory) GuestByPhone(_ context.Context, widgetID, phone string) (widget.Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, guest := range m.guests {
		if guest.WidgetID == widgetID && guest.Phone != "" && guest.Phone == phone {
			return guest, nil
		}
	}
	return widget.Guest{}, fmt.Errorf("guest by phone: %w", ErrNotFound)
}

// GuestsByWidget lists a widget's guests, newest first.
func (m *Memory) GuestsByWidget(_ context.Context, widgetID string) ([]widget.Guest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	guests := make([]widget.Guest, 0)
	for _, guest := range m.guests {
		if guest.WidgetID == widgetID {
			guests = append(guests, guest)
		}
	}
	sort.Slice(guests, func(i, j int) bool {
		return guests[i].CreatedAt.After(guests[j].CreatedAt)
	})
	return guests, nil
}

// CreateSession persists a new session, assigning id and timestamps.
func (m *Memory) CreateSession(_ context.Context, session widget.ChatSession) (widget.ChatSession, error) {
	now := time.Now().UTC()
	session.ID = uuid.NewString()
	session.CreatedAt = now
	if session.LastMessageAt.IsZero() {
		session.LastMessageAt = now
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.messages[session.ID] = make([]widget.Message, 0, 16)
	m.mu.Unlock()

	return session, nil
}

// SessionByID retrieves a session by identifier.
func (m *Memory) SessionByID(_ context.Context, id string) (widget.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return widget.ChatSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return session, nil
}

// SessionsByGuest lists a guest's sessions, newest first.
func (m *Memory) SessionsByGuest(_ context.Context, guestID string) ([]widget.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]widget.ChatSession, 0)
	for _, session := range m.sessions {
		if session.GuestID == guestID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// TouchSession stamps last activity on a session. Last write wins when turns
// overlap.
func (m *Memory) TouchSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	session.LastMessageAt = at.UTC()
	m.sessions[id] = session
	return nil
}

// SaveAnalysis overwrites the derived summary fields on a session.
func (m *Memory) SaveAnalysis(_ context.Context, id, summary, topIntent string, at time.Time) (widget.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return widget.ChatSession{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	generated := at.UTC()
	session.Summary = summary
	session.TopIntent = topIntent
	session.SummaryGeneratedAt = &generated
	m.sessions[id] = session
	return session, nil
}

// AppendMessage inserts a message, assigning id and creation time. The
// per-session slice preserves insertion order, which breaks creation-time
// ties in listings.
func (m *Memory) AppendMessage(_ context.Context, message widget.Message) (widget.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[message.SessionID]; !ok {
		return widget.Message{}, fmt.Errorf("session %s: %w", message.SessionID, ErrNotFound)
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	m.messages[message.SessionID] = append(m.messages[message.SessionID], message)
	return message, nil
}

// MessagesBySession returns a session's messages ascending by creation time.
func (m *Memory) MessagesBySession(_ context.Context, sessionID string) ([]widget.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages, ok := m.messages[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	copied := make([]widget.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// MessagesByGuest returns every message a guest exchanged across sessions,
// ascending by creation time.
func (m *Memory) MessagesByGuest(_ context.Context, guestID string) ([]widget.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	collected := make([]widget.Message, 0)
	for _, messages := range m.messages {
		for _, message := range messages {
			if message.GuestID == guestID {
				collected = append(collected, message)
			}
		}
	}
	sort.SliceStable(collected, func(i, j int) bool {
		return collected[i].CreatedAt.Before(collected[j].CreatedAt)
	})
	return collected, nil
}
