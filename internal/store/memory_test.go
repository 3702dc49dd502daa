package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stenlabs/sten/backend/internal/model/widget"
)

func TestMemoryGuestLookups(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created, err := m.CreateGuest(ctx, widget.Guest{
		WidgetID: "w1",
		Name:     "Alice",
		Email:    "a@x.com",
	})
	if err != nil {
		t.Fatalf("CreateGuest err: %v", err)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Fatal("expected server-assigned id and timestamp")
	}

	byEmail, err := m.GuestByEmail(ctx, "w1", "a@x.com")
	if err != nil {
		t.Fatalf("GuestByEmail err: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Fatalf("expected guest %s, got %s", created.ID, byEmail.ID)
	}

	if _, err := m.GuestByEmail(ctx, "w2", "a@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other widget, got %v", err)
	}
	if _, err := m.GuestByPhone(ctx, "w1", "555"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown phone, got %v", err)
	}
}

func TestMemoryMessageOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	guest, _ := m.CreateGuest(ctx, widget.Guest{WidgetID: "w1", Name: "Bob"})
	sess, err := m.CreateSession(ctx, widget.ChatSession{GuestID: guest.ID, Origin: widget.OriginManual, Active: true})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		if _, err := m.AppendMessage(ctx, widget.Message{
			GuestID:   guest.ID,
			SessionID: sess.ID,
			Sender:    widget.SenderGuest,
			Text:      text,
		}); err != nil {
			t.Fatalf("AppendMessage err: %v", err)
		}
	}

	messages, err := m.MessagesBySession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("MessagesBySession err: %v", err)
	}
	if len(messages) != len(texts) {
		t.Fatalf("expected %d messages, got %d", len(texts), len(messages))
	}
	for i, msg := range messages {
		if msg.Text != texts[i] {
			t.Fatalf("message %d out of order: got %q", i, msg.Text)
		}
		if i > 0 && msg.CreatedAt.Before(messages[i-1].CreatedAt) {
			t.Fatal("messages not in non-decreasing creation order")
		}
	}
}

func TestMemoryAppendRequiresSession(t *testing.T) {
	m := NewMemory()
	_, err := m.AppendMessage(context.Background(), widget.Message{SessionID: "missing", Sender: widget.SenderGuest})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryMessagesByGuestSpansSessions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	guest, _ := m.CreateGuest(ctx, widget.Guest{WidgetID: "w1", Name: "Cara"})
	first, _ := m.CreateSession(ctx, widget.ChatSession{GuestID: guest.ID, Origin: widget.OriginAutoStart, Active: true})
	second, _ := m.CreateSession(ctx, widget.ChatSession{GuestID: guest.ID, Origin: widget.OriginManual, Active: true})

	m.AppendMessage(ctx, widget.Message{GuestID: guest.ID, SessionID: first.ID, Sender: widget.SenderGuest, Text: "one"})
	m.AppendMessage(ctx, widget.Message{GuestID: guest.ID, SessionID: second.ID, Sender: widget.SenderGuest, Text: "two"})

	messages, err := m.MessagesByGuest(ctx, guest.ID)
	if err != nil {
		t.Fatalf("MessagesByGuest err: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages across sessions, got %d", len(messages))
	}
	if messages[0].CreatedAt.After(messages[1].CreatedAt) {
		t.Fatal("cross-session listing not ascending by creation time")
	}
}

func TestMemoryTouchSession(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	guest, _ := m.CreateGuest(ctx, widget.Guest{WidgetID: "w1", Name: "Dan"})
	sess, _ := m.CreateSession(ctx, widget.ChatSession{GuestID: guest.ID, Origin: widget.OriginManual, Active: true})

	later := sess.LastMessageAt.Add(time.Minute)
	if err := m.TouchSession(ctx, sess.ID, later); err != nil {
		t.Fatalf("TouchSession err: %v", err)
	}

	got, _ := m.SessionByID(ctx, sess.ID)
	if !got.LastMessageAt.Equal(later.UTC()) {
		t.Fatalf("expected last activity %v, got %v", later.UTC(), got.LastMessageAt)
	}

	if err := m.TouchSession(ctx, "missing", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemorySaveAnalysisOverwrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	guest, _ := m.CreateGuest(ctx, widget.Guest{WidgetID: "w1", Name: "Eve"})
	sess, _ := m.CreateSession(ctx, widget.ChatSession{GuestID: guest.ID, Origin: widget.OriginManual, Active: true})

	first, err := m.SaveAnalysis(ctx, sess.ID, "first summary", "Support", time.Now())
	if err != nil {
		t.Fatalf("SaveAnalysis err: %v", err)
	}
	second, err := m.SaveAnalysis(ctx, sess.ID, "second summary", "Sales", time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("SaveAnalysis err: %v", err)
	}

	if second.Summary != "second summary" || second.TopIntent != "Sales" {
		t.Fatalf("expected overwrite, got %+v", second)
	}
	if !second.SummaryGeneratedAt.After(*first.SummaryGeneratedAt) {
		t.Fatal("expected a fresh generation timestamp")
	}
}
