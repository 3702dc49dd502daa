package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/service/conversation"
	"github.com/stenlabs/sten/backend/internal/service/identity"
	"github.com/stenlabs/sten/backend/internal/store"
)

var (
	ErrGuestNotFound   = errors.New("guest not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidOrigin   = errors.New("invalid session origin")
)

// StartResult acknowledges identity resolution. No session exists yet; the
// widget collects guest details before any conversation starts.
type StartResult struct {
	Guest  widget.Guest `json:"guest"`
	Status string       `json:"status"`
}

// BeginRequest starts a new session around its first message.
type BeginRequest struct {
	GuestID     string
	Origin      widget.SessionOrigin
	Message     string
	OwnerUserID string
}

// ContinueRequest appends a turn to an existing session.
type ContinueRequest struct {
	SessionID   string
	Message     string
	OwnerUserID string
}

// Service owns creation, continuation and analysis-freshness semantics for
// a guest's chat sessions.
type Service struct {
	identity *identity.Service
	guests   store.GuestStore
	sessions store.SessionStore
	turns    *conversation.Service
}

// NewService wires the lifecycle manager.
func NewService(identitySvc *identity.Service, guests store.GuestStore, sessions store.SessionStore, turns *conversation.Service) *Service {
	return &Service{identity: identitySvc, guests: guests, sessions: sessions, turns: turns}
}

// StartIdentification resolves the visitor to a guest without creating a
// session. A session only comes to exist once the first message is sent.
func (s *Service) StartIdentification(ctx context.Context, req identity.IdentifyRequest) (StartResult, error) {
	guest, err := s.identity.Identify(ctx, req)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{Guest: guest, Status: "ready"}, nil
}

// BeginSession creates a session with the given origin and immediately
// processes the first message through the orchestrator. A turn failure
// leaves the created session in storage: a session holding only a guest
// message is legitimate.
func (s *Service) BeginSession(ctx context.Context, req BeginRequest) (widget.ChatSession, conversation.TurnResult, error) {
	if !req.Origin.Valid() {
		return widget.ChatSession{}, conversation.TurnResult{}, fmt.Errorf("%w: %q", ErrInvalidOrigin, req.Origin)
	}

	guest, err := s.guests.GuestByID(ctx, req.GuestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return widget.ChatSession{}, conversation.TurnResult{}, ErrGuestNotFound
		}
		return widget.ChatSession{}, conversation.TurnResult{}, fmt.Errorf("load guest: %w", err)
	}

	created, err := s.sessions.CreateSession(ctx, widget.ChatSession{
		GuestID: guest.ID,
		Origin:  req.Origin,
		Active:  true,
	})
	if err != nil {
		return widget.ChatSession{}, conversation.TurnResult{}, fmt.Errorf("create session: %w", err)
	}

	result, err := s.turns.ProcessTurn(ctx, conversation.TurnRequest{
		SessionID:   created.ID,
		GuestID:     guest.ID,
		OwnerUserID: req.OwnerUserID,
		Message:     req.Message,
	})
	if err != nil {
		return created, result, err
	}
	return created, result, nil
}

// ContinueSession appends a turn to an existing session, stamping last
// activity first. Whatever analysis was stored before this turn is stale
// from here on; State() flips back to Open because the new activity
// postdates summary_generated_at.
func (s *Service) ContinueSession(ctx context.Context, req ContinueRequest) (conversation.TurnResult, error) {
	sess, err := s.sessions.SessionByID(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return conversation.TurnResult{}, ErrSessionNotFound
		}
		return conversation.TurnResult{}, fmt.Errorf("load session: %w", err)
	}

	if err := s.sessions.TouchSession(ctx, sess.ID, time.Now().UTC()); err != nil {
		return conversation.TurnResult{}, fmt.Errorf("touch session: %w", err)
	}

	return s.turns.ProcessTurn(ctx, conversation.TurnRequest{
		SessionID:   sess.ID,
		GuestID:     sess.GuestID,
		OwnerUserID: req.OwnerUserID,
		Message:     req.Message,
	})
}

// ChatWithGuest is the legacy single-shot entry point, kept as sugar over
// BeginSession with an auto-start origin. It never looks for an existing
// session to reuse; every legacy call opens a fresh one. Documented
// behavior, relied on by old embeds.
func (s *Service) ChatWithGuest(ctx context.Context, guestID, message, ownerUserID string) (widget.ChatSession, conversation.TurnResult, error) {
	return s.BeginSession(ctx, BeginRequest{
		GuestID:     guestID,
		Origin:      widget.OriginAutoStart,
		Message:     message,
		OwnerUserID: ownerUserID,
	})
}

// SessionByID exposes a session for read-side callers.
func (s *Service) SessionByID(ctx context.Context, id string) (widget.ChatSession, error) {
	sess, err := s.sessions.SessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return widget.ChatSession{}, ErrSessionNotFound
		}
		return widget.ChatSession{}, err
	}
	return sess, nil
}

// SessionsByGuest lists a guest's session history, newest first.
func (s *Service) SessionsByGuest(ctx context.Context, guestID string) ([]widget.ChatSession, error) {
	return s.sessions.SessionsByGuest(ctx, guestID)
}
