package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/store"
)

// IdentifyRequest carries whatever the visitor typed into the widget's
// contact form. Email and phone are both optional.
type IdentifyRequest struct {
	WidgetID string
	Name     string
	Email    string
	Phone    string
}

// Service resolves an incoming visitor to a stable guest record,
// deduplicating by contact identifier.
type Service struct {
	guests     store.GuestStore
	strategies []lookupStrategy
}

// lookupStrategy is one step of the dedup policy: applies gates the
// strategy on the request shape, find performs the natural-key lookup.
type lookupStrategy struct {
	name    string
	applies func(IdentifyRequest) bool
	find    func(context.Context, store.GuestStore, IdentifyRequest) (widget.Guest, error)
}

// NewService builds the resolver with its ordered lookup policy: email
// first, phone only when no email was supplied, anonymous visitors never
// matched. First applicable match wins; a miss on an applicable strategy
// falls through to creation, not to the next strategy.
func NewService(guests store.GuestStore) *Service {
	return &Service{
		guests: guests,
		strategies: []lookupStrategy{
			{
				name:    "email",
				applies: func(req IdentifyRequest) bool { return req.Email != "" },
				find: func(ctx context.Context, guests store.GuestStore, req IdentifyRequest) (widget.Guest, error) {
					return guests.GuestByEmail(ctx, req.WidgetID, req.Email)
				},
			},
			{
				name:    "phone",
				applies: func(req IdentifyRequest) bool { return req.Email == "" && req.Phone != "" },
				find: func(ctx context.Context, guests store.GuestStore, req IdentifyRequest) (widget.Guest, error) {
					return guests.GuestByPhone(ctx, req.WidgetID, req.Phone)
				},
			},
		},
	}
}

// Identify maps the request to a guest, creating one when no strategy
// matches. Matched guests are returned unchanged: the name and contact
// details on the request are discarded, so a returning visitor keeps the
// identity they first registered with.
func (s *Service) Identify(ctx context.Context, req IdentifyRequest) (widget.Guest, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)

	for _, strategy := range s.strategies {
		if !strategy.applies(req) {
			continue
		}
		guest, err := strategy.find(ctx, s.guests, req)
		if err == nil {
			return guest, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return widget.Guest{}, fmt.Errorf("identify via %s: %w", strategy.name, err)
		}
	}

	guest, err := s.guests.CreateGuest(ctx, widget.Guest{
		WidgetID: req.WidgetID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		return widget.Guest{}, fmt.Errorf("create guest: %w", err)
	}
	return guest, nil
}
