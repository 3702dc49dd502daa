package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/store"
)

// defaultBusinessName keeps the agent usable for widgets whose owner never
// finished business setup.
const defaultBusinessName = "Sten"

// ErrAgentUnavailable marks turns where no agent capability is configured.
var ErrAgentUnavailable = errors.New("agent capability unavailable")

// BusinessProfile is the slice of owner configuration a turn needs.
type BusinessProfile struct {
	Name             string
	AgentInstruction string
}

// BusinessDirectory resolves the owning user's business profile. It lives
// outside this engine; the second return reports whether a profile is
// configured at all.
type BusinessDirectory interface {
	Lookup(ctx context.Context, ownerUserID string) (BusinessProfile, bool, error)
}

// StaticDirectory implements BusinessDirectory from a fixed map, keyed by
// owner user id. Suitable for single-tenant deployments configured from the
// environment.
type StaticDirectory map[string]BusinessProfile

// Lookup returns the configured profile for the owner, if any.
func (d StaticDirectory) Lookup(_ context.Context, ownerUserID string) (BusinessProfile, bool, error) {
	profile, ok := d[ownerUserID]
	return profile, ok, nil
}

// AgentRequest is the input to the external agent capability. ThreadID keys
// conversational continuity and is always the session id.
type AgentRequest struct {
	Message      string
	OwnerUserID  string
	BusinessName string
	Instruction  string
	ThreadID     string
}

// AgentCapability produces the agent's reply text. Calls are network-bound
// and may fail or time out; the orchestrator absorbs those failures.
type AgentCapability interface {
	Generate(ctx context.Context, req AgentRequest) (string, error)
}

// TurnRequest identifies one guest utterance to process.
type TurnRequest struct {
	SessionID   string
	GuestID     string
	OwnerUserID string
	Message     string
}

// TurnResult is the outcome of one turn. AgentMessage is nil when the
// capability failed; the guest message is durable either way.
type TurnResult struct {
	GuestMessage widget.Message  `json:"message"`
	AgentMessage *widget.Message `json:"response,omitempty"`
}

// Service coordinates one request/response turn: persist the guest message,
// obtain the agent reply, persist it, return both.
type Service struct {
	messages  store.MessageStore
	directory BusinessDirectory
	agent     AgentCapability
}

// NewService wires the orchestrator. agent may be nil when no model is
// configured; turns then complete reply-less.
func NewService(messages store.MessageStore, directory BusinessDirectory, agent AgentCapability) *Service {
	return &Service{messages: messages, directory: directory, agent: agent}
}

// ProcessTurn runs the four-step turn pipeline. Only the initial ledger
// write can fail the turn; agent failures degrade to a reply-less result
// and never roll back the guest message.
func (s *Service) ProcessTurn(ctx context.Context, req TurnRequest) (TurnResult, error) {
	guestMsg, err := s.messages.AppendMessage(ctx, widget.Message{
		GuestID:   req.GuestID,
		SessionID: req.SessionID,
		Sender:    widget.SenderGuest,
		Text:      req.Message,
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("persist guest message: %w", err)
	}

	profile := s.resolveProfile(ctx, req.OwnerUserID)

	replyText, err := s.generateReply(ctx, req, profile)
	if err != nil {
		log.Printf("[turn] agent reply failed for session=%s: %v", req.SessionID, err)
		return TurnResult{GuestMessage: guestMsg}, nil
	}

	agentMsg, err := s.messages.AppendMessage(ctx, widget.Message{
		GuestID:   req.GuestID,
		SessionID: req.SessionID,
		Sender:    widget.SenderAI,
		Text:      replyText,
	})
	if err != nil {
		return TurnResult{GuestMessage: guestMsg}, fmt.Errorf("persist agent message: %w", err)
	}

	return TurnResult{GuestMessage: guestMsg, AgentMessage: &agentMsg}, nil
}

func (s *Service) resolveProfile(ctx context.Context, ownerUserID string) BusinessProfile {
	if s.directory == nil {
		return BusinessProfile{Name: defaultBusinessName}
	}
	profile, ok, err := s.directory.Lookup(ctx, ownerUserID)
	if err != nil {
		log.Printf("[turn] business lookup failed for owner=%s: %v", ownerUserID, err)
		ok = false
	}
	if !ok || profile.Name == "" {
		profile.Name = defaultBusinessName
	}
	return profile
}

func (s *Service) generateReply(ctx context.Context, req TurnRequest, profile BusinessProfile) (string, error) {
	if s.agent == nil {
		return "", ErrAgentUnavailable
	}
	return s.agent.Generate(ctx, AgentRequest{
		Message:      req.Message,
		OwnerUserID:  req.OwnerUserID,
		BusinessName: profile.Name,
		Instruction:  profile.AgentInstruction,
		ThreadID:     req.SessionID,
	})
}
