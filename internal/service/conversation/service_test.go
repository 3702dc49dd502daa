package conversation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/service/conversation"
	"github.com/stenlabs/sten/backend/internal/store"
)

type stubAgent struct {
	reply   string
	err     error
	lastReq conversation.AgentRequest
	invoked bool
}

func (s *stubAgent) Generate(_ context.Context, req conversation.AgentRequest) (string, error) {
	s.invoked = true
	s.lastReq = req
	return s.reply, s.err
}

func setup(t *testing.T, agent conversation.AgentCapability, directory conversation.BusinessDirectory) (*conversation.Service, *store.Memory, widget.ChatSession, widget.Guest) {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	guest, err := mem.CreateGuest(ctx, widget.Guest{WidgetID: "w1", Name: "Alice", Email: "a@x.com"})
	if err != nil {
		t.Fatalf("CreateGuest err: %v", err)
	}
	sess, err := mem.CreateSession(ctx, widget.ChatSession{GuestID: guest.ID, Origin: widget.OriginAutoStart, Active: true})
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	return conversation.NewService(mem, directory, agent), mem, sess, guest
}

func TestProcessTurnPersistsBothMessages(t *testing.T) {
	agent := &stubAgent{reply: "Hello! How can I help?"}
	svc, mem, sess, guest := setup(t, agent, nil)

	result, err := svc.ProcessTurn(context.Background(), conversation.TurnRequest{
		SessionID:   sess.ID,
		GuestID:     guest.ID,
		OwnerUserID: "owner-1",
		Message:     "Hi",
	})
	if err != nil {
		t.Fatalf("ProcessTurn err: %v", err)
	}
	if result.AgentMessage == nil {
		t.Fatal("expected an agent message")
	}
	if result.GuestMessage.Sender != widget.SenderGuest || result.AgentMessage.Sender != widget.SenderAI {
		t.Fatal("unexpected sender roles on turn result")
	}

	messages, _ := mem.MessagesBySession(context.Background(), sess.ID)
	if len(messages) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(messages))
	}
	if messages[0].Sender != widget.SenderGuest || messages[1].Sender != widget.SenderAI {
		t.Fatal("expected (guest, ai) role order")
	}
}

func TestProcessTurnKeepsGuestMessageOnAgentFailure(t *testing.T) {
	agent := &stubAgent{err: errors.New("model timeout")}
	svc, mem, sess, guest := setup(t, agent, nil)

	result, err := svc.ProcessTurn(context.Background(), conversation.TurnRequest{
		SessionID: sess.ID,
		GuestID:   guest.ID,
		Message:   "Hi",
	})
	if err != nil {
		t.Fatalf("agent failure must not fail the turn: %v", err)
	}
	if result.AgentMessage != nil {
		t.Fatal("expected a reply-less turn")
	}

	messages, _ := mem.MessagesBySession(context.Background(), sess.ID)
	if len(messages) != 1 || messages[0].Sender != widget.SenderGuest {
		t.Fatalf("expected only the guest message to persist, got %d", len(messages))
	}
}

func TestProcessTurnWithoutAgentCapability(t *testing.T) {
	svc, mem, sess, guest := setup(t, nil, nil)

	result, err := svc.ProcessTurn(context.Background(), conversation.TurnRequest{
		SessionID: sess.ID,
		GuestID:   guest.ID,
		Message:   "Anyone there?",
	})
	if err != nil {
		t.Fatalf("ProcessTurn err: %v", err)
	}
	if result.AgentMessage != nil {
		t.Fatal("expected no agent message without a capability")
	}

	messages, _ := mem.MessagesBySession(context.Background(), sess.ID)
	if len(messages) != 1 {
		t.Fatalf("expected guest message to persist, got %d messages", len(messages))
	}
}

func TestProcessTurnDefaultsBusinessName(t *testing.T) {
	agent := &stubAgent{reply: "ok"}
	svc, _, sess, guest := setup(t, agent, conversation.StaticDirectory{})

	if _, err := svc.ProcessTurn(context.Background(), conversation.TurnRequest{
		SessionID:   sess.ID,
		GuestID:     guest.ID,
		OwnerUserID: "owner-without-business",
		Message:     "Hi",
	}); err != nil {
		t.Fatalf("ProcessTurn err: %v", err)
	}

	if agent.lastReq.BusinessName != "Sten" {
		t.Fatalf("expected default business name, got %q", agent.lastReq.BusinessName)
	}
}

func TestProcessTurnPassesBusinessContext(t *testing.T) {
	agent := &stubAgent{reply: "ok"}
	directory := conversation.StaticDirectory{
		"owner-1": {Name: "Acme Plumbing", AgentInstruction: "Always mention the emergency line."},
	}
	svc, _, sess, guest := setup(t, agent, directory)

	if _, err := svc.ProcessTurn(context.Background(), conversation.TurnRequest{
		SessionID:   sess.ID,
		GuestID:     guest.ID,
		OwnerUserID: "owner-1",
		Message:     "My sink is leaking",
	}); err != nil {
		t.Fatalf("ProcessTurn err: %v", err)
	}

	if agent.lastReq.BusinessName != "Acme Plumbing" {
		t.Fatalf("unexpected business name %q", agent.lastReq.BusinessName)
	}
	if agent.lastReq.Instruction == "" {
		t.Fatal("expected custom instruction to reach the agent")
	}
	if agent.lastReq.ThreadID != sess.ID {
		t.Fatal("thread key must be the session id")
	}
}

func TestProcessTurnFailsWhenLedgerRejects(t *testing.T) {
	agent := &stubAgent{reply: "ok"}
	svc, _, _, guest := setup(t, agent, nil)

	// Unknown session: the initial append fails and nothing else runs.
	_, err := svc.ProcessTurn(context.Background(), conversation.TurnRequest{
		SessionID: "missing",
		GuestID:   guest.ID,
		Message:   "Hi",
	})
	if err == nil {
		t.Fatal("expected infrastructure error")
	}
	if agent.invoked {
		t.Fatal("agent must not be called when the guest write fails")
	}
}
