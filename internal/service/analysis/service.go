package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stenlabs/sten/backend/internal/analysis/intent"
	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/store"
)

// ErrSessionNotFound rejects analysis of sessions that do not exist.
var ErrSessionNotFound = errors.New("session not found")

const emptySessionSummary = "No messages in session"
const failedSummary = "Error generating summary"

// Capability is the external text-generation collaborator. It may fail or
// return unusable output; this engine absorbs both.
type Capability interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result carries the derived summary and intent. Fallback is true when the
// capability could not produce fresh values and the session's prior state
// was carried over instead, so callers can tell "analysis ran" from
// "analysis degraded" without inspecting strings.
type Result struct {
	Summary  string       `json:"summary"`
	Intent   intent.Label `json:"intent"`
	Fallback bool         `json:"fallback"`
}

// Service derives a summary and intent classification from a session's
// transcript. Re-running replaces the previous analysis, never appends.
type Service struct {
	sessions   store.SessionStore
	messages   store.MessageStore
	capability Capability
}

// NewService wires the analysis engine. capability may be nil when no model
// is configured; every run then degrades to the fallback path.
func NewService(sessions store.SessionStore, messages store.MessageStore, capability Capability) *Service {
	return &Service{sessions: sessions, messages: messages, capability: capability}
}

// Analyze computes (summary, intent) for a session. Only NotFound and
// storage errors surface; capability failures degrade to the session's
// prior values with the Fallback marker set.
func (s *Service) Analyze(ctx context.Context, sessionID string) (Result, error) {
	sess, err := s.sessions.SessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Result{}, ErrSessionNotFound
		}
		return Result{}, fmt.Errorf("load session: %w", err)
	}

	messages, err := s.messages.MessagesBySession(ctx, sessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("load transcript: %w", err)
	}

	// Empty sessions do not warrant a model call.
	if len(messages) == 0 {
		return Result{Summary: emptySessionSummary, Intent: intent.General}, nil
	}

	prompt := buildPrompt(sess, messages)

	raw, err := s.generate(ctx, prompt)
	if err != nil {
		log.Printf("[analysis] capability failed for session=%s: %v", sessionID, err)
		return fallbackResult(sess), nil
	}

	payload, err := parsePayload(raw)
	if err != nil {
		log.Printf("[analysis] unusable output for session=%s: %v", sessionID, err)
		return fallbackResult(sess), nil
	}

	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		summary = failedSummary
	}
	return Result{Summary: summary, Intent: intent.Normalize(payload.Intent)}, nil
}

// Persist overwrites the session's summary fields with the result and a
// fresh generation timestamp.
func (s *Service) Persist(ctx context.Context, sessionID string, result Result) (widget.ChatSession, error) {
	sess, err := s.sessions.SaveAnalysis(ctx, sessionID, result.Summary, string(result.Intent), time.Now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return widget.ChatSession{}, ErrSessionNotFound
		}
		return widget.ChatSession{}, fmt.Errorf("persist analysis: %w", err)
	}
	return sess, nil
}

// Run analyzes a session and persists the outcome in one call.
func (s *Service) Run(ctx context.Context, sessionID string) (widget.ChatSession, Result, error) {
	result, err := s.Analyze(ctx, sessionID)
	if err != nil {
		return widget.ChatSession{}, Result{}, err
	}
	sess, err := s.Persist(ctx, sessionID, result)
	if err != nil {
		return widget.ChatSession{}, Result{}, err
	}
	return sess, result, nil
}

func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	if s.capability == nil {
		return "", errors.New("analysis capability unavailable")
	}
	raw, err := s.capability.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("empty output")
	}
	return raw, nil
}

// fallbackResult carries the prior analysis forward unchanged, or the fixed
// defaults when the session was never analyzed.
func fallbackResult(sess widget.ChatSession) Result {
	summary := sess.Summary
	if summary == "" {
		summary = failedSummary
	}
	return Result{
		Summary:  summary,
		Intent:   intent.Normalize(sess.TopIntent),
		Fallback: true,
	}
}

func buildPrompt(sess widget.ChatSession, messages []widget.Message) string {
	var transcript strings.Builder
	for _, msg := range messages {
		role := "Agent"
		if msg.Sender == widget.SenderGuest {
			role = "User"
		}
		transcript.WriteString(role)
		transcript.WriteString(": ")
		transcript.WriteString(msg.Text)
		transcript.WriteString("\n")
	}

	priorSummary := sess.Summary
	if priorSummary == "" {
		priorSummary = "None"
	}
	priorIntent := sess.TopIntent
	if priorIntent == "" {
		priorIntent = "None"
	}

	labels := make([]string, 0, len(intent.Categories()))
	for _, label := range intent.Categories() {
		labels = append(labels, string(label))
	}

	return fmt.Sprintf(`You are an expert Conversation Analyst. Your task is to analyze the following chat transcript between a User and an AI Agent.

Existing Summary: %s
Existing Intent: %s

TRANSCRIPT:
%s
INSTRUCTIONS:
1. Generate a concise summary of the conversation (max 2-3 sentences), e.g. "User asked about X, Agent provided Y."
2. Determine the Top Intent from this list: %s.
3. If an existing summary exists, use it as context but update it to reflect the full conversation.

Output correctly formatted JSON only:
{
    "summary": "...",
    "intent": "..."
}`, priorSummary, priorIntent, transcript.String(), strings.Join(labels, ", "))
}

type analysisPayload struct {
	Summary string `json:"summary"`
	Intent  string `json:"intent"`
}

// parsePayload extracts the JSON object from model output, tolerating
// fenced code blocks and surrounding prose.
func parsePayload(content string) (analysisPayload, error) {
	cleaned := strings.ReplaceAll(content, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end <= start {
		return analysisPayload{}, errors.New("missing json object")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err != nil {
		return analysisPayload{}, err
	}
	return payload, nil
}
