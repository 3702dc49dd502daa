package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/stenlabs/sten/backend/internal/config"
	"github.com/stenlabs/sten/backend/internal/model/widget"
	"github.com/stenlabs/sten/backend/internal/service/conversation"
	"github.com/stenlabs/sten/backend/internal/store"
)

// Agent implements the conversation.AgentCapability contract on an eino
// prompt+model chain. Conversational continuity comes from replaying the
// session transcript keyed by the request's ThreadID.
type Agent struct {
	chatModel    model.ChatModel
	transcripts  store.MessageStore
	chain        compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
}

// NewAgent builds the agent capability from configuration.
func NewAgent(ctx context.Context, cfg config.AIConfig, transcripts store.MessageStore) (*Agent, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 10
	}

	return &Agent{
		chatModel:    chatModel,
		transcripts:  transcripts,
		chain:        runnable,
		historyLimit: historyLimit,
	}, nil
}

// ChatModel exposes the underlying model so other capabilities can share it.
func (a *Agent) ChatModel() model.ChatModel {
	return a.chatModel
}

// Generate produces the agent reply for one turn.
func (a *Agent) Generate(ctx context.Context, req conversation.AgentRequest) (string, error) {
	history := a.loadHistory(ctx, req.ThreadID)

	response, err := a.chain.Invoke(ctx, map[string]any{
		"system":  buildSystemPrompt(req.BusinessName, req.Instruction),
		"history": history,
		"query":   req.Message,
	})
	if err != nil {
		return "", fmt.Errorf("failed to run agent chain: %w", err)
	}

	log.Printf("[ai] generated reply for thread=%s, length=%d", req.ThreadID, len(response.Content))
	return response.Content, nil
}

// loadHistory replays the most recent transcript entries. The guest message
// for the current turn is already in the ledger when Generate runs, so it
// is dropped from the tail to avoid duplicating the query.
func (a *Agent) loadHistory(ctx context.Context, sessionID string) []*schema.Message {
	messages, err := a.transcripts.MessagesBySession(ctx, sessionID)
	if err != nil {
		log.Printf("[ai] transcript load failed for thread=%s: %v", sessionID, err)
		return nil
	}
	if n := len(messages); n > 0 && messages[n-1].Sender == widget.SenderGuest {
		messages = messages[:n-1]
	}
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > a.historyLimit {
		startIdx = len(messages) - a.historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case widget.SenderGuest:
			history = append(history, schema.UserMessage(msg.Text))
		case widget.SenderAI:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}

func buildSystemPrompt(businessName, instruction string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(
		"You are a helpful support agent for %s, answering visitors through the website chat widget. "+
			"Answer on behalf of %s, stay concise, and ask for clarification when a question is ambiguous. "+
			"If you cannot help, say so politely instead of inventing an answer.",
		businessName, businessName,
	))
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		builder.WriteString("\n\nAdditional instructions from the business owner:\n")
		builder.WriteString(instruction)
	}
	return builder.String()
}
