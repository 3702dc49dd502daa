package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Analyst adapts the chat model to the analysis engine's one-shot
// prompt-in, text-out contract.
type Analyst struct {
	chatModel model.ChatModel
}

// NewAnalyst wraps an existing chat model, typically shared with the Agent.
func NewAnalyst(chatModel model.ChatModel) *Analyst {
	return &Analyst{chatModel: chatModel}
}

// Generate runs one analysis prompt through the model.
func (a *Analyst) Generate(ctx context.Context, promptText string) (string, error) {
	response, err := a.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(promptText)})
	if err != nil {
		return "", fmt.Errorf("failed to run analysis prompt: %w", err)
	}
	return response.Content, nil
}
