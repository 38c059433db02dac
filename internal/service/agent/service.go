// Package agent generates the receptionist's reply to a finalized caller
// utterance. It wraps a chat model behind a compiled prompt chain; callers
// treat it as a black-box generate(context, utterance) collaborator.
package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/fairwaylabs/caddie/internal/call"
	"github.com/fairwaylabs/caddie/internal/config"
)

// Service encapsulates reply generation for voice calls.
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService builds the chat chain once; per-call state travels in the
// caller context and history arguments.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
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

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// GenerateReply produces the agent's next line for one caller utterance.
func (s *Service) GenerateReply(ctx context.Context, caller call.CallerContext, history []call.TranscriptEntry, utterance string) (string, error) {
	input := map[string]any{
		"system":  buildSystemPrompt(caller),
		"history": buildHistoryMessages(history),
		"query":   utterance,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run reply chain: %w", err)
	}

	log.Printf("[agent] generated reply caller=%s length=%d", caller.CallerID, len(response.Content))
	return response.Content, nil
}

func buildHistoryMessages(entries []call.TranscriptEntry) []*schema.Message {
	const historyLimit = 10

	if len(entries) == 0 {
		return nil
	}

	startIdx := 0
	if len(entries) > historyLimit {
		startIdx = len(entries) - historyLimit
	}

	history := make([]*schema.Message, 0, len(entries)-startIdx)
	for _, entry := range entries[startIdx:] {
		switch entry.Speaker {
		case call.SpeakerCaller:
			history = append(history, schema.UserMessage(entry.Text))
		case call.SpeakerAgent:
			history = append(history, schema.AssistantMessage(entry.Text, nil))
		}
	}

	return history
}
