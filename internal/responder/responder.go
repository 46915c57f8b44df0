// Package responder drafts the public reply for rules that carry no
// fixed reply text. Rules with a reply text never reach it.
package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Responder produces a reply for a matched comment. DraftReply must
// always return usable text; implementations degrade to a fallback
// rather than failing the pipeline.
type Responder interface {
	DraftReply(ctx context.Context, commentText string) string
}

const fallbackReply = "Thanks for your comment! We'll get back to you shortly."

type GPTResponder struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

func NewGPTResponder(apiKey string, model string, maxTokens int, temperature float64, logger *zap.Logger) *GPTResponder {
	return &GPTResponder{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		logger:      logger,
	}
}

func (r *GPTResponder) DraftReply(ctx context.Context, commentText string) string {
	prompt := fmt.Sprintf(`You reply to comments on a business's social media post.
Write one short, friendly public reply to the comment below.
Do not promise prices or availability; invite the commenter to check their direct messages for details.
Reply with the text only, no quotes.

Comment: %s`, commentText)

	resp, err := r.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: r.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   r.maxTokens,
			Temperature: float32(r.temperature),
		},
	)

	if err != nil {
		r.logger.Error("Failed to draft reply", zap.Error(err))
		return fallbackReply
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return fallbackReply
	}
	return reply
}

// StaticResponder always answers with the fallback text. Used when no
// OpenAI key is configured.
type StaticResponder struct{}

func (StaticResponder) DraftReply(ctx context.Context, commentText string) string {
	return fallbackReply
}
