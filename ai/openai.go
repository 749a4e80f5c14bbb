package ai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const streamBufferSize = 32

// OpenAIAdapter streams chat completions from an OpenAI-compatible API.
// Deltas are folded into cumulative partials so consumers always hold
// the full text generated so far.
type OpenAIAdapter struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

func NewOpenAIAdapter(log *slog.Logger, apiKey, baseURL, model string) *OpenAIAdapter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{
		client: openai.NewClient(opts...),
		model:  model,
		log:    log,
	}
}

func (a *OpenAIAdapter) ResponseStream(ctx context.Context, req StreamRequest) (<-chan StreamEvent, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: a.toMessages(req),
	}

	stream := a.client.Chat.Completions.NewStreaming(ctx, params)
	out := make(chan StreamEvent, streamBufferSize)

	go func() {
		defer close(out)
		var acc strings.Builder
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if s := chunk.Choices[0].Delta.Content; s != "" {
				acc.WriteString(s)
				select {
				case out <- Partial{Text: acc.String()}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			a.log.Warn("Completion stream failed", "chat_id", req.ChatID, "error", err)
			select {
			case out <- Failure{Message: err.Error()}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

// toMessages rebuilds the conversation for the API: history messages
// authored by the requesting user keep the user role, everything else is
// treated as the character's previous output.
func (a *OpenAIAdapter) toMessages(req StreamRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)
	for _, m := range req.History {
		if m.SenderID == req.SenderID {
			messages = append(messages, openai.UserMessage(m.Content))
		} else {
			messages = append(messages, openai.AssistantMessage(m.Content))
		}
	}
	return append(messages, openai.UserMessage(req.Message))
}
