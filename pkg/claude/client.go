// Package claude wraps the Anthropic SDK behind the narrow surface the
// summary generator needs: one streaming completion call.
package claude

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client defines the Anthropic operations used by the narrative layer.
type Client interface {
	// StreamMessage sends one user prompt and invokes emit for every text
	// delta as it arrives. It returns the full assembled text.
	StreamMessage(ctx context.Context, req MessageRequest, emit func(delta string)) (string, error)
}

// MessageRequest is our own request type for StreamMessage.
type MessageRequest struct {
	Model     string
	MaxTokens int64
	System    string
	Prompt    string
}

// TokenUsage tracks token consumption for one call.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// LogUsage logs token usage with structured zap fields.
func (u TokenUsage) LogUsage(model, phase string) {
	zap.L().Info("token usage",
		zap.String("model", model),
		zap.String("phase", phase),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
	)
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client sdk.Client
}

// NewClient creates a new Anthropic client backed by the SDK.
func NewClient(apiKey string) Client {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey(apiKey),
		),
	}
}

func (c *sdkClient) StreamMessage(ctx context.Context, req MessageRequest, emit func(delta string)) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	acc := sdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return "", eris.Wrap(err, "anthropic: accumulate event")
		}
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockDeltaEvent:
			if delta := ev.Delta.Text; delta != "" && emit != nil {
				emit(delta)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return "", eris.Wrap(err, "anthropic: stream message")
	}

	TokenUsage{
		InputTokens:  acc.Usage.InputTokens,
		OutputTokens: acc.Usage.OutputTokens,
	}.LogUsage(req.Model, "summary")

	var text string
	for _, block := range acc.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
