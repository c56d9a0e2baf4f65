package moderation

import (
	"context"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/capitalize-ai/community-platform/internal/service"
)

const anthropicPrompt = `You moderate posts, comments and direct messages in a professional community.
Reply with exactly one line: ALLOW if the content is acceptable, or BLOCK: <short reason>
if it contains harassment, hate, sexual content, threats, self-harm or spam.

Content:
`

// AnthropicModerator screens content by asking a Claude model for a verdict.
type AnthropicModerator struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicModerator creates a new Anthropic moderator.
func NewAnthropicModerator(opt Options) (*AnthropicModerator, error) {
	if opt.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(opt.APIKey)}
	if opt.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(opt.BaseURL))
	}
	model := opt.Model
	if model == "" {
		model = "claude-3-5-haiku-20241022"
	}

	return &AnthropicModerator{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// Moderate implements service.Moderator.
func (m *AnthropicModerator) Moderate(ctx context.Context, text string) (service.Verdict, error) {
	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(m.model),
		MaxTokens: anthropic.F(int64(64)),
		Messages: anthropic.F([]anthropic.MessageParam{{
			Role: anthropic.F(anthropic.MessageParamRole("user")),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(anthropicPrompt + text),
				},
			}),
		}}),
	})
	if err != nil {
		return service.Verdict{}, err
	}

	var reply string
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			reply += block.Text
		}
	}
	return parseVerdict(reply)
}
