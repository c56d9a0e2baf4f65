package moderation

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/capitalize-ai/community-platform/internal/service"
)

// OpenAIModerator screens content with the OpenAI moderation endpoint.
type OpenAIModerator struct {
	client *openai.Client
	model  string
}

// NewOpenAIModerator creates a new OpenAI moderator.
func NewOpenAIModerator(opt Options) (*OpenAIModerator, error) {
	if opt.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	cfg := openai.DefaultConfig(opt.APIKey)
	if opt.BaseURL != "" {
		cfg.BaseURL = opt.BaseURL
	}
	model := opt.Model
	if model == "" {
		model = openai.ModerationTextLatest
	}

	return &OpenAIModerator{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Moderate implements service.Moderator.
func (m *OpenAIModerator) Moderate(ctx context.Context, text string) (service.Verdict, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: m.model,
	})
	if err != nil {
		return service.Verdict{}, err
	}

	for _, r := range resp.Results {
		if r.Flagged {
			return service.Verdict{Allowed: false, Reason: flaggedCategories(r.Categories)}, nil
		}
	}
	return service.Verdict{Allowed: true}, nil
}

func flaggedCategories(c openai.ResultCategories) string {
	var names []string
	for _, cat := range []struct {
		name    string
		flagged bool
	}{
		{"hate", c.Hate || c.HateThreatening},
		{"harassment", c.Harassment || c.HarassmentThreatening},
		{"self-harm", c.SelfHarm || c.SelfHarmIntent || c.SelfHarmInstructions},
		{"sexual", c.Sexual || c.SexualMinors},
		{"violence", c.Violence || c.ViolenceGraphic},
	} {
		if cat.flagged {
			names = append(names, cat.name)
		}
	}
	if len(names) == 0 {
		return "flagged"
	}
	return strings.Join(names, ", ")
}
