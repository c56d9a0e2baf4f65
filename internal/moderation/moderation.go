// Package moderation provides content screening backed by LLM providers.
package moderation

import (
	"fmt"
	"strings"

	"github.com/capitalize-ai/community-platform/internal/service"
)

// Provider is the type of moderation provider.
type Provider string

const (
	ProviderNone      Provider = "none"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Options configures a moderator.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
}

// New creates the moderator of provider. ProviderNone yields a nil
// Moderator, which allows all content.
func New(provider Provider, opt Options) (service.Moderator, error) {
	switch provider {
	case ProviderNone, "":
		return nil, nil
	case ProviderOpenAI:
		return NewOpenAIModerator(opt)
	case ProviderAnthropic:
		return NewAnthropicModerator(opt)
	default:
		return nil, fmt.Errorf("unknown moderation provider %q", provider)
	}
}

// parseVerdict reads a model reply of the form "ALLOW" or "BLOCK: reason".
// Anything else is treated as a failure so unparseable replies never let
// content through.
func parseVerdict(reply string) (service.Verdict, error) {
	reply = strings.TrimSpace(reply)
	word, reason, _ := strings.Cut(reply, ":")
	switch strings.ToUpper(strings.TrimSpace(word)) {
	case "ALLOW":
		return service.Verdict{Allowed: true}, nil
	case "BLOCK":
		return service.Verdict{Allowed: false, Reason: strings.TrimSpace(reason)}, nil
	}
	return service.Verdict{}, fmt.Errorf("unexpected moderation reply %q", reply)
}
