package llm

import (
	"fmt"
	"os"
)

// ResolveOptions selects a backend. Empty fields fall back to environment
// variables so the CLI works without a config file.
type ResolveOptions struct {
	Backend         string // "anthropic", "openai", "azure", or "" to auto-detect
	Model           string
	APIKey          string
	AzureEndpoint   string
	AzureDeployment string
}

// Resolve picks a backend from options, falling back to API keys found in the
// environment: azure first (the service's native backend), then anthropic,
// then openai.
func Resolve(opts ResolveOptions) (Client, error) {
	switch opts.Backend {
	case "anthropic":
		return NewAnthropic(firstNonEmpty(opts.APIKey, os.Getenv("ANTHROPIC_API_KEY")), opts.Model)
	case "openai":
		return NewOpenAI(firstNonEmpty(opts.APIKey, os.Getenv("OPENAI_API_KEY")), opts.Model)
	case "azure":
		return NewAzureOpenAI(
			firstNonEmpty(opts.AzureEndpoint, os.Getenv("AZURE_OPENAI_ENDPOINT")),
			firstNonEmpty(opts.APIKey, os.Getenv("AZURE_OPENAI_API_KEY")),
			firstNonEmpty(opts.AzureDeployment, opts.Model),
		)
	case "":
		// Auto-detect from environment.
		if ep := os.Getenv("AZURE_OPENAI_ENDPOINT"); ep != "" && os.Getenv("AZURE_OPENAI_API_KEY") != "" {
			return NewAzureOpenAI(ep, os.Getenv("AZURE_OPENAI_API_KEY"), firstNonEmpty(opts.AzureDeployment, opts.Model))
		}
		if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
			return NewAnthropic(key, opts.Model)
		}
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return NewOpenAI(key, opts.Model)
		}
		return nil, fmt.Errorf("no model backend configured: set AZURE_OPENAI_ENDPOINT/AZURE_OPENAI_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY")
	default:
		return nil, fmt.Errorf("unknown model backend %q", opts.Backend)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
