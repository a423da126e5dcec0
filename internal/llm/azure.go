package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const azureAPIVersion = "2024-02-15-preview"

// AzureOpenAI implements Client against an Azure OpenAI deployment. The wire
// format matches OpenAI chat completions; routing and auth differ.
type AzureOpenAI struct {
	apiKey     string
	endpoint   string
	deployment string
	apiVersion string
	client     *http.Client
}

// NewAzureOpenAI creates a client for the given endpoint and deployment name.
func NewAzureOpenAI(endpoint, apiKey, deployment string) (*AzureOpenAI, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("azure: endpoint not set")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("azure: API key not set")
	}
	if deployment == "" {
		deployment = "gpt-4o"
	}
	return &AzureOpenAI{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		deployment: deployment,
		apiVersion: azureAPIVersion,
		client:     &http.Client{},
	}, nil
}

func (a *AzureOpenAI) Name() string { return "azure" }

func (a *AzureOpenAI) Generate(ctx context.Context, prompt string, s Settings) (string, error) {
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, url.PathEscape(a.deployment), a.apiVersion)
	// Azure ignores the model field in favor of the deployment; send it anyway
	// so request logs stay readable.
	return chatCompletion(ctx, a.client, "azure", u, func(req *http.Request) {
		req.Header.Set("API-Key", a.apiKey)
	}, a.deployment, prompt, s)
}
