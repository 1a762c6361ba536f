package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/raphaelgruber/factsheet-go/internal/config"
)

// ModelInfo describes a model that can generate factsheets.
type ModelInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Provider          string `json:"provider"`
	Default           bool   `json:"default,omitempty"`
	Size              int64  `json:"size,omitempty"`               // size in bytes
	ParameterSize     string `json:"parameter_size,omitempty"`     // e.g. "14B", "7B"
	QuantizationLevel string `json:"quantization_level,omitempty"` // e.g. "Q4_K_M"
	Family            string `json:"family,omitempty"`             // e.g. "qwen2"
}

// curated lists, first entry is the provider default shown in pickers.
var curatedModels = map[config.Provider][]ModelInfo{
	config.ProviderOpenAI: {
		{ID: "gpt-5-2025-08-07", Name: "gpt-5"},
		{ID: "gpt-5-nano-2025-08-07", Name: "gpt-5-nano"},
		{ID: "gpt-5-mini-2025-08-07", Name: "gpt-5-mini"},
		{ID: "gpt-4o-mini-2024-07-18", Name: "gpt-4o-mini"},
		{ID: "gpt-4o-2024-11-20", Name: "gpt-4o"},
		{ID: "gpt-4-turbo-2024-04-09", Name: "gpt-4-turbo"},
	},
	config.ProviderAnthropic: {
		{ID: "claude-3-5-haiku-latest", Name: "claude-3.5-haiku"},
		{ID: "claude-3-5-sonnet-latest", Name: "claude-3.5-sonnet"},
	},
	config.ProviderGemini: {
		{ID: "gemini-1.5-flash", Name: "gemini-1.5-flash"},
		{ID: "gemini-1.5-pro", Name: "gemini-1.5-pro"},
	},
	config.ProviderBedrock: {
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "claude-3-haiku (bedrock)"},
		{ID: "anthropic.claude-3-sonnet-20240229-v1:0", Name: "claude-3-sonnet (bedrock)"},
	},
}

// Providers lists every supported provider.
func Providers() []config.Provider {
	return []config.Provider{
		config.ProviderOpenAI,
		config.ProviderAnthropic,
		config.ProviderGemini,
		config.ProviderOllama,
		config.ProviderBedrock,
	}
}

// Catalog lists models per provider.
type Catalog struct {
	ollama *api.Client
}

// NewCatalog creates a Catalog that queries the Ollama server at ollamaHost
// for locally installed models.
func NewCatalog(ollamaHost string, httpClient *http.Client) (*Catalog, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base, err := url.Parse(ollamaHost)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host: %w", err)
	}
	return &Catalog{ollama: api.NewClient(base, httpClient)}, nil
}

// Models returns the models available for provider.
func (c *Catalog) Models(ctx context.Context, provider config.Provider) ([]ModelInfo, error) {
	if provider == config.ProviderOllama {
		return c.ollamaModels(ctx)
	}

	curated, ok := curatedModels[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	out := make([]ModelInfo, len(curated))
	for i, m := range curated {
		m.Provider = string(provider)
		m.Default = i == 0
		out[i] = m
	}
	return out, nil
}

func (c *Catalog) ollamaModels(ctx context.Context) ([]ModelInfo, error) {
	resp, err := c.ollama.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ollama models: %w", err)
	}
	out := make([]ModelInfo, 0, len(resp.Models))
	for i, m := range resp.Models {
		out = append(out, ModelInfo{
			ID:                m.Model,
			Name:              m.Name,
			Provider:          string(config.ProviderOllama),
			Default:           i == 0,
			Size:              m.Size,
			ParameterSize:     m.Details.ParameterSize,
			QuantizationLevel: m.Details.QuantizationLevel,
			Family:            m.Details.Family,
		})
	}
	return out, nil
}
