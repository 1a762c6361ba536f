package llm

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
	"github.com/raphaelgruber/factsheet-go/internal/models"
)

//go:embed factsheet_template.md
var factsheetTemplate string

const (
	maxPromptContent = 1500
	factsheetTitle   = "Sales Intelligence Factsheet"
)

const systemPrompt = "You are a business analyst creating evidence-based sales intelligence factsheets. " +
	"Only use information directly stated in the provided content."

// Completer produces a completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (Completion, error)
	Model() string
}

// Factory builds a Completer for a provider and model.
type Factory func(ctx context.Context, provider config.Provider, model string) (Completer, error)

// Options selects the model for a single composition.
// Empty fields fall back to the configured defaults.
type Options struct {
	Provider string
	Model    string
}

// Composer turns scraped company data into factsheet Markdown.
type Composer struct {
	cfg     config.Config
	factory Factory
	metrics *metrics.Collector
	logger  *slog.Logger

	mu     sync.Mutex
	models map[string]Completer
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithFactory replaces the langchaingo model factory.
func WithFactory(f Factory) ComposerOption {
	return func(c *Composer) { c.factory = f }
}

// WithMetrics records LLM usage into m.
func WithMetrics(m *metrics.Collector) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ComposerOption {
	return func(c *Composer) { c.logger = l }
}

// NewComposer creates a Composer.
func NewComposer(cfg config.Config, opts ...ComposerOption) *Composer {
	c := &Composer{
		cfg:    cfg,
		logger: slog.Default(),
		models: make(map[string]Completer),
	}
	c.factory = func(ctx context.Context, p config.Provider, model string) (Completer, error) {
		return NewModel(ctx, c.cfg, p, model)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the provider and model a composition with opts would use.
func (c *Composer) Resolve(opts Options) (config.Provider, string) {
	provider := config.Provider(strings.ToLower(strings.TrimSpace(opts.Provider)))
	if provider == "" {
		provider = c.cfg.LLMProvider
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = c.cfg.ModelFor(provider)
	}
	return provider, model
}

// Compose generates the factsheet for data. It returns ErrEmptyResponse when
// the model answered with nothing usable.
func (c *Composer) Compose(ctx context.Context, data *models.CompanyData, opts Options) (string, error) {
	provider, modelName := c.Resolve(opts)

	m, err := c.model(ctx, provider, modelName)
	if err != nil {
		return "", err
	}

	c.logger.Info("generating factsheet", "url", data.URL, "provider", provider, "model", modelName)

	start := time.Now()
	resp, err := m.Complete(ctx, systemPrompt, BuildPrompt(data))
	duration := time.Since(start)
	if err != nil {
		c.logger.Warn("factsheet generation failed", "url", data.URL, "provider", provider,
			"duration_ms", duration.Milliseconds(), "error", err)
		return "", err
	}
	c.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, resp.InputTokens, resp.OutputTokens)

	factsheet := CleanOutput(resp.Text)
	if factsheet == "" {
		return "", ErrEmptyResponse
	}

	c.logger.Info("generated factsheet", "url", data.URL, "words", models.WordCount(factsheet),
		"duration_ms", duration.Milliseconds())
	return factsheet, nil
}

// model returns a cached Completer for the provider/model pair.
func (c *Composer) model(ctx context.Context, provider config.Provider, modelName string) (Completer, error) {
	key := string(provider) + "/" + modelName

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.models[key]; ok {
		return m, nil
	}
	m, err := c.factory(ctx, provider, modelName)
	if err != nil {
		return nil, err
	}
	c.models[key] = m
	return m, nil
}

// BuildPrompt assembles the user prompt for data.
func BuildPrompt(data *models.CompanyData) string {
	var parts []string
	home := data.Homepage
	if home.Title != "" {
		parts = append(parts, "Website Title: "+home.Title)
	}
	if home.Description != "" {
		parts = append(parts, "Meta Description: "+home.Description)
	}
	if home.Content != "" {
		parts = append(parts, "Homepage Content: "+truncate(home.Content, maxPromptContent))
	}
	if data.HasAbout() {
		parts = append(parts, "About Page: "+truncate(data.About.Content, maxPromptContent))
	}

	return fmt.Sprintf(`Create a sales intelligence factsheet using the website content provided. Extract specific, actionable information.

Website: %s
Content: %s

Follow this template exactly:
%s

CRITICAL RULES:
1. Use SPECIFIC information from the website content
2. NO placeholder text like "[Target Market]" or generic templates
3. NO generic conversation starters - make them specific to this company
4. Extract actual company details, not industry generics
5. Keep responses concise but informative
6. Target 800-900 words total and never exceed that

SMART EXTRACTION:
- Mission: look for taglines, about messaging, company purpose statements
- Business Model: infer from pricing, products, how they operate
- Pain Points: what problems do their solutions specifically solve?
- Conversation Starters: based on their actual products and services

Only use fallback phrases when information is genuinely not extractable from content.`,
		data.URL, strings.Join(parts, "\n\n"), factsheetTemplate)
}

// CleanOutput strips code fences and surrounding whitespace and drops repeated
// factsheet title lines.
func CleanOutput(text string) string {
	text = strings.ReplaceAll(text, "```markdown", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	titleFound := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") && strings.Contains(line, factsheetTitle) {
			if titleFound {
				continue
			}
			titleFound = true
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
