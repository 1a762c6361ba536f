package llm

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
	"github.com/raphaelgruber/factsheet-go/internal/models"
)

type stubCompleter struct {
	model  string
	text   string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, _, userPrompt string) (Completion, error) {
	s.prompt = userPrompt
	if s.err != nil {
		return Completion{}, s.err
	}
	return Completion{Text: s.text, InputTokens: 100, OutputTokens: 50}, nil
}

func (s *stubCompleter) Model() string { return s.model }

func sampleData() *models.CompanyData {
	return &models.CompanyData{
		URL: "https://acme.com",
		Homepage: models.PageData{
			Title:       "Acme",
			Description: "Rockets",
			Content:     strings.Repeat("a", 2000),
			Success:     true,
		},
		About: models.PageData{Content: "Founded 1949", Success: true},
	}
}

func TestComposeCleansAndRecords(t *testing.T) {
	stub := &stubCompleter{text: "```markdown\n# Acme - Sales Intelligence Factsheet\n\nBody\n# Acme - Sales Intelligence Factsheet\n```"}
	m := metrics.NewCollector()

	var gotProvider config.Provider
	var gotModel string
	c := NewComposer(config.Config{LLMProvider: config.ProviderOpenAI},
		WithMetrics(m),
		WithFactory(func(_ context.Context, p config.Provider, model string) (Completer, error) {
			gotProvider, gotModel = p, model
			stub.model = model
			return stub, nil
		}),
	)

	out, err := c.Compose(context.Background(), sampleData(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "# Acme - Sales Intelligence Factsheet\n\nBody", out)
	assert.Equal(t, config.ProviderOpenAI, gotProvider)
	assert.Equal(t, config.DefaultModel(config.ProviderOpenAI), gotModel)

	snap := m.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	assert.Equal(t, int64(100), *snap.LLMGenerate.TotalInputTokens)
}

func TestComposeEmptyResponse(t *testing.T) {
	stub := &stubCompleter{text: "  ```\n```  "}
	c := NewComposer(config.Config{LLMProvider: config.ProviderOpenAI},
		WithFactory(func(context.Context, config.Provider, string) (Completer, error) { return stub, nil }))

	_, err := c.Compose(context.Background(), sampleData(), Options{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestComposeProviderError(t *testing.T) {
	boom := errors.New("boom")
	c := NewComposer(config.Config{LLMProvider: config.ProviderOpenAI},
		WithFactory(func(context.Context, config.Provider, string) (Completer, error) {
			return &stubCompleter{err: boom}, nil
		}))

	_, err := c.Compose(context.Background(), sampleData(), Options{})
	assert.ErrorIs(t, err, boom)
}

func TestComposeCachesModels(t *testing.T) {
	var built atomic.Int32
	c := NewComposer(config.Config{LLMProvider: config.ProviderOpenAI},
		WithFactory(func(_ context.Context, _ config.Provider, model string) (Completer, error) {
			built.Add(1)
			return &stubCompleter{model: model, text: "ok"}, nil
		}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := c.Compose(ctx, sampleData(), Options{Provider: "openai", Model: "gpt-4o"})
		require.NoError(t, err)
	}
	_, err := c.Compose(ctx, sampleData(), Options{Provider: "Anthropic"})
	require.NoError(t, err)

	assert.Equal(t, int32(2), built.Load())
}

func TestComposeFactoryErrorNotCached(t *testing.T) {
	var calls int
	c := NewComposer(config.Config{LLMProvider: config.ProviderOpenAI},
		WithFactory(func(context.Context, config.Provider, string) (Completer, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("no key")
			}
			return &stubCompleter{text: "ok"}, nil
		}))

	_, err := c.Compose(context.Background(), sampleData(), Options{})
	require.Error(t, err)
	_, err = c.Compose(context.Background(), sampleData(), Options{})
	require.NoError(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(sampleData())

	assert.Contains(t, p, "Website: https://acme.com")
	assert.Contains(t, p, "Website Title: Acme")
	assert.Contains(t, p, "Meta Description: Rockets")
	assert.Contains(t, p, "Homepage Content: "+strings.Repeat("a", maxPromptContent)+"\n")
	assert.NotContains(t, p, strings.Repeat("a", maxPromptContent+1))
	assert.Contains(t, p, "About Page: Founded 1949")
	assert.Contains(t, p, "## Conversation Starters")
}

func TestBuildPromptWithoutAbout(t *testing.T) {
	data := sampleData()
	data.About = models.PageData{}
	assert.NotContains(t, BuildPrompt(data), "About Page:")
}

func TestCleanOutput(t *testing.T) {
	assert.Equal(t, "", CleanOutput("   "))
	assert.Equal(t, "# A\n\nline", CleanOutput("  # A\n\n   line  \n"))
	assert.Equal(t, "# X Sales Intelligence Factsheet\nbody",
		CleanOutput("# X Sales Intelligence Factsheet\n# X Sales Intelligence Factsheet\nbody"))
}

func TestResolve(t *testing.T) {
	c := NewComposer(config.Config{LLMProvider: config.ProviderAnthropic, LLMModel: "claude-custom"})

	p, m := c.Resolve(Options{})
	assert.Equal(t, config.ProviderAnthropic, p)
	assert.Equal(t, "claude-custom", m)

	p, m = c.Resolve(Options{Provider: " OLLAMA "})
	assert.Equal(t, config.ProviderOllama, p)
	assert.Equal(t, config.DefaultModel(config.ProviderOllama), m)
}
