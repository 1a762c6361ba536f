package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/metrics"
	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/store"
)

// Stage is one step of factsheet generation.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageCompose Stage = "compose"
	StagePersist Stage = "persist"
)

type checkpoint struct {
	progress int
	message  string
}

var checkpoints = map[Stage]checkpoint{
	StageFetch:   {10, "Scraping company website..."},
	StageCompose: {50, "Generating factsheet..."},
	StagePersist: {80, "Saving factsheet..."},
}

const completedMessage = "Factsheet generated successfully"

// StageError is a failure of a single generation stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Fetcher retrieves company website content.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*models.CompanyData, error)
}

// Composer turns fetched content into factsheet Markdown.
type Composer interface {
	Compose(ctx context.Context, data *models.CompanyData, opts llm.Options) (string, error)
	Resolve(opts llm.Options) (config.Provider, string)
}

// Store persists finished factsheets.
type Store interface {
	Write(ctx context.Context, name, content string, fm store.Frontmatter) (models.FactsheetMetadata, error)
	Path(name string) (string, error)
}

// GeneratorOptions configures a Generator.
type GeneratorOptions struct {
	// MaxConcurrent bounds tasks running at once. Zero means unbounded;
	// tasks waiting for a slot stay pending.
	MaxConcurrent int
	Metrics       *metrics.Collector
	Logger        *slog.Logger
}

// Generator accepts generation requests and drives each task through
// fetch, compose and persist in its own goroutine.
type Generator struct {
	registry *Registry
	fetcher  Fetcher
	composer Composer
	store    Store
	metrics  *metrics.Collector
	logger   *slog.Logger
	sem      *semaphore.Weighted

	wg sync.WaitGroup
}

// NewGenerator creates a Generator.
func NewGenerator(registry *Registry, fetcher Fetcher, composer Composer, st Store, opts GeneratorOptions) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	g := &Generator{
		registry: registry,
		fetcher:  fetcher,
		composer: composer,
		store:    st,
		metrics:  opts.Metrics,
		logger:   logger,
	}
	if opts.MaxConcurrent > 0 {
		g.sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return g
}

// Registry returns the task registry backing the generator.
func (g *Generator) Registry() *Registry {
	return g.registry
}

// Submit validates req, registers a pending task and starts generation in
// the background. It returns as soon as the task exists. Cancelling ctx
// after Submit returns does not stop the task.
func (g *Generator) Submit(ctx context.Context, req models.GenerateRequest) (string, error) {
	req.URL = strings.TrimSpace(req.URL)
	if err := req.Validate(); err != nil {
		return "", err
	}

	provider, model := g.composer.Resolve(llm.Options{Provider: req.Provider, Model: req.Model})
	task := g.registry.Create(req.URL, string(provider), model)
	g.metrics.RecordTask(metrics.TaskSubmitted)

	opts := llm.Options{Provider: string(provider), Model: model}
	g.wg.Add(1)
	go g.run(context.WithoutCancel(ctx), task.ID, req.URL, opts)

	return task.ID, nil
}

// BatchItem is the outcome of submitting one URL of a batch.
type BatchItem struct {
	URL    string `json:"url"`
	TaskID string `json:"task_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SubmitBatch submits every request independently. An invalid request is
// reported in its item and does not stop the others.
func (g *Generator) SubmitBatch(ctx context.Context, reqs []models.GenerateRequest) []BatchItem {
	items := make([]BatchItem, 0, len(reqs))
	for _, req := range reqs {
		id, err := g.Submit(ctx, req)
		item := BatchItem{URL: req.URL, TaskID: id}
		if err != nil {
			item.Error = err.Error()
		}
		items = append(items, item)
	}
	return items
}

// Status returns the latest snapshot of a task without blocking.
func (g *Generator) Status(id string) (models.Task, error) {
	return g.registry.Get(id)
}

// Wait blocks until every submitted task has finished.
func (g *Generator) Wait() {
	g.wg.Wait()
}

// Shutdown waits for running tasks until ctx is done.
func (g *Generator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for generation tasks: %w", ctx.Err())
	}
}

func (g *Generator) run(ctx context.Context, id, url string, opts llm.Options) {
	defer g.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("generation task panicked", "task_id", id, "panic", r)
			g.fail(id, &StageError{Stage: "internal", Err: fmt.Errorf("panic: %v", r)}, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			g.fail(id, err, err.Error())
			return
		}
		defer g.sem.Release(1)
	}

	// fetch
	if !g.enter(id, StageFetch) {
		return
	}
	start := time.Now()
	data, err := g.fetcher.Fetch(ctx, url)
	g.metrics.RecordTiming(metrics.OpFetch, time.Since(start))
	if err == nil && (data == nil || !data.Homepage.Success) {
		err = fmt.Errorf("no homepage content")
	}
	if err != nil {
		g.fail(id, &StageError{Stage: StageFetch, Err: err}, "Failed to scrape data from "+url)
		return
	}

	// compose
	if !g.enter(id, StageCompose) {
		return
	}
	start = time.Now()
	content, err := g.composer.Compose(ctx, data, opts)
	g.metrics.RecordTiming(metrics.OpCompose, time.Since(start))
	if err == nil && strings.TrimSpace(content) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		if errors.Is(err, llm.ErrFatalAPI) {
			g.logger.Error("LLM provider rejected the request",
				"task_id", id, "provider", opts.Provider, "model", opts.Model,
				"hint", "check API key, quota and model name")
		}
		g.fail(id, &StageError{Stage: StageCompose, Err: err}, "Failed to generate factsheet content")
		return
	}

	// persist
	if !g.enter(id, StagePersist) {
		return
	}
	name := store.FileNameForURL(url)
	company := store.CompanyNameForURL(url)
	start = time.Now()
	_, err = g.store.Write(ctx, name, content, store.Frontmatter{
		SourceURL:   url,
		CompanyName: company,
		Provider:    opts.Provider,
		Model:       opts.Model,
	})
	g.metrics.RecordTiming(metrics.OpPersist, time.Since(start))
	if err != nil {
		g.fail(id, &StageError{Stage: StagePersist, Err: err}, err.Error())
		return
	}
	path, _ := g.store.Path(name)

	result := &models.TaskResult{
		Filename:    name,
		Path:        path,
		WordCount:   models.WordCount(content),
		CompanyName: company,
	}
	if _, err := g.registry.Update(id, func(t *models.Task) {
		t.Status = models.TaskStatusCompleted
		t.Progress = 100
		t.Message = completedMessage
		t.Result = result
	}); err != nil {
		g.logger.Error("failed to complete task", "task_id", id, "error", err)
		return
	}
	g.metrics.RecordTask(metrics.TaskCompleted)
	g.logger.Info("factsheet generated", "task_id", id, "filename", name, "words", result.WordCount)
}

// enter moves the task to the checkpoint of stage. It returns false when the
// task can no longer be updated.
func (g *Generator) enter(id string, stage Stage) bool {
	cp := checkpoints[stage]
	_, err := g.registry.Update(id, func(t *models.Task) {
		t.Status = models.TaskStatusProcessing
		t.Progress = cp.progress
		t.Message = cp.message
	})
	if err != nil {
		g.logger.Error("failed to advance task", "task_id", id, "stage", stage, "error", err)
		return false
	}
	g.logger.Debug("task stage started", "task_id", id, "stage", stage)
	return true
}

// fail marks the task failed with msg. Progress keeps the value of the last
// entered stage.
func (g *Generator) fail(id string, cause error, msg string) {
	if _, err := g.registry.Update(id, func(t *models.Task) {
		t.Status = models.TaskStatusFailed
		t.Error = msg
		t.Result = nil
	}); err != nil {
		g.logger.Error("failed to mark task failed", "task_id", id, "error", err)
		return
	}
	g.metrics.RecordTask(metrics.TaskFailed)
	g.logger.Error("factsheet generation failed", "task_id", id, "error", cause)
}
