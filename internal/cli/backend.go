package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/factsheet-go/internal/app"
	"github.com/raphaelgruber/factsheet-go/internal/client"
	"github.com/raphaelgruber/factsheet-go/internal/config"
	"github.com/raphaelgruber/factsheet-go/internal/llm"
	"github.com/raphaelgruber/factsheet-go/internal/models"
	"github.com/raphaelgruber/factsheet-go/internal/parser"
	"github.com/raphaelgruber/factsheet-go/internal/service"
	"github.com/raphaelgruber/factsheet-go/internal/store"
)

// errNotFound is returned by backends for unknown tasks and factsheets.
var errNotFound = errors.New("not found")

// errHistoryDisabled is returned when no history backend is configured.
var errHistoryDisabled = errors.New("task history is disabled (set FACTSHEET_HISTORY_BACKEND)")

// backend is what the commands need, served either in-process or by a
// factsheet-server.
type backend interface {
	Submit(ctx context.Context, req models.GenerateRequest) (string, error)
	Task(ctx context.Context, id string) (*models.Task, error)
	Tasks(ctx context.Context) ([]models.Task, error)
	History(ctx context.Context, limit int) ([]models.Task, error)
	Factsheets(ctx context.Context) ([]models.FactsheetMetadata, error)
	Factsheet(ctx context.Context, name string) (*models.Factsheet, error)
	Document(ctx context.Context, name string) (*parser.MarkdownDoc, error)
	DeleteFactsheet(ctx context.Context, name string) error
	Models(ctx context.Context, provider string) ([]llm.ModelInfo, error)
	// Remote reports whether tasks outlive this process.
	Remote() bool
	Close(ctx context.Context) error
}

func openBackend(ctx context.Context, cfg config.Config, serverURL string, logger *slog.Logger) (backend, error) {
	if serverURL != "" {
		return &remoteBackend{c: client.New(serverURL)}, nil
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &localBackend{app: a}, nil
}

// localBackend runs generation inside this process.
type localBackend struct {
	app *app.App
}

func (b *localBackend) Submit(ctx context.Context, req models.GenerateRequest) (string, error) {
	return b.app.Generator.Submit(ctx, req)
}

func (b *localBackend) Task(_ context.Context, id string) (*models.Task, error) {
	t, err := b.app.Generator.Status(id)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, errNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func (b *localBackend) Tasks(context.Context) ([]models.Task, error) {
	return b.app.Registry.List(), nil
}

func (b *localBackend) History(ctx context.Context, limit int) ([]models.Task, error) {
	if b.app.History == nil {
		return nil, errHistoryDisabled
	}
	return b.app.History.List(ctx, limit)
}

func (b *localBackend) Factsheets(ctx context.Context) ([]models.FactsheetMetadata, error) {
	return b.app.Store.List(ctx)
}

func (b *localBackend) Factsheet(ctx context.Context, name string) (*models.Factsheet, error) {
	fs, err := b.app.Store.Read(ctx, name)
	return fs, localStoreErr(name, err)
}

func (b *localBackend) Document(ctx context.Context, name string) (*parser.MarkdownDoc, error) {
	doc, err := b.app.Store.Document(ctx, name)
	return doc, localStoreErr(name, err)
}

func (b *localBackend) DeleteFactsheet(ctx context.Context, name string) error {
	return localStoreErr(name, b.app.Store.Delete(ctx, name))
}

func (b *localBackend) Models(ctx context.Context, provider string) ([]llm.ModelInfo, error) {
	p := config.Provider(provider)
	if p == "" {
		p = b.app.Config.LLMProvider
	}
	return b.app.Catalog.Models(ctx, p)
}

func (b *localBackend) Remote() bool { return false }

func (b *localBackend) Close(ctx context.Context) error {
	return b.app.Close(ctx)
}

func localStoreErr(name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidName) {
		return fmt.Errorf("factsheet %s: %w", name, errNotFound)
	}
	return err
}

// remoteBackend talks to a factsheet-server.
type remoteBackend struct {
	c *client.Client
}

func (b *remoteBackend) Submit(ctx context.Context, req models.GenerateRequest) (string, error) {
	resp, err := b.c.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.TaskID, nil
}

func (b *remoteBackend) Task(ctx context.Context, id string) (*models.Task, error) {
	t, err := b.c.GetTask(ctx, id)
	return t, remoteErr("task "+id, err)
}

func (b *remoteBackend) Tasks(ctx context.Context) ([]models.Task, error) {
	list, err := b.c.ListTasks(ctx, "")
	if err != nil {
		return nil, err
	}
	return list.Tasks, nil
}

func (b *remoteBackend) History(ctx context.Context, limit int) ([]models.Task, error) {
	list, err := b.c.History(ctx, limit)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "history_disabled" {
			return nil, errHistoryDisabled
		}
		return nil, err
	}
	return list.Tasks, nil
}

func (b *remoteBackend) Factsheets(ctx context.Context) ([]models.FactsheetMetadata, error) {
	list, err := b.c.ListFactsheets(ctx)
	if err != nil {
		return nil, err
	}
	return list.Factsheets, nil
}

func (b *remoteBackend) Factsheet(ctx context.Context, name string) (*models.Factsheet, error) {
	fs, err := b.c.GetFactsheet(ctx, name)
	return fs, remoteErr("factsheet "+name, err)
}

func (b *remoteBackend) Document(ctx context.Context, name string) (*parser.MarkdownDoc, error) {
	fs, err := b.Factsheet(ctx, name)
	if err != nil {
		return nil, err
	}
	return parser.ParseMarkdown(fs.Content)
}

func (b *remoteBackend) DeleteFactsheet(ctx context.Context, name string) error {
	return remoteErr("factsheet "+name, b.c.DeleteFactsheet(ctx, name))
}

func (b *remoteBackend) Models(ctx context.Context, provider string) ([]llm.ModelInfo, error) {
	list, err := b.c.Models(ctx, provider)
	if err != nil {
		return nil, err
	}
	return list.Models, nil
}

func (b *remoteBackend) Remote() bool { return true }

func (b *remoteBackend) Close(context.Context) error { return nil }

func remoteErr(what string, err error) error {
	if errors.Is(err, client.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, errNotFound)
	}
	return err
}
