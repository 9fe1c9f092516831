package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/service"
	"github.com/julianstephens/daybook/internal/storage"
)

// Lifecycle is implemented by stores that keep a schema.
type Lifecycle interface {
	Init() error
	Load() error
	GetConfigPath() string
}

type Context struct {
	Store storage.Store
	Owner string
	Out   io.Writer

	// Prompt asks a yes/no question; it defaults to a huh confirm.
	Prompt func(title, description string) (bool, error)

	opts []service.Option
	svc  *service.Service
}

func NewContext(store storage.Store, owner string, opts ...service.Option) *Context {
	return &Context{
		Store:  store,
		Owner:  owner,
		Out:    os.Stdout,
		Prompt: huhConfirm,
		opts:   opts,
	}
}

// Service returns the engine, creating it on first use.
func (c *Context) Service() *service.Service {
	if c.svc == nil {
		c.svc = service.New(c.Store, c.opts...)
	}
	return c.svc
}

// Close waits for pending writes and closes the store.
func (c *Context) Close() error {
	if c.svc != nil {
		c.svc.Close()
	}
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

func (c *Context) Printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) Println(args ...any) {
	fmt.Fprintln(c.Out, args...)
}

func huhConfirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return ok, nil
}

// Confirm returns true without asking when yes is set.
func (c *Context) Confirm(yes bool, title, description string) (bool, error) {
	if yes {
		return true, nil
	}
	if c.Prompt == nil {
		return false, nil
	}
	return c.Prompt(title, description)
}

// ResolveKey picks the period key for a command: an explicit key, the period
// containing date, or the current period.
func (c *Context) ResolveKey(ctx context.Context, kind models.PeriodKind, key, date string) (string, error) {
	svc := c.Service()
	switch {
	case key != "":
		return key, nil
	case date != "":
		t, err := svc.ParseDate(ctx, c.Owner, date)
		if err != nil {
			return "", err
		}
		return svc.KeyAt(ctx, c.Owner, kind, t)
	default:
		return svc.Today(ctx, c.Owner, kind)
	}
}

// ResolvePriority finds a priority by 1-based position or id.
func ResolvePriority(items []models.Priority, ref string) (models.Priority, error) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return models.Priority{}, apperrors.NotFound(fmt.Sprintf("priority #%d", n))
		}
		return items[n-1], nil
	}
	for _, p := range items {
		if p.ID == ref || strings.HasPrefix(p.ID, ref) {
			return p, nil
		}
	}
	return models.Priority{}, apperrors.NotFound("priority " + ref)
}

// Mutate applies m, asking for confirmation when the period is in the past.
func (c *Context) Mutate(ctx context.Context, kind models.PeriodKind, key string, m service.Mutation, yes bool) ([]models.Priority, error) {
	svc := c.Service()
	items, err := svc.MutatePriorities(ctx, c.Owner, kind, key, m, yes)
	if !errors.Is(err, apperrors.ErrConfirmationRequired) {
		return items, err
	}
	ok, perr := c.Confirm(false, fmt.Sprintf("Edit past %s %s?", kind, key), "This period has already ended.")
	if perr != nil {
		return nil, perr
	}
	if !ok {
		return nil, err
	}
	return svc.MutatePriorities(ctx, c.Owner, kind, key, m, true)
}
