package periods

import (
	"context"
	"fmt"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/priority"
	"github.com/julianstephens/daybook/internal/service"
)

type PriorityCmd struct {
	Add    PriorityAddCmd    `cmd:"" help:"Add a priority."`
	Remove PriorityRemoveCmd `cmd:"" help:"Remove a priority."`
	Move   PriorityMoveCmd   `cmd:"" help:"Move priorities to a new position."`
	Toggle PriorityToggleCmd `cmd:"" help:"Mark a priority done or not done."`
	Rename PriorityRenameCmd `cmd:"" help:"Rename a priority."`
}

// Target selects the period whose list is edited.
type Target struct {
	Kind string `arg:"" enum:"day,week,month" help:"Period kind (day, week, month)."`
	Key  string `help:"Period key (default: current period)."`
	Date string `help:"Edit the period containing this date (YYYY-MM-DD)."`
	Yes  bool   `short:"y" help:"Edit past periods without asking."`
}

func (t *Target) resolve(bg context.Context, ctx *cli.Context) (models.PeriodKind, string, error) {
	kind, err := models.ParsePeriodKind(t.Kind)
	if err != nil {
		return "", "", err
	}
	key, err := ctx.ResolveKey(bg, kind, t.Key, t.Date)
	if err != nil {
		return "", "", err
	}
	return kind, key, nil
}

// mutate runs m against the target, looking up ref first when given.
func (t *Target) mutate(ctx *cli.Context, ref string, build func(models.Priority) service.Mutation) error {
	bg := context.Background()
	kind, key, err := t.resolve(bg, ctx)
	if err != nil {
		return err
	}
	var p models.Priority
	if ref != "" {
		view, err := ctx.Service().LoadPeriodKey(bg, ctx.Owner, kind, key)
		if err != nil {
			return err
		}
		if p, err = cli.ResolvePriority(view.Priorities(), ref); err != nil {
			return err
		}
	}
	items, err := ctx.Mutate(bg, kind, key, build(p), t.Yes)
	if err != nil {
		return err
	}
	ctx.Printf("%s %s\n", kind, key)
	cli.PrintPriorities(ctx.Out, items)
	return nil
}

type PriorityAddCmd struct {
	Target `embed:""`
	Title  string `arg:"" help:"Priority title."`
}

func (c *PriorityAddCmd) Run(ctx *cli.Context) error {
	return c.mutate(ctx, "", func(models.Priority) service.Mutation {
		return service.Mutation{Action: priority.ActionAdd, Title: c.Title}
	})
}

type PriorityRemoveCmd struct {
	Target `embed:""`
	Ref    string `arg:"" help:"Position (1-based) or id prefix."`
}

func (c *PriorityRemoveCmd) Run(ctx *cli.Context) error {
	return c.mutate(ctx, c.Ref, func(p models.Priority) service.Mutation {
		return service.Mutation{Action: priority.ActionRemove, ID: p.ID}
	})
}

type PriorityToggleCmd struct {
	Target `embed:""`
	Ref    string `arg:"" help:"Position (1-based) or id prefix."`
}

func (c *PriorityToggleCmd) Run(ctx *cli.Context) error {
	return c.mutate(ctx, c.Ref, func(p models.Priority) service.Mutation {
		return service.Mutation{Action: priority.ActionToggle, ID: p.ID}
	})
}

type PriorityRenameCmd struct {
	Target `embed:""`
	Ref    string `arg:"" help:"Position (1-based) or id prefix."`
	Title  string `arg:"" help:"New title."`
}

func (c *PriorityRenameCmd) Run(ctx *cli.Context) error {
	return c.mutate(ctx, c.Ref, func(p models.Priority) service.Mutation {
		return service.Mutation{Action: priority.ActionRename, ID: p.ID, Title: c.Title}
	})
}

type PriorityMoveCmd struct {
	Target    `embed:""`
	Positions []int `arg:"" help:"Positions (1-based) to move."`
	To        int   `required:"" help:"Position (1-based) to insert before; one past the end appends."`
}

func (c *PriorityMoveCmd) Run(ctx *cli.Context) error {
	from := make([]int, len(c.Positions))
	for i, p := range c.Positions {
		if p < 1 {
			return fmt.Errorf("invalid position %d", p)
		}
		from[i] = p - 1
	}
	return c.mutate(ctx, "", func(models.Priority) service.Mutation {
		return service.Mutation{Action: priority.ActionReorder, From: from, To: c.To - 1}
	})
}
