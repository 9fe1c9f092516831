package periods

import (
	"context"

	"github.com/julianstephens/daybook/internal/calendar"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/models"
)

type ImportCmd struct {
	Kind string `arg:"" enum:"day,week,month" help:"Period kind (day, week, month)."`
}

// Run copies the previous period's unfinished priorities into the current one.
func (c *ImportCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	kind, err := models.ParsePeriodKind(c.Kind)
	if err != nil {
		return err
	}
	svc := ctx.Service()
	key, err := svc.Today(bg, ctx.Owner, kind)
	if err != nil {
		return err
	}
	n, err := svc.ImportUnfinished(bg, ctx.Owner, kind, key)
	if err != nil {
		return err
	}
	ctx.Printf("Imported %d unfinished priorit%s into %s %s.\n", n, plural(n), kind, key)
	return nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

type NavCmd struct {
	Kind      string `arg:"" enum:"day,week,month" help:"Period kind (day, week, month)."`
	Direction string `arg:"" enum:"prev,next" help:"prev or next."`
	From      string `help:"Key to move from (default: current period)."`
}

func (c *NavCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	kind, err := models.ParsePeriodKind(c.Kind)
	if err != nil {
		return err
	}
	from, err := ctx.ResolveKey(bg, kind, c.From, "")
	if err != nil {
		return err
	}
	dir := calendar.Forward
	if c.Direction == "prev" {
		dir = calendar.Backward
	}
	svc := ctx.Service()
	key, err := svc.NavigatePeriod(bg, ctx.Owner, kind, from, dir)
	if err != nil {
		return err
	}
	view, err := svc.LoadPeriodKey(bg, ctx.Owner, kind, key)
	if err != nil {
		return err
	}
	return printView(bg, ctx, view)
}
