package periods

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/service"
)

type DayCmd struct {
	Show   DayShowCmd   `cmd:"" help:"Show a day." default:"withargs"`
	Blocks DayBlocksCmd `cmd:"" help:"Split a day into time blocks holding its open priorities."`
}

type WeekCmd struct {
	Show WeekShowCmd `cmd:"" help:"Show a week." default:"withargs"`
}

type MonthCmd struct {
	Show MonthShowCmd `cmd:"" help:"Show a month with its day calendar." default:"withargs"`
}

type ShowFlags struct {
	Key    string `arg:"" optional:"" help:"Period key (default: current period)."`
	Date   string `help:"Show the period containing this date (YYYY-MM-DD)."`
	Follow bool   `short:"f" help:"Keep running and redraw on every change."`
}

type DayShowCmd struct {
	ShowFlags `embed:""`
}

func (c *DayShowCmd) Run(ctx *cli.Context) error {
	return c.show(ctx, models.PeriodDay)
}

type WeekShowCmd struct {
	ShowFlags `embed:""`
}

func (c *WeekShowCmd) Run(ctx *cli.Context) error {
	return c.show(ctx, models.PeriodWeek)
}

type MonthShowCmd struct {
	ShowFlags `embed:""`
}

func (c *MonthShowCmd) Run(ctx *cli.Context) error {
	return c.show(ctx, models.PeriodMonth)
}

func (f *ShowFlags) show(ctx *cli.Context, kind models.PeriodKind) error {
	bg, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, err := ctx.ResolveKey(bg, kind, f.Key, f.Date)
	if err != nil {
		return err
	}
	view, err := ctx.Service().LoadPeriodKey(bg, ctx.Owner, kind, key)
	if err != nil {
		return err
	}
	if err := printView(bg, ctx, view); err != nil {
		return err
	}
	if !f.Follow {
		return nil
	}
	return follow(bg, ctx, view)
}

func printView(bg context.Context, ctx *cli.Context, view service.PeriodView) error {
	svc := ctx.Service()
	today, err := svc.Today(bg, ctx.Owner, models.PeriodDay)
	if err != nil {
		return err
	}
	first := time.Sunday
	if view.Kind == models.PeriodMonth {
		anchor, err := svc.ParseDate(bg, ctx.Owner, view.Key+"-01")
		if err != nil {
			return err
		}
		if first, err = svc.FirstWeekday(bg, ctx.Owner, anchor); err != nil {
			return err
		}
	}
	cli.PrintPeriod(ctx.Out, view, first, today)
	return nil
}

// follow redraws view until bg is cancelled. Month views refresh their day
// calendar from the cached status.
func follow(bg context.Context, ctx *cli.Context, view service.PeriodView) error {
	svc := ctx.Service()
	var mu sync.Mutex
	redraw := func(p models.Period) {
		mu.Lock()
		defer mu.Unlock()
		if p.Kind == view.Kind {
			view.Period = p
		}
		if view.Kind == models.PeriodMonth {
			if _, status, err := svc.MonthStatusCached(bg, ctx.Owner); err == nil {
				view.Status = status
			}
		}
		ctx.Printf("\n-- %s --\n", svc.Now().Format(time.TimeOnly))
		_ = printView(bg, ctx, view)
	}

	if err := svc.Watch(bg, ctx.Owner, view.Kind, view.Key, redraw); err != nil {
		return err
	}
	defer func() { _ = svc.Unwatch(context.Background(), ctx.Owner) }()

	<-bg.Done()
	return nil
}

type DayBlocksCmd struct {
	Key  string `arg:"" optional:"" help:"Day key (default: today)."`
	Date string `help:"Alias of the day key (YYYY-MM-DD)."`
}

func (c *DayBlocksCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	key, err := ctx.ResolveKey(bg, models.PeriodDay, c.Key, c.Date)
	if err != nil {
		return err
	}
	blocks, err := ctx.Service().DayBlocks(bg, ctx.Owner, key)
	if err != nil {
		return err
	}
	ctx.Printf("Time blocks for %s\n", key)
	cli.PrintBlocks(ctx.Out, blocks)
	return nil
}
