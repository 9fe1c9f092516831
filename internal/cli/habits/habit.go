package habits

import (
	"context"
	"fmt"
	"strings"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/service"
)

type HabitCmd struct {
	Add    HabitAddCmd    `cmd:"" help:"Add a new habit."`
	List   HabitListCmd   `cmd:"" help:"List habits." default:"1"`
	Toggle HabitToggleCmd `cmd:"" help:"Mark or unmark a habit for today."`
	Delete HabitDeleteCmd `cmd:"" help:"Delete a habit."`
	Reset  HabitResetCmd  `cmd:"" help:"Clear completions left over from previous days."`
}

type HabitAddCmd struct {
	Title       string `arg:"" help:"Habit title."`
	Category    string `help:"Metric category (time, quantity, completion, performance, custom)." default:"completion"`
	Metric      string `help:"Metric name, e.g. reading."`
	Unit        string `help:"Metric unit, e.g. minutes."`
	Goal        string `help:"Goal description."`
	Description string `help:"Longer description."`
	Start       string `help:"Start date in YYYY-MM-DD format (default: today)."`
}

func (c *HabitAddCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	spec := service.HabitSpec{
		Title:          c.Title,
		Description:    c.Description,
		Goal:           c.Goal,
		MetricCategory: models.MetricCategory(c.Category),
		MetricType:     models.MetricType{Name: c.Metric, Unit: c.Unit},
	}
	if c.Start != "" {
		t, err := ctx.Service().ParseDate(bg, ctx.Owner, c.Start)
		if err != nil {
			return err
		}
		spec.StartDate = t
	}
	h, err := ctx.Service().AddHabit(bg, ctx.Owner, spec)
	if err != nil {
		return err
	}
	ctx.Printf("Added habit: %s (%s)\n", h.Title, h.ID)
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *cli.Context) error {
	habits, err := ctx.Service().ListHabits(context.Background(), ctx.Owner)
	if err != nil {
		return err
	}
	cli.PrintHabits(ctx.Out, habits)
	return nil
}

type HabitToggleCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
}

func (c *HabitToggleCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	svc := ctx.Service()
	h, err := find(bg, ctx, c.Habit)
	if err != nil {
		return err
	}
	res, err := svc.ToggleHabit(bg, ctx.Owner, h.ID)
	if err != nil {
		return err
	}

	if !res.Outcome.Completed {
		ctx.Printf("Unmarked %s. Streak: %d\n", res.Habit.Title, res.Habit.CurrentStreak)
		return nil
	}
	ctx.Printf("Marked %s. Streak: %d (best %d), +%d points\n",
		res.Habit.Title, res.Habit.CurrentStreak, res.Habit.LongestStreak, res.Outcome.Points)
	if res.Outcome.Bonus > 0 {
		ctx.Printf("Streak bonus: +%d points\n", res.Outcome.Bonus)
	}
	for _, b := range res.Outcome.BadgesEarned {
		ctx.Printf("Badge earned: %s\n", b)
	}
	return nil
}

type HabitDeleteCmd struct {
	Habit string `arg:"" help:"Habit id, id prefix or title."`
	Yes   bool   `short:"y" help:"Do not ask for confirmation."`
}

func (c *HabitDeleteCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	h, err := find(bg, ctx, c.Habit)
	if err != nil {
		return err
	}
	ok, err := ctx.Confirm(c.Yes, fmt.Sprintf("Delete habit %q?", h.Title),
		fmt.Sprintf("Its %d-day streak and %d points are lost.", h.CurrentStreak, h.Points))
	if err != nil {
		return err
	}
	if !ok {
		ctx.Println("Cancelled.")
		return nil
	}
	if err := ctx.Service().DeleteHabit(bg, ctx.Owner, h.ID); err != nil {
		return err
	}
	ctx.Printf("Deleted habit: %s\n", h.Title)
	return nil
}

type HabitResetCmd struct{}

func (c *HabitResetCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	n, err := ctx.Service().ResetHabits(bg, ctx.Owner)
	if err != nil {
		return err
	}
	today, err := ctx.Service().Today(bg, ctx.Owner, models.PeriodDay)
	if err != nil {
		return err
	}
	ctx.Printf("Reset %d habit(s) for %s.\n", n, today)
	return nil
}

// find resolves ref by id, title, then unique id prefix.
func find(ctx context.Context, c *cli.Context, ref string) (models.Habit, error) {
	svc := c.Service()
	h, err := svc.FindHabit(ctx, c.Owner, ref)
	if err == nil {
		return h, nil
	}
	habits, lerr := svc.ListHabits(ctx, c.Owner)
	if lerr != nil {
		return models.Habit{}, lerr
	}
	var match []models.Habit
	for _, h := range habits {
		if strings.HasPrefix(h.ID, ref) || strings.EqualFold(h.Title, ref) {
			match = append(match, h)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return models.Habit{}, err
	default:
		return models.Habit{}, fmt.Errorf("%q matches %d habits", ref, len(match))
	}
}
