package habits

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/repository"
	"github.com/julianstephens/daybook/internal/service"
	"github.com/julianstephens/daybook/internal/storage/memory"
)

func setupHabitContext(t *testing.T) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	store := memory.New()
	err := repository.NewSettings(store).Save(context.Background(), models.Settings{
		OwnerID:          "u1",
		AccountCreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Timezone:         "UTC",
	})
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := cli.NewContext(store, "u1", service.WithClock(func() time.Time { return now }))
	out := &bytes.Buffer{}
	ctx.Out = out
	ctx.Prompt = nil
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, out
}

func TestHabitCommands(t *testing.T) {
	ctx, out := setupHabitContext(t)

	if err := (&HabitAddCmd{Title: "Read", Category: "time", Metric: "reading", Unit: "minutes"}).Run(ctx); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out.String(), "Added habit: Read") {
		t.Errorf("add output = %q", out.String())
	}

	out.Reset()
	if err := (&HabitToggleCmd{Habit: "read"}).Run(ctx); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !strings.Contains(out.String(), "Marked Read. Streak: 1 (best 1), +2 points") {
		t.Errorf("toggle output = %q", out.String())
	}

	out.Reset()
	if err := (&HabitListCmd{}).Run(ctx); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), "Read") || !strings.Contains(out.String(), "[x]") {
		t.Errorf("list output = %q", out.String())
	}

	out.Reset()
	if err := (&HabitToggleCmd{Habit: "Read"}).Run(ctx); err != nil {
		t.Fatalf("untoggle: %v", err)
	}
	if !strings.Contains(out.String(), "Unmarked Read. Streak: 0") {
		t.Errorf("untoggle output = %q", out.String())
	}

	out.Reset()
	if err := (&HabitResetCmd{}).Run(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !strings.Contains(out.String(), "Reset 0 habit(s) for 2025-03-10") {
		t.Errorf("reset output = %q", out.String())
	}
}

func TestHabitDelete(t *testing.T) {
	ctx, out := setupHabitContext(t)
	if err := (&HabitAddCmd{Title: "Run"}).Run(ctx); err != nil {
		t.Fatal(err)
	}

	// Without --yes and without a prompt the deletion is declined.
	out.Reset()
	if err := (&HabitDeleteCmd{Habit: "Run"}).Run(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Cancelled") {
		t.Errorf("declined delete output = %q", out.String())
	}

	if err := (&HabitDeleteCmd{Habit: "Run", Yes: true}).Run(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	habits, err := ctx.Service().ListHabits(context.Background(), "u1")
	if err != nil || len(habits) != 0 {
		t.Errorf("habits after delete = %v, %v", habits, err)
	}

	if err := (&HabitToggleCmd{Habit: "Run"}).Run(ctx); err == nil {
		t.Error("toggling a deleted habit succeeded")
	}
}
