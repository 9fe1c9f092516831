package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/memory"
)

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestWatchMonthTracksDays(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a, repo := newAggregator(t, store)
	saveDay(t, repo, "2025-03-01", item("a", true))

	updates := make(chan models.Period, 64)
	if err := a.Watch(ctx, models.PeriodMonth, "2025-03", func(p models.Period) { updates <- p }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if a.Watching() != "month/2025-03" {
		t.Errorf("Watching() = %q", a.Watching())
	}

	eventually(t, func() bool {
		_, status := a.MonthStatus()
		return status["2025-03-01"] == models.DayStatus{Done: 1, Total: 1}
	})

	// A write from elsewhere reaches the cache through the day subscription.
	saveDay(t, repo, "2025-03-05", item("a", false), item("b", true))
	eventually(t, func() bool {
		_, status := a.MonthStatus()
		return status["2025-03-05"] == models.DayStatus{Done: 1, Total: 2}
	})

	if n := store.Subscribers(storage.DaysPath(owner), "2025-03-11"); n != 0 {
		t.Errorf("future day has %d subscribers", n)
	}
}

func TestWatchReplacesPreviousSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	a, _ := newAggregator(t, store)
	noop := func(models.Period) {}

	// A burst of navigation leaves only the last period subscribed.
	for _, key := range []string{"2025-01", "2025-02", "2025-03"} {
		if err := a.Watch(ctx, models.PeriodMonth, key, noop); err != nil {
			t.Fatal(err)
		}
	}
	if n := store.Subscribers(storage.DaysPath(owner), "2025-02-14"); n != 0 {
		t.Errorf("stale day subscribers = %d", n)
	}
	if n := store.Subscribers(storage.MonthsPath(owner), "2025-01"); n != 0 {
		t.Errorf("stale month subscribers = %d", n)
	}
	if n := store.Subscribers(storage.DaysPath(owner), "2025-03-02"); n != 1 {
		t.Errorf("current day subscribers = %d, want 1", n)
	}

	if err := a.Watch(ctx, models.PeriodDay, "2025-03-10", noop); err != nil {
		t.Fatal(err)
	}
	if n := store.Subscribers(storage.DaysPath(owner), "2025-03-02"); n != 0 {
		t.Errorf("month day subscribers after day watch = %d", n)
	}
	if n := store.Subscribers(storage.DaysPath(owner), "2025-03-10"); n != 1 {
		t.Errorf("day subscribers = %d, want 1", n)
	}

	a.Unwatch()
	if n := store.Subscribers(storage.DaysPath(owner), "2025-03-10"); n != 0 {
		t.Errorf("subscribers after Unwatch = %d", n)
	}
	if a.Watching() != "" {
		t.Errorf("Watching() = %q after Unwatch", a.Watching())
	}
}

func TestWatchDayDeliversChanges(t *testing.T) {
	ctx := context.Background()
	a, _ := newAggregator(t, memory.New())

	updates := make(chan models.Period, 16)
	if err := a.Watch(ctx, models.PeriodDay, "2025-03-10", func(p models.Period) { updates <- p }); err != nil {
		t.Fatal(err)
	}
	if err := a.PatchDayPriorities(ctx, "2025-03-10", []models.Priority{item("a", false)}); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-updates:
			if p.Day != nil && len(p.Day.Priorities) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("patched day was not delivered")
		}
	}
}
