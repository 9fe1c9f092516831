package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage/memory"
)

func TestPatchDayPrioritiesUpdatesMonthCache(t *testing.T) {
	ctx := context.Background()
	a, repo := newAggregator(t, memory.New())
	if _, _, err := a.RefreshMonth(ctx, "2025-03"); err != nil {
		t.Fatal(err)
	}

	items := []models.Priority{item("a", true), item("b", false)}
	if err := a.PatchDayPriorities(ctx, "2025-03-10", items); err != nil {
		t.Fatalf("PatchDayPriorities() error = %v", err)
	}

	day, err := repo.GetDay(ctx, owner, "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(day.Priorities) != 2 || day.WakeTime != "06:00" {
		t.Errorf("day = %+v", day)
	}

	_, status := a.MonthStatus()
	if status["2025-03-10"] != (models.DayStatus{Done: 1, Total: 2}) {
		t.Errorf("cached status = %+v", status["2025-03-10"])
	}

	month, err := repo.GetMonth(ctx, owner, "2025-03")
	if err != nil {
		t.Fatal(err)
	}
	if got := RecomputeMonthDayStatus(month)["2025-03-10"]; got != (models.DayStatus{Done: 1, Total: 2}) {
		t.Errorf("stored status = %+v", got)
	}
	if month.DayCompletion["2025-03-10"] != 0.5 {
		t.Errorf("stored completion = %v", month.DayCompletion["2025-03-10"])
	}
}

func TestPatchDayPrioritiesRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	faulty := memory.NewFaulty(memory.New())
	a, repo := newAggregator(t, faulty)
	saveDay(t, repo, "2025-03-09", item("a", false))
	if _, _, err := a.RefreshMonth(ctx, "2025-03"); err != nil {
		t.Fatal(err)
	}

	faulty.FailWrites(errors.New("offline"))
	err := a.PatchDayPriorities(ctx, "2025-03-09", []models.Priority{item("a", true)})
	if !errors.Is(err, apperrors.ErrPersistence) || !apperrors.IsRetryable(err) {
		t.Fatalf("PatchDayPriorities() error = %v, want retryable persistence failure", err)
	}

	_, status := a.MonthStatus()
	if status["2025-03-09"] != (models.DayStatus{Done: 0, Total: 1}) {
		t.Errorf("cached status after failure = %+v, want restored 0/1", status["2025-03-09"])
	}
	faulty.FailWrites(nil)
	day, err := repo.GetDay(ctx, owner, "2025-03-09")
	if err != nil {
		t.Fatal(err)
	}
	if day.Priorities[0].IsCompleted {
		t.Error("failed patch reached the store")
	}
}

func TestConcurrentDayPatchesKeepEveryMonthEntry(t *testing.T) {
	ctx := context.Background()
	a, repo := newAggregator(t, memory.New())

	days := []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04", "2025-03-05", "2025-03-06", "2025-03-07", "2025-03-08"}
	var wg sync.WaitGroup
	errs := make(chan error, len(days))
	for _, day := range days {
		day := day
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- a.PatchDayPriorities(ctx, day, []models.Priority{item(day, true)})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("PatchDayPriorities() error = %v", err)
		}
	}

	month, err := repo.GetMonth(ctx, owner, "2025-03")
	if err != nil {
		t.Fatal(err)
	}
	for _, day := range days {
		if got := month.DailyPrioritiesByDay[day]; len(got) != 1 || got[0].Title != day {
			t.Errorf("stored month entry for %s = %+v", day, got)
		}
		if month.DayCompletion[day] != 1 {
			t.Errorf("stored completion for %s = %v, want 1", day, month.DayCompletion[day])
		}
	}
}

func TestSavePrioritiesWeek(t *testing.T) {
	ctx := context.Background()
	a, repo := newAggregator(t, memory.New())
	if err := a.SavePriorities(ctx, models.PeriodWeek, "2025-03-09", []models.Priority{item("plan", false)}); err != nil {
		t.Fatal(err)
	}
	p, err := repo.Get(ctx, owner, models.PeriodWeek, "2025-03-09")
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Week.Priorities) != 1 || p.Week.WeekStart != "2025-03-09" {
		t.Errorf("week = %+v", p.Week)
	}
}

func TestCarryOverUnfinished(t *testing.T) {
	ctx := context.Background()
	a, repo := newAggregator(t, memory.New())
	saveDay(t, repo, "2025-03-09", item("write", false), item("run", true), item("call", false))
	saveDay(t, repo, "2025-03-10", item("call", false))

	n, err := a.CarryOverUnfinished(ctx, models.PeriodDay, "2025-03-09", "2025-03-10")
	if err != nil {
		t.Fatalf("CarryOverUnfinished() error = %v", err)
	}
	if n != 1 {
		t.Errorf("imported = %d, want 1", n)
	}
	day, err := repo.GetDay(ctx, owner, "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	var titles []string
	for _, p := range day.Priorities {
		titles = append(titles, p.Title)
		if p.IsCompleted {
			t.Errorf("imported %q as completed", p.Title)
		}
	}
	if len(titles) != 2 || titles[0] != "call" || titles[1] != "write" {
		t.Errorf("titles = %v, want [call write]", titles)
	}
	source, err := repo.GetDay(ctx, owner, "2025-03-09")
	if err != nil {
		t.Fatal(err)
	}
	if len(source.Priorities) != 3 {
		t.Errorf("source was modified: %+v", source.Priorities)
	}

	again, err := a.CarryOverUnfinished(ctx, models.PeriodDay, "2025-03-09", "2025-03-10")
	if err != nil || again != 0 {
		t.Errorf("second import = %d, %v; want 0, nil", again, err)
	}
}

func TestCarryOverUnfinishedRejects(t *testing.T) {
	ctx := context.Background()
	a, _ := newAggregator(t, memory.New())

	tests := []struct {
		name           string
		kind           models.PeriodKind
		source, target string
	}{
		{"past target", models.PeriodDay, "2025-03-08", "2025-03-09"},
		{"non-adjacent source", models.PeriodDay, "2025-03-08", "2025-03-10"},
		{"future source", models.PeriodMonth, "2025-04", "2025-03"},
		{"bad key", models.PeriodWeek, "2025-03-02", "week-10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.CarryOverUnfinished(ctx, tt.kind, tt.source, tt.target); !errors.Is(err, apperrors.ErrInvalidTransition) {
				t.Errorf("error = %v, want ErrInvalidTransition", err)
			}
		})
	}
}

func TestCarryOverMissingSource(t *testing.T) {
	a, _ := newAggregator(t, memory.New())
	n, err := a.CarryOverUnfinished(context.Background(), models.PeriodWeek, "2025-03-02", "2025-03-09")
	if err != nil || n != 0 {
		t.Errorf("CarryOverUnfinished() = %d, %v; want 0, nil", n, err)
	}
}
