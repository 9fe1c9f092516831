package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
	"github.com/julianstephens/daybook/internal/storage/memory"
)

func TestHabitsListOrderAndOwnerScope(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := NewHabits(store)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "new", "mid"} {
		offsets := []int{0, 10, 5}
		h := models.Habit{ID: id, Title: id, OwnerID: "u1", MetricCategory: models.MetricCompletion, StartDate: base.AddDate(0, 0, offsets[i])}
		if err := repo.Save(ctx, h); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}
	if err := repo.Save(ctx, models.Habit{ID: "other", Title: "x", OwnerID: "u2", StartDate: base}); err != nil {
		t.Fatalf("Save(other) error = %v", err)
	}

	habits, err := repo.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var got []string
	for _, h := range habits {
		got = append(got, h.ID)
	}
	want := []string{"new", "mid", "old"}
	if len(got) != len(want) {
		t.Fatalf("List() ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("List() ids = %v, want %v", got, want)
		}
	}
}

func TestHabitsListSkipsUndecodable(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repo := NewHabits(store)

	if err := repo.Save(ctx, models.Habit{ID: "ok", Title: "ok", OwnerID: "u1"}); err != nil {
		t.Fatal(err)
	}
	bad, err := storage.ParseDocument([]byte(`{"owner_id":"u1","current_streak":"many"}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Set(ctx, storage.HabitsPath("u1"), "bad", bad, false); err != nil {
		t.Fatal(err)
	}

	habits, err := repo.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(habits) != 1 || habits[0].ID != "ok" {
		t.Fatalf("List() = %+v, want only the decodable habit", habits)
	}

	if _, err := repo.Get(ctx, "u1", "bad"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get(bad) error = %v, want ErrNotFound", err)
	}
}

func TestRejectsInvalidOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewHabits(memory.New())
	for _, owner := range []string{"", "..", "a/b"} {
		if _, err := repo.List(ctx, owner); !errors.Is(err, apperrors.ErrInvalidTransition) {
			t.Errorf("List(%q) error = %v, want ErrInvalidTransition", owner, err)
		}
	}
}

func TestSchedulesPatchKeepsOtherFields(t *testing.T) {
	ctx := context.Background()
	repo := NewSchedules(memory.New())

	day := models.DaySchedule{ID: "2025-03-05", OwnerID: "u1", Date: "2025-03-05", WakeTime: "06:30", SleepTime: "22:00"}
	if err := repo.Save(ctx, "u1", models.Period{Kind: models.PeriodDay, Key: day.ID, Day: &day}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	items := []models.Priority{{ID: "p1", Title: "Write", IsCompleted: true}}
	at := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	if err := repo.PatchPriorities(ctx, "u1", models.PeriodDay, day.ID, items, at); err != nil {
		t.Fatalf("PatchPriorities() error = %v", err)
	}

	got, err := repo.GetDay(ctx, "u1", day.ID)
	if err != nil {
		t.Fatalf("GetDay() error = %v", err)
	}
	if got.WakeTime != "06:30" || got.SleepTime != "22:00" {
		t.Errorf("wake/sleep = %s/%s, want 06:30/22:00", got.WakeTime, got.SleepTime)
	}
	if len(got.Priorities) != 1 || got.Priorities[0].Title != "Write" || !got.Priorities[0].IsCompleted {
		t.Errorf("Priorities = %+v", got.Priorities)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, at)
	}
}

func TestSchedulesMonthCachePatch(t *testing.T) {
	ctx := context.Background()
	repo := NewSchedules(memory.New())

	month := models.MonthSchedule{ID: "2025-03", OwnerID: "u1", YearMonth: "2025-03", Priorities: []models.Priority{{ID: "m1", Title: "Ship"}}}
	if err := repo.Save(ctx, "u1", models.Period{Kind: models.PeriodMonth, Key: month.ID, Month: &month}); err != nil {
		t.Fatal(err)
	}
	byDay := map[string][]models.Priority{"2025-03-01": {{ID: "d1", Title: "a", IsCompleted: true}}}
	if err := repo.PatchMonthCache(ctx, "u1", "2025-03", map[string]float64{"2025-03-01": 1}, byDay); err != nil {
		t.Fatalf("PatchMonthCache() error = %v", err)
	}

	got, err := repo.GetMonth(ctx, "u1", "2025-03")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Priorities) != 1 || got.Priorities[0].Title != "Ship" {
		t.Errorf("month priorities changed: %+v", got.Priorities)
	}
	if got.DayCompletion["2025-03-01"] != 1 || len(got.DailyPrioritiesByDay["2025-03-01"]) != 1 {
		t.Errorf("cache = %+v / %+v", got.DayCompletion, got.DailyPrioritiesByDay)
	}
}

func TestSchedulesGetMissing(t *testing.T) {
	repo := NewSchedules(memory.New())
	if _, err := repo.Get(context.Background(), "u1", models.PeriodWeek, "2025-03-02"); !apperrors.IsNotFound(err) {
		t.Errorf("Get() error = %v, want not found", err)
	}
	if _, err := repo.Get(context.Background(), "u1", models.PeriodKind("year"), "2025"); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Get(year) error = %v, want ErrInvalidTransition", err)
	}
}

func TestSchedulesSubscribe(t *testing.T) {
	ctx := context.Background()
	repo := NewSchedules(memory.New())

	var mu sync.Mutex
	var seen []int
	done := make(chan struct{}, 8)
	sub, err := repo.Subscribe(ctx, "u1", models.PeriodDay, "2025-03-05", func(p models.Period, ok bool) {
		mu.Lock()
		defer mu.Unlock()
		if ok {
			seen = append(seen, len(p.Day.Priorities))
		} else {
			seen = append(seen, -1)
		}
		done <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Cancel()

	waitFor(t, done)
	if err := repo.PatchPriorities(ctx, "u1", models.PeriodDay, "2025-03-05", []models.Priority{{ID: "a", Title: "a"}}, time.Now()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, done)

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != -1 || seen[1] != 1 {
		t.Errorf("seen = %v, want [-1 1]", seen)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewSettings(memory.New())

	if _, err := repo.Get(ctx, "u1"); !apperrors.IsNotFound(err) {
		t.Fatalf("Get() on empty store error = %v, want not found", err)
	}
	s := models.Settings{
		OwnerID:          "u1",
		AccountCreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Timezone:         "UTC",
		WeekRules:        []models.WeekRule{{EffectiveFrom: "2025-01-01", Weekday: time.Monday}},
	}
	if err := repo.Save(ctx, s); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Get(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Timezone != "UTC" || len(got.WeekRules) != 1 || got.WeekRules[0].Weekday != time.Monday {
		t.Errorf("Get() = %+v", got)
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscription delivery")
	}
}
