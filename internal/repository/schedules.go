package repository

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
)

// Schedules reads and writes day, week and month schedule documents.
type Schedules struct {
	store storage.Store
}

func NewSchedules(s storage.Store) *Schedules {
	return &Schedules{store: s}
}

func periodPath(ownerID string, kind models.PeriodKind) (string, error) {
	if err := checkOwner(ownerID); err != nil {
		return "", err
	}
	path, err := storage.PeriodPath(ownerID, kind)
	if err != nil {
		return "", apperrors.InvalidTransition("period path", err.Error())
	}
	return path, nil
}

func newPeriod(kind models.PeriodKind, key string) (models.Period, any) {
	p := models.Period{Kind: kind, Key: key}
	switch kind {
	case models.PeriodWeek:
		p.Week = &models.WeekSchedule{}
		return p, p.Week
	case models.PeriodMonth:
		p.Month = &models.MonthSchedule{}
		return p, p.Month
	default:
		p.Day = &models.DaySchedule{}
		return p, p.Day
	}
}

// Get loads the schedule of kind identified by key.
func (r *Schedules) Get(ctx context.Context, ownerID string, kind models.PeriodKind, key string) (models.Period, error) {
	path, err := periodPath(ownerID, kind)
	if err != nil {
		return models.Period{}, err
	}
	p, target := newPeriod(kind, key)
	if err := load(ctx, r.store, path, key, target); err != nil {
		return models.Period{}, err
	}
	return p, nil
}

func (r *Schedules) GetDay(ctx context.Context, ownerID, key string) (models.DaySchedule, error) {
	p, err := r.Get(ctx, ownerID, models.PeriodDay, key)
	if err != nil {
		return models.DaySchedule{}, err
	}
	return *p.Day, nil
}

func (r *Schedules) GetMonth(ctx context.Context, ownerID, key string) (models.MonthSchedule, error) {
	p, err := r.Get(ctx, ownerID, models.PeriodMonth, key)
	if err != nil {
		return models.MonthSchedule{}, err
	}
	return *p.Month, nil
}

// Save overwrites the whole schedule document.
func (r *Schedules) Save(ctx context.Context, ownerID string, p models.Period) error {
	path, err := periodPath(ownerID, p.Kind)
	if err != nil {
		return err
	}
	var v any
	switch {
	case p.Day != nil:
		v = p.Day
	case p.Week != nil:
		v = p.Week
	case p.Month != nil:
		v = p.Month
	default:
		return apperrors.InvalidTransition("save schedule", fmt.Sprintf("empty %s schedule %q", p.Kind, p.Key))
	}
	return save(ctx, r.store, path, p.Key, v, false)
}

type prioritiesPatch struct {
	Priorities []models.Priority `json:"priorities"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// PatchPriorities replaces only the priority list of a schedule, leaving every
// other field as stored.
func (r *Schedules) PatchPriorities(ctx context.Context, ownerID string, kind models.PeriodKind, key string, items []models.Priority, at time.Time) error {
	path, err := periodPath(ownerID, kind)
	if err != nil {
		return err
	}
	doc, err := storage.Fields(prioritiesPatch{Priorities: models.ClonePriorities(items), UpdatedAt: at}, "priorities", "updated_at")
	if err != nil {
		return err
	}
	return r.store.Set(ctx, path, key, doc, true)
}

type monthCachePatch struct {
	DayCompletion        map[string]float64           `json:"day_completion"`
	DailyPrioritiesByDay map[string][]models.Priority `json:"daily_priorities_by_day"`
}

// PatchMonthCache replaces the derived per-day fields of a month schedule.
func (r *Schedules) PatchMonthCache(ctx context.Context, ownerID, key string, completion map[string]float64, byDay map[string][]models.Priority) error {
	path, err := periodPath(ownerID, models.PeriodMonth)
	if err != nil {
		return err
	}
	doc, err := storage.Fields(monthCachePatch{DayCompletion: completion, DailyPrioritiesByDay: byDay}, "day_completion", "daily_priorities_by_day")
	if err != nil {
		return err
	}
	return r.store.Set(ctx, path, key, doc, true)
}

// Subscribe calls fn with every state of the schedule document. ok is false
// while the document is missing or undecodable.
func (r *Schedules) Subscribe(ctx context.Context, ownerID string, kind models.PeriodKind, key string, fn func(p models.Period, ok bool)) (*storage.Subscription, error) {
	path, err := periodPath(ownerID, kind)
	if err != nil {
		return nil, err
	}
	return r.store.Subscribe(ctx, path, key, func(c storage.Change) {
		p, target := newPeriod(kind, key)
		ok := decodeChange(c, target)
		fn(p, ok)
	})
}
