// Package schedule loads, materializes and keeps consistent the day, week and
// month schedules of one owner.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/daybook/internal/calendar"
	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/repository"
	"github.com/julianstephens/daybook/internal/storage"
)

// Aggregator owns the month day-status cache and the subscriptions of the
// currently watched period. It is the only writer of either.
type Aggregator struct {
	repo    *repository.Schedules
	ownerID string
	now     func() time.Time

	loads singleflight.Group

	// cacheMu serializes read-modify-writes of the stored month cache.
	cacheMu sync.Mutex

	mu       sync.Mutex
	policy   *calendar.Policy
	wake     string
	sleep    string
	month    string
	byDay    map[string][]models.Priority
	watching string
	watchGen uint64
	subs     []*storage.Subscription
}

type Option func(*Aggregator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithDayDefaults sets the wake and sleep times of newly materialized days.
func WithDayDefaults(wake, sleep string) Option {
	return func(a *Aggregator) {
		if wake != "" {
			a.wake = wake
		}
		if sleep != "" {
			a.sleep = sleep
		}
	}
}

func New(repo *repository.Schedules, ownerID string, policy *calendar.Policy, opts ...Option) *Aggregator {
	a := &Aggregator{
		repo:    repo,
		ownerID: ownerID,
		now:     time.Now,
		wake:    constants.DefaultWakeTime,
		sleep:   constants.DefaultSleepTime,
		policy:  policy,
		byDay:   make(map[string][]models.Priority),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetPolicy swaps the calendar policy after a settings change.
func (a *Aggregator) SetPolicy(p *calendar.Policy) {
	a.mu.Lock()
	a.policy = p
	a.mu.Unlock()
}

// SetDayDefaults changes the wake and sleep times of days materialized from
// now on.
func (a *Aggregator) SetDayDefaults(wake, sleep string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if wake != "" {
		a.wake = wake
	}
	if sleep != "" {
		a.sleep = sleep
	}
}

func (a *Aggregator) Policy() *calendar.Policy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.policy
}

// LoadOrCreate fetches a schedule, materializing and persisting an empty one
// when it does not exist. Concurrent calls for the same period share a
// single fetch and write.
func (a *Aggregator) LoadOrCreate(ctx context.Context, kind models.PeriodKind, key string) (models.Period, error) {
	if _, err := a.Policy().ParseKey(kind, key); err != nil {
		return models.Period{}, err
	}

	// The shared load runs detached from any one caller so a cancelled
	// caller cannot fail the others waiting on it.
	flight := fmt.Sprintf("%s/%s/%s", kind, a.ownerID, key)
	shared := context.WithoutCancel(ctx)
	ch := a.loads.DoChan(flight, func() (any, error) {
		p, err := a.repo.Get(shared, a.ownerID, kind, key)
		if err == nil {
			return p, nil
		}
		if !apperrors.IsNotFound(err) {
			return nil, apperrors.EnsurePersistence("load schedule", err)
		}

		p = a.defaultPeriod(kind, key)
		if err := a.repo.Save(shared, a.ownerID, p); err != nil {
			return nil, apperrors.EnsurePersistence("create schedule", err)
		}
		logger.Debug("Materialized default schedule", "owner", a.ownerID, "kind", kind, "key", key)
		return p, nil
	})
	var v any
	select {
	case <-ctx.Done():
		return models.Period{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.Period{}, res.Err
		}
		v = res.Val
	}
	return v.(models.Period).Clone(), nil
}

// Load fetches a schedule without materializing it.
func (a *Aggregator) Load(ctx context.Context, kind models.PeriodKind, key string) (models.Period, error) {
	if _, err := a.Policy().ParseKey(kind, key); err != nil {
		return models.Period{}, err
	}
	return a.repo.Get(ctx, a.ownerID, kind, key)
}

func (a *Aggregator) defaultPeriod(kind models.PeriodKind, key string) models.Period {
	now := a.now().UTC()
	a.mu.Lock()
	wake, sleep := a.wake, a.sleep
	a.mu.Unlock()
	p := models.Period{Kind: kind, Key: key}
	switch kind {
	case models.PeriodWeek:
		p.Week = &models.WeekSchedule{
			ID:         key,
			OwnerID:    a.ownerID,
			WeekStart:  key,
			Priorities: []models.Priority{},
			Intentions: map[string]string{},
			Todos:      map[string][]models.TodoItem{},
			UpdatedAt:  now,
		}
	case models.PeriodMonth:
		p.Month = &models.MonthSchedule{
			ID:                   key,
			OwnerID:              a.ownerID,
			YearMonth:            key,
			Priorities:           []models.Priority{},
			DayCompletion:        map[string]float64{},
			DailyPrioritiesByDay: map[string][]models.Priority{},
			UpdatedAt:            now,
		}
	default:
		p.Day = &models.DaySchedule{
			ID:         key,
			OwnerID:    a.ownerID,
			Date:       key,
			WakeTime:   wake,
			SleepTime:  sleep,
			Priorities: []models.Priority{},
			UpdatedAt:  now,
		}
	}
	return p
}
