package schedule

import (
	"context"

	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
)

// Watch subscribes to the period of kind identified by key after cancelling
// every subscription of the previously watched period. fn receives each
// state of the period document. A month watch also subscribes to each
// visible day of the month; their states overwrite the day's entry in the
// month status cache and are passed to fn as day periods.
func (a *Aggregator) Watch(ctx context.Context, kind models.PeriodKind, key string, fn func(models.Period)) error {
	if _, err := a.Policy().ParseKey(kind, key); err != nil {
		return err
	}

	a.mu.Lock()
	a.cancelLocked()
	a.watchGen++
	gen := a.watchGen
	a.watching = string(kind) + "/" + key
	if kind == models.PeriodMonth && a.month != key {
		a.month = key
		a.byDay = make(map[string][]models.Priority)
	}
	a.mu.Unlock()
	logger.Debug("Replaced period subscriptions", "owner", a.ownerID, "kind", kind, "key", key)

	subs := make([]*storage.Subscription, 0, 1)
	cancelAll := func() {
		for _, s := range subs {
			s.Cancel()
		}
	}

	sub, err := a.repo.Subscribe(ctx, a.ownerID, kind, key, func(p models.Period, ok bool) {
		if ok && a.current(gen) {
			fn(p)
		}
	})
	if err != nil {
		return err
	}
	subs = append(subs, sub)

	if kind == models.PeriodMonth {
		days, err := a.visibleDays(key)
		if err != nil {
			cancelAll()
			return err
		}
		for _, day := range days {
			day := day
			sub, err := a.repo.Subscribe(ctx, a.ownerID, models.PeriodDay, day, func(p models.Period, ok bool) {
				items := []models.Priority{}
				if ok {
					items = models.ClonePriorities(p.Day.Priorities)
				}
				if !a.storeDay(gen, key, day, items) {
					return
				}
				if ok {
					fn(p)
				}
			})
			if err != nil {
				cancelAll()
				return err
			}
			subs = append(subs, sub)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watchGen != gen {
		// A newer Watch replaced this one while subscribing.
		cancelAll()
		return nil
	}
	a.subs = subs
	return nil
}

// Watching returns the "kind/key" of the watched period, or "" if none.
func (a *Aggregator) Watching() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.watching
}

// Unwatch cancels every subscription of the watched period.
func (a *Aggregator) Unwatch() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cancelLocked()
	a.watchGen++
	a.watching = ""
}

func (a *Aggregator) cancelLocked() {
	for _, s := range a.subs {
		s.Cancel()
	}
	a.subs = nil
}

func (a *Aggregator) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.watchGen == gen
}

func (a *Aggregator) storeDay(gen uint64, monthKey, dayKey string, items []models.Priority) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.watchGen != gen || a.month != monthKey {
		return false
	}
	a.byDay[dayKey] = items
	return true
}
