package schedule

import (
	"context"
	"fmt"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/priority"
)

// PatchDayPriorities writes only the priority list of a day. The cached month
// status is updated first and restored if the write fails; the month's stored
// per-day cache is then refreshed for that day.
func (a *Aggregator) PatchDayPriorities(ctx context.Context, dayKey string, items []models.Priority) error {
	p := a.Policy()
	start, err := p.ParseKey(models.PeriodDay, dayKey)
	if err != nil {
		return err
	}
	if _, err := a.LoadOrCreate(ctx, models.PeriodDay, dayKey); err != nil {
		return err
	}
	monthKey := p.Key(models.PeriodMonth, start)

	a.mu.Lock()
	cached := a.month == monthKey
	prev, had := a.byDay[dayKey]
	if cached {
		a.byDay[dayKey] = models.ClonePriorities(items)
	}
	a.mu.Unlock()

	if err := a.repo.PatchPriorities(ctx, a.ownerID, models.PeriodDay, dayKey, items, a.now().UTC()); err != nil {
		if cached {
			a.restoreDay(monthKey, dayKey, prev, had)
		}
		logger.Warn("Rolled back day priorities", "owner", a.ownerID, "day", dayKey, "error", err)
		return apperrors.EnsurePersistence("patch day priorities", err)
	}

	a.syncMonthDay(ctx, monthKey, dayKey, items)
	return nil
}

func (a *Aggregator) restoreDay(monthKey, dayKey string, prev []models.Priority, had bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.month != monthKey {
		return
	}
	if had {
		a.byDay[dayKey] = prev
	} else {
		delete(a.byDay, dayKey)
	}
}

// syncMonthDay copies a day's priorities into the stored month cache. The
// day document stays authoritative, so failures are only logged.
func (a *Aggregator) syncMonthDay(ctx context.Context, monthKey, dayKey string, items []models.Priority) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	if _, err := a.LoadOrCreate(ctx, models.PeriodMonth, monthKey); err != nil {
		logger.Warn("Failed to load month for cache sync", "owner", a.ownerID, "month", monthKey, "error", err)
		return
	}
	// Read again under cacheMu: a load shared with another caller may
	// predate the last sync.
	month, err := a.repo.GetMonth(ctx, a.ownerID, monthKey)
	if err != nil {
		logger.Warn("Failed to load month for cache sync", "owner", a.ownerID, "month", monthKey, "error", err)
		return
	}
	byDay := month.DailyPrioritiesByDay
	if byDay == nil {
		byDay = make(map[string][]models.Priority)
	}
	byDay[dayKey] = models.ClonePriorities(items)
	if err := a.repo.PatchMonthCache(ctx, a.ownerID, monthKey, completion(dayStatus(byDay)), byDay); err != nil {
		logger.Warn("Failed to sync month cache", "owner", a.ownerID, "month", monthKey, "day", dayKey, "error", err)
	}
}

// SavePriorities replaces the priority list of any period.
func (a *Aggregator) SavePriorities(ctx context.Context, kind models.PeriodKind, key string, items []models.Priority) error {
	if kind == models.PeriodDay {
		return a.PatchDayPriorities(ctx, key, items)
	}
	if _, err := a.LoadOrCreate(ctx, kind, key); err != nil {
		return err
	}
	if err := a.repo.PatchPriorities(ctx, a.ownerID, kind, key, items, a.now().UTC()); err != nil {
		return apperrors.EnsurePersistence(fmt.Sprintf("save %s priorities", kind), err)
	}
	return nil
}

// CarryOverUnfinished imports the unfinished priorities of sourceKey into
// targetKey. The target must be the current period and the source the one
// immediately before it. Only the target is written.
func (a *Aggregator) CarryOverUnfinished(ctx context.Context, kind models.PeriodKind, sourceKey, targetKey string) (int, error) {
	p := a.Policy()
	if _, err := p.ParseKey(kind, targetKey); err != nil {
		return 0, err
	}
	if !p.IsCurrentKey(kind, targetKey, a.now()) {
		return 0, apperrors.InvalidTransition("import unfinished", fmt.Sprintf("%s %s is not the current %s", kind, targetKey, kind))
	}
	prev, err := p.PreviousKey(kind, targetKey)
	if err != nil {
		return 0, err
	}
	if sourceKey != prev {
		return 0, apperrors.InvalidTransition("import unfinished", fmt.Sprintf("can only import from %s %s, not %s", kind, prev, sourceKey))
	}

	source, err := a.repo.Get(ctx, a.ownerID, kind, sourceKey)
	if apperrors.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, apperrors.EnsurePersistence("load import source", err)
	}

	target, err := a.LoadOrCreate(ctx, kind, targetKey)
	if err != nil {
		return 0, err
	}
	list := priority.NewList(kind, target.Priorities())
	n := list.ImportUnfinished(source.Priorities())
	if n == 0 {
		return 0, nil
	}
	if err := a.SavePriorities(ctx, kind, targetKey, list.Items); err != nil {
		return 0, err
	}
	logger.Debug("Imported unfinished priorities", "owner", a.ownerID, "kind", kind, "from", sourceKey, "to", targetKey, "count", n)
	return n, nil
}
