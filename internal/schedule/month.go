package schedule

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/models"
)

// RecomputeMonthDayStatus derives done/total per day from the month's
// per-day priority cache.
func RecomputeMonthDayStatus(m models.MonthSchedule) map[string]models.DayStatus {
	return dayStatus(m.DailyPrioritiesByDay)
}

func dayStatus(byDay map[string][]models.Priority) map[string]models.DayStatus {
	out := make(map[string]models.DayStatus, len(byDay))
	for day, items := range byDay {
		var s models.DayStatus
		for _, p := range items {
			s.Total++
			if p.IsCompleted {
				s.Done++
			}
		}
		out[day] = s
	}
	return out
}

func completion(status map[string]models.DayStatus) map[string]float64 {
	out := make(map[string]float64, len(status))
	for day, s := range status {
		out[day] = s.Ratio()
	}
	return out
}

// visibleDays lists the days of monthKey that have happened: all of them for
// a past month, up to today for the current month.
func (a *Aggregator) visibleDays(monthKey string) ([]string, error) {
	p := a.Policy()
	days, err := p.DaysOfMonth(monthKey)
	if err != nil {
		return nil, err
	}
	today := p.Key(models.PeriodDay, a.now())
	n := 0
	for _, d := range days {
		if d > today {
			break
		}
		n++
	}
	return days[:n], nil
}

// MonthStatus returns the key of the cached month and its day statuses.
func (a *Aggregator) MonthStatus() (string, map[string]models.DayStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.month, dayStatus(a.byDay)
}

// RefreshMonth reads every visible day of the month, rebuilds the month's
// per-day cache from them and persists it. Days without a document count as
// empty.
func (a *Aggregator) RefreshMonth(ctx context.Context, monthKey string) (models.MonthSchedule, map[string]models.DayStatus, error) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	period, err := a.LoadOrCreate(ctx, models.PeriodMonth, monthKey)
	if err != nil {
		return models.MonthSchedule{}, nil, err
	}
	days, err := a.visibleDays(monthKey)
	if err != nil {
		return models.MonthSchedule{}, nil, err
	}

	lists := make([][]models.Priority, len(days))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.MaxMonthFanOut)
	for i, day := range days {
		i, day := i, day
		g.Go(func() error {
			d, err := a.repo.GetDay(gctx, a.ownerID, day)
			switch {
			case err == nil:
				lists[i] = models.ClonePriorities(d.Priorities)
			case apperrors.IsNotFound(err):
				lists[i] = []models.Priority{}
			default:
				return apperrors.EnsurePersistence("read day "+day, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.MonthSchedule{}, nil, err
	}

	byDay := make(map[string][]models.Priority, len(days))
	for i, day := range days {
		byDay[day] = lists[i]
	}
	status := dayStatus(byDay)
	ratios := completion(status)

	if err := a.repo.PatchMonthCache(ctx, a.ownerID, monthKey, ratios, byDay); err != nil {
		return models.MonthSchedule{}, nil, apperrors.EnsurePersistence("save month cache", err)
	}

	a.mu.Lock()
	a.month = monthKey
	a.byDay = byDay
	a.mu.Unlock()

	m := *period.Month
	m.DailyPrioritiesByDay = byDay
	m.DayCompletion = ratios
	logger.Debug("Refreshed month cache", "owner", a.ownerID, "month", monthKey, "days", len(days))
	cloned := models.Period{Kind: models.PeriodMonth, Key: monthKey, Month: &m}.Clone()
	return *cloned.Month, status, nil
}
