// Package streak implements habit completion toggling, streaks, badges and
// points.
package streak

import (
	"time"

	"github.com/julianstephens/daybook/internal/calendar"
	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/models"
)

// Badge names reported in an Outcome.
const (
	BadgeWeekly  = "weekly"
	BadgeMonthly = "monthly"
	BadgeYearly  = "yearly"
)

type milestone struct {
	threshold int
	bonus     int
	badge     string
}

var milestones = []milestone{
	{constants.WeeklyStreakThreshold, constants.WeeklyStreakBonus, BadgeWeekly},
	{constants.MonthlyStreakThreshold, constants.MonthlyStreakBonus, BadgeMonthly},
	{constants.YearlyStreakThreshold, constants.YearlyStreakBonus, BadgeYearly},
}

// Outcome describes what a toggle did.
type Outcome struct {
	Completed    bool     `json:"completed"`
	Points       int      `json:"points"`
	Bonus        int      `json:"bonus"`
	BadgesEarned []string `json:"badges_earned,omitempty"`
}

// Apply toggles today's completion of h. h is not modified.
//
// Marking increments the streak once per day and awards 1 + the new streak
// in points, plus a bonus whenever the streak lands exactly on a milestone.
// Unmarking decrements the streak (floored at 0) and retracts any longest
// streak credit granted by today's mark. Points and badges are never taken
// back.
func Apply(h models.Habit, now time.Time, p *calendar.Policy) (models.Habit, Outcome) {
	next := h.Clone()
	today := p.Key(models.PeriodDay, now)

	if h.IsCompletedToday {
		if h.CurrentStreak > 0 {
			next.CurrentStreak = h.CurrentStreak - 1
		}
		if h.CurrentStreak == h.LongestStreak {
			next.LongestStreak = max(next.CurrentStreak, h.LongestBeforeMark)
		}
		next.LastReset = nil
		next.IsCompletedToday = false
		next.DailyRecords = withoutRecord(h.DailyRecords, today)
		return next, Outcome{Completed: false}
	}

	out := Outcome{Completed: true}
	if !p.IsToday(h.LastReset, now) {
		start := p.StartOfDay(now)
		next.CurrentStreak = h.CurrentStreak + 1
		next.LastReset = &start
		next.LongestBeforeMark = h.LongestStreak

		out.Points = 1 + next.CurrentStreak
		for _, m := range milestones {
			if next.CurrentStreak == m.threshold {
				out.Bonus += m.bonus
			}
		}
		next.Points += out.Points + out.Bonus
	}
	if next.CurrentStreak > next.LongestStreak {
		next.LongestStreak = next.CurrentStreak
	}
	out.BadgesEarned = awardBadges(&next)
	next.IsCompletedToday = true
	if _, ok := next.RecordFor(today); !ok {
		next.DailyRecords = append(next.DailyRecords, models.DailyRecord{Date: today})
	}
	return next, out
}

// awardBadges sets every badge whose threshold the current streak has reached
// and returns the ones that were not set before.
func awardBadges(h *models.Habit) []string {
	var earned []string
	flags := map[string]*bool{
		BadgeWeekly:  &h.WeeklyStreakBadge,
		BadgeMonthly: &h.MonthlyStreakBadge,
		BadgeYearly:  &h.YearlyStreakBadge,
	}
	for _, m := range milestones {
		flag := flags[m.badge]
		if h.CurrentStreak >= m.threshold && !*flag {
			*flag = true
			earned = append(earned, m.badge)
		}
	}
	return earned
}

func withoutRecord(records []models.DailyRecord, day string) []models.DailyRecord {
	if records == nil {
		return nil
	}
	out := make([]models.DailyRecord, 0, len(records))
	for _, r := range records {
		if r.Date != day {
			out = append(out, r)
		}
	}
	return out
}

// NeedsReset reports whether the daily sweep would change h.
func NeedsReset(h models.Habit, now time.Time, p *calendar.Policy) bool {
	return h.IsCompletedToday && !p.IsToday(h.LastReset, now)
}

// ResetCompletion clears today's completion flag. Streak values are untouched.
func ResetCompletion(h models.Habit) models.Habit {
	next := h.Clone()
	next.IsCompletedToday = false
	return next
}
