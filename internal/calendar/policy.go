// Package calendar owns every period boundary and "is today" decision.
// Other packages must ask a Policy instead of comparing dates themselves.
package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
)

// Direction of a period navigation.
type Direction int

const (
	Backward Direction = -1
	Forward  Direction = 1
)

// maxWeekSteps bounds week offset counting (about 190 years).
const maxWeekSteps = 10000

// Policy resolves period boundaries in one location with an effective-dated
// first-weekday history.
type Policy struct {
	loc   *time.Location
	rules []models.WeekRule
}

// New returns a Policy. A nil location means time.Local. Rules are copied and
// sorted by effective date.
func New(loc *time.Location, rules []models.WeekRule) *Policy {
	if loc == nil {
		loc = time.Local
	}
	sorted := make([]models.WeekRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveFrom < sorted[j].EffectiveFrom
	})
	return &Policy{loc: loc, rules: sorted}
}

// FromSettings builds a Policy from an owner's settings document.
func FromSettings(s models.Settings) (*Policy, error) {
	loc, err := LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", s.Timezone, err)
	}
	return New(loc, s.WeekRules), nil
}

func (p *Policy) Location() *time.Location {
	return p.loc
}

// Rules returns a copy of the week rule history.
func (p *Policy) Rules() []models.WeekRule {
	out := make([]models.WeekRule, len(p.rules))
	copy(out, p.rules)
	return out
}

// StartOfDay truncates t to local midnight.
func (p *Policy) StartOfDay(t time.Time) time.Time {
	t = t.In(p.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.loc)
}

// IsSameDay reports whether a and b fall on the same local calendar day.
func (p *Policy) IsSameDay(a, b time.Time) bool {
	return p.StartOfDay(a).Equal(p.StartOfDay(b))
}

// IsToday reports whether t (which may be nil) falls on the same day as now.
func (p *Policy) IsToday(t *time.Time, now time.Time) bool {
	return t != nil && p.IsSameDay(*t, now)
}

// FirstWeekday resolves the most recent rule effective on or before t,
// defaulting to Sunday.
func (p *Policy) FirstWeekday(t time.Time) time.Weekday {
	day := p.StartOfDay(t).Format(constants.DateFormat)
	wd := constants.DefaultWeekday
	for _, r := range p.rules {
		if r.EffectiveFrom > day {
			break
		}
		wd = r.Weekday
	}
	return wd
}

// StartOfWeek returns local midnight of the first day of t's week.
func (p *Policy) StartOfWeek(t time.Time) time.Time {
	d := p.StartOfDay(t)
	first := p.FirstWeekday(d)
	diff := (int(d.Weekday()) - int(first) + 7) % 7
	return d.AddDate(0, 0, -diff)
}

// StartOfMonth returns local midnight of the first day of t's month.
func (p *Policy) StartOfMonth(t time.Time) time.Time {
	t = t.In(p.loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, p.loc)
}

// PeriodStart returns the start of the period of kind g containing t.
func (p *Policy) PeriodStart(g models.PeriodKind, t time.Time) time.Time {
	switch g {
	case models.PeriodWeek:
		return p.StartOfWeek(t)
	case models.PeriodMonth:
		return p.StartOfMonth(t)
	default:
		return p.StartOfDay(t)
	}
}

// Key returns the document identity of the period of kind g containing t.
func (p *Policy) Key(g models.PeriodKind, t time.Time) string {
	return p.format(g, p.PeriodStart(g, t))
}

func (p *Policy) format(g models.PeriodKind, start time.Time) string {
	if g == models.PeriodMonth {
		return start.Format(constants.MonthFormat)
	}
	return start.Format(constants.DateFormat)
}

// ParseKey returns the start of the period identified by key. A week key must
// be the start of the week of at least one of its seven days, so keys stay
// valid across a change of first weekday.
func (p *Policy) ParseKey(g models.PeriodKind, key string) (time.Time, error) {
	switch g {
	case models.PeriodDay, models.PeriodWeek:
		t, err := time.ParseInLocation(constants.DateFormat, key, p.loc)
		if err != nil {
			return time.Time{}, apperrors.InvalidTransition("parse key", fmt.Sprintf("invalid %s key %q (expected YYYY-MM-DD)", g, key))
		}
		if g == models.PeriodWeek && !p.isWeekStart(t) {
			return time.Time{}, apperrors.InvalidTransition("parse key", fmt.Sprintf("%s is not the first day of a week", key))
		}
		return t, nil
	case models.PeriodMonth:
		t, err := time.ParseInLocation(constants.MonthFormat, key, p.loc)
		if err != nil {
			return time.Time{}, apperrors.InvalidTransition("parse key", fmt.Sprintf("invalid month key %q (expected YYYY-MM)", key))
		}
		return t, nil
	default:
		return time.Time{}, apperrors.InvalidTransition("parse key", fmt.Sprintf("unknown period kind %q", g))
	}
}

func (p *Policy) isWeekStart(start time.Time) bool {
	for i := 0; i < 7; i++ {
		if p.StartOfWeek(start.AddDate(0, 0, i)).Equal(start) {
			return true
		}
	}
	return false
}

// Step moves a period start n periods forward (n > 0) or backward (n < 0).
// Week steps always land on a strictly different week, even across a change
// of first weekday.
func (p *Policy) Step(g models.PeriodKind, start time.Time, n int) time.Time {
	switch g {
	case models.PeriodMonth:
		return p.StartOfMonth(start).AddDate(0, n, 0)
	case models.PeriodWeek:
		cur := p.StartOfDay(start)
		for ; n < 0; n++ {
			cur = p.StartOfWeek(cur.AddDate(0, 0, -1))
		}
		for ; n > 0; n-- {
			cur = p.StartOfWeek(cur.AddDate(0, 0, 7))
		}
		return cur
	default:
		return p.StartOfDay(start).AddDate(0, 0, n)
	}
}

// PreviousKey returns the key of the period immediately preceding key.
func (p *Policy) PreviousKey(g models.PeriodKind, key string) (string, error) {
	start, err := p.ParseKey(g, key)
	if err != nil {
		return "", err
	}
	return p.format(g, p.Step(g, start, -1)), nil
}

// IsCurrentPeriod reports whether candidate falls in the same period as now.
func (p *Policy) IsCurrentPeriod(candidate, now time.Time, g models.PeriodKind) bool {
	return p.Key(g, candidate) == p.Key(g, now)
}

// IsPastPeriod reports whether candidate's period ended before now's period began.
func (p *Policy) IsPastPeriod(candidate, now time.Time, g models.PeriodKind) bool {
	return p.PeriodStart(g, candidate).Before(p.PeriodStart(g, now))
}

// IsCurrentKey is IsCurrentPeriod for a stored period key.
func (p *Policy) IsCurrentKey(g models.PeriodKind, key string, now time.Time) bool {
	return key == p.Key(g, now)
}

// IsPastKey reports whether the period identified by key precedes now's period.
// ISO keys order lexically.
func (p *Policy) IsPastKey(g models.PeriodKind, key string, now time.Time) bool {
	return key < p.Key(g, now)
}

// MinNavigableOffset is the (non-positive) number of backward steps from now's
// period to the period containing the account creation date.
func (p *Policy) MinNavigableOffset(created, now time.Time, g models.PeriodKind) int {
	if !created.Before(now) {
		return 0
	}
	switch g {
	case models.PeriodDay:
		return -daysBetween(p.StartOfDay(created), p.StartOfDay(now))
	case models.PeriodMonth:
		c, n := p.StartOfMonth(created), p.StartOfMonth(now)
		return -((n.Year()-c.Year())*12 + int(n.Month()) - int(c.Month()))
	default:
		floor := p.Key(models.PeriodWeek, created)
		cur := p.StartOfWeek(now)
		steps := 0
		for p.format(models.PeriodWeek, cur) > floor && steps < maxWeekSteps {
			cur = p.Step(models.PeriodWeek, cur, -1)
			steps++
		}
		return -steps
	}
}

// MaxNavigableOffset is always the current period; browsing the future is not allowed.
func (p *Policy) MaxNavigableOffset() int {
	return 0
}

// Offset counts steps from now's period to the period identified by key
// (negative for the past).
func (p *Policy) Offset(g models.PeriodKind, key string, now time.Time) (int, error) {
	start, err := p.ParseKey(g, key)
	if err != nil {
		return 0, err
	}
	if p.IsPastKey(g, key, now) {
		return p.MinNavigableOffset(start, now, g), nil
	}
	return -p.MinNavigableOffset(p.PeriodStart(g, now), start, g), nil
}

// Navigate moves from currentKey one period in dir, refusing to go before the
// period containing created or beyond the period containing now.
func (p *Policy) Navigate(g models.PeriodKind, currentKey string, dir Direction, created, now time.Time) (string, error) {
	if dir != Backward && dir != Forward {
		return "", apperrors.InvalidTransition("navigate", fmt.Sprintf("invalid direction %d", dir))
	}
	start, err := p.ParseKey(g, currentKey)
	if err != nil {
		return "", err
	}
	next := p.format(g, p.Step(g, start, int(dir)))

	if floor := p.Key(g, created); next < floor {
		return "", apperrors.NavigationRejected(fmt.Sprintf("%s %s is before the account was created", g, next))
	}
	if ceiling := p.Key(g, now); next > ceiling {
		return "", apperrors.NavigationRejected(fmt.Sprintf("%s %s is in the future", g, next))
	}
	return next, nil
}

// DaysOfMonth returns every day key of the month identified by monthKey.
func (p *Policy) DaysOfMonth(monthKey string) ([]string, error) {
	start, err := p.ParseKey(models.PeriodMonth, monthKey)
	if err != nil {
		return nil, err
	}
	var days []string
	for d := start; d.Month() == start.Month(); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(constants.DateFormat))
	}
	return days, nil
}

// DaysOfWeek returns the seven day keys starting at weekKey.
func (p *Policy) DaysOfWeek(weekKey string) ([]string, error) {
	start, err := p.ParseKey(models.PeriodWeek, weekKey)
	if err != nil {
		return nil, err
	}
	days := make([]string, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i).Format(constants.DateFormat)
	}
	return days, nil
}

// AddWeekRule appends a first-weekday rule. Same-day rules replace each other;
// rules may not be back-dated before the latest existing rule.
func AddWeekRule(rules []models.WeekRule, rule models.WeekRule) ([]models.WeekRule, error) {
	if _, err := time.Parse(constants.DateFormat, rule.EffectiveFrom); err != nil {
		return nil, apperrors.InvalidTransition("add week rule", fmt.Sprintf("invalid effective date %q", rule.EffectiveFrom))
	}
	if rule.Weekday < time.Sunday || rule.Weekday > time.Saturday {
		return nil, apperrors.InvalidTransition("add week rule", fmt.Sprintf("invalid weekday %d", rule.Weekday))
	}
	out := make([]models.WeekRule, 0, len(rules)+1)
	out = append(out, rules...)
	if n := len(out); n > 0 {
		last := out[n-1]
		switch {
		case rule.EffectiveFrom < last.EffectiveFrom:
			return nil, apperrors.InvalidTransition("add week rule", "rules cannot be back-dated")
		case rule.EffectiveFrom == last.EffectiveFrom:
			out[n-1] = rule
			return out, nil
		}
	}
	return append(out, rule), nil
}
