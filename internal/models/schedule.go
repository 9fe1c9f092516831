package models

import (
	"fmt"
	"strings"
	"time"
)

type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

func ParsePeriodKind(s string) (PeriodKind, error) {
	switch k := PeriodKind(strings.ToLower(strings.TrimSpace(s))); k {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return k, nil
	default:
		return "", fmt.Errorf("unknown period kind %q (expected day, week or month)", s)
	}
}

// Priority is an item on a day, week or month priority list.
// Progress is carried for compatibility and is not used by the engine.
type Priority struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Progress    float64 `json:"progress"`
	IsCompleted bool    `json:"is_completed"`
}

// DaySchedule is keyed by the ISO date of the day.
type DaySchedule struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Date       string     `json:"date"`       // YYYY-MM-DD format
	WakeTime   string     `json:"wake_time"`  // HH:MM format
	SleepTime  string     `json:"sleep_time"` // HH:MM format
	Priorities []Priority `json:"priorities"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type TodoItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"is_completed"`
}

// WeekSchedule is keyed by the ISO date of its week start.
type WeekSchedule struct {
	ID         string                `json:"id"`
	OwnerID    string                `json:"owner_id"`
	WeekStart  string                `json:"week_start"` // YYYY-MM-DD format
	Priorities []Priority            `json:"priorities"`
	Intentions map[string]string     `json:"intentions"` // weekday short name -> free text
	Todos      map[string][]TodoItem `json:"todos"`      // weekday short name -> to-dos
	UpdatedAt  time.Time             `json:"updated_at"`
}

// MonthSchedule is keyed by YYYY-MM. DayCompletion and DailyPrioritiesByDay are
// derived from the day schedules and are never authoritative.
type MonthSchedule struct {
	ID                   string                `json:"id"`
	OwnerID              string                `json:"owner_id"`
	YearMonth            string                `json:"year_month"`
	Priorities           []Priority            `json:"priorities"`
	DayCompletion        map[string]float64    `json:"day_completion"`
	DailyPrioritiesByDay map[string][]Priority `json:"daily_priorities_by_day"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Period is a loaded schedule of any kind. Exactly one of Day, Week, Month is set.
type Period struct {
	Kind  PeriodKind     `json:"kind"`
	Key   string         `json:"key"`
	Day   *DaySchedule   `json:"day,omitempty"`
	Week  *WeekSchedule  `json:"week,omitempty"`
	Month *MonthSchedule `json:"month,omitempty"`
}

// Priorities returns the priority list of whichever schedule is set.
func (p Period) Priorities() []Priority {
	switch {
	case p.Day != nil:
		return p.Day.Priorities
	case p.Week != nil:
		return p.Week.Priorities
	case p.Month != nil:
		return p.Month.Priorities
	}
	return nil
}

// DayStatus is the calendar coloring input for one day.
type DayStatus struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Ratio returns Done/Total, or 0 for a day without priorities.
func (s DayStatus) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

// Complete reports whether every priority of a non-empty day is done.
func (s DayStatus) Complete() bool {
	return s.Total > 0 && s.Done == s.Total
}

func ClonePriorities(items []Priority) []Priority {
	if items == nil {
		return []Priority{}
	}
	out := make([]Priority, len(items))
	copy(out, items)
	return out
}

// Clone returns a deep copy of the period and its schedule.
func (p Period) Clone() Period {
	c := Period{Kind: p.Kind, Key: p.Key}
	if p.Day != nil {
		d := *p.Day
		d.Priorities = ClonePriorities(p.Day.Priorities)
		c.Day = &d
	}
	if p.Week != nil {
		w := *p.Week
		w.Priorities = ClonePriorities(p.Week.Priorities)
		w.Intentions = make(map[string]string, len(p.Week.Intentions))
		for k, v := range p.Week.Intentions {
			w.Intentions[k] = v
		}
		w.Todos = make(map[string][]TodoItem, len(p.Week.Todos))
		for k, v := range p.Week.Todos {
			w.Todos[k] = append([]TodoItem(nil), v...)
		}
		c.Week = &w
	}
	if p.Month != nil {
		m := *p.Month
		m.Priorities = ClonePriorities(p.Month.Priorities)
		m.DayCompletion = make(map[string]float64, len(p.Month.DayCompletion))
		for k, v := range p.Month.DayCompletion {
			m.DayCompletion[k] = v
		}
		m.DailyPrioritiesByDay = make(map[string][]Priority, len(p.Month.DailyPrioritiesByDay))
		for k, v := range p.Month.DailyPrioritiesByDay {
			m.DailyPrioritiesByDay[k] = ClonePriorities(v)
		}
		c.Month = &m
	}
	return c
}
