package models

import (
	"fmt"
	"strings"
	"time"
)

type MetricCategory string

const (
	MetricTime        MetricCategory = "time"
	MetricQuantity    MetricCategory = "quantity"
	MetricCompletion  MetricCategory = "completion"
	MetricPerformance MetricCategory = "performance"
	MetricCustom      MetricCategory = "custom"
)

// ParseMetricCategory accepts a category name case-insensitively.
func ParseMetricCategory(s string) (MetricCategory, error) {
	switch c := MetricCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case MetricTime, MetricQuantity, MetricCompletion, MetricPerformance, MetricCustom:
		return c, nil
	case "":
		return MetricCompletion, nil
	default:
		return "", fmt.Errorf("unknown metric category %q", s)
	}
}

// MetricType describes what a habit measures within its category,
// e.g. {Name: "reading", Unit: "minutes"}.
type MetricType struct {
	Name string `json:"name,omitempty"`
	Unit string `json:"unit,omitempty"`
}

// DailyRecord is a single day's completion of a habit.
type DailyRecord struct {
	Date  string   `json:"date"` // YYYY-MM-DD format
	Value *float64 `json:"value,omitempty"`
}

// Habit is a recurring practice with streak tracking.
type Habit struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description,omitempty"`
	Goal             string         `json:"goal,omitempty"`
	OwnerID          string         `json:"owner_id"`
	MetricCategory   MetricCategory `json:"metric_category"`
	MetricType       MetricType     `json:"metric_type"`
	StartDate        time.Time      `json:"start_date"`
	IsCompletedToday bool           `json:"is_completed_today"`
	LastReset        *time.Time     `json:"last_reset,omitempty"`
	CurrentStreak    int            `json:"current_streak"`
	LongestStreak    int            `json:"longest_streak"`
	// LongestBeforeMark is LongestStreak as it was before today's mark, so an
	// unmark can retract only the credit that mark granted.
	LongestBeforeMark  int           `json:"longest_before_mark"`
	WeeklyStreakBadge  bool          `json:"weekly_streak_badge"`
	MonthlyStreakBadge bool          `json:"monthly_streak_badge"`
	YearlyStreakBadge  bool          `json:"yearly_streak_badge"`
	Points             int           `json:"points"`
	DailyRecords       []DailyRecord `json:"daily_records"`
}

func (h *Habit) Validate() error {
	if strings.TrimSpace(h.Title) == "" {
		return fmt.Errorf("habit title cannot be empty")
	}
	if h.OwnerID == "" {
		return fmt.Errorf("habit owner cannot be empty")
	}
	if _, err := ParseMetricCategory(string(h.MetricCategory)); err != nil {
		return err
	}
	if h.CurrentStreak < 0 {
		return fmt.Errorf("current streak cannot be negative")
	}
	return nil
}

// Clone returns a deep copy so snapshots never share slices or pointers.
func (h Habit) Clone() Habit {
	c := h
	if h.LastReset != nil {
		t := *h.LastReset
		c.LastReset = &t
	}
	if h.DailyRecords != nil {
		c.DailyRecords = make([]DailyRecord, len(h.DailyRecords))
		for i, r := range h.DailyRecords {
			c.DailyRecords[i] = r
			if r.Value != nil {
				v := *r.Value
				c.DailyRecords[i].Value = &v
			}
		}
	}
	return c
}

// RecordFor returns the record for day (YYYY-MM-DD) if present.
func (h *Habit) RecordFor(day string) (DailyRecord, bool) {
	for _, r := range h.DailyRecords {
		if r.Date == day {
			return r, true
		}
	}
	return DailyRecord{}, false
}
