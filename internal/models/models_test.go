package models

import (
	"testing"
	"time"
)

func TestParseMetricCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    MetricCategory
		wantErr bool
	}{
		{"time", MetricTime, false},
		{" Quantity ", MetricQuantity, false},
		{"", MetricCompletion, false},
		{"PERFORMANCE", MetricPerformance, false},
		{"mood", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMetricCategory(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMetricCategory(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMetricCategory(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHabitValidate(t *testing.T) {
	valid := Habit{Title: "Read", OwnerID: "u1", MetricCategory: MetricTime}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid habit, got %v", err)
	}

	tests := []struct {
		name  string
		habit Habit
	}{
		{"empty title", Habit{Title: "  ", OwnerID: "u1"}},
		{"missing owner", Habit{Title: "Read"}},
		{"bad category", Habit{Title: "Read", OwnerID: "u1", MetricCategory: "mood"}},
		{"negative streak", Habit{Title: "Read", OwnerID: "u1", CurrentStreak: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.habit.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHabitCloneIsDeep(t *testing.T) {
	reset := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	v := 12.5
	h := Habit{
		ID:           "h1",
		LastReset:    &reset,
		DailyRecords: []DailyRecord{{Date: "2025-03-05", Value: &v}},
	}

	c := h.Clone()
	*c.LastReset = reset.AddDate(0, 0, 1)
	*c.DailyRecords[0].Value = 99
	c.DailyRecords[0].Date = "2025-03-06"

	if !h.LastReset.Equal(reset) {
		t.Error("clone shares LastReset with original")
	}
	if *h.DailyRecords[0].Value != 12.5 || h.DailyRecords[0].Date != "2025-03-05" {
		t.Error("clone shares DailyRecords with original")
	}
}

func TestRecordFor(t *testing.T) {
	h := Habit{DailyRecords: []DailyRecord{{Date: "2025-03-04"}, {Date: "2025-03-05"}}}
	if _, ok := h.RecordFor("2025-03-05"); !ok {
		t.Error("expected record for 2025-03-05")
	}
	if _, ok := h.RecordFor("2025-03-06"); ok {
		t.Error("unexpected record for 2025-03-06")
	}
}

func TestDayStatus(t *testing.T) {
	tests := []struct {
		status   DayStatus
		ratio    float64
		complete bool
	}{
		{DayStatus{}, 0, false},
		{DayStatus{Done: 1, Total: 4}, 0.25, false},
		{DayStatus{Done: 3, Total: 3}, 1, true},
	}
	for _, tt := range tests {
		if got := tt.status.Ratio(); got != tt.ratio {
			t.Errorf("%+v.Ratio() = %v, want %v", tt.status, got, tt.ratio)
		}
		if got := tt.status.Complete(); got != tt.complete {
			t.Errorf("%+v.Complete() = %v, want %v", tt.status, got, tt.complete)
		}
	}
}

func TestPeriodPriorities(t *testing.T) {
	items := []Priority{{ID: "a"}}
	if got := (Period{Week: &WeekSchedule{Priorities: items}}).Priorities(); len(got) != 1 {
		t.Errorf("expected week priorities, got %v", got)
	}
	if got := (Period{}).Priorities(); got != nil {
		t.Errorf("expected nil for empty period, got %v", got)
	}
}

func TestClonePriorities(t *testing.T) {
	if got := ClonePriorities(nil); got == nil || len(got) != 0 {
		t.Errorf("ClonePriorities(nil) = %#v, want empty slice", got)
	}
	src := []Priority{{ID: "a", Title: "x"}}
	c := ClonePriorities(src)
	c[0].Title = "y"
	if src[0].Title != "x" {
		t.Error("ClonePriorities did not copy")
	}
}

func TestParsePeriodKind(t *testing.T) {
	if k, err := ParsePeriodKind("Week"); err != nil || k != PeriodWeek {
		t.Errorf("ParsePeriodKind(Week) = %q, %v", k, err)
	}
	if _, err := ParsePeriodKind("year"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
