package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gosuri/uitable"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/service"
	"github.com/julianstephens/daybook/internal/timeblock"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	todayStyle   = lipgloss.NewStyle().Underline(true).Reverse(true)
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func PrintHabits(w io.Writer, habits []models.Habit) {
	if len(habits) == 0 {
		fmt.Fprintln(w, "No habits found.")
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("TITLE", "TODAY", "STREAK", "BEST", "POINTS", "BADGES", "ID")
	for _, h := range habits {
		tbl.AddRow(h.Title, checkbox(h.IsCompletedToday), h.CurrentStreak, h.LongestStreak, h.Points, badges(h), shortID(h.ID))
	}
	fmt.Fprintln(w, tbl)
}

func badges(h models.Habit) string {
	var out []string
	if h.WeeklyStreakBadge {
		out = append(out, "week")
	}
	if h.MonthlyStreakBadge {
		out = append(out, "month")
	}
	if h.YearlyStreakBadge {
		out = append(out, "year")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func PrintPriorities(w io.Writer, items []models.Priority) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  (no priorities)"))
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("#", "", "TITLE", "ID")
	for i, p := range items {
		tbl.AddRow(i+1, checkbox(p.IsCompleted), p.Title, shortID(p.ID))
	}
	fmt.Fprintln(w, tbl)
}

func PrintBlocks(w io.Writer, blocks []timeblock.Block) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("START", "END", "PRIORITY")
	for _, b := range blocks {
		title := b.Title
		if title == "" {
			title = "-"
		}
		tbl.AddRow(b.Start.Format(constants.TimeFormat), b.End.Format(constants.TimeFormat), title)
	}
	fmt.Fprintln(w, tbl)
}

// PrintPeriod renders a loaded period. first is the week start used for the
// month grid.
func PrintPeriod(w io.Writer, view service.PeriodView, first time.Weekday, todayKey string) {
	label := fmt.Sprintf("%s %s", strings.ToUpper(string(view.Kind)), view.Key)
	switch {
	case view.IsCurrent:
		label += " (current)"
	case view.IsPast:
		label += fmt.Sprintf(" (%d)", view.Offset)
	}
	fmt.Fprintln(w, titleStyle.Render(label))

	switch {
	case view.Day != nil:
		fmt.Fprintf(w, "Wake %s  Sleep %s\n", view.Day.WakeTime, view.Day.SleepTime)
	case view.Week != nil:
		printIntentions(w, view.Week)
	case view.Month != nil:
		fmt.Fprintln(w, RenderMonth(view.Key, first, view.Status, todayKey))
	}
	fmt.Fprintln(w)
	PrintPriorities(w, view.Priorities())
	if view.CanImport && view.Previous != "" {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Unfinished items of %s can be imported.", view.Previous)))
	}
}

func printIntentions(w io.Writer, week *models.WeekSchedule) {
	days := make([]string, 0, len(week.Intentions))
	for d, text := range week.Intentions {
		if strings.TrimSpace(text) != "" {
			days = append(days, d)
		}
	}
	sort.Strings(days)
	for _, d := range days {
		fmt.Fprintf(w, "%s: %s\n", d, week.Intentions[d])
	}
}

// RenderMonth draws a month grid starting each row on first. Days are
// colored by priority completion; days without a status entry are dimmed.
func RenderMonth(monthKey string, first time.Weekday, status map[string]models.DayStatus, todayKey string) string {
	start, err := time.Parse(constants.MonthFormat, monthKey)
	if err != nil {
		return ""
	}
	daysInMonth := start.AddDate(0, 1, -1).Day()

	header := make([]string, 7)
	for i := range header {
		header[i] = time.Weekday((int(first) + i) % 7).String()[:2]
	}
	lines := []string{headerStyle.Render(strings.Join(header, " "))}

	offset := (int(start.Weekday()) - int(first) + 7) % 7
	rows := (offset + daysInMonth + 6) / 7
	for row := 0; row < rows; row++ {
		cells := make([]string, 0, 7)
		for col := 0; col < 7; col++ {
			day := row*7 + col - offset + 1
			if day < 1 || day > daysInMonth {
				cells = append(cells, "  ")
				continue
			}
			key := start.AddDate(0, 0, day-1).Format(constants.DateFormat)
			cells = append(cells, dayCell(day, key, status, todayKey))
		}
		lines = append(lines, strings.TrimRight(strings.Join(cells, " "), " "))
	}
	return strings.Join(lines, "\n")
}

func dayCell(day int, key string, status map[string]models.DayStatus, todayKey string) string {
	style := lipgloss.NewStyle()
	st, ok := status[key]
	switch {
	case !ok:
		style = mutedStyle
	case st.Total > 0 && st.Done == st.Total:
		style = doneStyle
	case st.Done > 0:
		style = partialStyle
	}
	if key == todayKey {
		style = style.Inherit(todayStyle)
	}
	return style.Render(fmt.Sprintf("%2d", day))
}
