package constants

import "time"

const (
	AppName            = "daybook"
	DefaultKeyringUser = "database-connection"
	DefaultConfigPath  = "~/.config/daybook/daybook.db"
	DefaultOwnerID     = "local"
	Version            = "v0.1.0"

	// DateFormat is the standard date format used throughout the application (YYYY-MM-DD)
	DateFormat = "2006-01-02"

	// MonthFormat identifies a month schedule (YYYY-MM)
	MonthFormat = "2006-01"

	// TimeFormat is the standard time format used throughout the application (HH:MM)
	TimeFormat = "15:04"

	// Priority defaults
	DefaultPriorityTitle = "New Priority"

	// Day schedule defaults
	DefaultWakeTime   = "07:00"
	DefaultSleepTime  = "23:00"
	DefaultBlockMin   = 60
	DefaultTimezone   = "Local"
	DefaultWeekday    = time.Sunday
	MaxMonthFanOut    = 8
	HabitQueryOrderBy = "start_date"

	// Streak badge thresholds and one-time bonuses
	WeeklyStreakThreshold  = 7
	MonthlyStreakThreshold = 30
	YearlyStreakThreshold  = 365
	WeeklyStreakBonus      = 10
	MonthlyStreakBonus     = 50
	YearlyStreakBonus      = 100

	// Collection names under users/{owner}/
	CollectionHabits   = "habits"
	CollectionDays     = "days"
	CollectionWeeks    = "weeks"
	CollectionMonths   = "months"
	CollectionSettings = "settings"
	SettingsProfileKey = "profile"

	// HTTP
	DefaultListenAddr = ":8080"
	OwnerHeader       = "X-Owner-ID"
)
