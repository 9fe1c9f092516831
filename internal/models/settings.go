package models

import "time"

// WeekRule sets the first weekday for weeks whose anchor date is on or after
// EffectiveFrom. Rules are appended, never rewritten, so existing week
// documents keep their identity.
type WeekRule struct {
	EffectiveFrom string       `json:"effective_from"` // YYYY-MM-DD format
	Weekday       time.Weekday `json:"weekday"`
}

// Settings is the per-owner profile document.
type Settings struct {
	OwnerID          string     `json:"owner_id"`
	AccountCreatedAt time.Time  `json:"account_created_at"`
	Timezone         string     `json:"timezone"` // IANA timezone name or "Local"
	WeekRules        []WeekRule `json:"week_rules"`
	WakeTime         string     `json:"wake_time"`  // HH:MM format
	SleepTime        string     `json:"sleep_time"` // HH:MM format
}
