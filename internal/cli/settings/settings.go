package settings

import (
	"context"
	"fmt"

	"github.com/gosuri/uitable"

	"github.com/julianstephens/daybook/internal/calendar"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
)

type SettingsCmd struct {
	Show      SettingsShowCmd      `cmd:"" help:"Show current settings." default:"1"`
	WeekStart SettingsWeekStartCmd `cmd:"" help:"Change the first day of the week from a date on."`
	Timezone  SettingsTimezoneCmd  `cmd:"" help:"Change the timezone used for day boundaries."`
	DayTimes  SettingsDayTimesCmd  `cmd:"" help:"Change the wake and sleep times of new days."`
}

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(ctx *cli.Context) error {
	s, err := ctx.Service().Settings(context.Background(), ctx.Owner)
	if err != nil {
		return err
	}
	printSettings(ctx, s)
	return nil
}

func printSettings(ctx *cli.Context, s models.Settings) {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("Owner:", s.OwnerID)
	tbl.AddRow("Account created:", s.AccountCreatedAt.Format(constants.DateFormat))
	tbl.AddRow("Timezone:", s.Timezone)
	tbl.AddRow("Wake time:", s.WakeTime)
	tbl.AddRow("Sleep time:", s.SleepTime)
	if len(s.WeekRules) == 0 {
		tbl.AddRow("Week starts:", constants.DefaultWeekday.String())
	}
	for _, r := range s.WeekRules {
		tbl.AddRow("Week starts:", fmt.Sprintf("%s from %s", r.Weekday, r.EffectiveFrom))
	}
	ctx.Println(tbl)
}

type SettingsWeekStartCmd struct {
	Weekday string `arg:"" help:"First weekday (sun..sat or 0-6)."`
	From    string `help:"First date the rule applies to (default: today)."`
}

func (c *SettingsWeekStartCmd) Run(ctx *cli.Context) error {
	wd, err := calendar.ParseWeekday(c.Weekday)
	if err != nil {
		return apperrors.InvalidTransition("set week start", err.Error())
	}
	s, err := ctx.Service().SetWeekStart(context.Background(), ctx.Owner, wd, c.From)
	if err != nil {
		return err
	}
	ctx.Println("Week start updated.")
	printSettings(ctx, s)
	return nil
}

type SettingsTimezoneCmd struct {
	Timezone string `arg:"" help:"IANA timezone name, or Local."`
}

func (c *SettingsTimezoneCmd) Run(ctx *cli.Context) error {
	s, err := ctx.Service().SetTimezone(context.Background(), ctx.Owner, c.Timezone)
	if err != nil {
		return err
	}
	ctx.Printf("Timezone set to %s.\n", s.Timezone)
	return nil
}

type SettingsDayTimesCmd struct {
	Wake  string `arg:"" help:"Wake time (HH:MM)."`
	Sleep string `arg:"" help:"Sleep time (HH:MM)."`
}

func (c *SettingsDayTimesCmd) Run(ctx *cli.Context) error {
	s, err := ctx.Service().SetDayTimes(context.Background(), ctx.Owner, c.Wake, c.Sleep)
	if err != nil {
		return err
	}
	ctx.Printf("New days run from %s to %s.\n", s.WakeTime, s.SleepTime)
	return nil
}
