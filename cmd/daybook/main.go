package main

import (
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/cli/habits"
	"github.com/julianstephens/daybook/internal/cli/periods"
	"github.com/julianstephens/daybook/internal/cli/settings"
	"github.com/julianstephens/daybook/internal/cli/system"
	"github.com/julianstephens/daybook/internal/constants"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/keyring"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"SQLite path, PostgreSQL connection string, or disk store directory. PostgreSQL passwords must come from the keyring, PGPASSWORD or .pgpass." default:"${config}" env:"DAYBOOK_CONFIG"`
	Backend string `help:"Storage backend." enum:"auto,sqlite,postgres,disk" default:"auto" env:"DAYBOOK_BACKEND"`
	Owner   string `help:"Owner whose records are used." default:"${owner}" env:"DAYBOOK_OWNER"`
	Debug   bool   `help:"Enable debug logging to stderr." env:"DAYBOOK_DEBUG"`
	LogJSON bool   `help:"Write logs as JSON." env:"DAYBOOK_LOG_JSON"`

	Init     system.InitCmd       `cmd:"" help:"Initialize daybook storage."`
	Migrate  system.MigrateCmd    `cmd:"" help:"Run database migrations."`
	Backup   system.BackupCmd     `cmd:"" help:"Create, list or restore SQLite backups."`
	Habit    habits.HabitCmd      `cmd:"" help:"Manage habits and streaks."`
	Day      periods.DayCmd       `cmd:"" help:"Show a day's priorities and time blocks."`
	Week     periods.WeekCmd      `cmd:"" help:"Show a week's priorities."`
	Month    periods.MonthCmd     `cmd:"" help:"Show a month's priorities and day calendar."`
	Priority periods.PriorityCmd  `cmd:"" help:"Edit day, week or month priorities."`
	Import   periods.ImportCmd    `cmd:"" help:"Import unfinished priorities of the previous period."`
	Nav      periods.NavCmd       `cmd:"" help:"Show the previous or next period."`
	Settings settings.SettingsCmd `cmd:"" help:"Manage timezone, week start and day times."`
	Keyring  system.KeyringCmd    `cmd:"" help:"Manage the PostgreSQL connection string in the OS keyring."`
	Serve    system.ServeCmd      `cmd:"" help:"Serve the HTTP API."`
}

func main() {
	_ = godotenv.Load()

	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit streaks and day, week and month priorities."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": constants.Version,
			"config":  constants.DefaultConfigPath,
			"owner":   constants.DefaultOwnerID,
		},
	)

	command := kctx.Command()
	if err := logger.Init(logger.Config{
		Debug:     CLI.Debug,
		ConfigDir: cli.ConfigDir(CLI.Backend, CLI.Config),
		Stderr:    command == "serve",
		JSON:      CLI.LogJSON,
	}); err != nil {
		apperrors.Fatalf("failed to initialize logger: %v", err)
	}

	var store storage.Store
	if !strings.HasPrefix(command, "keyring") {
		var err error
		if store, err = cli.OpenStore(CLI.Backend, CLI.Config, keyring.New("")); err != nil {
			apperrors.Fatal(err)
		}
	}
	if lc, ok := store.(cli.Lifecycle); ok && command != "init" && command != "migrate" {
		if err := lc.Load(); err != nil {
			apperrors.Fatal(err)
		}
	}

	appCtx := cli.NewContext(store, CLI.Owner)
	runErr := kctx.Run(appCtx)
	if err := appCtx.Close(); err != nil {
		logger.Warn("Failed to close store", "error", err)
	}
	apperrors.Fatal(runErr)
}
