package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/streakline/internal/cli"
	"github.com/julianstephens/streakline/internal/cli/habits"
	"github.com/julianstephens/streakline/internal/cli/system"
	"github.com/julianstephens/streakline/internal/cli/tasks"
	"github.com/julianstephens/streakline/internal/config"
	"github.com/julianstephens/streakline/internal/constants"
	apperrors "github.com/julianstephens/streakline/internal/errors"
	"github.com/julianstephens/streakline/internal/events"
	habitsvc "github.com/julianstephens/streakline/internal/habits"
	"github.com/julianstephens/streakline/internal/jobs"
	"github.com/julianstephens/streakline/internal/logger"
	"github.com/julianstephens/streakline/internal/missdetect"
	"github.com/julianstephens/streakline/internal/notifier"
	"github.com/julianstephens/streakline/internal/storage"
	"github.com/julianstephens/streakline/internal/storage/postgres"
	"github.com/julianstephens/streakline/internal/storage/sqlite"
	"github.com/julianstephens/streakline/internal/taskgen"
	tasksvc "github.com/julianstephens/streakline/internal/tasks"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path (default ~/.config/streakline/config.yaml)." type:"path"`
	DB      string `name:"db" help:"SQLite path, PostgreSQL connection string without a password, or 'keyring'. Overrides the config file."`
	Owner   string `help:"Owner ID to act as. Overrides the config file."`
	Debug   bool   `help:"Log debug output to stderr."`

	Init       system.InitCmd      `cmd:"" help:"Initialize streakline storage."`
	Migrate    system.MigrateCmd   `cmd:"" help:"Run database migrations."`
	Habit      habits.HabitCmd     `cmd:"" help:"Manage habits, completions and streaks."`
	Generate   tasks.GenerateCmd   `cmd:"" help:"Generate upcoming tasks from habit schedules."`
	Regenerate tasks.RegenerateCmd `cmd:"" help:"Replace a habit's pending tasks after a schedule change."`
	Task       tasks.TaskCmd       `cmd:"" help:"List and complete tasks."`
	Misses     system.MissesCmd    `cmd:"" help:"Run miss detection for yesterday."`
	Daily      system.DailyCmd     `cmd:"" help:"Run today's task generation and miss detection once."`
	Scheduler  system.SchedulerCmd `cmd:"" help:"Run the daily jobs every day until interrupted."`
	Keyring    system.KeyringCmd   `cmd:"" help:"Manage the database connection string in the OS keyring."`
	Backup     system.BackupCmd    `cmd:"" help:"Create, list and restore SQLite database backups."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Habit scheduling and streak engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)
	command := strings.Fields(kctx.Command())[0]

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		apperrors.Fatal(err)
	}
	if err := applyFlags(cfg); err != nil {
		apperrors.Fatal(err)
	}

	if err := logger.Init(logger.Config{Debug: cfg.Log.Debug, ConfigDir: cfg.Dir}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}

	appCtx := &cli.Context{Owner: cfg.Owner, Out: os.Stdout}
	if command == "keyring" {
		apperrors.Fatal(kctx.Run(appCtx))
		return
	}

	store, err := openStore(cfg)
	if err != nil {
		apperrors.Fatal(err)
	}
	defer store.Close()

	if err := wire(appCtx, cfg, store); err != nil {
		apperrors.Fatal(err)
	}

	// init creates the database and migrate loads it itself.
	if command != "init" && command != "migrate" {
		if err := store.Load(); err != nil {
			apperrors.Fatal(err)
		}
	}

	if err := kctx.Run(appCtx); err != nil {
		store.Close()
		apperrors.Fatal(err)
	}
}

func applyFlags(cfg *config.Config) error {
	if CLI.DB != "" {
		if err := cfg.SetDatabase(CLI.DB); err != nil {
			return err
		}
	}
	if CLI.Owner != "" {
		cfg.Owner = strings.TrimSpace(CLI.Owner)
	}
	if CLI.Debug {
		cfg.Log.Debug = true
	}
	return nil
}

func openStore(cfg *config.Config) (storage.Provider, error) {
	target, err := cfg.DatabaseTarget()
	if err != nil {
		return nil, err
	}
	if config.IsPostgres(target) {
		return postgres.New(target), nil
	}
	return sqlite.NewStore(target), nil
}

func wire(appCtx *cli.Context, cfg *config.Config, store storage.Provider) error {
	sinks := []events.Sink{
		events.NewJSONLSink(cfg.Events.Dir),
		events.NewLogSink(logger.Output()),
	}
	if cfg.Notifications.Enabled {
		sinks = append(sinks, notifier.New())
	}
	emitter := events.NewDispatcher(cfg.Events.EscalateAfter, sinks...)

	habitService := habitsvc.NewService(store, emitter)
	generator := taskgen.NewService(store, emitter, cfg.LookaheadDays)
	detector := missdetect.NewDetector(store, emitter)
	runner, err := jobs.NewRunner(store, generator, detector, cfg.DailyRunAt, cfg.LookaheadDays)
	if err != nil {
		return err
	}

	appCtx.Store = store
	appCtx.Habits = habitService
	appCtx.TaskGen = generator
	appCtx.Tasks = tasksvc.NewService(store, habitService, emitter)
	appCtx.Detector = detector
	appCtx.Jobs = runner
	return nil
}
