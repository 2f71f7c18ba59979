package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"dutycal/internal/config"
	"dutycal/internal/database"
	"dutycal/internal/duty"
	"dutycal/internal/ics"
	appLog "dutycal/internal/log"
	"dutycal/internal/ourairports"
	"dutycal/internal/pipeline"
	"dutycal/internal/store"
	"dutycal/internal/updater"
	"dutycal/internal/web"
)

const version = "0.1.0"

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	cliApp := &cli.App{
		Name:    "dutycal",
		Usage:   "Turn an airline roster calendar into a clean, enriched duty calendar.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./dutycal.yaml",
				Usage:   "path to config file (created with defaults if missing)",
				EnvVars: []string{"DUTYCAL_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides config)",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			airportsCommand(),
			classifyCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		appLog.Error("dutycal failed", err)
		os.Exit(1)
	}
}

// app bundles the components shared by the commands.
type app struct {
	cfg      *config.Config
	db       *sql.DB
	fetcher  *ics.Fetcher
	airports *ourairports.Loader
}

func setup(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	appLog.Setup(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	fetcher := ics.NewFetcher(cfg.CacheDir, nil)
	loader := ourairports.NewLoader(fetcher, store.NewAirportStore(db), cfg.Airports.AirportsURL, cfg.Airports.CountriesURL)

	return &app{cfg: cfg, db: db, fetcher: fetcher, airports: loader}, nil
}

// ensureAirports downloads the reference data when the database has none.
// A failed download is logged; legs then stay unresolved.
func (a *app) ensureAirports(ctx context.Context) {
	_, rows, ok, err := store.NewAirportStore(a.db).LastRefresh(ctx, store.DatasetAirports)
	if err != nil {
		appLog.Error("airport dataset state unknown", err)
		return
	}
	if ok && rows > 0 {
		return
	}
	if err := a.airports.Refresh(ctx); err != nil {
		appLog.Error("initial airport download failed, continuing without directory", err)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Update the output calendar, then keep updating on the configured schedule",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "run a single update and exit"},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c)
			if err != nil {
				return err
			}
			defer a.db.Close()

			cfg := a.cfg
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			policy, err := cfg.ReminderPolicy()
			if err != nil {
				return err
			}
			sinks, err := cfg.Publish.Sinks(cfg.OutputCalendarPath)
			if err != nil {
				return err
			}

			appLog.Info("effective config",
				"input", ics.RedactURL(cfg.InputCalendarURL),
				"output", cfg.OutputCalendarPath,
				"refresh", cfg.RefreshCron,
				"timezone", cfg.Timezone,
				"archive_after", cfg.ArchiveAfter,
				"sinks", len(sinks),
				"listen", cfg.Listen,
				"once", c.Bool("once"),
			)

			ctx := c.Context
			a.ensureAirports(ctx)

			u := updater.New(updater.Options{
				InputURL:     cfg.InputCalendarURL,
				OutputPath:   cfg.OutputCalendarPath,
				CalendarName: cfg.CalendarName,
				Location:     cfg.Location(),
				ArchiveAfter: cfg.ArchiveAfter,
				HorizonDays:  cfg.HorizonDays,
			},
				a.fetcher,
				store.NewEventStore(a.db),
				a.airports,
				pipeline.NewOrchestrator(policy, cfg.Workers),
				sinks,
			)

			if c.Bool("once") {
				_, err := u.RunOnce(ctx)
				return err
			}

			var serveErr chan error
			if cfg.Listen != "" {
				srv := web.NewServer(cfg, u)
				u.OnSuccess(srv.SetSnapshot)
				serveErr = make(chan error, 1)
				go func() { serveErr <- srv.Serve(ctx) }()
			}

			if _, err := u.RunOnce(ctx); err != nil {
				appLog.Error("initial update failed", err)
			}

			sched, err := updater.NewScheduler(u, a.airports, cfg.RefreshCron, cfg.Airports.RefreshCron)
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			if err := awaitShutdown(ctx, serveErr); err != nil {
				return err
			}
			appLog.Info("dutycal exiting")
			return nil
		},
	}
}

// awaitShutdown blocks until ctx is cancelled or the HTTP server stops.
// serveErr is nil when no server runs. The channel is received from at
// most once.
func awaitShutdown(ctx context.Context, serveErr <-chan error) error {
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	if serveErr != nil {
		// Wait for graceful shutdown.
		if err := <-serveErr; err != nil {
			appLog.Error("http server shutdown", err)
		}
	}
	return nil
}

func airportsCommand() *cli.Command {
	return &cli.Command{
		Name:  "airports",
		Usage: "Download the airport and country datasets now",
		Action: func(c *cli.Context) error {
			a, err := setup(c)
			if err != nil {
				return err
			}
			defer a.db.Close()

			if err := a.airports.Refresh(c.Context); err != nil {
				return err
			}
			dir, err := a.airports.Directory(c.Context)
			if err != nil {
				return err
			}
			fmt.Printf("airport directory: %d codes\n", dir.Len())
			return nil
		},
	}
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Show how event titles are classified",
		ArgsUsage: "TITLE...",
		Action: func(c *cli.Context) error {
			titles := c.Args().Slice()
			if len(titles) == 0 {
				return errors.New("at least one title is required")
			}
			appLog.Setup(c.String("log-level"))

			for _, title := range titles {
				res := duty.Classify(title)
				fmt.Printf("%q\t%s\t%+v\n", title, res.Kind.Name(), res.Kind)
				for _, w := range res.Warnings {
					fmt.Printf("\twarning %s: %s\n", w.Kind, w.Message)
				}
			}
			return nil
		},
	}
}
