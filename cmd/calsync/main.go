package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/urfave/cli/v2"

	gcal "github.com/gracechapel/calsync/calendar/google"
	"github.com/gracechapel/calsync/internal"
	"github.com/gracechapel/calsync/internal/config"
	"github.com/gracechapel/calsync/internal/directory"
	"github.com/gracechapel/calsync/internal/engine"
	"github.com/gracechapel/calsync/internal/sqlite"
	"github.com/gracechapel/calsync/internal/web"
)

func main() {
	app := &cli.App{
		Name:  "calsync",
		Usage: "Publish sanitized internal calendar events to the public calendar.",
		Commands: []*cli.Command{
			serveCommand(),
			snapshotCommand(),
			publishCommand(),
			unpublishCommand(),
			accessCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("calsync failed", "error", err)
		os.Exit(1)
	}
}

// app bundles everything a command needs after wiring.
type app struct {
	cfg     *config.Config
	engine  *engine.Engine
	checker directory.Checker
	logger  *slog.Logger
}

// setup wires configuration, the mapping store, the calendar client and the
// engine. The mapping store is optional for read-only commands: without
// MAPPING_DB the engine serves snapshots but refuses writes.
func setup(ctx context.Context, needChecker bool) (*app, error) {
	logger := setupLogger(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	key, err := cfg.ServiceAccountKey()
	if err != nil {
		return nil, err
	}

	client, err := gcal.NewClient(ctx, key, cfg.ImpersonateUser, cfg.CalendarLabels(), logger)
	if err != nil {
		return nil, err
	}

	var store internal.MappingStore
	if cfg.MappingDB != "" {
		db, err := sql.Open(sqlite.DriverName, cfg.MappingDB)
		if err != nil {
			return nil, fmt.Errorf("opening mapping db: %w", err)
		}
		store = sqlite.NewStorage(db)
	}

	var checker directory.Checker
	if needChecker {
		checker, err = directory.NewGoogleChecker(ctx, key, cfg.ImpersonateUser, cfg.StaffGroup)
		if err != nil {
			return nil, err
		}
	}

	eng := engine.New(client, store, engine.Config{
		InternalCalendarID: cfg.InternalCalendarID,
		PublicCalendarID:   cfg.PublicCalendarID,
		Identity:           client.Identity(),
	}, logger)

	return &app{cfg: cfg, engine: eng, checker: checker, logger: logger}, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API for the staff admin UI.",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, true)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:    a.cfg.ListenAddr,
				Handler: web.NewServer(a.engine, a.checker, a.cfg.AllowedOrigin, a.logger).Handler(),
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("listening", "addr", a.cfg.ListenAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Print the reconciliation snapshot as JSON.",
		Flags: []cli.Flag{
			&cli.TimestampFlag{Name: "time-min", Layout: time.RFC3339, Usage: "Window start (default: now)."},
			&cli.TimestampFlag{Name: "time-max", Layout: time.RFC3339, Usage: "Window end (default: start + 90 days)."},
			&cli.StringFlag{Name: "sync-token", Usage: "Incremental listing token; overrides the window."},
		},
		Action: func(c *cli.Context) error {
			a, err := setup(c.Context, false)
			if err != nil {
				return err
			}

			opts := internal.ListOptions{SyncToken: c.String("sync-token")}
			if opts.SyncToken == "" {
				opts.TimeMin = time.Now()
				if t := c.Timestamp("time-min"); t != nil {
					opts.TimeMin = *t
				}
				opts.TimeMax = opts.TimeMin.Add(90 * 24 * time.Hour)
				if t := c.Timestamp("time-max"); t != nil {
					opts.TimeMax = *t
				}
			}

			snap, err := a.engine.Snapshot(c.Context, opts)
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish an internal event to the public calendar.",
		ArgsUsage: "<source-event-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "recurring-event-id", Usage: "Master id when publishing a series instance."},
			&cli.StringFlag{Name: "title", Usage: "Override the public title."},
			&cli.StringFlag{Name: "blurb", Usage: "Override the public blurb."},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one source event id")
			}
			a, err := setup(c.Context, false)
			if err != nil {
				return err
			}

			res, err := a.engine.Publish(c.Context, engine.PublishRequest{
				SourceEventID:    c.Args().First(),
				RecurringEventID: c.String("recurring-event-id"),
				Overrides: internal.PayloadOverrides{
					Title: c.String("title"),
					Blurb: c.String("blurb"),
				},
			})
			if err != nil {
				return err
			}
			a.logger.Info("published", "source", res.Mapping.SourceEventID, "public", res.Mapping.PublicEventID)
			return printJSON(res)
		},
	}
}

func unpublishCommand() *cli.Command {
	return &cli.Command{
		Name:      "unpublish",
		Usage:     "Remove an event from the public calendar, keeping the mapping for relink.",
		ArgsUsage: "<source-event-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "public-event-id", Usage: "Resolve the mapping by public id instead."},
		},
		Action: func(c *cli.Context) error {
			publicID := c.String("public-event-id")
			if c.NArg() != 1 && publicID == "" {
				return errors.New("expected a source event id or --public-event-id")
			}
			a, err := setup(c.Context, false)
			if err != nil {
				return err
			}

			res, err := a.engine.Unpublish(c.Context, engine.UnpublishRequest{
				PublicEventID: publicID,
				SourceEventID: c.Args().First(),
			})
			if err != nil {
				return err
			}
			a.logger.Info("unpublished", "source", res.Mapping.SourceEventID)
			return printJSON(res)
		},
	}
}

func accessCommand() *cli.Command {
	return &cli.Command{
		Name:      "access",
		Usage:     "Check whether an email is in the staff group.",
		ArgsUsage: "<email>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one email")
			}
			a, err := setup(c.Context, true)
			if err != nil {
				return err
			}

			decision, err := a.checker.Check(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(decision)
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
