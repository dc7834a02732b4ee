package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-sheets/internal/api"
	"github.com/p-n-ai/pai-sheets/internal/importer"
	"github.com/p-n-ai/pai-sheets/internal/live"
	"github.com/p-n-ai/pai-sheets/internal/notice"
	"github.com/p-n-ai/pai-sheets/internal/notify"
	"github.com/p-n-ai/pai-sheets/internal/platform/cache"
	"github.com/p-n-ai/pai-sheets/internal/platform/config"
	"github.com/p-n-ai/pai-sheets/internal/platform/database"
	"github.com/p-n-ai/pai-sheets/internal/problem"
	"github.com/p-n-ai/pai-sheets/internal/progress"
	"github.com/p-n-ai/pai-sheets/internal/sheet"
	"github.com/p-n-ai/pai-sheets/internal/tracker"
)

// app holds the wired services of one server process.
type app struct {
	tracker *tracker.Service
	board   *notice.Board
	sweeper *notice.Sweeper
	handler http.Handler
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	var checks []api.Check

	trackerCfg := tracker.Config{}
	boardCfg := notice.BoardConfig{}

	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				a.Close()
				return nil, err
			}
		}
		if err := wirePostgres(db, &trackerCfg, &boardCfg); err != nil {
			a.Close()
			return nil, err
		}
		checks = append(checks, api.Check{Name: "database", Fn: db.HealthCheck})
	default:
		slog.Warn("using in-memory store, data is lost on restart")
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		memo, err := tracker.NewRedisMemo(c, cfg.Locations.MemoTTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		trackerCfg.Memo = memo
		checks = append(checks, api.Check{Name: "cache", Fn: c.HealthCheck})
	} else {
		trackerCfg.Memo = tracker.NewMemoryMemo(cfg.Locations.MemoTTL)
	}

	hub := live.NewHub(cfg.Server.CORSOrigins)
	trackerCfg.Events = hub

	if cfg.HasTelegram() {
		tg, err := notify.NewTelegramChannel(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			a.Close()
			return nil, err
		}
		gw := notify.NewGateway()
		gw.Register("telegram", tg)
		boardCfg.Broadcaster = gw
		slog.Info("announcement broadcast enabled", "channels", gw.Len())
	}

	if !cfg.HasAdmin() {
		slog.Warn("no admin token hash configured, admin endpoints are locked")
	}

	a.tracker = tracker.New(trackerCfg)
	a.board = notice.NewBoard(boardCfg)
	a.sweeper = notice.NewSweeper(a.board, cfg.Sweep.Interval)
	a.handler = api.New(api.Config{
		Tracker:        a.tracker,
		Board:          a.board,
		Live:           hub,
		UserHeader:     cfg.Auth.UserHeader,
		AdminTokenHash: cfg.Auth.AdminTokenHash,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Checks:         checks,
	})
	return a, nil
}

func wirePostgres(db *database.DB, tc *tracker.Config, bc *notice.BoardConfig) error {
	problems, err := problem.NewPostgresStore(db.Pool)
	if err != nil {
		return fmt.Errorf("problem store: %w", err)
	}
	sheets, err := sheet.NewPostgresStore(db.Pool)
	if err != nil {
		return fmt.Errorf("sheet store: %w", err)
	}
	records, err := progress.NewPostgresStore(db.Pool)
	if err != nil {
		return fmt.Errorf("progress store: %w", err)
	}
	announcements, err := notice.NewAnnouncementPostgresStore(db.Pool)
	if err != nil {
		return fmt.Errorf("announcement store: %w", err)
	}
	jobs, err := notice.NewJobPostgresStore(db.Pool)
	if err != nil {
		return fmt.Errorf("job store: %w", err)
	}

	tc.Problems = problem.NewCachedStore(problems)
	tc.Sheets = sheets
	tc.Progress = records
	bc.Announcements = announcements
	bc.Jobs = jobs
	return nil
}

// seed applies every sheet document under dir. Bad files are skipped.
func (a *app) seed(ctx context.Context, dir string) {
	bundles, err := importer.LoadDir(dir)
	if err != nil {
		slog.Error("failed to load seeds", "path", dir, "error", err)
		return
	}
	for _, b := range bundles {
		if _, err := importer.Apply(ctx, a.tracker, b); err != nil {
			slog.Error("failed to apply seed", "path", b.Source, "error", err)
		}
	}
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
