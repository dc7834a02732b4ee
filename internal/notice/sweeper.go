package notice

import (
	"context"
	"log/slog"
	"time"
)

const defaultSweepInterval = 10 * time.Minute

// Sweeper purges expired notices on a fixed interval.
type Sweeper struct {
	board    *Board
	interval time.Duration
}

// NewSweeper creates a sweeper for board. A non-positive interval uses 10m.
func NewSweeper(board *Board, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{board: board, interval: interval}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("notice sweeper started", "interval", s.interval)
	s.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			slog.Info("notice sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	res, err := s.board.Purge(ctx)
	if err != nil {
		slog.Error("notice sweep failed", "error", err)
	}
	if res.Announcements > 0 || res.Jobs > 0 {
		slog.Info("expired notices purged",
			"announcements", res.Announcements,
			"jobs", res.Jobs,
		)
	}
}
