package notice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
	"github.com/p-n-ai/pai-sheets/internal/platform/database"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps notices as JSONB documents. The expiry lives in its own
// column so listing and purging can filter in SQL.
type PostgresStore[T Notice] struct {
	pool    *pgxpool.Pool
	kind    string
	table   string
	timeCol string
}

// NewAnnouncementPostgresStore stores announcements in the announcements table.
func NewAnnouncementPostgresStore(pool *pgxpool.Pool) (*PostgresStore[Announcement], error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore[Announcement]{pool: pool, kind: "announcement", table: "announcements", timeCol: "created_at"}, nil
}

// NewJobPostgresStore stores jobs in the jobs table.
func NewJobPostgresStore(pool *pgxpool.Pool) (*PostgresStore[Job], error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore[Job]{pool: pool, kind: "job", table: "jobs", timeCol: "posted_at"}, nil
}

func (s *PostgresStore[T]) Create(ctx context.Context, n T) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.kind, err)
	}

	_, err = s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, doc, %s, expires_at) VALUES ($1, $2::jsonb, $3, $4)`, s.table, s.timeCol),
		n.NoticeID(),
		string(doc),
		n.Timestamp(),
		n.Expiry(),
	)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("%s %s already exists", s.kind, n.NoticeID())
	}
	if err != nil {
		return fmt.Errorf("insert %s: %w", s.kind, err)
	}
	return nil
}

func (s *PostgresStore[T]) Get(ctx context.Context, id string) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var zero T
	var doc []byte
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, s.table), id,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return zero, apperr.NotFound("%s %s not found", s.kind, id)
	}
	if err != nil {
		return zero, fmt.Errorf("get %s: %w", s.kind, err)
	}

	var n T
	if err := json.Unmarshal(doc, &n); err != nil {
		return zero, fmt.Errorf("decode %s %s: %w", s.kind, id, err)
	}
	return n, nil
}

func (s *PostgresStore[T]) ListActive(ctx context.Context, now time.Time) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT doc FROM %s
		 WHERE expires_at IS NULL OR expires_at > $1
		 ORDER BY %s DESC, id ASC`, s.table, s.timeCol),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.kind, err)
		}
		var n T
		if err := json.Unmarshal(doc, &n); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.kind, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.table, err)
	}
	return out, nil
}

func (s *PostgresStore[T]) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.kind, err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("%s %s not found", s.kind, id)
	}
	return nil
}

func (s *PostgresStore[T]) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= $1`, s.table),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", s.table, err)
	}
	return int(cmd.RowsAffected()), nil
}
