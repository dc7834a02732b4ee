package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/p-n-ai/pai-sheets/internal/platform/apperr"
)

const dbTimeout = 5 * time.Second

// PostgresStore keeps progress records as JSONB documents in the progress table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed progress store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID, problemID string) (Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM progress WHERE user_id = $1 AND problem_id = $2`,
		userID, problemID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return Progress{}, apperr.NotFound("no progress for problem %s", problemID)
	}
	if err != nil {
		return Progress{}, fmt.Errorf("get progress: %w", err)
	}

	var p Progress
	if err := json.Unmarshal(doc, &p); err != nil {
		return Progress{}, fmt.Errorf("decode progress: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Progress, error) {
	return s.list(ctx,
		`SELECT doc FROM progress WHERE user_id = $1 ORDER BY problem_id`,
		userID,
	)
}

func (s *PostgresStore) ListByProblem(ctx context.Context, problemID string) ([]Progress, error) {
	return s.list(ctx,
		`SELECT doc FROM progress WHERE problem_id = $1 ORDER BY user_id`,
		problemID,
	)
}

func (s *PostgresStore) list(ctx context.Context, query string, arg string) ([]Progress, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	out := []Progress{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		var p Progress
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode progress: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Put(ctx context.Context, p Progress) error {
	if p.UserID == "" || p.ProblemID == "" {
		return apperr.Invalid("user_id and problem_id are required")
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO progress (user_id, problem_id, doc, updated_at)
		 VALUES ($1, $2, $3::jsonb, $4)
		 ON CONFLICT (user_id, problem_id)
		 DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		p.UserID,
		p.ProblemID,
		string(doc),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, problemID string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM progress WHERE user_id = $1 AND problem_id = $2`,
		userID, problemID,
	); err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByProblem(ctx context.Context, problemID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM progress WHERE problem_id = $1`, problemID)
	if err != nil {
		return 0, fmt.Errorf("delete progress for problem: %w", err)
	}
	return int(cmd.RowsAffected()), nil
}
