package problem

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

// PostgresStore keeps problems as JSONB documents in the problems table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed problem store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Problem) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal problem: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO problems (id, doc, created_at, updated_at)
		 VALUES ($1, $2::jsonb, $3, $4)`,
		p.ID,
		string(doc),
		p.CreatedAt,
		p.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("problem %s already exists", p.ID)
	}
	if err != nil {
		return fmt.Errorf("insert problem: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Problem, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM problems WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return Problem{}, apperr.NotFound("problem %s not found", id)
	}
	if err != nil {
		return Problem{}, fmt.Errorf("get problem: %w", err)
	}

	var p Problem
	if err := json.Unmarshal(doc, &p); err != nil {
		return Problem{}, fmt.Errorf("decode problem %s: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) GetMany(ctx context.Context, ids []string) (map[string]Problem, error) {
	out := make(map[string]Problem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT doc FROM problems WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	problems, err := scanProblems(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range problems {
		out[p.ID] = p
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Problem, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT doc FROM problems ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	all, err := scanProblems(rows)
	if err != nil {
		return nil, err
	}

	out := make([]Problem, 0, len(all))
	for _, p := range all {
		if f.Matches(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PostgresStore) Update(ctx context.Context, p Problem) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal problem: %w", err)
	}

	cmd, err := s.pool.Exec(ctx,
		`UPDATE problems SET doc = $2::jsonb, updated_at = $3 WHERE id = $1`,
		p.ID,
		string(doc),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update problem: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("problem %s not found", p.ID)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := s.pool.Exec(ctx, `DELETE FROM problems WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete problem: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("problem %s not found", id)
	}
	return nil
}

func scanProblems(rows pgx.Rows) ([]Problem, error) {
	defer rows.Close()

	var out []Problem
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		var p Problem
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode problem: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate problems: %w", err)
	}
	return out, nil
}
