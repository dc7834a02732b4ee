package sheet

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

// PostgresStore keeps sheets as JSONB documents in the sheets table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed sheet store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Create(ctx context.Context, s Sheet) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sheet: %w", err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO sheets (id, doc, created_at, updated_at)
		 VALUES ($1, $2::jsonb, $3, $4)`,
		s.ID,
		string(doc),
		s.CreatedAt,
		s.UpdatedAt,
	)
	if database.IsUniqueViolation(err) {
		return apperr.Conflict("sheet %s already exists", s.ID)
	}
	if err != nil {
		return fmt.Errorf("insert sheet: %w", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (Sheet, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc []byte
	err := p.pool.QueryRow(ctx, `SELECT doc FROM sheets WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sheet{}, apperr.NotFound("sheet %s not found", id)
	}
	if err != nil {
		return Sheet{}, fmt.Errorf("get sheet: %w", err)
	}

	var s Sheet
	if err := json.Unmarshal(doc, &s); err != nil {
		return Sheet{}, fmt.Errorf("decode sheet %s: %w", id, err)
	}
	return s, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]Sheet, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT doc FROM sheets ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	out := []Sheet{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		var s Sheet
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, fmt.Errorf("decode sheet: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) Replace(ctx context.Context, s Sheet) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sheet: %w", err)
	}

	cmd, err := p.pool.Exec(ctx,
		`UPDATE sheets SET doc = $2::jsonb, updated_at = $3 WHERE id = $1`,
		s.ID,
		string(doc),
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("replace sheet: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("sheet %s not found", s.ID)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := p.pool.Exec(ctx, `DELETE FROM sheets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("sheet %s not found", id)
	}
	return nil
}
