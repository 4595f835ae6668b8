package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/macro-cli/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store needs. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Close()
}

// PostgresStore implements MealStore using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool. maxConns <= 0
// keeps the default of 5.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 5
	pgxCfg.MinConns = 1
	if maxConns > 0 {
		pgxCfg.MaxConns = maxConns
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS meals (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	query      TEXT NOT NULL,
	servings   DOUBLE PRECISION NOT NULL DEFAULT 1,
	calories   DOUBLE PRECISION NOT NULL,
	protein_g  DOUBLE PRECISION NOT NULL,
	carbs_g    DOUBLE PRECISION NOT NULL,
	fat_g      DOUBLE PRECISION NOT NULL,
	source     TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	result     JSONB NOT NULL,
	breakdown  JSONB NOT NULL DEFAULT '[]'::jsonb,
	eaten_at   TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_meals_eaten_at ON meals(eaten_at DESC);
`

const pgSelectMeal = `SELECT id, query, servings, result::text, breakdown::text, eaten_at, created_at FROM meals`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func pgInsert() string {
	marks := make([]string, len(mealColumns))
	for i := range mealColumns {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	return `INSERT INTO meals (` + strings.Join(mealColumns, ", ") + `) VALUES (` + strings.Join(marks, ", ") + `)`
}

func (s *PostgresStore) SaveMeal(ctx context.Context, m *model.Meal) error {
	stamp(m, time.Now())
	row, err := mealRow(m)
	if err != nil {
		return eris.Wrap(err, "postgres: save meal")
	}
	if _, err := s.pool.Exec(ctx, pgInsert(), row...); err != nil {
		return eris.Wrap(err, "postgres: insert meal")
	}
	return nil
}

// SaveMeals bulk-inserts meals with the COPY protocol.
func (s *PostgresStore) SaveMeals(ctx context.Context, meals []*model.Meal) error {
	if len(meals) == 0 {
		return nil
	}

	now := time.Now()
	rows := make([][]any, 0, len(meals))
	for _, m := range meals {
		stamp(m, now)
		row, err := mealRow(m)
		if err != nil {
			return eris.Wrap(err, "postgres: save meals")
		}
		rows = append(rows, row)
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"meals"}, mealColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return eris.Wrap(err, "postgres: copy meals")
	}
	if int(n) != len(rows) {
		return eris.Errorf("postgres: copied %d of %d meals", n, len(rows))
	}
	return nil
}

func (s *PostgresStore) GetMeal(ctx context.Context, id string) (*model.Meal, error) {
	row := s.pool.QueryRow(ctx, pgSelectMeal+` WHERE id = $1`, id)
	m, err := scanMeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrMealNotFound, "postgres: get meal %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan meal")
	}
	return m, nil
}

func (s *PostgresStore) ListMeals(ctx context.Context, filter MealFilter) ([]model.Meal, error) {
	query := pgSelectMeal + ` WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		query += fmt.Sprintf(` AND eaten_at >= $%d`, len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until.UTC())
		query += fmt.Sprintf(` AND eaten_at < $%d`, len(args))
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY eaten_at DESC, created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list meals")
	}
	defer rows.Close()

	var meals []model.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan meal")
		}
		meals = append(meals, *m)
	}
	return meals, eris.Wrap(rows.Err(), "postgres: list meals iterate")
}

func (s *PostgresStore) DeleteMeal(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM meals WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete meal %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrMealNotFound, "postgres: meal %s", id)
	}
	return nil
}
