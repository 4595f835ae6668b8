package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/macro-cli/internal/model"
)

// SQLiteStore implements MealStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS meals (
	id         TEXT PRIMARY KEY,
	query      TEXT NOT NULL,
	servings   REAL NOT NULL DEFAULT 1,
	calories   REAL NOT NULL,
	protein_g  REAL NOT NULL,
	carbs_g    REAL NOT NULL,
	fat_g      REAL NOT NULL,
	source     TEXT NOT NULL,
	confidence REAL NOT NULL,
	result     TEXT NOT NULL,
	breakdown  TEXT NOT NULL DEFAULT '[]',
	eaten_at   DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_meals_eaten_at ON meals(eaten_at);
`

const selectMeal = `SELECT id, query, servings, result, breakdown, eaten_at, created_at FROM meals`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func sqliteInsert() string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(mealColumns)), ", ")
	return `INSERT INTO meals (` + strings.Join(mealColumns, ", ") + `) VALUES (` + marks + `)`
}

func (s *SQLiteStore) SaveMeal(ctx context.Context, m *model.Meal) error {
	stamp(m, time.Now())
	row, err := mealRow(m)
	if err != nil {
		return eris.Wrap(err, "sqlite: save meal")
	}
	if _, err := s.db.ExecContext(ctx, sqliteInsert(), row...); err != nil {
		return eris.Wrap(err, "sqlite: insert meal")
	}
	return nil
}

func (s *SQLiteStore) SaveMeals(ctx context.Context, meals []*model.Meal) error {
	if len(meals) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsert())
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now()
	for _, m := range meals {
		stamp(m, now)
		row, err := mealRow(m)
		if err != nil {
			return eris.Wrap(err, "sqlite: save meals")
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrapf(err, "sqlite: insert meal %s", m.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) GetMeal(ctx context.Context, id string) (*model.Meal, error) {
	row := s.db.QueryRowContext(ctx, selectMeal+` WHERE id = ?`, id)
	m, err := scanMeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrMealNotFound, "sqlite: get meal %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan meal")
	}
	return m, nil
}

func (s *SQLiteStore) ListMeals(ctx context.Context, filter MealFilter) ([]model.Meal, error) {
	query := selectMeal + ` WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND eaten_at >= ?`
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		query += ` AND eaten_at < ?`
		args = append(args, filter.Until.UTC())
	}
	query += ` ORDER BY eaten_at DESC, created_at DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list meals")
	}
	defer rows.Close() //nolint:errcheck

	var meals []model.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan meal")
		}
		meals = append(meals, *m)
	}
	return meals, eris.Wrap(rows.Err(), "sqlite: list meals iterate")
}

func (s *SQLiteStore) DeleteMeal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meals WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete meal %s", id)
	}
	return checkRowsAffected(res, id)
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrMealNotFound, "sqlite: meal %s", id)
	}
	return nil
}
