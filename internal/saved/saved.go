package saved

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const FileName = "saved.sqlite"

// Store keeps the user's saved recipes, the ones starred from the board.
type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("saved: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS saved_recipes (
		recipe_id TEXT PRIMARY KEY,
		saved_at_unixms INTEGER NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Toggle saves recipeID if it was not saved and unsaves it otherwise. It returns the new
// state.
func (s *Store) Toggle(ctx context.Context, recipeID string) (bool, error) {
	recipeID = strings.TrimSpace(recipeID)
	if recipeID == "" {
		return false, errors.New("saved: empty recipe id")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM saved_recipes WHERE recipe_id = ?`, recipeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	now := false
	if n == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO saved_recipes(recipe_id, saved_at_unixms) VALUES(?, ?)`,
			recipeID, time.Now().UnixMilli()); err != nil {
			return false, err
		}
		now = true
	}
	return now, tx.Commit()
}

func (s *Store) Has(ctx context.Context, recipeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM saved_recipes WHERE recipe_id = ?`, recipeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// List returns saved recipe ids, most recently saved first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT recipe_id FROM saved_recipes ORDER BY saved_at_unixms DESC, recipe_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Set returns the saved ids as a lookup set.
func (s *Store) Set(ctx context.Context) (map[string]bool, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}
