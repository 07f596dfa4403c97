// SPDX-License-Identifier: MIT

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver
)

// SQLiteSource reads products from a SQLite database with a
// products(id, title, discount_percentage) table.
type SQLiteSource struct {
	Path string
}

// NewSQLiteSource returns a source backed by the SQLite file at path.
func NewSQLiteSource(path string) *SQLiteSource {
	return &SQLiteSource{Path: path}
}

// Name implements Source.
func (s *SQLiteSource) Name() string { return "sqlite:" + s.Path }

// Load implements Source.
func (s *SQLiteSource) Load(ctx context.Context) ([]Product, error) {
	db, err := openDB(s.Path)
	if err != nil {
		return nil, err
	}
	defer db.Close() //nolint:errcheck

	rows, err := db.QueryContext(ctx, `SELECT id, title, discount_percentage FROM products`)
	if err != nil {
		return nil, fmt.Errorf("query products from %s: %w", s.Path, err)
	}
	defer rows.Close() //nolint:errcheck

	var raw []Product
	for rows.Next() {
		var (
			id       sql.NullString
			title    sql.NullString
			discount sql.NullFloat64
		)
		if err := rows.Scan(&id, &title, &discount); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		raw = append(raw, Product{
			ID:                 id.String,
			Title:              title.String,
			DiscountPercentage: discount.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}

	return sanitize(raw, s.Name()), nil
}

// openDB opens the seed database read-heavy: WAL for concurrent readers,
// busy_timeout so a writer holding the lock does not fail the sync. The
// _pragma DSN form applies to every pooled connection.
func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}
