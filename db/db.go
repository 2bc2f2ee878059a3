package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/socialdistance/socialdistance/domain"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

const maxBusyRetries = 5

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement of the store. Bound to the pool it autocommits,
// bound to a transaction it takes part in it.
type Queries struct {
	q querier
}

// DB is the database struct.
type DB struct {
	*Queries
	db *sql.DB
}

// Open opens the sqlite database at path (":memory:" for a private in-memory one)
// and applies the schema migrations.
func Open(path string) (*DB, error) {
	dsn := path
	memory := path == ":memory:"
	if !memory {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if memory {
		// every connection to :memory: is a separate database
		sqlDB.SetMaxOpenConns(1)
		if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
		sqlDB.Exec("PRAGMA synchronous = NORMAL")
		sqlDB.Exec("PRAGMA temp_store = MEMORY")
	}

	d := &DB{Queries: &Queries{q: sqlDB}, db: sqlDB}
	if err := d.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// WithTx runs f inside a single transaction. f may be called more than once when
// sqlite reports the database as busy, so it must not have side effects outside
// the transaction.
func (db *DB) WithTx(ctx context.Context, f func(q *Queries) error) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return f(&Queries{q: tx})
	})
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	var err error
	for attempt := 0; attempt <= maxBusyRetries; attempt++ {
		err = db.runTransaction(ctx, f)
		if !isBusy(err) {
			return err
		}
		log.Printf("Database busy, restarting transaction (attempt %d)", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 20 * time.Millisecond):
		}
	}
	return err
}

func (db *DB) runTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return mapError(err)
	}
	if err = f(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err = tx.Commit(); err != nil {
		log.Printf("error committing transaction: %s", err)
		return mapError(err)
	}
	return nil
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		code := serr.Code() & 0xff
		return code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED
	}
	return false
}

// mapError translates constraint violations into domain errors and leaves the rest
// untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return err
	}
	switch serr.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: referenced row does not exist", domain.ErrNotFound)
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %s", domain.ErrConflict, serr.Error())
	}
	if serr.Code()&0xff != sqlitelib.SQLITE_CONSTRAINT {
		return err
	}
	msg := serr.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", domain.ErrConflict, msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%w: referenced row does not exist", domain.ErrNotFound)
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
}

func (q *Queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.q.ExecContext(ctx, query, args...)
	return res, mapError(err)
}

// execOne is exec that reports ErrNotFound when no row was touched.
func (q *Queries) execOne(ctx context.Context, query string, args ...any) error {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Page converts a 1-based page and size into limit/offset.
func Page(page, size int) (limit, offset int) {
	if size <= 0 {
		size = 50
	}
	if size > 500 {
		size = 500
	}
	if page <= 0 {
		page = 1
	}
	return size, (page - 1) * size
}
