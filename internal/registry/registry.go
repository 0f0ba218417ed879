package registry

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raysh454/clarity/internal/logging"

	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrNotFound     = errors.New("not found")
)

// Subscriber is one captured email.
type Subscriber struct {
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Registry stores subscribers and per-day scan usage in SQLite.
type Registry struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (creating if needed) the SQLite database at path. ":memory:"
// is accepted for throwaway stores.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ensure db dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	// one writer keeps SQLite from returning SQLITE_BUSY under load
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewRegistry runs the embedded schema against db.
func NewRegistry(db *sql.DB, logger logging.Logger) (*Registry, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &Registry{db: db, logger: logger.With(logging.Field{Key: "component", Value: "registry"})}, nil
}

// NormalizeEmail lower-cases and validates an address.
func NormalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@"):], ".") {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// DayStamp is the UTC calendar day quota is keyed by.
func DayStamp(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Subscribe records email. created is false when it was already present.
func (r *Registry) Subscribe(ctx context.Context, email string, now time.Time) (sub *Subscriber, created bool, err error) {
	email, err = NormalizeEmail(email)
	if err != nil {
		return nil, false, err
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscribers(email, created_at) VALUES(?, ?) ON CONFLICT(email) DO NOTHING`,
		email, now.UTC().UnixMilli())
	if err != nil {
		return nil, false, fmt.Errorf("insert subscriber: %w", err)
	}
	n, _ := res.RowsAffected()

	sub, err = r.GetSubscriber(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if n > 0 {
		r.logger.Info("subscriber added", logging.Field{Key: "email", Value: email})
	}
	return sub, n > 0, nil
}

// GetSubscriber returns ErrNotFound for unknown addresses.
func (r *Registry) GetSubscriber(ctx context.Context, email string) (*Subscriber, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	var ms int64
	err = r.db.QueryRowContext(ctx, `SELECT created_at FROM subscribers WHERE email = ?`, email).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select subscriber: %w", err)
	}
	return &Subscriber{Email: email, CreatedAt: time.UnixMilli(ms).UTC()}, nil
}

func (r *Registry) IsSubscribed(ctx context.Context, email string) (bool, error) {
	_, err := r.GetSubscriber(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Usage returns how many scans email has consumed on day.
func (r *Registry) Usage(ctx context.Context, email, day string) (int, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, `SELECT count FROM scan_usage WHERE email = ? AND day = ?`, email, day).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select usage: %w", err)
	}
	return n, nil
}

// Consume increments the day's counter and returns the new count.
func (r *Registry) Consume(ctx context.Context, email, day string, now time.Time) (int, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO scan_usage(email, day, count, updated_at) VALUES(?, ?, 1, ?)
		ON CONFLICT(email, day) DO UPDATE SET count = count + 1, updated_at = excluded.updated_at
		RETURNING count`,
		email, day, now.UTC().UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("consume usage: %w", err)
	}
	return n, nil
}

// PruneUsage drops usage rows for days before the given stamp.
func (r *Registry) PruneUsage(ctx context.Context, before string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scan_usage WHERE day < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune usage: %w", err)
	}
	return res.RowsAffected()
}
