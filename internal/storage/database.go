package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conorfennell/revq/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
// path is a file path; foreign keys, WAL and a busy timeout are enabled on
// every pooled connection.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

func dsn(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateSet inserts a new set. The name is trimmed and must
// not be empty.
func (db *DB) CreateSet(ctx context.Context, set domain.Set) (domain.Set, error) {
	set.Name = strings.TrimSpace(set.Name)
	set.Description = strings.TrimSpace(set.Description)
	if set.Name == "" {
		return domain.Set{}, fmt.Errorf("%w: set name is required", domain.ErrInvalidInput)
	}
	if set.ID == "" || set.OwnerID == "" {
		return domain.Set{}, fmt.Errorf("%w: set id and owner are required", domain.ErrInvalidInput)
	}

	createdAt, err := toUnix(set.CreatedAt)
	if err != nil {
		return domain.Set{}, err
	}

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO sets (id, owner_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		set.ID,
		set.OwnerID,
		set.Name,
		set.Description,
		createdAt,
	)
	if err != nil {
		return domain.Set{}, fmt.Errorf("failed to insert set %s: %w", set.ID, err)
	}
	return set, nil
}

// GetSet retrieves a set by id. A set owned by someone else is reported as
// not found.
func (db *DB) GetSet(ctx context.Context, setID, ownerID string) (domain.Set, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, owner_id, name, description, created_at
		FROM sets WHERE id = ? AND owner_id = ?
	`, setID, ownerID)

	set, err := scanSet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Set{}, fmt.Errorf("set %s: %w", setID, domain.ErrNotFound)
		}
		return domain.Set{}, fmt.Errorf("failed to find set %s: %w", setID, err)
	}
	return set, nil
}

// ListSets retrieves all sets of an owner, newest first.
func (db *DB) ListSets(ctx context.Context, ownerID string) ([]domain.Set, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, owner_id, name, description, created_at
		FROM sets WHERE owner_id = ?
		ORDER BY created_at DESC, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	sets := []domain.Set{}
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan set row: %w", err)
		}
		sets = append(sets, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sets for owner %s: %w", ownerID, err)
	}
	return sets, nil
}

// DeleteSet removes a set together with its items and their review state.
func (db *DB) DeleteSet(ctx context.Context, setID, ownerID string) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM sets
		WHERE id = ? AND owner_id = ?
	`, setID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete set %s: %w", setID, err)
	}
	return requireAffected(res, fmt.Sprintf("set %s", setID))
}

// SetSummary reports how many items of a set exist and how many are due.
type SetSummary struct {
	SetID string
	Name  string
	Items int
	Due   int
}

// Summaries returns one summary per set of the owner, newest set first.
func (db *DB) Summaries(ctx context.Context, ownerID string, asOf time.Time) ([]SetSummary, error) {
	cutoff, err := toUnix(asOf)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.name,
			COUNT(i.id),
			COALESCE(SUM(CASE WHEN r.next_due_at <= ? THEN 1 ELSE 0 END), 0)
		FROM sets s
		LEFT JOIN items i ON i.set_id = s.id
		LEFT JOIN review_states r ON r.item_id = i.id
		WHERE s.owner_id = ?
		GROUP BY s.id, s.name, s.created_at
		ORDER BY s.created_at DESC, s.id
	`, cutoff, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise sets for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	summaries := []SetSummary{}
	for rows.Next() {
		var s SetSummary
		if err := rows.Scan(&s.SetID, &s.Name, &s.Items, &s.Due); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to summarise sets for owner %s: %w", ownerID, err)
	}
	return summaries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSet(row scanner) (domain.Set, error) {
	var set domain.Set
	var createdAt int64
	if err := row.Scan(&set.ID, &set.OwnerID, &set.Name, &set.Description, &createdAt); err != nil {
		return domain.Set{}, err
	}
	set.CreatedAt = fromUnix(createdAt)
	return set, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

// toUnix encodes t as Unix nanoseconds. Instants the encoding cannot hold
// are rejected rather than wrapped.
func toUnix(t time.Time) (int64, error) {
	if !domain.InTimeRange(t) {
		return 0, fmt.Errorf("%w: time %s out of range", domain.ErrInvalidInput, t)
	}
	return t.UTC().UnixNano(), nil
}

func fromUnix(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
