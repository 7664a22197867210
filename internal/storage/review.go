package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/revq/internal/domain"
	"github.com/conorfennell/revq/internal/scheduler"
)

var _ scheduler.Store = (*DB)(nil)

// GetReviewState retrieves an item's review state and its version.
func (db *DB) GetReviewState(ctx context.Context, itemID, ownerID string) (scheduler.VersionedState, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT r.last_answered_at, r.next_due_at, r.interval_days, r.ease_factor, r.lapse_count, r.version
		FROM review_states r
		JOIN items i ON i.id = r.item_id
		WHERE r.item_id = ? AND i.owner_id = ?
	`, itemID, ownerID)

	var vs scheduler.VersionedState
	var lastAnswered sql.NullInt64
	var nextDue int64
	err := row.Scan(
		&lastAnswered,
		&nextDue,
		&vs.State.IntervalDays,
		&vs.State.EaseFactor,
		&vs.State.LapseCount,
		&vs.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scheduler.VersionedState{}, fmt.Errorf("review state for item %s: %w", itemID, domain.ErrNotFound)
		}
		return scheduler.VersionedState{}, fmt.Errorf("failed to find review state for item %s: %w", itemID, err)
	}
	vs.State.LastAnsweredAt = timePtr(lastAnswered)
	vs.State.NextDueAt = fromUnix(nextDue)
	return vs, nil
}

// PutReviewState writes a new review state if the stored version still
// equals expectedVersion, and bumps the version.
func (db *DB) PutReviewState(ctx context.Context, itemID string, expectedVersion int64, state domain.ReviewState) error {
	lastAnswered, nextDue, err := encodeTimes(state)
	if err != nil {
		return fmt.Errorf("review state for item %s: %w", itemID, err)
	}

	res, err := db.conn.ExecContext(ctx, `
		UPDATE review_states
		SET last_answered_at = ?, next_due_at = ?, interval_days = ?, ease_factor = ?, lapse_count = ?,
			version = version + 1
		WHERE item_id = ? AND version = ?
	`,
		lastAnswered,
		nextDue,
		state.IntervalDays,
		state.EaseFactor,
		state.LapseCount,
		itemID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update review state for item %s: %w", itemID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for item %s: %w", itemID, err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = db.conn.QueryRowContext(ctx, `SELECT 1 FROM review_states WHERE item_id = ?`, itemID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("review state for item %s: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check review state for item %s: %w", itemID, err)
	}
	return fmt.Errorf("review state for item %s at version %d: %w", itemID, expectedVersion, domain.ErrVersionConflict)
}

// QueryDue retrieves the owner's items whose next due time is at or before
// asOf. An empty setID covers every set.
func (db *DB) QueryDue(ctx context.Context, ownerID, setID string, asOf time.Time) ([]domain.DueItem, error) {
	cutoff, err := toUnix(asOf)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT r.item_id, r.last_answered_at, r.next_due_at, r.interval_days, r.ease_factor, r.lapse_count
		FROM review_states r
		JOIN items i ON i.id = r.item_id
		WHERE i.owner_id = ? AND (? = '' OR i.set_id = ?) AND r.next_due_at <= ?
		ORDER BY r.next_due_at, r.lapse_count DESC, r.item_id
	`, ownerID, setID, setID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query due items for owner %s: %w", ownerID, err)
	}
	defer rows.Close()

	due := []domain.DueItem{}
	for rows.Next() {
		var it domain.DueItem
		var lastAnswered sql.NullInt64
		var nextDue int64
		if err := rows.Scan(
			&it.ItemID,
			&lastAnswered,
			&nextDue,
			&it.State.IntervalDays,
			&it.State.EaseFactor,
			&it.State.LapseCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan due item row: %w", err)
		}
		it.State.LastAnsweredAt = timePtr(lastAnswered)
		it.State.NextDueAt = fromUnix(nextDue)
		due = append(due, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query due items for owner %s: %w", ownerID, err)
	}
	return due, nil
}

func encodeTimes(s domain.ReviewState) (sql.NullInt64, int64, error) {
	nextDue, err := toUnix(s.NextDueAt)
	if err != nil {
		return sql.NullInt64{}, 0, err
	}
	if s.LastAnsweredAt == nil {
		return sql.NullInt64{}, nextDue, nil
	}
	last, err := toUnix(*s.LastAnsweredAt)
	if err != nil {
		return sql.NullInt64{}, 0, err
	}
	return sql.NullInt64{Int64: last, Valid: true}, nextDue, nil
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromUnix(v.Int64)
	return &t
}
