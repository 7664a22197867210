package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/conorfennell/revq/internal/domain"
)

// ItemView is an item together with its current review state.
type ItemView struct {
	domain.Item
	State domain.ReviewState
}

// CreateItem inserts an item and its initial review state in one
// transaction. The target set must belong to the item's owner.
func (db *DB) CreateItem(ctx context.Context, item domain.Item, initial domain.ReviewState) error {
	if item.ID == "" || item.SetID == "" || item.OwnerID == "" {
		return fmt.Errorf("%w: item id, set and owner are required", domain.ErrInvalidInput)
	}
	createdAt, err := toUnix(item.CreatedAt)
	if err != nil {
		return fmt.Errorf("item %s: %w", item.ID, err)
	}
	lastAnswered, nextDue, err := encodeTimes(initial)
	if err != nil {
		return fmt.Errorf("item %s: %w", item.ID, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for item %s: %w", item.ID, err)
	}
	defer tx.Rollback()

	var owner string
	err = tx.QueryRowContext(ctx, `SELECT owner_id FROM sets WHERE id = ?`, item.SetID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != item.OwnerID) {
		return fmt.Errorf("set %s: %w", item.SetID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to find set %s: %w", item.SetID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, set_id, owner_id, question_image_url, answer_image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		item.SetID,
		item.OwnerID,
		item.QuestionImageURL,
		item.AnswerImageURL,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_states (item_id, last_answered_at, next_due_at, interval_days, ease_factor, lapse_count, version)
		VALUES (?, ?, ?, ?, ?, ?, 0)
	`,
		item.ID,
		lastAnswered,
		nextDue,
		initial.IntervalDays,
		initial.EaseFactor,
		initial.LapseCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert review state for item %s: %w", item.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item %s: %w", item.ID, err)
	}
	return nil
}

// FindItem retrieves an item with its review state.
func (db *DB) FindItem(ctx context.Context, itemID, ownerID string) (ItemView, error) {
	row := db.conn.QueryRowContext(ctx, itemSelect+`
		WHERE i.id = ? AND i.owner_id = ?
	`, itemID, ownerID)

	view, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ItemView{}, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
		}
		return ItemView{}, fmt.Errorf("failed to find item %s: %w", itemID, err)
	}
	return view, nil
}

// ListItems retrieves the items of a set, oldest first.
func (db *DB) ListItems(ctx context.Context, setID, ownerID string) ([]ItemView, error) {
	rows, err := db.conn.QueryContext(ctx, itemSelect+`
		WHERE i.set_id = ? AND i.owner_id = ?
		ORDER BY i.created_at, i.id
	`, setID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items for set %s: %w", setID, err)
	}
	defer rows.Close()

	items := []ItemView{}
	for rows.Next() {
		view, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row for set %s: %w", setID, err)
		}
		items = append(items, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items for set %s: %w", setID, err)
	}
	return items, nil
}

// DeleteItem removes an item and its review state.
func (db *DB) DeleteItem(ctx context.Context, itemID, ownerID string) error {
	res, err := db.conn.ExecContext(ctx, `
		DELETE FROM items
		WHERE id = ? AND owner_id = ?
	`, itemID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", itemID, err)
	}
	return requireAffected(res, fmt.Sprintf("item %s", itemID))
}

const itemSelect = `
	SELECT i.id, i.set_id, i.owner_id, i.question_image_url, i.answer_image_url, i.created_at,
		r.last_answered_at, r.next_due_at, r.interval_days, r.ease_factor, r.lapse_count
	FROM items i
	JOIN review_states r ON r.item_id = i.id
`

func scanItem(row scanner) (ItemView, error) {
	var v ItemView
	var createdAt, nextDue int64
	var lastAnswered sql.NullInt64
	err := row.Scan(
		&v.ID,
		&v.SetID,
		&v.OwnerID,
		&v.QuestionImageURL,
		&v.AnswerImageURL,
		&createdAt,
		&lastAnswered,
		&nextDue,
		&v.State.IntervalDays,
		&v.State.EaseFactor,
		&v.State.LapseCount,
	)
	if err != nil {
		return ItemView{}, err
	}
	v.CreatedAt = fromUnix(createdAt)
	v.State.NextDueAt = fromUnix(nextDue)
	v.State.LastAnsweredAt = timePtr(lastAnswered)
	return v, nil
}
