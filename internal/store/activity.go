package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordActivity appends one audit row. Callers treat failures as advisory;
// the workflow layer logs and discards them.
func (s *Store) RecordActivity(ctx context.Context, userID *int64, action, details string, productID, stageID *int64) error {
	if action == "" {
		return fmt.Errorf("record activity: action is required")
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO activity_logs (user_id, action, details, product_id, stage_id, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		nullableInt64(userID), action, nullableString(details),
		nullableInt64(productID), nullableInt64(stageID), formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

const activityColumns = `
    l.id, l.user_id, l.action, l.details, l.product_id, l.stage_id, l.created_at,
    COALESCE(u.full_name, '')`

const activityJoins = `
    FROM activity_logs l
    LEFT JOIN users u ON u.id = l.user_id`

func scanActivity(sc scanner) (*ActivityEntry, error) {
	var (
		id         int64
		userID     sql.NullInt64
		action     string
		details    sql.NullString
		productID  sql.NullInt64
		stageID    sql.NullInt64
		createdRaw string
		userName   string
	)
	if err := sc.Scan(&id, &userID, &action, &details, &productID, &stageID, &createdRaw, &userName); err != nil {
		return nil, err
	}
	entry := &ActivityEntry{
		ID:        id,
		Action:    action,
		Details:   details.String,
		CreatedAt: timeFromRaw(createdRaw),
		UserName:  userName,
	}
	if userID.Valid {
		v := userID.Int64
		entry.UserID = &v
	}
	if productID.Valid {
		v := productID.Int64
		entry.ProductID = &v
	}
	if stageID.Valid {
		v := stageID.Int64
		entry.StageID = &v
	}
	return entry, nil
}

// RecentActivity returns the newest audit rows up to limit.
func (s *Store) RecentActivity(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queryActivity(
		ctx,
		`SELECT`+activityColumns+activityJoins+` ORDER BY l.created_at DESC, l.id DESC LIMIT ?`,
		limit,
	)
}

// ActivityByProduct returns a product's audit trail, newest first.
func (s *Store) ActivityByProduct(ctx context.Context, productID int64) ([]*ActivityEntry, error) {
	return s.queryActivity(
		ctx,
		`SELECT`+activityColumns+activityJoins+` WHERE l.product_id = ? ORDER BY l.created_at DESC, l.id DESC`,
		productID,
	)
}

func (s *Store) queryActivity(ctx context.Context, query string, args ...any) ([]*ActivityEntry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	var entries []*ActivityEntry
	for rows.Next() {
		entry, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
