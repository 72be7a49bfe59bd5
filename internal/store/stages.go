package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"loomline/internal/services"
)

const stageColumns = "id, name, sequence, norm_hours, description, created_at"

func scanStage(sc scanner) (*Stage, error) {
	var (
		id          int64
		name        string
		sequence    int64
		normHours   int64
		description sql.NullString
		createdRaw  string
	)
	if err := sc.Scan(&id, &name, &sequence, &normHours, &description, &createdRaw); err != nil {
		return nil, err
	}
	return &Stage{
		ID:          id,
		Name:        name,
		Sequence:    sequence,
		NormHours:   normHours,
		Description: description.String,
		CreatedAt:   timeFromRaw(createdRaw),
	}, nil
}

// canonicalStageName folds a stage name for comparison. The names are
// Vietnamese and may arrive with either precomposed or combining diacritics.
func canonicalStageName(name string) string {
	return norm.NFC.String(strings.ToUpper(strings.TrimSpace(name)))
}

// CreateStage appends a stage after the current last sequence position.
func (s *Store) CreateStage(ctx context.Context, name string, normHours int64, description string) (*Stage, error) {
	name = canonicalStageName(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create-stage", "name is required", nil)
	}
	if normHours < 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "create-stage", "norm hours must not be negative", nil)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO stages (name, sequence, norm_hours, description, created_at)
         VALUES (?, COALESCE((SELECT MAX(sequence) FROM stages), 0) + 1, ?, ?, ?)`,
		name,
		normHours,
		nullableString(strings.TrimSpace(description)),
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.Wrap(services.ErrAlreadyExists, "store", "create-stage", fmt.Sprintf("stage %q exists", name), err)
		}
		return nil, fmt.Errorf("insert stage: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetStage(ctx, id)
}

// UpdateStage rewrites the mutable fields of a stage.
func (s *Store) UpdateStage(ctx context.Context, id int64, name string, normHours int64, description string) (*Stage, error) {
	name = canonicalStageName(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "update-stage", "name is required", nil)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE stages SET name = ?, norm_hours = ?, description = ? WHERE id = ?`,
		name,
		normHours,
		nullableString(strings.TrimSpace(description)),
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.Wrap(services.ErrAlreadyExists, "store", "update-stage", fmt.Sprintf("stage %q exists", name), err)
		}
		return nil, fmt.Errorf("update stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, services.Wrap(services.ErrNotFound, "store", "update-stage", fmt.Sprintf("stage %d", id), nil)
	}
	return s.GetStage(ctx, id)
}

// GetStage fetches a stage by identifier.
func (s *Store) GetStage(ctx context.Context, id int64) (*Stage, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+stageColumns+` FROM stages WHERE id = ?`, id)
	stage, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-stage", fmt.Sprintf("stage %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return stage, nil
}

// GetStageByName resolves a stage by name, tolerating diacritic and case
// differences in the lookup.
func (s *Store) GetStageByName(ctx context.Context, name string) (*Stage, error) {
	want := canonicalStageName(name)
	stages, err := s.ListStages(ctx)
	if err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if canonicalStageName(stage.Name) == want {
			return stage, nil
		}
	}
	return nil, services.Wrap(services.ErrNotFound, "store", "get-stage", fmt.Sprintf("stage %q", name), nil)
}

// GetStageBySequence fetches the stage holding the given sequence position.
func (s *Store) GetStageBySequence(ctx context.Context, sequence int64) (*Stage, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+stageColumns+` FROM stages WHERE sequence = ?`, sequence)
	stage, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-stage", fmt.Sprintf("sequence %d", sequence), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get stage by sequence: %w", err)
	}
	return stage, nil
}

// ListStages returns the registry ordered by sequence.
func (s *Store) ListStages(ctx context.Context) ([]*Stage, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+stageColumns+` FROM stages ORDER BY sequence`)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []*Stage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, stage)
	}
	return stages, rows.Err()
}

// NextStage returns the successor of the given stage by sequence, or nil when
// the stage is last.
func (s *Store) NextStage(ctx context.Context, id int64) (*Stage, error) {
	stage, err := s.GetStage(ctx, id)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+stageColumns+` FROM stages WHERE sequence > ? ORDER BY sequence LIMIT 1`,
		stage.Sequence,
	)
	next, err := scanStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next stage: %w", err)
	}
	return next, nil
}

// ReorderStages assigns sequence positions 1..N following the order of ids.
// Every existing stage must appear exactly once.
func (s *Store) ReorderStages(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return services.Wrap(services.ErrValidation, "store", "reorder-stages", "no stage ids supplied", nil)
	}
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return services.Wrap(services.ErrValidation, "store", "reorder-stages", fmt.Sprintf("stage %d listed twice", id), nil)
		}
		seen[id] = struct{}{}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var total int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM stages`).Scan(&total); err != nil {
			return fmt.Errorf("count stages: %w", err)
		}
		if total != int64(len(ids)) {
			return services.Wrap(services.ErrValidation, "store", "reorder-stages",
				fmt.Sprintf("expected %d stage ids, got %d", total, len(ids)), nil)
		}
		for i, id := range ids {
			res, err := tx.ExecContext(ctx, `UPDATE stages SET sequence = ? WHERE id = ?`, int64(i)+1, id)
			if err != nil {
				return fmt.Errorf("stage sequence: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if affected == 0 {
				return services.Wrap(services.ErrNotFound, "store", "reorder-stages", fmt.Sprintf("stage %d", id), nil)
			}
		}
		return nil
	})
}

// DeleteStageCascade removes a stage and every record referencing it, then
// renumbers the survivors to a contiguous 1..N in their prior relative order.
// At least one other stage must remain.
func (s *Store) DeleteStageCascade(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var total int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM stages`).Scan(&total); err != nil {
			return fmt.Errorf("count stages: %w", err)
		}
		if total <= 1 {
			return services.Wrap(services.ErrInvariantViolation, "store", "delete-stage", "cannot delete the last stage", nil)
		}
		var exists int64
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM stages WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check stage: %w", err)
		}
		if exists == 0 {
			return services.Wrap(services.ErrNotFound, "store", "delete-stage", fmt.Sprintf("stage %d", id), nil)
		}

		// Legacy products pointing at the doomed stage fall back to the
		// lowest remaining sequence position.
		if _, err := tx.ExecContext(ctx, `
            UPDATE products SET current_stage_id = (
                SELECT id FROM stages WHERE id != ? ORDER BY sequence LIMIT 1
            ) WHERE current_stage_id = ?`, id, id); err != nil {
			return fmt.Errorf("repoint products: %w", err)
		}

		deletes := []string{
			`DELETE FROM material_request_messages WHERE request_id IN (SELECT id FROM material_requests WHERE stage_id = ?)`,
			`DELETE FROM material_requests WHERE stage_id = ?`,
			`DELETE FROM product_stage_workers WHERE stage_id = ?`,
			`DELETE FROM product_active_stages WHERE stage_id = ?`,
			`DELETE FROM product_stage_tasks WHERE stage_id = ?`,
			`DELETE FROM inbound_record_stages WHERE stage_id = ?`,
			`DELETE FROM activity_logs WHERE stage_id = ?`,
			`DELETE FROM stages WHERE id = ?`,
		}
		for _, stmt := range deletes {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("cascade delete: %w", err)
			}
		}

		rows, err := tx.QueryContext(ctx, `SELECT id FROM stages ORDER BY sequence`)
		if err != nil {
			return fmt.Errorf("list survivors: %w", err)
		}
		var survivors []int64
		for rows.Next() {
			var sid int64
			if err := rows.Scan(&sid); err != nil {
				rows.Close()
				return fmt.Errorf("scan survivor: %w", err)
			}
			survivors = append(survivors, sid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate survivors: %w", err)
		}
		for i, sid := range survivors {
			if _, err := tx.ExecContext(ctx, `UPDATE stages SET sequence = ? WHERE id = ?`, int64(i)+1, sid); err != nil {
				return fmt.Errorf("renumber stage: %w", err)
			}
		}
		return nil
	})
}
