package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loomline/internal/services"
)

const activeStageColumns = `
    a.id, a.product_id, a.stage_id, a.status, a.started_at, a.completed_at, a.norm_hours, a.created_at,
    s.name, s.sequence, s.norm_hours, s.description,
    p.code, p.name,
    (SELECT COUNT(1) FROM product_stage_workers w
        WHERE w.product_id = a.product_id AND w.stage_id = a.stage_id),
    (SELECT COUNT(1) FROM product_stage_workers w
        WHERE w.product_id = a.product_id AND w.stage_id = a.stage_id AND w.status = 'working'),
    (SELECT COUNT(1) FROM product_stage_workers w
        WHERE w.product_id = a.product_id AND w.stage_id = a.stage_id AND w.status = 'completed')`

const activeStageJoins = `
    FROM product_active_stages a
    JOIN stages s ON s.id = a.stage_id
    JOIN products p ON p.id = a.product_id`

func scanActiveStage(sc scanner) (*ActiveStage, error) {
	var (
		id           int64
		productID    int64
		stageID      int64
		status       string
		startedRaw   string
		completedRaw sql.NullString
		normHours    sql.NullInt64
		createdRaw   string
		stageName    string
		stageSeq     int64
		stageNorm    int64
		stageDesc    sql.NullString
		productCode  string
		productName  string
		workerCount  int64
		workingCount int64
		doneCount    int64
	)
	if err := sc.Scan(
		&id, &productID, &stageID, &status, &startedRaw, &completedRaw, &normHours, &createdRaw,
		&stageName, &stageSeq, &stageNorm, &stageDesc,
		&productCode, &productName,
		&workerCount, &workingCount, &doneCount,
	); err != nil {
		return nil, err
	}
	active := &ActiveStage{
		ID:               id,
		ProductID:        productID,
		StageID:          stageID,
		Status:           StageStatus(status),
		StartedAt:        timeFromRaw(startedRaw),
		CompletedAt:      timePtrFromRaw(completedRaw.String, completedRaw.Valid),
		CreatedAt:        timeFromRaw(createdRaw),
		StageName:        stageName,
		StageSequence:    stageSeq,
		StageNormHours:   stageNorm,
		StageDescription: stageDesc.String,
		ProductCode:      productCode,
		ProductName:      productName,
		WorkerCount:      workerCount,
		WorkingCount:     workingCount,
		CompletedCount:   doneCount,
	}
	if normHours.Valid {
		v := normHours.Int64
		active.NormHours = &v
	}
	return active, nil
}

// ActivateOptions tunes stage activation.
type ActivateOptions struct {
	// NormHours overrides the stage's default norm for this activation.
	NormHours *int64
	// AllowRework permits re-activating a completed stage, resetting its
	// completion state.
	AllowRework bool
}

// ActivateStage opens a (product, stage) pair for parallel work. A fresh pair
// is created active; an existing active or paused pair is refreshed in place;
// a completed pair is rejected unless rework is allowed, in which case it is
// reset to active.
func (s *Store) ActivateStage(ctx context.Context, productID, stageID int64, opts ActivateOptions) (*ActiveStage, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if _, err := s.GetStage(ctx, stageID); err != nil {
		return nil, err
	}
	if opts.NormHours != nil && *opts.NormHours < 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "activate-stage", "norm hours must not be negative", nil)
	}

	now := formatTime(time.Now())
	existing, err := s.GetActiveStage(ctx, productID, stageID)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	switch {
	case existing == nil:
		_, err := s.execWithRetry(
			ctx,
			`INSERT INTO product_active_stages (product_id, stage_id, status, started_at, norm_hours, created_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			productID, stageID, StageActive, now, nullableInt64(opts.NormHours), now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				// Lost the race to a concurrent activation; fall through to
				// the refresh path.
				return s.ActivateStage(ctx, productID, stageID, opts)
			}
			return nil, fmt.Errorf("insert active stage: %w", err)
		}
	case existing.Status == StageCompleted && !opts.AllowRework:
		return nil, services.Wrap(services.ErrInvalidState, "store", "activate-stage",
			fmt.Sprintf("stage %d already completed for product %d", stageID, productID), nil)
	case existing.Status == StageCompleted:
		if _, err := s.execWithRetry(
			ctx,
			`UPDATE product_active_stages
             SET status = ?, started_at = ?, completed_at = NULL,
                 norm_hours = COALESCE(?, norm_hours)
             WHERE product_id = ? AND stage_id = ?`,
			StageActive, now, nullableInt64(opts.NormHours), productID, stageID,
		); err != nil {
			return nil, fmt.Errorf("rework active stage: %w", err)
		}
	default:
		if _, err := s.execWithRetry(
			ctx,
			`UPDATE product_active_stages
             SET status = ?, started_at = ?, norm_hours = COALESCE(?, norm_hours)
             WHERE product_id = ? AND stage_id = ?`,
			StageActive, now, nullableInt64(opts.NormHours), productID, stageID,
		); err != nil {
			return nil, fmt.Errorf("refresh active stage: %w", err)
		}
	}

	return s.GetActiveStage(ctx, productID, stageID)
}

// GetActiveStage fetches the (product, stage) pair with joined stage and
// product fields plus live worker counts.
func (s *Store) GetActiveStage(ctx context.Context, productID, stageID int64) (*ActiveStage, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT`+activeStageColumns+activeStageJoins+` WHERE a.product_id = ? AND a.stage_id = ?`,
		productID, stageID,
	)
	active, err := scanActiveStage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-active-stage",
			fmt.Sprintf("product %d stage %d", productID, stageID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get active stage: %w", err)
	}
	return active, nil
}

// PauseStage suspends an active pair.
func (s *Store) PauseStage(ctx context.Context, productID, stageID int64) error {
	return s.transitionStage(ctx, productID, stageID, StageActive, StagePaused, false)
}

// ResumeStage reopens a paused pair.
func (s *Store) ResumeStage(ctx context.Context, productID, stageID int64) error {
	return s.transitionStage(ctx, productID, stageID, StagePaused, StageActive, false)
}

// CompleteStage force-completes a pair regardless of worker state. The
// worker-driven path goes through CompleteWork instead.
func (s *Store) CompleteStage(ctx context.Context, productID, stageID int64) error {
	return s.transitionStage(ctx, productID, stageID, "", StageCompleted, true)
}

func (s *Store) transitionStage(ctx context.Context, productID, stageID int64, from, to StageStatus, stampCompleted bool) error {
	query := `UPDATE product_active_stages SET status = ?`
	args := []any{to}
	if stampCompleted {
		query += `, completed_at = ?`
		args = append(args, formatTime(time.Now()))
	}
	query += ` WHERE product_id = ? AND stage_id = ? AND status != ?`
	args = append(args, productID, stageID, StageCompleted)
	if from != "" {
		query += ` AND status = ?`
		args = append(args, from)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetActiveStage(ctx, productID, stageID); getErr != nil {
			return getErr
		}
		return services.Wrap(services.ErrInvalidState, "store", "transition-stage",
			fmt.Sprintf("product %d stage %d not eligible for %s", productID, stageID, to), nil)
	}
	return nil
}

// ActiveStagesByProduct lists every pair for a product ordered by stage
// sequence.
func (s *Store) ActiveStagesByProduct(ctx context.Context, productID int64) ([]*ActiveStage, error) {
	return s.queryActiveStages(
		ctx,
		`SELECT`+activeStageColumns+activeStageJoins+` WHERE a.product_id = ? ORDER BY s.sequence`,
		productID,
	)
}

// ProductsByStage lists pairs on one stage, optionally filtered by status,
// ordered by activation time.
func (s *Store) ProductsByStage(ctx context.Context, stageID int64, status StageStatus) ([]*ActiveStage, error) {
	query := `SELECT` + activeStageColumns + activeStageJoins + ` WHERE a.stage_id = ?`
	args := []any{stageID}
	if status != "" {
		query += ` AND a.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY a.started_at`
	return s.queryActiveStages(ctx, query, args...)
}

func (s *Store) queryActiveStages(ctx context.Context, query string, args ...any) ([]*ActiveStage, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query active stages: %w", err)
	}
	defer rows.Close()

	var actives []*ActiveStage
	for rows.Next() {
		active, err := scanActiveStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active stage: %w", err)
		}
		actives = append(actives, active)
	}
	return actives, rows.Err()
}

// CanComplete reports whether the pair exists and carries no unfinished
// worker rows. A pair with zero workers can complete.
func (s *Store) CanComplete(ctx context.Context, productID, stageID int64) (bool, error) {
	var exists int64
	if err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM product_active_stages WHERE product_id = ? AND stage_id = ?`,
		productID, stageID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active stage: %w", err)
	}
	if exists == 0 {
		return false, nil
	}
	var unfinished int64
	if err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT COUNT(1) FROM product_stage_workers
         WHERE product_id = ? AND stage_id = ? AND status != ?`,
		productID, stageID, WorkerCompleted,
	).Scan(&unfinished); err != nil {
		return false, fmt.Errorf("count unfinished workers: %w", err)
	}
	return unfinished == 0, nil
}

// StagesOverview builds the per-product workflow rollup for dashboards.
func (s *Store) StagesOverview(ctx context.Context) ([]*ProductOverview, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
        SELECT p.id, p.code, p.name, p.status,
               SUM(CASE WHEN a.status = 'active' THEN 1 ELSE 0 END),
               SUM(CASE WHEN a.status = 'paused' THEN 1 ELSE 0 END),
               SUM(CASE WHEN a.status = 'completed' THEN 1 ELSE 0 END),
               (SELECT COUNT(DISTINCT w.user_id) FROM product_stage_workers w WHERE w.product_id = p.id),
               (SELECT COUNT(DISTINCT w.user_id) FROM product_stage_workers w WHERE w.product_id = p.id AND w.status = 'working'),
               GROUP_CONCAT(s.name, ', '),
               MIN(a.started_at)
        FROM products p
        JOIN product_active_stages a ON a.product_id = p.id
        JOIN stages s ON s.id = a.stage_id
        GROUP BY p.id
        ORDER BY MIN(a.started_at)`)
	if err != nil {
		return nil, fmt.Errorf("stages overview: %w", err)
	}
	defer rows.Close()

	var overview []*ProductOverview
	for rows.Next() {
		var (
			row         ProductOverview
			status      string
			stageNames  sql.NullString
			earliestRaw sql.NullString
		)
		if err := rows.Scan(
			&row.ProductID, &row.ProductCode, &row.ProductName, &status,
			&row.ActiveStages, &row.PausedStages, &row.DoneStages,
			&row.WorkerCount, &row.WorkingCount,
			&stageNames, &earliestRaw,
		); err != nil {
			return nil, fmt.Errorf("scan overview: %w", err)
		}
		row.Status = ProductStatus(status)
		row.StageNames = stageNames.String
		row.EarliestStart = timePtrFromRaw(earliestRaw.String, earliestRaw.Valid)
		overview = append(overview, &row)
	}
	return overview, rows.Err()
}
