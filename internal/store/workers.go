package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"loomline/internal/services"
)

// ErrAlreadyAssigned marks duplicate worker assignments on the same
// (product, stage) pair.
var ErrAlreadyAssigned = fmt.Errorf("%w: worker already assigned", services.ErrAlreadyExists)

const workerColumns = `
    w.id, w.product_id, w.stage_id, w.user_id, w.status,
    w.start_time, w.end_time, w.hours_worked, w.notes, w.created_at,
    u.full_name, u.username, s.name, p.code, p.name,
    COALESCE(a.norm_hours, s.norm_hours)`

const workerJoins = `
    FROM product_stage_workers w
    JOIN users u ON u.id = w.user_id
    JOIN stages s ON s.id = w.stage_id
    JOIN products p ON p.id = w.product_id
    LEFT JOIN product_active_stages a ON a.product_id = w.product_id AND a.stage_id = w.stage_id`

func scanWorker(sc scanner) (*WorkerAssignment, error) {
	var (
		id          int64
		productID   int64
		stageID     int64
		userID      int64
		status      string
		startRaw    sql.NullString
		endRaw      sql.NullString
		hours       sql.NullFloat64
		notes       sql.NullString
		createdRaw  string
		workerName  string
		username    string
		stageName   string
		productCode string
		productName string
		normHours   int64
	)
	if err := sc.Scan(
		&id, &productID, &stageID, &userID, &status,
		&startRaw, &endRaw, &hours, &notes, &createdRaw,
		&workerName, &username, &stageName, &productCode, &productName,
		&normHours,
	); err != nil {
		return nil, err
	}
	assignment := &WorkerAssignment{
		ID:          id,
		ProductID:   productID,
		StageID:     stageID,
		UserID:      userID,
		Status:      WorkerStatus(status),
		StartTime:   timePtrFromRaw(startRaw.String, startRaw.Valid),
		EndTime:     timePtrFromRaw(endRaw.String, endRaw.Valid),
		Notes:       notes.String,
		CreatedAt:   timeFromRaw(createdRaw),
		WorkerName:  workerName,
		Username:    username,
		StageName:   stageName,
		ProductCode: productCode,
		ProductName: productName,
		NormHours:   normHours,
	}
	if hours.Valid {
		v := hours.Float64
		assignment.HoursWorked = &v
	}
	assignment.HoursElapsed = elapsedHours(assignment, time.Now())
	return assignment, nil
}

func elapsedHours(w *WorkerAssignment, now time.Time) float64 {
	if w.Status == WorkerCompleted {
		if w.HoursWorked != nil {
			return *w.HoursWorked
		}
		return 0
	}
	if w.StartTime == nil {
		return 0
	}
	hours := now.Sub(*w.StartTime).Hours()
	if hours < 0 {
		return 0
	}
	return hours
}

// AssignWorker attaches a worker to a non-completed active pair.
func (s *Store) AssignWorker(ctx context.Context, productID, stageID, userID int64) (*WorkerAssignment, error) {
	active, err := s.GetActiveStage(ctx, productID, stageID)
	if err != nil {
		return nil, err
	}
	if active.Status == StageCompleted {
		return nil, services.Wrap(services.ErrInvalidState, "store", "assign-worker",
			fmt.Sprintf("stage %d completed for product %d", stageID, productID), nil)
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO product_stage_workers (product_id, stage_id, user_id, status, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		productID, stageID, userID, WorkerAssigned, formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: user %d on product %d stage %d", ErrAlreadyAssigned, userID, productID, stageID)
		}
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	return s.GetAssignment(ctx, productID, stageID, userID)
}

// AssignWorkers attaches many workers best-effort. Individual failures are
// collected per user, never propagated as a hard error.
func (s *Store) AssignWorkers(ctx context.Context, productID, stageID int64, userIDs []int64) (*BatchAssignResult, error) {
	if len(userIDs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "assign-workers", "no user ids supplied", nil)
	}
	result := &BatchAssignResult{}
	for _, userID := range userIDs {
		assignment, err := s.AssignWorker(ctx, productID, stageID, userID)
		if err != nil {
			result.Failed = append(result.Failed, AssignFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		result.Assigned = append(result.Assigned, assignment)
	}
	return result, nil
}

// GetAssignment fetches one (product, stage, worker) triple.
func (s *Store) GetAssignment(ctx context.Context, productID, stageID, userID int64) (*WorkerAssignment, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT`+workerColumns+workerJoins+` WHERE w.product_id = ? AND w.stage_id = ? AND w.user_id = ?`,
		productID, stageID, userID,
	)
	assignment, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-assignment",
			fmt.Sprintf("user %d on product %d stage %d", userID, productID, stageID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return assignment, nil
}

// StartWork flips an assignment to working and stamps the start time.
func (s *Store) StartWork(ctx context.Context, productID, stageID, userID int64) (*WorkerAssignment, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE product_stage_workers SET status = ?, start_time = ?
         WHERE product_id = ? AND stage_id = ? AND user_id = ? AND status = ?`,
		WorkerWorking, formatTime(time.Now()),
		productID, stageID, userID, WorkerAssigned,
	)
	if err != nil {
		return nil, fmt.Errorf("start work: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		assignment, getErr := s.GetAssignment(ctx, productID, stageID, userID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, services.Wrap(services.ErrInvalidState, "store", "start-work",
			fmt.Sprintf("assignment is %s", assignment.Status), nil)
	}
	return s.GetAssignment(ctx, productID, stageID, userID)
}

// CompleteWork finishes one worker's share and, when no unfinished workers
// remain, completes the stage in the same call. The stage transition is a
// single conditional UPDATE so two racing finishers cannot both observe the
// completion.
func (s *Store) CompleteWork(ctx context.Context, productID, stageID, userID int64, notes string) (*WorkerAssignment, bool, error) {
	assignment, err := s.GetAssignment(ctx, productID, stageID, userID)
	if err != nil {
		return nil, false, err
	}
	if assignment.Status == WorkerCompleted {
		return nil, false, services.Wrap(services.ErrInvalidState, "store", "complete-work", "work already completed", nil)
	}

	now := time.Now()
	hours := 0.0
	if assignment.StartTime != nil {
		hours = now.Sub(*assignment.StartTime).Hours()
		if hours < 0 {
			hours = 0
		}
	}

	finalNotes := assignment.Notes
	if notes != "" {
		finalNotes = notes
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE product_stage_workers
         SET status = ?, end_time = ?, hours_worked = ?, notes = ?
         WHERE product_id = ? AND stage_id = ? AND user_id = ? AND status != ?`,
		WorkerCompleted, formatTime(now), hours, nullableString(finalNotes),
		productID, stageID, userID, WorkerCompleted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("complete work: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, false, services.Wrap(services.ErrInvalidState, "store", "complete-work", "work already completed", nil)
	}

	stageDone, err := s.completeStageIfWorkersDone(ctx, productID, stageID, now)
	if err != nil {
		return nil, false, err
	}

	assignment, err = s.GetAssignment(ctx, productID, stageID, userID)
	if err != nil {
		return nil, false, err
	}
	return assignment, stageDone, nil
}

func (s *Store) completeStageIfWorkersDone(ctx context.Context, productID, stageID int64, now time.Time) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE product_active_stages
         SET status = ?, completed_at = ?
         WHERE product_id = ? AND stage_id = ? AND status != ?
           AND NOT EXISTS (
               SELECT 1 FROM product_stage_workers w
               WHERE w.product_id = product_active_stages.product_id
                 AND w.stage_id = product_active_stages.stage_id
                 AND w.status != ?
           )`,
		StageCompleted, formatTime(now),
		productID, stageID, StageCompleted,
		WorkerCompleted,
	)
	if err != nil {
		return false, fmt.Errorf("complete stage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected == 1, nil
}

// PauseWork drops an assignment back to assigned, keeping timestamps so
// elapsed hours survive the pause. Pausing a never-started assignment just
// records the reason. Completed work cannot be paused.
func (s *Store) PauseWork(ctx context.Context, productID, stageID, userID int64, reason string) (*WorkerAssignment, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE product_stage_workers SET status = ?, notes = COALESCE(?, notes)
         WHERE product_id = ? AND stage_id = ? AND user_id = ? AND status IN (?, ?)`,
		WorkerAssigned, nullableString(reason),
		productID, stageID, userID, WorkerWorking, WorkerAssigned,
	)
	if err != nil {
		return nil, fmt.Errorf("pause work: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		assignment, getErr := s.GetAssignment(ctx, productID, stageID, userID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, services.Wrap(services.ErrInvalidState, "store", "pause-work",
			fmt.Sprintf("assignment is %s", assignment.Status), nil)
	}
	return s.GetAssignment(ctx, productID, stageID, userID)
}

// RemoveWorker detaches a worker from a pair. Completed work is immutable.
func (s *Store) RemoveWorker(ctx context.Context, productID, stageID, userID int64) error {
	assignment, err := s.GetAssignment(ctx, productID, stageID, userID)
	if err != nil {
		return err
	}
	if assignment.Status == WorkerCompleted {
		return services.Wrap(services.ErrInvalidState, "store", "remove-worker", "completed work cannot be removed", nil)
	}
	if _, err := s.execWithRetry(
		ctx,
		`DELETE FROM product_stage_workers
         WHERE product_id = ? AND stage_id = ? AND user_id = ? AND status != ?`,
		productID, stageID, userID, WorkerCompleted,
	); err != nil {
		return fmt.Errorf("remove worker: %w", err)
	}
	return nil
}

// WorkerTasks lists a worker's assignments annotated with elapsed hours and
// the pair's total effort. Active work sorts first, then fresh assignments,
// then history, newest first within each band.
func (s *Store) WorkerTasks(ctx context.Context, userID int64, status WorkerStatus) ([]*WorkerAssignment, error) {
	query := `SELECT` + workerColumns + workerJoins + ` WHERE w.user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND w.status = ?`
		args = append(args, status)
	}
	query += `
        ORDER BY CASE w.status WHEN 'working' THEN 0 WHEN 'assigned' THEN 1 ELSE 2 END,
                 w.created_at DESC`

	tasks, err := s.queryWorkers(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.fillStageTotals(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// WorkersByProductStage lists everyone attached to one pair.
func (s *Store) WorkersByProductStage(ctx context.Context, productID, stageID int64) ([]*WorkerAssignment, error) {
	tasks, err := s.queryWorkers(
		ctx,
		`SELECT`+workerColumns+workerJoins+` WHERE w.product_id = ? AND w.stage_id = ? ORDER BY w.created_at`,
		productID, stageID,
	)
	if err != nil {
		return nil, err
	}
	if err := s.fillStageTotals(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// AllWorkersByProduct lists every assignment across a product's stages.
func (s *Store) AllWorkersByProduct(ctx context.Context, productID int64) ([]*WorkerAssignment, error) {
	return s.queryWorkers(
		ctx,
		`SELECT`+workerColumns+workerJoins+` WHERE w.product_id = ? ORDER BY s.sequence, w.created_at`,
		productID,
	)
}

func (s *Store) queryWorkers(ctx context.Context, query string, args ...any) ([]*WorkerAssignment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query workers: %w", err)
	}
	defer rows.Close()

	var workers []*WorkerAssignment
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan worker: %w", err)
		}
		workers = append(workers, worker)
	}
	return workers, rows.Err()
}

type pairKey struct {
	productID int64
	stageID   int64
}

func (s *Store) fillStageTotals(ctx context.Context, tasks []*WorkerAssignment) error {
	totals := make(map[pairKey]float64)
	for _, task := range tasks {
		key := pairKey{task.ProductID, task.StageID}
		if _, done := totals[key]; done {
			continue
		}
		peers, err := s.queryWorkers(
			ctx,
			`SELECT`+workerColumns+workerJoins+` WHERE w.product_id = ? AND w.stage_id = ?`,
			key.productID, key.stageID,
		)
		if err != nil {
			return err
		}
		var sum float64
		for _, peer := range peers {
			sum += peer.HoursElapsed
		}
		totals[key] = sum
	}
	for _, task := range tasks {
		task.StageTotalHours = totals[pairKey{task.ProductID, task.StageID}]
	}
	return nil
}

// StageWorkerStats aggregates per-product effort on one stage.
func (s *Store) StageWorkerStats(ctx context.Context, stageID int64) ([]*StageWorkerStat, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT p.id, p.code, p.name,
                COUNT(w.id),
                COALESCE(SUM(w.hours_worked), 0),
                COALESCE(AVG(w.hours_worked), 0)
         FROM product_stage_workers w
         JOIN products p ON p.id = w.product_id
         WHERE w.stage_id = ?
         GROUP BY p.id
         ORDER BY p.code`,
		stageID,
	)
	if err != nil {
		return nil, fmt.Errorf("stage worker stats: %w", err)
	}
	defer rows.Close()

	var stats []*StageWorkerStat
	for rows.Next() {
		var stat StageWorkerStat
		if err := rows.Scan(&stat.ProductID, &stat.ProductCode, &stat.ProductName,
			&stat.WorkerCount, &stat.TotalHours, &stat.AvgHours); err != nil {
			return nil, fmt.Errorf("scan stage stat: %w", err)
		}
		stats = append(stats, &stat)
	}
	return stats, rows.Err()
}
