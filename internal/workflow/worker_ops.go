package workflow

import (
	"context"
	"fmt"

	"loomline/internal/services"
	"loomline/internal/store"
)

// checkRolePolicy rejects assignments that cross department lines. ADMIN is
// exempt; users the store does not know are left for the store to report.
func (m *Manager) checkRolePolicy(ctx context.Context, stage *store.Stage, userID int64) error {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		return nil
	}
	if !m.CanActOnStage(user.Role, stage.Sequence) {
		return services.Wrap(services.ErrValidation, "workflow", "assign-worker",
			fmt.Sprintf("role %s is not assigned to stage %s", user.Role, stage.Name), nil)
	}
	return nil
}

// AssignWorker attaches a worker to a pair, enforcing the role policy.
func (m *Manager) AssignWorker(ctx context.Context, productID, stageID, userID int64) (*store.WorkerAssignment, error) {
	ctx = scope(ctx, productID, stageID)
	stage, err := m.store.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if err := m.checkRolePolicy(ctx, stage, userID); err != nil {
		return nil, err
	}
	assignment, err := m.store.AssignWorker(ctx, productID, stageID, userID)
	if err != nil {
		return nil, err
	}
	m.recordActivity(ctx, "worker_assigned", map[string]any{
		"worker":  assignment.WorkerName,
		"stage":   assignment.StageName,
		"product": assignment.ProductCode,
	}, &productID, &stageID)
	return assignment, nil
}

// AssignWorkers attaches many workers best-effort. Role-policy rejections
// land in the failed set alongside the store's own failures.
func (m *Manager) AssignWorkers(ctx context.Context, productID, stageID int64, userIDs []int64) (*store.BatchAssignResult, error) {
	ctx = scope(ctx, productID, stageID)
	if len(userIDs) == 0 {
		return nil, services.Wrap(services.ErrValidation, "workflow", "assign-workers", "no user ids supplied", nil)
	}
	stage, err := m.store.GetStage(ctx, stageID)
	if err != nil {
		return nil, err
	}
	allowed := make([]int64, 0, len(userIDs))
	var rejected []store.AssignFailure
	for _, userID := range userIDs {
		if err := m.checkRolePolicy(ctx, stage, userID); err != nil {
			rejected = append(rejected, store.AssignFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		allowed = append(allowed, userID)
	}

	result := &store.BatchAssignResult{Failed: rejected}
	if len(allowed) > 0 {
		assigned, err := m.store.AssignWorkers(ctx, productID, stageID, allowed)
		if err != nil {
			return nil, err
		}
		result.Assigned = assigned.Assigned
		result.Failed = append(assigned.Failed, rejected...)
	}
	m.recordActivity(ctx, "workers_assigned", map[string]any{
		"assigned": len(result.Assigned),
		"failed":   len(result.Failed),
	}, &productID, &stageID)
	return result, nil
}

// StartWork flips an assignment to working and announces it.
func (m *Manager) StartWork(ctx context.Context, productID, stageID, userID int64) (*store.WorkerAssignment, error) {
	ctx = scope(ctx, productID, stageID)
	assignment, err := m.store.StartWork(ctx, productID, stageID, userID)
	if err != nil {
		return nil, err
	}
	m.recordActivity(ctx, "work_started", map[string]any{
		"worker":  assignment.WorkerName,
		"stage":   assignment.StageName,
		"product": assignment.ProductCode,
	}, &productID, &stageID)

	role := m.RoleForStage(stageSequence(ctx, m, stageID))
	worker, code, name := assignment.WorkerName, assignment.ProductCode, assignment.StageName
	m.dispatch("work_started", func(ctx context.Context) error {
		return m.notifier.NotifyWorkStarted(ctx, worker, code, name, role)
	})
	return assignment, nil
}

func stageSequence(ctx context.Context, m *Manager, stageID int64) int64 {
	stage, err := m.store.GetStage(ctx, stageID)
	if err != nil {
		return 0
	}
	return stage.Sequence
}

// CompleteWork finishes one worker's share. When the last unfinished worker
// completes, the stage transition and the warehouse check run in the same
// call.
func (m *Manager) CompleteWork(ctx context.Context, productID, stageID, userID int64, notes string) (*store.WorkerAssignment, bool, error) {
	ctx = scope(ctx, productID, stageID)
	assignment, stageDone, err := m.store.CompleteWork(ctx, productID, stageID, userID, notes)
	if err != nil {
		return nil, false, err
	}
	m.recordActivity(ctx, "work_completed", map[string]any{
		"worker":       assignment.WorkerName,
		"stage":        assignment.StageName,
		"product":      assignment.ProductCode,
		"hours_worked": assignment.HoursElapsed,
	}, &productID, &stageID)

	if stageDone {
		m.recordActivity(ctx, "stage_completed", map[string]any{
			"stage":   assignment.StageName,
			"product": assignment.ProductCode,
		}, &productID, &stageID)
		if err := m.afterStageCompleted(ctx, productID, stageID); err != nil {
			return nil, false, err
		}
	}
	return assignment, stageDone, nil
}

// PauseWork drops an assignment back to assigned with a reason.
func (m *Manager) PauseWork(ctx context.Context, productID, stageID, userID int64, reason string) (*store.WorkerAssignment, error) {
	ctx = scope(ctx, productID, stageID)
	assignment, err := m.store.PauseWork(ctx, productID, stageID, userID, reason)
	if err != nil {
		return nil, err
	}
	m.recordActivity(ctx, "work_paused", map[string]any{
		"worker": assignment.WorkerName,
		"reason": reason,
	}, &productID, &stageID)
	return assignment, nil
}

// RemoveWorker detaches a worker from a pair.
func (m *Manager) RemoveWorker(ctx context.Context, productID, stageID, userID int64) error {
	ctx = scope(ctx, productID, stageID)
	if err := m.store.RemoveWorker(ctx, productID, stageID, userID); err != nil {
		return err
	}
	m.recordActivity(ctx, "worker_removed", nil, &productID, &stageID)
	return nil
}
