package workflow

import (
	"context"
	"fmt"

	"loomline/internal/services"
	"loomline/internal/store"
)

// ActivateStage opens a (product, stage) pair and announces it to the owning
// department.
func (m *Manager) ActivateStage(ctx context.Context, productID, stageID int64, opts store.ActivateOptions) (*store.ActiveStage, error) {
	ctx = scope(ctx, productID, stageID)
	active, err := m.store.ActivateStage(ctx, productID, stageID, opts)
	if err != nil {
		return nil, err
	}

	m.recordActivity(ctx, "stage_activated", map[string]any{
		"stage":      active.StageName,
		"product":    active.ProductCode,
		"norm_hours": active.EffectiveNormHours(),
		"rework":     opts.AllowRework,
	}, &productID, &stageID)

	role := m.RoleForStage(active.StageSequence)
	code, name := active.ProductCode, active.StageName
	m.dispatch("stage_activated", func(ctx context.Context) error {
		return m.notifier.NotifyStageActivated(ctx, code, name, role)
	})
	return active, nil
}

// PauseStage suspends an active pair.
func (m *Manager) PauseStage(ctx context.Context, productID, stageID int64) error {
	ctx = scope(ctx, productID, stageID)
	if err := m.store.PauseStage(ctx, productID, stageID); err != nil {
		return err
	}
	m.recordActivity(ctx, "stage_paused", nil, &productID, &stageID)
	return nil
}

// ResumeStage reopens a paused pair.
func (m *Manager) ResumeStage(ctx context.Context, productID, stageID int64) error {
	ctx = scope(ctx, productID, stageID)
	if err := m.store.ResumeStage(ctx, productID, stageID); err != nil {
		return err
	}
	m.recordActivity(ctx, "stage_resumed", nil, &productID, &stageID)
	return nil
}

// CompleteStage force-completes a pair. Completion of a pair that has no
// workers at all is subject to the workflow toggle; worker-driven completion
// goes through CompleteWork instead.
func (m *Manager) CompleteStage(ctx context.Context, productID, stageID int64) error {
	ctx = scope(ctx, productID, stageID)
	active, err := m.store.GetActiveStage(ctx, productID, stageID)
	if err != nil {
		return err
	}
	if active.WorkerCount == 0 && !m.cfg.Workflow.AllowEmptyStageComplete {
		return services.Wrap(services.ErrInvalidState, "workflow", "complete-stage",
			fmt.Sprintf("stage %s has no workers", active.StageName), nil)
	}

	if err := m.store.CompleteStage(ctx, productID, stageID); err != nil {
		return err
	}
	m.recordActivity(ctx, "stage_completed", map[string]any{
		"stage":   active.StageName,
		"product": active.ProductCode,
		"forced":  true,
	}, &productID, &stageID)

	return m.afterStageCompleted(ctx, productID, stageID)
}

// afterStageCompleted announces the completion and runs the warehouse check.
func (m *Manager) afterStageCompleted(ctx context.Context, productID, stageID int64) error {
	active, err := m.store.GetActiveStage(ctx, productID, stageID)
	if err != nil {
		return err
	}

	var nextName, nextRole string
	if next, err := m.store.NextStage(ctx, stageID); err == nil && next != nil {
		nextName = next.Name
		nextRole = m.RoleForStage(next.Sequence)
	}
	code, name := active.ProductCode, active.StageName
	m.dispatch("stage_completed", func(ctx context.Context) error {
		return m.notifier.NotifyStageCompleted(ctx, code, name, nextName, nextRole)
	})

	moved, err := m.store.AutoMoveToWarehouseIfComplete(ctx, productID)
	if err != nil {
		return err
	}
	if moved {
		m.recordActivity(ctx, "product_warehoused", map[string]any{"product": active.ProductCode}, &productID, nil)
		productName := active.ProductName
		m.dispatch("product_warehoused", func(ctx context.Context) error {
			return m.notifier.NotifyProductWarehoused(ctx, code, productName)
		})
	}
	return nil
}
