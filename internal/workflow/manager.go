package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"loomline/internal/config"
	"loomline/internal/logging"
	"loomline/internal/notifications"
	"loomline/internal/services"
	"loomline/internal/store"
)

// Manager is the caller-facing workflow core. It composes the store with the
// activity log and the notification dispatcher: every successful mutation is
// recorded, and notifications go out on a goroutine so they can never block
// or fail a transition.
type Manager struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	notifier notifications.Service

	wg sync.WaitGroup
}

// NewManager constructs a workflow manager with the configured notifier.
func NewManager(cfg *config.Config, st *store.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, st, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier
// (used in tests).
func NewManagerWithNotifier(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    st,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		notifier: notifier,
	}
}

// Wait blocks until in-flight notification dispatches finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// RoleForStage resolves which department role owns a stage sequence
// position, inverting the configured role policy.
func (m *Manager) RoleForStage(sequence int64) string {
	for role, seq := range m.cfg.Roles {
		if seq == sequence {
			return role
		}
	}
	return ""
}

// CanActOnStage reports whether a role is assigned to the stage at the given
// sequence position. ADMIN may act anywhere.
func (m *Manager) CanActOnStage(role string, sequence int64) bool {
	if role == "ADMIN" {
		return true
	}
	seq, ok := m.cfg.StageForRole(role)
	return ok && seq == sequence
}

// recordActivity appends an audit row, logging failures without propagating
// them.
func (m *Manager) recordActivity(ctx context.Context, action string, details map[string]any, productID, stageID *int64) {
	var encoded string
	if len(details) > 0 {
		raw, err := json.Marshal(details)
		if err != nil {
			m.logger.Warn("encode activity details", logging.String(logging.FieldAction, action), logging.Error(err))
		} else {
			encoded = string(raw)
		}
	}
	var actorID *int64
	if id, ok := services.ActorIDFromContext(ctx); ok {
		actorID = &id
	}
	if err := m.store.RecordActivity(ctx, actorID, action, encoded, productID, stageID); err != nil {
		logging.WithContext(ctx, m.logger).Warn("record activity",
			logging.String(logging.FieldAction, action), logging.Error(err))
	}
}

// scope stamps pair identifiers into the context so failure logs carry the
// same correlation fields as the audit rows.
func scope(ctx context.Context, productID, stageID int64) context.Context {
	if productID > 0 {
		ctx = services.WithProductID(ctx, productID)
	}
	if stageID > 0 {
		ctx = services.WithStageID(ctx, stageID)
	}
	return ctx
}

// dispatch runs a notification call on a goroutine, detached from the
// caller's context so an HTTP timeout cannot outlive-cancel it.
func (m *Manager) dispatch(event string, send func(ctx context.Context) error) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := send(context.Background()); err != nil {
			m.logger.Warn("notification failed", logging.String("event", event), logging.Error(err))
		}
	}()
}
