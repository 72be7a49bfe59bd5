package workflow

import (
	"context"

	"loomline/internal/store"
)

// CreateMaterialRequest opens a shortage report and alerts purchasing.
func (m *Manager) CreateMaterialRequest(ctx context.Context, productID, stageID, requesterID int64, reason string) (*store.MaterialRequest, error) {
	ctx = scope(ctx, productID, stageID)
	request, err := m.store.CreateMaterialRequest(ctx, productID, stageID, requesterID, reason)
	if err != nil {
		return nil, err
	}
	m.recordActivity(ctx, "material_requested", map[string]any{
		"product": request.ProductCode,
		"stage":   request.StageName,
		"reason":  request.Reason,
	}, &productID, &stageID)

	code, stageName, requester, why := request.ProductCode, request.StageName, request.RequesterName, request.Reason
	m.dispatch("material_requested", func(ctx context.Context) error {
		return m.notifier.NotifyMaterialRequested(ctx, code, stageName, requester, why)
	})
	return request, nil
}

// MarkRequestPurchased records the purchase and feeds the answer back to the
// requesting department.
func (m *Manager) MarkRequestPurchased(ctx context.Context, requestID, purchaserID int64, expectedDelivery, responseNote string) (*store.MaterialRequest, error) {
	request, err := m.store.MarkRequestPurchased(ctx, requestID, purchaserID, expectedDelivery, responseNote)
	if err != nil {
		return nil, err
	}
	ctx = scope(ctx, request.ProductID, request.StageID)
	m.recordActivity(ctx, "material_purchased", map[string]any{
		"product":           request.ProductCode,
		"expected_delivery": request.ExpectedDelivery,
	}, &request.ProductID, &request.StageID)

	requesterRole := ""
	if requester, err := m.store.GetUser(ctx, request.RequestedBy); err == nil {
		requesterRole = requester.Role
	}
	code, delivery, note := request.ProductCode, request.ExpectedDelivery, request.ResponseNote
	m.dispatch("material_purchased", func(ctx context.Context) error {
		return m.notifier.NotifyMaterialPurchased(ctx, code, requesterRole, delivery, note)
	})
	return request, nil
}

// MarkRequestDelivered closes out a purchased request.
func (m *Manager) MarkRequestDelivered(ctx context.Context, requestID int64) (*store.MaterialRequest, error) {
	request, err := m.store.MarkRequestDelivered(ctx, requestID)
	if err != nil {
		return nil, err
	}
	ctx = scope(ctx, request.ProductID, request.StageID)
	m.recordActivity(ctx, "material_delivered", map[string]any{
		"product": request.ProductCode,
	}, &request.ProductID, &request.StageID)
	return request, nil
}

// AddRequestMessage appends to a request's thread.
func (m *Manager) AddRequestMessage(ctx context.Context, requestID, userID int64, message string) (*store.RequestMessage, error) {
	return m.store.AddRequestMessage(ctx, requestID, userID, message)
}
