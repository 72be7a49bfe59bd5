package api

import (
	"context"
	"fmt"

	"loomline/internal/store"
)

// WorkflowReader is the subset of the store the read API depends on.
// *store.Store satisfies it; tests may substitute a fake.
type WorkflowReader interface {
	ListStages(ctx context.Context) ([]*store.Stage, error)
	ListProducts(ctx context.Context, status store.ProductStatus) ([]*store.Product, error)
	GetProduct(ctx context.Context, id int64) (*store.Product, error)
	ActiveStagesByProduct(ctx context.Context, productID int64) ([]*store.ActiveStage, error)
	ProductsByStage(ctx context.Context, stageID int64, status store.StageStatus) ([]*store.ActiveStage, error)
	GetActiveStage(ctx context.Context, productID, stageID int64) (*store.ActiveStage, error)
	CanComplete(ctx context.Context, productID, stageID int64) (bool, error)
	WorkersByProductStage(ctx context.Context, productID, stageID int64) ([]*store.WorkerAssignment, error)
	WorkerTasks(ctx context.Context, userID int64, status store.WorkerStatus) ([]*store.WorkerAssignment, error)
	StagesOverview(ctx context.Context) ([]*store.ProductOverview, error)
	ListMaterialRequests(ctx context.Context, status store.RequestStatus, productID int64) ([]*store.MaterialRequest, error)
	AvailableInventory(ctx context.Context) ([]*store.WarehouseItem, error)
	ExportHistory(ctx context.Context) ([]*store.WarehouseItem, error)
	RecentActivity(ctx context.Context, limit int) ([]*store.ActivityEntry, error)
}

// Service exposes read-side API operations over the workflow store.
type Service struct {
	reader WorkflowReader
}

// NewService creates a read service backed by the given reader.
func NewService(reader WorkflowReader) *Service {
	return &Service{reader: reader}
}

// Stages returns the stage registry in sequence order.
func (s *Service) Stages(ctx context.Context) ([]Stage, error) {
	stages, err := s.reader.ListStages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	out := make([]Stage, 0, len(stages))
	for _, st := range stages {
		out = append(out, FromStage(st))
	}
	return out, nil
}

// Products returns products, optionally filtered by status.
func (s *Service) Products(ctx context.Context, status store.ProductStatus) ([]Product, error) {
	products, err := s.reader.ListProducts(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]Product, 0, len(products))
	for _, p := range products {
		out = append(out, FromProduct(p))
	}
	return out, nil
}

// ProductStages returns every stage pair active on a product, in stage
// sequence order.
func (s *Service) ProductStages(ctx context.Context, productID int64) (*ActiveStageListResponse, error) {
	pairs, err := s.reader.ActiveStagesByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("product %d stages: %w", productID, err)
	}
	resp := &ActiveStageListResponse{Stages: make([]ActiveStage, 0, len(pairs))}
	for _, p := range pairs {
		resp.Stages = append(resp.Stages, FromActiveStage(p))
	}
	return resp, nil
}

// StageBoard returns every product on a stage, optionally filtered by pair
// status.
func (s *Service) StageBoard(ctx context.Context, stageID int64, status store.StageStatus) (*ActiveStageListResponse, error) {
	pairs, err := s.reader.ProductsByStage(ctx, stageID, status)
	if err != nil {
		return nil, fmt.Errorf("stage %d board: %w", stageID, err)
	}
	resp := &ActiveStageListResponse{Stages: make([]ActiveStage, 0, len(pairs))}
	for _, p := range pairs {
		resp.Stages = append(resp.Stages, FromActiveStage(p))
	}
	return resp, nil
}

// WorkerTasks returns the assignments for one worker, working first, then
// assigned, then completed.
func (s *Service) WorkerTasks(ctx context.Context, userID int64, status store.WorkerStatus) (*WorkerTaskListResponse, error) {
	tasks, err := s.reader.WorkerTasks(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("worker %d tasks: %w", userID, err)
	}
	resp := &WorkerTaskListResponse{Tasks: make([]WorkerTask, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, FromWorkerAssignment(t))
	}
	return resp, nil
}

// StageDetail returns one (product, stage) pair with its workers and derived
// effort statistics.
func (s *Service) StageDetail(ctx context.Context, productID, stageID int64) (*StageDetail, error) {
	pair, err := s.reader.GetActiveStage(ctx, productID, stageID)
	if err != nil {
		return nil, err
	}
	workers, err := s.reader.WorkersByProductStage(ctx, productID, stageID)
	if err != nil {
		return nil, fmt.Errorf("stage detail workers: %w", err)
	}
	canComplete, err := s.reader.CanComplete(ctx, productID, stageID)
	if err != nil {
		return nil, fmt.Errorf("stage detail completion: %w", err)
	}

	detail := &StageDetail{
		ActiveStage: FromActiveStage(pair),
		Workers:     make([]WorkerTask, 0, len(workers)),
		CanComplete: canComplete,
	}
	for _, w := range workers {
		detail.Workers = append(detail.Workers, FromWorkerAssignment(w))
		detail.TotalHours += w.HoursElapsed
	}
	if norm := pair.EffectiveNormHours(); norm > 0 {
		detail.PercentOfNorm = detail.TotalHours / float64(norm) * 100
	}
	return detail, nil
}

// Overview returns the per-product workflow rollup.
func (s *Service) Overview(ctx context.Context) ([]OverviewRow, error) {
	rows, err := s.reader.StagesOverview(ctx)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	out := make([]OverviewRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromOverview(r))
	}
	return out, nil
}

// MaterialRequests returns shortage reports, optionally filtered by status
// and product.
func (s *Service) MaterialRequests(ctx context.Context, status store.RequestStatus, productID int64) ([]MaterialRequest, error) {
	requests, err := s.reader.ListMaterialRequests(ctx, status, productID)
	if err != nil {
		return nil, fmt.Errorf("material requests: %w", err)
	}
	out := make([]MaterialRequest, 0, len(requests))
	for _, r := range requests {
		out = append(out, FromMaterialRequest(r))
	}
	return out, nil
}

// Inventory returns warehouse rows; exported selects shipped history instead
// of available stock.
func (s *Service) Inventory(ctx context.Context, exported bool) ([]WarehouseItem, error) {
	var (
		items []*store.WarehouseItem
		err   error
	)
	if exported {
		items, err = s.reader.ExportHistory(ctx)
	} else {
		items, err = s.reader.AvailableInventory(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	out := make([]WarehouseItem, 0, len(items))
	for _, it := range items {
		out = append(out, FromWarehouseItem(it))
	}
	return out, nil
}

// Activity returns the most recent audit entries.
func (s *Service) Activity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	entries, err := s.reader.RecentActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("activity: %w", err)
	}
	out := make([]ActivityEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, FromActivityEntry(e))
	}
	return out, nil
}
