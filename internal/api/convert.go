package api

import (
	"time"

	"loomline/internal/store"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromStage converts a registry stage into its API representation.
func FromStage(s *store.Stage) Stage {
	return Stage{
		ID:          s.ID,
		Name:        s.Name,
		Sequence:    s.Sequence,
		NormHours:   s.NormHours,
		Description: s.Description,
	}
}

// FromProduct converts a product into its API representation.
func FromProduct(p *store.Product) Product {
	return Product{
		ID:          p.ID,
		Code:        p.Code,
		Name:        p.Name,
		Status:      string(p.Status),
		CreatedAt:   formatTime(p.CreatedAt),
		CompletedAt: formatTimePtr(p.CompletedAt),
	}
}

// FromActiveStage converts an active (product, stage) pair into its API
// representation, resolving the effective norm hours.
func FromActiveStage(a *store.ActiveStage) ActiveStage {
	return ActiveStage{
		ID:             a.ID,
		ProductID:      a.ProductID,
		ProductCode:    a.ProductCode,
		ProductName:    a.ProductName,
		StageID:        a.StageID,
		StageName:      a.StageName,
		StageSequence:  a.StageSequence,
		Status:         string(a.Status),
		NormHours:      a.EffectiveNormHours(),
		StartedAt:      formatTime(a.StartedAt),
		CompletedAt:    formatTimePtr(a.CompletedAt),
		WorkerCount:    a.WorkerCount,
		WorkingCount:   a.WorkingCount,
		CompletedCount: a.CompletedCount,
	}
}

// FromWorkerAssignment converts a worker assignment into its API representation.
func FromWorkerAssignment(w *store.WorkerAssignment) WorkerTask {
	return WorkerTask{
		ID:              w.ID,
		ProductID:       w.ProductID,
		ProductCode:     w.ProductCode,
		ProductName:     w.ProductName,
		StageID:         w.StageID,
		StageName:       w.StageName,
		UserID:          w.UserID,
		WorkerName:      w.WorkerName,
		Status:          string(w.Status),
		StartTime:       formatTimePtr(w.StartTime),
		EndTime:         formatTimePtr(w.EndTime),
		HoursElapsed:    w.HoursElapsed,
		StageTotalHours: w.StageTotalHours,
		NormHours:       w.NormHours,
		Notes:           w.Notes,
	}
}

// FromOverview converts one product rollup row into its API representation.
func FromOverview(o *store.ProductOverview) OverviewRow {
	return OverviewRow{
		ProductID:    o.ProductID,
		ProductCode:  o.ProductCode,
		ProductName:  o.ProductName,
		Status:       string(o.Status),
		ActiveStages: o.ActiveStages,
		PausedStages: o.PausedStages,
		DoneStages:   o.DoneStages,
		WorkerCount:  o.WorkerCount,
		WorkingCount: o.WorkingCount,
		StageNames:   o.StageNames,
	}
}

// FromMaterialRequest converts a material request into its API representation.
func FromMaterialRequest(r *store.MaterialRequest) MaterialRequest {
	return MaterialRequest{
		ID:               r.ID,
		ProductID:        r.ProductID,
		ProductCode:      r.ProductCode,
		StageID:          r.StageID,
		StageName:        r.StageName,
		RequesterName:    r.RequesterName,
		PurchaserName:    r.PurchaserName,
		Reason:           r.Reason,
		Status:           string(r.Status),
		ResponseNote:     r.ResponseNote,
		ExpectedDelivery: r.ExpectedDelivery,
		CreatedAt:        formatTime(r.CreatedAt),
	}
}

// FromWarehouseItem converts an inventory row into its API representation.
func FromWarehouseItem(w *store.WarehouseItem) WarehouseItem {
	return WarehouseItem{
		ID:          w.ID,
		ItemType:    string(w.ItemType),
		ProductCode: w.ProductCode,
		ProductName: w.ProductName,
		Name:        w.Name,
		Quantity:    w.Quantity,
		AddedAt:     formatTime(w.AddedAt),
		ExportedAt:  formatTimePtr(w.ExportedAt),
	}
}

// FromActivityEntry converts one audit row into its API representation.
func FromActivityEntry(e *store.ActivityEntry) ActivityEntry {
	return ActivityEntry{
		ID:        e.ID,
		UserName:  e.UserName,
		Action:    e.Action,
		Details:   e.Details,
		CreatedAt: formatTime(e.CreatedAt),
	}
}
