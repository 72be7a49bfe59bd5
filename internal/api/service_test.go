package api

import (
	"context"
	"testing"

	"loomline/internal/store"
	"loomline/internal/testsupport"
)

func newService(t *testing.T) (*Service, *store.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return NewService(st), st
}

func TestStageDetailDerivesStats(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-100", "Áo dài")
	stage := testsupport.SeedStage(t, st, 3)
	testsupport.ActivatePair(t, st, product.ID, stage.ID)

	worker := testsupport.SeedUser(t, st, "lan", "Trần Lan", "MAY")
	idle := testsupport.SeedUser(t, st, "hoa", "Lê Hoa", "MAY")
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, idle.ID)

	if _, err := st.StartWork(ctx, product.ID, stage.ID, worker.ID); err != nil {
		t.Fatalf("StartWork: %v", err)
	}
	if _, _, err := st.CompleteWork(ctx, product.ID, stage.ID, worker.ID, ""); err != nil {
		t.Fatalf("CompleteWork: %v", err)
	}

	detail, err := svc.StageDetail(ctx, product.ID, stage.ID)
	if err != nil {
		t.Fatalf("StageDetail: %v", err)
	}
	if detail.ActiveStage.ProductCode != "AO-100" {
		t.Errorf("product code = %q, want AO-100", detail.ActiveStage.ProductCode)
	}
	if detail.ActiveStage.NormHours != stage.NormHours {
		t.Errorf("norm hours = %d, want %d", detail.ActiveStage.NormHours, stage.NormHours)
	}
	if len(detail.Workers) != 2 {
		t.Fatalf("workers = %d, want 2", len(detail.Workers))
	}
	if detail.CanComplete {
		t.Error("CanComplete = true with an unfinished worker")
	}
	if detail.TotalHours < 0 {
		t.Errorf("total hours = %f, want >= 0", detail.TotalHours)
	}
	if detail.PercentOfNorm < 0 {
		t.Errorf("percent of norm = %f, want >= 0", detail.PercentOfNorm)
	}
}

func TestStageDetailUsesNormOverride(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-101", "Áo sơ mi")
	stage := testsupport.SeedStage(t, st, 1)
	override := int64(10)
	if _, err := st.ActivateStage(ctx, product.ID, stage.ID, store.ActivateOptions{NormHours: &override}); err != nil {
		t.Fatalf("ActivateStage: %v", err)
	}

	detail, err := svc.StageDetail(ctx, product.ID, stage.ID)
	if err != nil {
		t.Fatalf("StageDetail: %v", err)
	}
	if detail.ActiveStage.NormHours != override {
		t.Errorf("norm hours = %d, want %d", detail.ActiveStage.NormHours, override)
	}
	if !detail.CanComplete {
		t.Error("CanComplete = false for a pair with no workers")
	}
}

func TestWorkerTasksConversion(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-102", "Váy")
	stage := testsupport.SeedStage(t, st, 2)
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	worker := testsupport.SeedUser(t, st, "minh", "Phạm Minh", "CAT")
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)

	resp, err := svc.WorkerTasks(ctx, worker.ID, "")
	if err != nil {
		t.Fatalf("WorkerTasks: %v", err)
	}
	if len(resp.Tasks) != 1 {
		t.Fatalf("tasks = %d, want 1", len(resp.Tasks))
	}
	task := resp.Tasks[0]
	if task.Status != string(store.WorkerAssigned) {
		t.Errorf("status = %q, want assigned", task.Status)
	}
	if task.StartTime != "" {
		t.Errorf("start time = %q before work starts", task.StartTime)
	}
	if task.ProductCode != "AO-102" || task.StageName != stage.Name {
		t.Errorf("joined fields = %q/%q", task.ProductCode, task.StageName)
	}
}

func TestProductStagesAndOverview(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-103", "Quần tây")
	first := testsupport.SeedStage(t, st, 1)
	second := testsupport.SeedStage(t, st, 2)
	testsupport.ActivatePair(t, st, product.ID, first.ID)
	testsupport.ActivatePair(t, st, product.ID, second.ID)
	if err := st.PauseStage(ctx, product.ID, second.ID); err != nil {
		t.Fatalf("PauseStage: %v", err)
	}

	resp, err := svc.ProductStages(ctx, product.ID)
	if err != nil {
		t.Fatalf("ProductStages: %v", err)
	}
	if len(resp.Stages) != 2 {
		t.Fatalf("stages = %d, want 2", len(resp.Stages))
	}
	if resp.Stages[0].StageSequence != 1 || resp.Stages[1].StageSequence != 2 {
		t.Error("stages not ordered by sequence")
	}

	rows, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	var found bool
	for _, row := range rows {
		if row.ProductID != product.ID {
			continue
		}
		found = true
		if row.ActiveStages != 1 || row.PausedStages != 1 {
			t.Errorf("counts = %d active / %d paused, want 1/1", row.ActiveStages, row.PausedStages)
		}
	}
	if !found {
		t.Error("overview missing product")
	}
}

func TestInventorySelectsHistory(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	if _, err := st.AddCustomItem(ctx, store.ItemDocument, "Hồ sơ kỹ thuật", "", 2); err != nil {
		t.Fatalf("AddCustomItem: %v", err)
	}

	available, err := svc.Inventory(ctx, false)
	if err != nil {
		t.Fatalf("Inventory(available): %v", err)
	}
	if len(available) != 1 {
		t.Fatalf("available = %d, want 1", len(available))
	}
	if available[0].ItemType != string(store.ItemDocument) {
		t.Errorf("item type = %q, want document", available[0].ItemType)
	}

	history, err := svc.Inventory(ctx, true)
	if err != nil {
		t.Fatalf("Inventory(exported): %v", err)
	}
	if len(history) != 0 {
		t.Errorf("history = %d, want 0", len(history))
	}
}
