package store_test

import (
	"context"
	"errors"
	"testing"

	"loomline/internal/services"
	"loomline/internal/store"
	"loomline/internal/testsupport"
)

func TestActivateStageCreatesActivePair(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 2)

	active, err := st.ActivateStage(ctx, product.ID, stage.ID, store.ActivateOptions{})
	if err != nil {
		t.Fatalf("ActivateStage failed: %v", err)
	}
	if active.Status != store.StageActive {
		t.Fatalf("expected active status, got %s", active.Status)
	}
	if active.StageName != "CẮT" {
		t.Fatalf("expected joined stage name, got %q", active.StageName)
	}
	if active.EffectiveNormHours() != stage.NormHours {
		t.Fatalf("expected stage default norm, got %d", active.EffectiveNormHours())
	}
}

func TestActivateStageNormOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 3)

	override := int64(9)
	active, err := st.ActivateStage(ctx, product.ID, stage.ID, store.ActivateOptions{NormHours: &override})
	if err != nil {
		t.Fatalf("ActivateStage failed: %v", err)
	}
	if active.EffectiveNormHours() != 9 {
		t.Fatalf("expected norm override 9, got %d", active.EffectiveNormHours())
	}

	// Re-activating without an override keeps the prior one.
	again, err := st.ActivateStage(ctx, product.ID, stage.ID, store.ActivateOptions{})
	if err != nil {
		t.Fatalf("re-ActivateStage failed: %v", err)
	}
	if again.EffectiveNormHours() != 9 {
		t.Fatalf("expected override preserved, got %d", again.EffectiveNormHours())
	}
}

func TestActivateStageReworkGate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	testsupport.ActivatePair(t, st, product.ID, stage.ID)

	if err := st.CompleteStage(ctx, product.ID, stage.ID); err != nil {
		t.Fatalf("CompleteStage failed: %v", err)
	}

	_, err := st.ActivateStage(ctx, product.ID, stage.ID, store.ActivateOptions{})
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on completed pair, got %v", err)
	}

	reworked, err := st.ActivateStage(ctx, product.ID, stage.ID, store.ActivateOptions{AllowRework: true})
	if err != nil {
		t.Fatalf("rework ActivateStage failed: %v", err)
	}
	if reworked.Status != store.StageActive {
		t.Fatalf("expected active after rework, got %s", reworked.Status)
	}
	if reworked.CompletedAt != nil {
		t.Fatal("expected completed_at cleared on rework")
	}
}

func TestPauseAndResumeStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	testsupport.ActivatePair(t, st, product.ID, stage.ID)

	if err := st.PauseStage(ctx, product.ID, stage.ID); err != nil {
		t.Fatalf("PauseStage failed: %v", err)
	}
	paused, err := st.GetActiveStage(ctx, product.ID, stage.ID)
	if err != nil {
		t.Fatalf("GetActiveStage failed: %v", err)
	}
	if paused.Status != store.StagePaused {
		t.Fatalf("expected paused, got %s", paused.Status)
	}

	if err := st.PauseStage(ctx, product.ID, stage.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState pausing a paused pair, got %v", err)
	}

	if err := st.ResumeStage(ctx, product.ID, stage.ID); err != nil {
		t.Fatalf("ResumeStage failed: %v", err)
	}
}

func TestCanComplete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)

	ok, err := st.CanComplete(ctx, product.ID, stage.ID)
	if err != nil {
		t.Fatalf("CanComplete failed: %v", err)
	}
	if ok {
		t.Fatal("expected false for a missing pair")
	}

	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	ok, err = st.CanComplete(ctx, product.ID, stage.ID)
	if err != nil {
		t.Fatalf("CanComplete failed: %v", err)
	}
	if !ok {
		t.Fatal("expected true with zero workers")
	}

	worker := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)
	ok, err = st.CanComplete(ctx, product.ID, stage.ID)
	if err != nil {
		t.Fatalf("CanComplete failed: %v", err)
	}
	if ok {
		t.Fatal("expected false with an unfinished worker")
	}
}

func TestProductsByStageCountsWorkers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 2)
	testsupport.ActivatePair(t, st, product.ID, stage.ID)

	lan := testsupport.SeedUser(t, st, "lan", "Lan", "CAT")
	hoa := testsupport.SeedUser(t, st, "hoa", "Hoa", "CAT")
	testsupport.AssignWorker(t, st, product.ID, stage.ID, lan.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, hoa.ID)
	if _, err := st.StartWork(ctx, product.ID, stage.ID, lan.ID); err != nil {
		t.Fatalf("StartWork failed: %v", err)
	}

	rows, err := st.ProductsByStage(ctx, stage.ID, store.StageActive)
	if err != nil {
		t.Fatalf("ProductsByStage failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].WorkerCount != 2 || rows[0].WorkingCount != 1 || rows[0].CompletedCount != 0 {
		t.Fatalf("unexpected counts: %#v", rows[0])
	}
}

func TestStagesOverview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	first := testsupport.SeedStage(t, st, 1)
	second := testsupport.SeedStage(t, st, 2)
	testsupport.ActivatePair(t, st, product.ID, first.ID)
	testsupport.ActivatePair(t, st, product.ID, second.ID)
	if err := st.CompleteStage(ctx, product.ID, first.ID); err != nil {
		t.Fatalf("CompleteStage failed: %v", err)
	}

	overview, err := st.StagesOverview(ctx)
	if err != nil {
		t.Fatalf("StagesOverview failed: %v", err)
	}
	if len(overview) != 1 {
		t.Fatalf("expected 1 product in overview, got %d", len(overview))
	}
	row := overview[0]
	if row.ProductCode != "AO-001" || row.ActiveStages != 1 || row.DoneStages != 1 {
		t.Fatalf("unexpected overview row: %#v", row)
	}
}
