package store_test

import (
	"context"
	"errors"
	"testing"

	"loomline/internal/services"
	"loomline/internal/testsupport"
)

func TestCreateStageAppendsSequence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stage, err := st.CreateStage(ctx, "ỦI", 2, "Ủi thành phẩm")
	if err != nil {
		t.Fatalf("CreateStage failed: %v", err)
	}
	if stage.Sequence != 6 {
		t.Fatalf("expected sequence 6, got %d", stage.Sequence)
	}

	if _, err := st.CreateStage(ctx, "ủi", 3, ""); !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate name, got %v", err)
	}
}

func TestGetStageByNameToleratesCase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	stage, err := st.GetStageByName(context.Background(), "may")
	if err != nil {
		t.Fatalf("GetStageByName failed: %v", err)
	}
	if stage.Sequence != 3 {
		t.Fatalf("expected MAY at sequence 3, got %d", stage.Sequence)
	}
}

func TestNextStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.SeedStage(t, st, 1)
	next, err := st.NextStage(ctx, first.ID)
	if err != nil {
		t.Fatalf("NextStage failed: %v", err)
	}
	if next == nil || next.Sequence != 2 {
		t.Fatalf("expected successor at sequence 2, got %#v", next)
	}

	last := testsupport.SeedStage(t, st, 5)
	next, err = st.NextStage(ctx, last.ID)
	if err != nil {
		t.Fatalf("NextStage failed: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil after the last stage, got %#v", next)
	}
}

func TestReorderStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stages, err := st.ListStages(ctx)
	if err != nil {
		t.Fatalf("ListStages failed: %v", err)
	}
	ids := make([]int64, 0, len(stages))
	for i := len(stages) - 1; i >= 0; i-- {
		ids = append(ids, stages[i].ID)
	}
	if err := st.ReorderStages(ctx, ids); err != nil {
		t.Fatalf("ReorderStages failed: %v", err)
	}

	reordered, err := st.ListStages(ctx)
	if err != nil {
		t.Fatalf("ListStages failed: %v", err)
	}
	for i, stage := range reordered {
		if stage.ID != ids[i] {
			t.Fatalf("position %d: expected stage %d, got %d", i, ids[i], stage.ID)
		}
		if stage.Sequence != int64(i)+1 {
			t.Fatalf("expected contiguous sequence, got %d at position %d", stage.Sequence, i)
		}
	}
}

func TestReorderStagesRejectsPartialList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	err := st.ReorderStages(context.Background(), []int64{1, 2})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDeleteStageCascade(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "CAT")
	doomed := testsupport.SeedStage(t, st, 2)
	testsupport.ActivatePair(t, st, product.ID, doomed.ID)
	testsupport.AssignWorker(t, st, product.ID, doomed.ID, worker.ID)
	if _, err := st.CreateMaterialRequest(ctx, product.ID, doomed.ID, worker.ID, "thiếu vải"); err != nil {
		t.Fatalf("CreateMaterialRequest failed: %v", err)
	}

	if err := st.DeleteStageCascade(ctx, doomed.ID); err != nil {
		t.Fatalf("DeleteStageCascade failed: %v", err)
	}

	stages, err := st.ListStages(ctx)
	if err != nil {
		t.Fatalf("ListStages failed: %v", err)
	}
	if len(stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(stages))
	}
	for i, stage := range stages {
		if stage.Sequence != int64(i)+1 {
			t.Fatalf("expected renumbered sequence %d, got %d", i+1, stage.Sequence)
		}
	}

	actives, err := st.ActiveStagesByProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("ActiveStagesByProduct failed: %v", err)
	}
	if len(actives) != 0 {
		t.Fatalf("expected cascade to remove active stages, got %d", len(actives))
	}

	requests, err := st.ListMaterialRequests(ctx, "", product.ID)
	if err != nil {
		t.Fatalf("ListMaterialRequests failed: %v", err)
	}
	if len(requests) != 0 {
		t.Fatalf("expected cascade to remove material requests, got %d", len(requests))
	}
}

func TestDeleteStageCascadeKeepsLastStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stages, err := st.ListStages(ctx)
	if err != nil {
		t.Fatalf("ListStages failed: %v", err)
	}
	for _, stage := range stages[1:] {
		if err := st.DeleteStageCascade(ctx, stage.ID); err != nil {
			t.Fatalf("DeleteStageCascade(%d) failed: %v", stage.ID, err)
		}
	}

	err = st.DeleteStageCascade(ctx, stages[0].ID)
	if !errors.Is(err, services.ErrInvariantViolation) {
		t.Fatalf("expected ErrInvariantViolation on the last stage, got %v", err)
	}
}

func TestDeleteStageCascadeRepointsLegacyProducts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	first := testsupport.SeedStage(t, st, 1)
	if product.CurrentStageID == nil || *product.CurrentStageID != first.ID {
		t.Fatalf("expected product to start at stage %d", first.ID)
	}

	if err := st.DeleteStageCascade(ctx, first.ID); err != nil {
		t.Fatalf("DeleteStageCascade failed: %v", err)
	}

	updated, err := st.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	survivor, err := st.GetStageBySequence(ctx, 1)
	if err != nil {
		t.Fatalf("GetStageBySequence failed: %v", err)
	}
	if updated.CurrentStageID == nil || *updated.CurrentStageID != survivor.ID {
		t.Fatalf("expected product repointed to stage %d, got %v", survivor.ID, updated.CurrentStageID)
	}
}
