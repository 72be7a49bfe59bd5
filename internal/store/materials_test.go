package store_test

import (
	"context"
	"errors"
	"testing"

	"loomline/internal/services"
	"loomline/internal/store"
	"loomline/internal/testsupport"
)

func TestMaterialRequestLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 2)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "CAT")
	buyer := testsupport.SeedUser(t, st, "minh", "Minh", "THU_MUA")

	request, err := st.CreateMaterialRequest(ctx, product.ID, stage.ID, worker.ID, "thiếu vải lót")
	if err != nil {
		t.Fatalf("CreateMaterialRequest failed: %v", err)
	}
	if request.Status != store.RequestPending {
		t.Fatalf("expected pending, got %s", request.Status)
	}
	if request.ProductCode != "AO-001" || request.StageName != "CẮT" || request.RequesterName != "Lan" {
		t.Fatalf("unexpected joined fields: %#v", request)
	}

	if _, err := st.MarkRequestDelivered(ctx, request.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState delivering a pending request, got %v", err)
	}

	purchased, err := st.MarkRequestPurchased(ctx, request.ID, buyer.ID, "2026-09-05", "đã đặt 50m")
	if err != nil {
		t.Fatalf("MarkRequestPurchased failed: %v", err)
	}
	if purchased.Status != store.RequestPurchased || purchased.PurchasedAt == nil {
		t.Fatalf("unexpected purchased request: %#v", purchased)
	}
	if purchased.PurchaserName != "Minh" || purchased.ExpectedDelivery != "2026-09-05" {
		t.Fatalf("unexpected purchase details: %#v", purchased)
	}

	if _, err := st.MarkRequestPurchased(ctx, request.ID, buyer.ID, "", ""); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState re-purchasing, got %v", err)
	}

	delivered, err := st.MarkRequestDelivered(ctx, request.ID)
	if err != nil {
		t.Fatalf("MarkRequestDelivered failed: %v", err)
	}
	if delivered.Status != store.RequestDelivered || delivered.DeliveredAt == nil {
		t.Fatalf("unexpected delivered request: %#v", delivered)
	}
}

func TestRequestMessagesThread(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 2)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "CAT")
	buyer := testsupport.SeedUser(t, st, "minh", "Minh", "THU_MUA")

	request, err := st.CreateMaterialRequest(ctx, product.ID, stage.ID, worker.ID, "thiếu chỉ")
	if err != nil {
		t.Fatalf("CreateMaterialRequest failed: %v", err)
	}

	if _, err := st.AddRequestMessage(ctx, request.ID, worker.ID, "cần gấp trong hôm nay"); err != nil {
		t.Fatalf("AddRequestMessage failed: %v", err)
	}
	if _, err := st.AddRequestMessage(ctx, request.ID, buyer.ID, "đang hỏi nhà cung cấp"); err != nil {
		t.Fatalf("AddRequestMessage failed: %v", err)
	}

	messages, err := st.RequestMessages(ctx, request.ID)
	if err != nil {
		t.Fatalf("RequestMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].UserName != "Lan" || messages[1].UserName != "Minh" {
		t.Fatalf("unexpected thread order: %#v", messages)
	}

	if _, err := st.AddRequestMessage(ctx, 9999, worker.ID, "lạc đề"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing request, got %v", err)
	}
}

func TestMaterialRequestStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 2)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "CAT")
	buyer := testsupport.SeedUser(t, st, "minh", "Minh", "THU_MUA")

	first, err := st.CreateMaterialRequest(ctx, product.ID, stage.ID, worker.ID, "thiếu vải")
	if err != nil {
		t.Fatalf("CreateMaterialRequest failed: %v", err)
	}
	if _, err := st.CreateMaterialRequest(ctx, product.ID, stage.ID, worker.ID, "thiếu cúc"); err != nil {
		t.Fatalf("CreateMaterialRequest failed: %v", err)
	}
	if _, err := st.MarkRequestPurchased(ctx, first.ID, buyer.ID, "", ""); err != nil {
		t.Fatalf("MarkRequestPurchased failed: %v", err)
	}

	stats, err := st.MaterialRequestStats(ctx)
	if err != nil {
		t.Fatalf("MaterialRequestStats failed: %v", err)
	}
	if stats.Pending != 1 || stats.Purchased != 1 || stats.Delivered != 0 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	pending, err := st.PendingMaterialRequests(ctx)
	if err != nil {
		t.Fatalf("PendingMaterialRequests failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Reason != "thiếu cúc" {
		t.Fatalf("unexpected pending queue: %#v", pending)
	}
}
