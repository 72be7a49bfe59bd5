package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"loomline/internal/daemon"
	"loomline/internal/logging"
	"loomline/internal/store"
	"loomline/internal/testsupport"
	"loomline/internal/workflow"
)

func startDaemon(t *testing.T) (*daemon.Daemon, *store.Store, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, st, logging.NewNop())

	d, err := daemon.New(cfg, st, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("daemon has no api address")
	}
	return d, st, "http://" + addr
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, st, logging.NewNop())

	first, err := daemon.New(cfg, st, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	cfg.Paths.APIBind = "127.0.0.1:0"
	second, err := daemon.New(cfg, st, logging.NewNop(), manager)
	if err != nil {
		t.Fatalf("daemon.New second: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second Start succeeded while lock held")
	}
}

func TestAPIStageLifecycle(t *testing.T) {
	_, st, base := startDaemon(t)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-201", "Áo khoác")
	stage := testsupport.SeedStage(t, st, 3)
	worker := testsupport.SeedUser(t, st, "thu", "Ngô Thu", "MAY")

	resp := postJSON(t, fmt.Sprintf("%s/api/products/%d/stages/%d/activate", base, product.ID, stage.ID), map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("activate status = %d", resp.StatusCode)
	}
	var activated struct {
		Status    string `json:"status"`
		StageName string `json:"stageName"`
	}
	decodeInto(t, resp, &activated)
	if activated.Status != "active" {
		t.Errorf("activated status = %q, want active", activated.Status)
	}

	resp = postJSON(t, fmt.Sprintf("%s/api/products/%d/stages/%d/workers", base, product.ID, stage.ID), map[string]any{
		"userIds": []int64{worker.ID, 9999},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assign status = %d", resp.StatusCode)
	}
	var assignResult struct {
		Assigned []json.RawMessage `json:"assigned"`
		Failed   []struct {
			UserID int64  `json:"userId"`
			Reason string `json:"reason"`
		} `json:"failed"`
	}
	decodeInto(t, resp, &assignResult)
	if len(assignResult.Assigned) != 1 || len(assignResult.Failed) != 1 {
		t.Fatalf("assign result = %d assigned / %d failed, want 1/1", len(assignResult.Assigned), len(assignResult.Failed))
	}
	if assignResult.Failed[0].UserID != 9999 {
		t.Errorf("failed user = %d, want 9999", assignResult.Failed[0].UserID)
	}

	resp = postJSON(t, fmt.Sprintf("%s/api/products/%d/stages/%d/workers/%d/start", base, product.ID, stage.ID, worker.ID), map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, fmt.Sprintf("%s/api/products/%d/stages/%d/workers/%d/complete", base, product.ID, stage.ID, worker.ID), map[string]any{
		"notes": "xong",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("complete status = %d", resp.StatusCode)
	}
	var completed struct {
		StageDone bool `json:"stageDone"`
	}
	decodeInto(t, resp, &completed)
	if !completed.StageDone {
		t.Error("stageDone = false after sole worker completed")
	}

	getResp, err := http.Get(fmt.Sprintf("%s/api/products/%d/stages/%d", base, product.ID, stage.ID))
	if err != nil {
		t.Fatalf("GET detail: %v", err)
	}
	var detail struct {
		ActiveStage struct {
			Status string `json:"status"`
		} `json:"activeStage"`
		Workers []json.RawMessage `json:"workers"`
	}
	decodeInto(t, getResp, &detail)
	if detail.ActiveStage.Status != "completed" {
		t.Errorf("pair status = %q, want completed", detail.ActiveStage.Status)
	}
	if len(detail.Workers) != 1 {
		t.Errorf("workers = %d, want 1", len(detail.Workers))
	}

	// The sole stage finishing moves the product into the warehouse.
	deadline := time.Now().Add(2 * time.Second)
	for {
		p, err := st.GetProduct(ctx, product.ID)
		if err != nil {
			t.Fatalf("GetProduct: %v", err)
		}
		if p.Status == store.ProductCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("product status = %q, want completed", p.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAPIErrorsMapToStatusCodes(t *testing.T) {
	_, st, base := startDaemon(t)

	resp, err := http.Get(base + "/api/products/12345/stages/1")
	if err != nil {
		t.Fatalf("GET missing pair: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing pair status = %d, want 404", resp.StatusCode)
	}

	product := testsupport.SeedProduct(t, st, "AO-202", "Đầm")
	stage := testsupport.SeedStage(t, st, 1)
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	worker := testsupport.SeedUser(t, st, "tuan", "Vũ Tuấn", "RAP")
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)

	resp = postJSON(t, fmt.Sprintf("%s/api/products/%d/stages/%d/workers", base, product.ID, stage.ID), map[string]any{
		"userIds": []int64{},
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty assign status = %d, want 400", resp.StatusCode)
	}

	// Completing a stage that still has a non-completed worker conflicts.
	resp = postJSON(t, fmt.Sprintf("%s/api/products/%d/stages/%d/complete", base, product.ID, stage.ID), map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("premature complete status = %d, want 409", resp.StatusCode)
	}

	resp = postJSON(t, base+"/api/materials", map[string]any{
		"productId":   product.ID,
		"stageId":     stage.ID,
		"requesterId": worker.ID,
		"reason":      "thiếu vải lót",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create material status = %d, want 201", resp.StatusCode)
	}
	var request struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	decodeInto(t, resp, &request)
	if request.Status != "pending" {
		t.Errorf("request status = %q, want pending", request.Status)
	}

	// Delivery before purchase is an invalid transition.
	resp = postJSON(t, fmt.Sprintf("%s/api/materials/%d/deliver", base, request.ID), map[string]any{})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("early deliver status = %d, want 409", resp.StatusCode)
	}
}
