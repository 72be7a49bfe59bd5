package store_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"loomline/internal/services"
	"loomline/internal/store"
	"loomline/internal/testsupport"
)

func TestAssignWorkerRequiresOpenStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")

	if _, err := st.AssignWorker(ctx, product.ID, stage.ID, worker.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without activation, got %v", err)
	}

	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	if err := st.CompleteStage(ctx, product.ID, stage.ID); err != nil {
		t.Fatalf("CompleteStage failed: %v", err)
	}
	if _, err := st.AssignWorker(ctx, product.ID, stage.ID, worker.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on completed pair, got %v", err)
	}
}

func TestAssignWorkerRejectsDuplicate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)

	_, err := st.AssignWorker(ctx, product.ID, stage.ID, worker.ID)
	if !errors.Is(err, store.ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got %v", err)
	}
	if !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists in the chain, got %v", err)
	}
}

func TestAssignWorkersBestEffort(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	lan := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	hoa := testsupport.SeedUser(t, st, "hoa", "Hoa", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, lan.ID)

	result, err := st.AssignWorkers(ctx, product.ID, stage.ID, []int64{lan.ID, hoa.ID, 9999})
	if err != nil {
		t.Fatalf("AssignWorkers failed: %v", err)
	}
	if len(result.Assigned) != 1 || result.Assigned[0].UserID != hoa.ID {
		t.Fatalf("unexpected assigned set: %#v", result.Assigned)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %#v", result.Failed)
	}
	if result.Failed[0].UserID != lan.ID || !strings.Contains(result.Failed[0].Reason, "already assigned") {
		t.Fatalf("unexpected duplicate failure: %#v", result.Failed[0])
	}
	if result.Failed[1].UserID != 9999 {
		t.Fatalf("unexpected missing-user failure: %#v", result.Failed[1])
	}
}

func TestStartWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)

	started, err := st.StartWork(ctx, product.ID, stage.ID, worker.ID)
	if err != nil {
		t.Fatalf("StartWork failed: %v", err)
	}
	if started.Status != store.WorkerWorking || started.StartTime == nil {
		t.Fatalf("unexpected started assignment: %#v", started)
	}

	if _, err := st.StartWork(ctx, product.ID, stage.ID, worker.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState re-starting, got %v", err)
	}
}

func TestCompleteWorkCascadesStageCompletion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	lan := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	hoa := testsupport.SeedUser(t, st, "hoa", "Hoa", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, lan.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, hoa.ID)

	if _, err := st.StartWork(ctx, product.ID, stage.ID, lan.ID); err != nil {
		t.Fatalf("StartWork failed: %v", err)
	}

	first, stageDone, err := st.CompleteWork(ctx, product.ID, stage.ID, lan.ID, "xong phần tôi")
	if err != nil {
		t.Fatalf("CompleteWork failed: %v", err)
	}
	if stageDone {
		t.Fatal("stage must not complete while a worker remains")
	}
	if first.Status != store.WorkerCompleted || first.HoursWorked == nil {
		t.Fatalf("unexpected completed assignment: %#v", first)
	}
	if first.Notes != "xong phần tôi" {
		t.Fatalf("expected notes recorded, got %q", first.Notes)
	}

	// Never-started work completes with zero hours.
	second, stageDone, err := st.CompleteWork(ctx, product.ID, stage.ID, hoa.ID, "")
	if err != nil {
		t.Fatalf("CompleteWork failed: %v", err)
	}
	if !stageDone {
		t.Fatal("expected last finisher to complete the stage")
	}
	if second.HoursWorked == nil || *second.HoursWorked != 0 {
		t.Fatalf("expected zero hours for unstarted work, got %#v", second.HoursWorked)
	}

	active, err := st.GetActiveStage(ctx, product.ID, stage.ID)
	if err != nil {
		t.Fatalf("GetActiveStage failed: %v", err)
	}
	if active.Status != store.StageCompleted || active.CompletedAt == nil {
		t.Fatalf("expected completed stage, got %#v", active)
	}

	if _, _, err := st.CompleteWork(ctx, product.ID, stage.ID, hoa.ID, ""); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState re-completing, got %v", err)
	}
}

func TestConcurrentCompletionsFinishStageOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	lan := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	hoa := testsupport.SeedUser(t, st, "hoa", "Hoa", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, lan.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, hoa.ID)

	// Both finishers land at once; the conditional UPDATE must hand
	// stageDone to exactly one of them.
	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i, userID := range []int64{lan.ID, hoa.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, stageDone, err := st.CompleteWork(ctx, product.ID, stage.ID, userID, "")
			if err != nil {
				t.Errorf("CompleteWork for user %d failed: %v", userID, err)
				return
			}
			results[i] = stageDone
		}()
	}
	wg.Wait()

	doneCount := 0
	for _, stageDone := range results {
		if stageDone {
			doneCount++
		}
	}
	if doneCount != 1 {
		t.Fatalf("expected exactly one finisher to complete the stage, got %d", doneCount)
	}

	// Racing the warehouse move afterwards must still yield a single row.
	moves := make([]bool, 2)
	for i := range moves {
		wg.Add(1)
		go func() {
			defer wg.Done()
			moved, err := st.AutoMoveToWarehouseIfComplete(ctx, product.ID)
			if err != nil {
				t.Errorf("AutoMoveToWarehouseIfComplete failed: %v", err)
				return
			}
			moves[i] = moved
		}()
	}
	wg.Wait()

	movedCount := 0
	for _, moved := range moves {
		if moved {
			movedCount++
		}
	}
	if movedCount != 1 {
		t.Fatalf("expected exactly one move to win, got %d", movedCount)
	}
	items, err := st.AvailableProducts(ctx)
	if err != nil {
		t.Fatalf("AvailableProducts failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single inventory row, got %d", len(items))
	}
}

func TestPauseWorkKeepsTimestamps(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)
	if _, err := st.StartWork(ctx, product.ID, stage.ID, worker.ID); err != nil {
		t.Fatalf("StartWork failed: %v", err)
	}

	paused, err := st.PauseWork(ctx, product.ID, stage.ID, worker.ID, "chờ vải")
	if err != nil {
		t.Fatalf("PauseWork failed: %v", err)
	}
	if paused.Status != store.WorkerAssigned {
		t.Fatalf("expected assigned after pause, got %s", paused.Status)
	}
	if paused.StartTime == nil {
		t.Fatal("expected start time preserved across pause")
	}
	if paused.Notes != "chờ vải" {
		t.Fatalf("expected pause reason in notes, got %q", paused.Notes)
	}
}

func TestPauseWorkBeforeStarting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)

	// A never-started assignment can still record a blocking reason.
	paused, err := st.PauseWork(ctx, product.ID, stage.ID, worker.ID, "chờ vải")
	if err != nil {
		t.Fatalf("PauseWork failed: %v", err)
	}
	if paused.Status != store.WorkerAssigned {
		t.Fatalf("expected assigned after pause, got %s", paused.Status)
	}
	if paused.Notes != "chờ vải" {
		t.Fatalf("expected pause reason in notes, got %q", paused.Notes)
	}

	if _, _, err := st.CompleteWork(ctx, product.ID, stage.ID, worker.ID, ""); err != nil {
		t.Fatalf("CompleteWork failed: %v", err)
	}
	if _, err := st.PauseWork(ctx, product.ID, stage.ID, worker.ID, ""); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState pausing completed work, got %v", err)
	}
}

func TestRemoveWorker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 1)
	worker := testsupport.SeedUser(t, st, "lan", "Lan", "RAP")
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)

	if err := st.RemoveWorker(ctx, product.ID, stage.ID, worker.ID); err != nil {
		t.Fatalf("RemoveWorker failed: %v", err)
	}
	if _, err := st.GetAssignment(ctx, product.ID, stage.ID, worker.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected assignment removed, got %v", err)
	}

	testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)
	if _, _, err := st.CompleteWork(ctx, product.ID, stage.ID, worker.ID, ""); err != nil {
		t.Fatalf("CompleteWork failed: %v", err)
	}
	if err := st.RemoveWorker(ctx, product.ID, stage.ID, worker.ID); !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState removing completed work, got %v", err)
	}
}

func TestWorkerTasksOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	worker := testsupport.SeedUser(t, st, "lan", "Lan", "MAY")
	first := testsupport.SeedProduct(t, st, "AO-001", "Áo một")
	second := testsupport.SeedProduct(t, st, "AO-002", "Áo hai")
	third := testsupport.SeedProduct(t, st, "AO-003", "Áo ba")
	stage := testsupport.SeedStage(t, st, 3)

	for _, product := range []*store.Product{first, second, third} {
		testsupport.ActivatePair(t, st, product.ID, stage.ID)
		testsupport.AssignWorker(t, st, product.ID, stage.ID, worker.ID)
	}
	if _, err := st.StartWork(ctx, second.ID, stage.ID, worker.ID); err != nil {
		t.Fatalf("StartWork failed: %v", err)
	}
	if _, _, err := st.CompleteWork(ctx, third.ID, stage.ID, worker.ID, ""); err != nil {
		t.Fatalf("CompleteWork failed: %v", err)
	}

	tasks, err := st.WorkerTasks(ctx, worker.ID, "")
	if err != nil {
		t.Fatalf("WorkerTasks failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].Status != store.WorkerWorking || tasks[1].Status != store.WorkerAssigned || tasks[2].Status != store.WorkerCompleted {
		t.Fatalf("unexpected ordering: %s, %s, %s", tasks[0].Status, tasks[1].Status, tasks[2].Status)
	}

	onlyAssigned, err := st.WorkerTasks(ctx, worker.ID, store.WorkerAssigned)
	if err != nil {
		t.Fatalf("WorkerTasks failed: %v", err)
	}
	if len(onlyAssigned) != 1 || onlyAssigned[0].ProductID != first.ID {
		t.Fatalf("unexpected filtered tasks: %#v", onlyAssigned)
	}
}

func TestWorkerTasksStageTotals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	lan := testsupport.SeedUser(t, st, "lan", "Lan", "MAY")
	hoa := testsupport.SeedUser(t, st, "hoa", "Hoa", "MAY")
	product := testsupport.SeedProduct(t, st, "AO-001", "Áo")
	stage := testsupport.SeedStage(t, st, 3)
	testsupport.ActivatePair(t, st, product.ID, stage.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, lan.ID)
	testsupport.AssignWorker(t, st, product.ID, stage.ID, hoa.ID)

	if _, err := st.StartWork(ctx, product.ID, stage.ID, hoa.ID); err != nil {
		t.Fatalf("StartWork failed: %v", err)
	}

	tasks, err := st.WorkerTasks(ctx, lan.ID, "")
	if err != nil {
		t.Fatalf("WorkerTasks failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if tasks[0].StageTotalHours < tasks[0].HoursElapsed {
		t.Fatalf("stage total %f below own elapsed %f", tasks[0].StageTotalHours, tasks[0].HoursElapsed)
	}
}
