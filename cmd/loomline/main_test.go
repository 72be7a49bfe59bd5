package main

import (
	"strings"
	"testing"
)

func TestStageListShowsSeededRegistry(t *testing.T) {
	configPath := writeTestConfig(t)

	output := mustRun(t, configPath, "stage", "list")
	for _, name := range []string{"RẬP", "CẮT", "MAY", "THIẾT KẾ", "ĐÍNH KẾT"} {
		if !strings.Contains(output, name) {
			t.Errorf("stage list missing %q:\n%s", name, output)
		}
	}
}

func TestProductWorkflowRoundTrip(t *testing.T) {
	configPath := writeTestConfig(t)

	mustRun(t, configPath, "user", "add", "lan", "Trần Lan", "--role", "MAY")
	mustRun(t, configPath, "product", "add", "ao-301", "Áo vest")

	output := mustRun(t, configPath, "product", "list")
	if !strings.Contains(output, "AO-301") {
		t.Fatalf("product list missing AO-301:\n%s", output)
	}

	// Stage ids follow the seeded sequence, product is the first row.
	mustRun(t, configPath, "workflow", "activate", "1", "3")
	mustRun(t, configPath, "worker", "assign", "1", "3", "1")
	mustRun(t, configPath, "worker", "start", "1", "3", "1")

	output = mustRun(t, configPath, "worker", "done", "1", "3", "1", "--notes", "xong")
	if !strings.Contains(output, "Stage MAY is complete") {
		t.Fatalf("worker done did not finish the stage:\n%s", output)
	}

	output = mustRun(t, configPath, "product", "show", "AO-301")
	if !strings.Contains(output, "completed") {
		t.Errorf("product show missing completed status:\n%s", output)
	}

	// The sole stage finishing moved the product into the warehouse.
	output = mustRun(t, configPath, "warehouse", "list")
	if !strings.Contains(output, "AO-301") {
		t.Errorf("warehouse list missing AO-301:\n%s", output)
	}
}

func TestWorkflowCompleteRejectsUnfinishedWorkers(t *testing.T) {
	configPath := writeTestConfig(t)

	mustRun(t, configPath, "user", "add", "hoa", "Lê Hoa", "--role", "CAT")
	mustRun(t, configPath, "product", "add", "AO-302", "Đầm dạ hội")
	mustRun(t, configPath, "workflow", "activate", "1", "2")
	mustRun(t, configPath, "worker", "assign", "1", "2", "1")

	if _, err := runCommand(t, configPath, "workflow", "complete", "1", "2"); err == nil {
		t.Fatal("complete succeeded with an unfinished worker")
	}
}

func TestMaterialRequestLifecycle(t *testing.T) {
	configPath := writeTestConfig(t)

	mustRun(t, configPath, "user", "add", "minh", "Phạm Minh", "--role", "RAP")
	mustRun(t, configPath, "user", "add", "thu", "Ngô Thu", "--role", "THU_MUA")
	mustRun(t, configPath, "product", "add", "AO-303", "Áo sơ mi")
	mustRun(t, configPath, "workflow", "activate", "1", "1")

	mustRun(t, configPath, "material", "request", "1", "1", "1", "thiếu", "vải", "lót")

	output := mustRun(t, configPath, "material", "list", "--status", "pending")
	if !strings.Contains(output, "thiếu vải lót") {
		t.Fatalf("material list missing request:\n%s", output)
	}

	mustRun(t, configPath, "material", "purchase", "1", "--purchaser", "2", "--delivery", "2026-09-05")
	mustRun(t, configPath, "material", "deliver", "1")
	mustRun(t, configPath, "material", "comment", "1", "--user", "2", "đã", "giao")

	output = mustRun(t, configPath, "material", "thread", "1")
	if !strings.Contains(output, "delivered") || !strings.Contains(output, "đã giao") {
		t.Errorf("thread missing status or message:\n%s", output)
	}
}

func TestStageRemoveRequiresConfirmation(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCommand(t, configPath, "stage", "remove", "5"); err == nil {
		t.Fatal("stage remove ran without --yes")
	}

	output := mustRun(t, configPath, "stage", "remove", "5", "--yes")
	if !strings.Contains(output, "renumbered") {
		t.Errorf("unexpected remove output:\n%s", output)
	}

	listed := mustRun(t, configPath, "stage", "list")
	if strings.Contains(listed, "ĐÍNH KẾT") {
		t.Errorf("removed stage still listed:\n%s", listed)
	}
}

func TestUserShowResolvesByUsername(t *testing.T) {
	configPath := writeTestConfig(t)

	mustRun(t, configPath, "user", "add", "minh", "Phạm Minh", "--role", "RAP")

	output := mustRun(t, configPath, "user", "show", "minh")
	for _, want := range []string{"Phạm Minh", "RAP", "yes"} {
		if !strings.Contains(output, want) {
			t.Errorf("user show missing %q:\n%s", want, output)
		}
	}

	if _, err := runCommand(t, configPath, "user", "show", "nonexistent"); err == nil {
		t.Fatal("expected unknown username to fail")
	}
}

func TestStageStatsAggregatesWork(t *testing.T) {
	configPath := writeTestConfig(t)

	mustRun(t, configPath, "user", "add", "lan", "Trần Lan", "--role", "MAY")
	mustRun(t, configPath, "product", "add", "AO-303", "Áo sơ mi")
	mustRun(t, configPath, "workflow", "activate", "1", "3")
	mustRun(t, configPath, "worker", "assign", "1", "3", "1")
	mustRun(t, configPath, "worker", "start", "1", "3", "1")
	mustRun(t, configPath, "worker", "done", "1", "3", "1")

	output := mustRun(t, configPath, "stage", "stats", "3")
	if !strings.Contains(output, "AO-303") {
		t.Errorf("stage stats missing product row:\n%s", output)
	}

	output = mustRun(t, configPath, "stage", "stats", "2")
	if !strings.Contains(output, "No work recorded") {
		t.Errorf("expected empty stats message:\n%s", output)
	}
}
