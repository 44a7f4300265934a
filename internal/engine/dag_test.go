package engine

import (
	"errors"
	"testing"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
)

func TestBuildDAG_SimpleChain(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "checkout", Type: "checkout"},
			{ID: "lint", Type: "command", DependsOn: []string{"checkout"}},
			{ID: "build", Type: "docker-build", DependsOn: []string{"lint"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Проверяем количество узлов
	if dag.Size() != 3 {
		t.Errorf("expected 3 nodes, got %d", dag.Size())
	}

	// Проверяем корневые узлы
	if len(dag.RootNodes) != 1 {
		t.Errorf("expected 1 root node, got %d", len(dag.RootNodes))
	}
	if dag.RootNodes[0].ID != "checkout" {
		t.Errorf("expected root node checkout, got %s", dag.RootNodes[0].ID)
	}

	// Проверяем зависимости
	lint := dag.GetNode("lint")
	if len(lint.DependsOn) != 1 || lint.DependsOn[0].ID != "checkout" {
		t.Error("lint should depend on checkout")
	}

	build := dag.GetNode("build")
	if len(build.DependsOn) != 1 || build.DependsOn[0].ID != "lint" {
		t.Error("build should depend on lint")
	}
}

func TestBuildDAG_Diamond(t *testing.T) {
	// checkout → lint    → push
	// checkout → cleanup → push
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "checkout", Type: "checkout"},
			{ID: "lint", Type: "command", DependsOn: []string{"checkout"}},
			{ID: "cleanup", Type: "cleanup", DependsOn: []string{"checkout"}},
			{ID: "push", Type: "docker-build", DependsOn: []string{"lint", "cleanup"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dag.Size() != 4 {
		t.Errorf("expected 4 nodes, got %d", dag.Size())
	}

	push := dag.GetNode("push")
	if len(push.DependsOn) != 2 {
		t.Errorf("push should have 2 dependencies, got %d", len(push.DependsOn))
	}

	// Проверяем inDegree
	if dag.GetNode("checkout").InDegree != 0 {
		t.Error("checkout should have inDegree 0")
	}
	if dag.GetNode("lint").InDegree != 1 {
		t.Error("lint should have inDegree 1")
	}
	if dag.GetNode("cleanup").InDegree != 1 {
		t.Error("cleanup should have inDegree 1")
	}
	if dag.GetNode("push").InDegree != 2 {
		t.Error("push should have inDegree 2")
	}
}

func TestBuildDAG_Parallel(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "checkout", Type: "checkout"},
			{
				ID:        "checks",
				Type:      "parallel",
				DependsOn: []string{"checkout"},
				Branches: []domain.ParallelBranch{
					{
						ID: "lint",
						Steps: []domain.StepDef{
							{ID: "fmt", Type: "command"},
							{ID: "report", Type: "http"},
						},
					},
					{
						ID: "disk",
						Steps: []domain.StepDef{
							{ID: "prune", Type: "cleanup"},
						},
					},
				},
			},
			{ID: "build", Type: "docker-build", DependsOn: []string{"checks"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Проверяем наличие узлов
	expectedNodes := []string{
		"checkout",
		"checks",
		"checks.lint.fmt",
		"checks.lint.report",
		"checks.disk.prune",
		"checks.join",
		"build",
	}

	for _, id := range expectedNodes {
		if dag.GetNode(id) == nil {
			t.Errorf("expected node %s to exist", id)
		}
	}

	// Проверяем, что шаги веток зависят от parallel start
	fmtNode := dag.GetNode("checks.lint.fmt")
	if fmtNode == nil {
		t.Fatal("checks.lint.fmt not found")
	}
	if len(fmtNode.DependsOn) != 1 || fmtNode.DependsOn[0].ID != "checks" {
		t.Error("checks.lint.fmt should depend on checks")
	}

	// Проверяем, что join зависит от последних шагов веток
	joinNode := dag.GetNode("checks.join")
	if joinNode == nil {
		t.Fatal("checks.join not found")
	}
	if len(joinNode.DependsOn) != 2 {
		t.Errorf("join should have 2 dependencies, got %d", len(joinNode.DependsOn))
	}
}

func TestBuildDAG_CyclicDependency(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "command", DependsOn: []string{"C"}},
			{ID: "B", Type: "command", DependsOn: []string{"A"}},
			{ID: "C", Type: "command", DependsOn: []string{"B"}},
		},
	}

	_, err := BuildDAG(spec)
	if !errors.Is(err, ErrCyclicDependency) {
		t.Errorf("expected ErrCyclicDependency, got %v", err)
	}
}

func TestGetReadyNodes(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "command"},
			{ID: "B", Type: "command"},
			{ID: "C", Type: "command", DependsOn: []string{"A"}},
			{ID: "D", Type: "command", DependsOn: []string{"A", "B"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Изначально готовы A и B (без зависимостей)
	ready := dag.GetReadyNodes(nil, nil)
	if len(ready) != 2 {
		t.Errorf("expected 2 ready nodes, got %d", len(ready))
	}

	readyIDs := make(map[string]bool)
	for _, node := range ready {
		readyIDs[node.ID] = true
	}
	if !readyIDs["A"] || !readyIDs["B"] {
		t.Error("A and B should be ready initially")
	}

	// После завершения A, готов C
	completed := map[string]bool{"A": true}
	ready = dag.GetReadyNodes(completed, nil)

	readyIDs = make(map[string]bool)
	for _, node := range ready {
		readyIDs[node.ID] = true
	}
	if !readyIDs["B"] || !readyIDs["C"] {
		t.Error("B and C should be ready after A completes")
	}
	if readyIDs["D"] {
		t.Error("D should not be ready (depends on B)")
	}

	// После завершения A и B, готов D
	completed = map[string]bool{"A": true, "B": true}
	ready = dag.GetReadyNodes(completed, nil)

	readyIDs = make(map[string]bool)
	for _, node := range ready {
		readyIDs[node.ID] = true
	}
	if !readyIDs["C"] || !readyIDs["D"] {
		t.Error("C and D should be ready after A and B complete")
	}
}

func TestGetReadyNodes_WithRunning(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "command"},
			{ID: "B", Type: "command"},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A выполняется, B готов
	running := map[string]bool{"A": true}
	ready := dag.GetReadyNodes(nil, running)

	if len(ready) != 1 {
		t.Errorf("expected 1 ready node, got %d", len(ready))
	}
	if ready[0].ID != "B" {
		t.Errorf("expected B to be ready, got %s", ready[0].ID)
	}
}

func TestTopologicalSort(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "checkout"},
			{ID: "B", Type: "command", DependsOn: []string{"A"}},
			{ID: "C", Type: "cleanup", DependsOn: []string{"A"}},
			{ID: "D", Type: "docker-build", DependsOn: []string{"B", "C"}},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	order := dag.Order
	if len(order) != 4 {
		t.Errorf("expected 4 nodes in order, got %d", len(order))
	}

	// A должен быть перед B, C, D
	// B и C должны быть перед D
	positions := make(map[string]int)
	for i, node := range order {
		positions[node.ID] = i
	}

	if positions["A"] > positions["B"] {
		t.Error("A should come before B")
	}
	if positions["A"] > positions["C"] {
		t.Error("A should come before C")
	}
	if positions["B"] > positions["D"] {
		t.Error("B should come before D")
	}
	if positions["C"] > positions["D"] {
		t.Error("C should come before D")
	}
}

func TestDAG_IsComplete(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{ID: "A", Type: "command"},
			{ID: "B", Type: "command"},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Не завершён
	if dag.IsComplete(nil) {
		t.Error("should not be complete with no completed nodes")
	}

	if dag.IsComplete(map[string]bool{"A": true}) {
		t.Error("should not be complete with only A completed")
	}

	// Завершён
	if !dag.IsComplete(map[string]bool{"A": true, "B": true}) {
		t.Error("should be complete with all nodes completed")
	}
}

func TestDAG_GetExecutableNodes(t *testing.T) {
	spec := &domain.PipelineSpec{
		Steps: []domain.StepDef{
			{
				ID:   "parallel",
				Type: "parallel",
				Branches: []domain.ParallelBranch{
					{ID: "branch", Steps: []domain.StepDef{{ID: "step", Type: "command"}}},
				},
			},
		},
	}

	dag, err := BuildDAG(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Должны быть только исполняемые узлы (не join)
	executable := dag.GetExecutableNodes()

	for _, node := range executable {
		if node.IsJoin {
			t.Errorf("join node %s should not be in executable list", node.ID)
		}
	}
}
