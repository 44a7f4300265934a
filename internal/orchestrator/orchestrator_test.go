package orchestrator

import (
	"testing"
	"time"

	"github.com/Bayer-Group/pybalance-ci/internal/domain"
	"github.com/google/uuid"
)

// --- BuildState Tests ---

func TestNewBuildState(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{}

	state := NewBuildState(build, version)

	if state.Build != build {
		t.Error("Build should be set")
	}
	if state.PipelineVersion != version {
		t.Error("PipelineVersion should be set")
	}
	if state.completed == nil {
		t.Error("completed map should be initialized")
	}
	if state.running == nil {
		t.Error("running map should be initialized")
	}
	if state.failed == nil {
		t.Error("failed map should be initialized")
	}
	if state.tasks == nil {
		t.Error("tasks map should be initialized")
	}
}

func TestBuildState_Initialize_EmptySpec(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{},
		},
	}

	state := NewBuildState(build, version)
	err := state.Initialize()

	// Empty spec should fail validation
	if err == nil {
		t.Error("expected error for empty spec")
	}
}

func TestBuildState_Initialize_ValidSpec(t *testing.T) {
	build := &domain.Build{
		ID:       uuid.New(),
		Branch:   "main",
		Commit:   "abc1234",
		ImageTag: "latest",
		Inputs:   map[string]any{"key": "value"},
	}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "checkout", Type: "checkout", Config: map[string]any{"ref": "{{.Env.COMMIT}}"}},
			},
		},
	}

	state := NewBuildState(build, version)
	err := state.Initialize()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if state.DAG == nil {
		t.Error("DAG should be built")
	}
	if state.Context == nil {
		t.Error("Context should be created")
	}
	if state.Context.Inputs["key"] != "value" {
		t.Error("Context should have build inputs")
	}
	if state.Context.Env["BRANCH"] != "main" {
		t.Error("Context env should have branch")
	}
	if state.Context.Env["IMAGE_TAG"] != "latest" {
		t.Error("Context env should have resolved image tag")
	}
}

func TestBuildState_MarkStepRunning(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	state := NewBuildState(build, &domain.PipelineVersion{})
	task := &domain.Task{ID: uuid.New(), StepID: "lint"}

	state.MarkStepRunning("lint", task)

	if !state.IsStepRunning("lint") {
		t.Error("lint should be running")
	}
	if state.GetTask("lint") != task {
		t.Error("task should be stored")
	}
}

func TestBuildState_MarkStepCompleted(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// Mark as running first
	task := &domain.Task{ID: uuid.New(), StepID: "lint"}
	state.MarkStepRunning("lint", task)

	// Mark as completed
	outputs := map[string]any{"exit_code": 0}
	state.MarkStepCompleted("lint", outputs)

	if state.IsStepRunning("lint") {
		t.Error("lint should not be running")
	}
	if !state.IsStepCompleted("lint") {
		t.Error("lint should be completed")
	}

	// Check context has outputs
	stepCtx := state.Context.Steps["lint"]
	if stepCtx == nil {
		t.Fatal("step context should exist")
	}
	if stepCtx.Outputs["exit_code"] != 0 {
		t.Error("step outputs should be in context")
	}
	if stepCtx.Status != "SUCCEEDED" {
		t.Errorf("expected status SUCCEEDED, got %s", stepCtx.Status)
	}
}

func TestBuildState_MarkStepFailed(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// Mark as running first
	task := &domain.Task{ID: uuid.New(), StepID: "lint"}
	state.MarkStepRunning("lint", task)

	// Mark as failed
	state.MarkStepFailed("lint", "reformatting required")

	if state.IsStepRunning("lint") {
		t.Error("lint should not be running")
	}
	if !state.HasFailed() {
		t.Error("state should have failed steps")
	}

	failedSteps := state.GetFailedSteps()
	if len(failedSteps) != 1 || failedSteps[0] != "lint" {
		t.Error("lint should be in failed steps")
	}

	// Check context has status
	stepCtx := state.Context.Steps["lint"]
	if stepCtx == nil {
		t.Fatal("step context should exist")
	}
	if stepCtx.Status != "FAILED" {
		t.Errorf("expected status FAILED, got %s", stepCtx.Status)
	}
}

func TestBuildState_IsComplete(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "checkout", Type: "checkout", Config: map[string]any{"ref": "main"}},
				{ID: "lint", Type: "command", DependsOn: []string{"checkout"}, Config: map[string]any{"command": "black --check ."}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// Not complete initially
	if state.IsComplete() {
		t.Error("should not be complete initially")
	}

	// Complete checkout
	state.MarkStepCompleted("checkout", nil)
	if state.IsComplete() {
		t.Error("should not be complete with only checkout done")
	}

	// Complete lint
	state.MarkStepCompleted("lint", nil)
	if !state.IsComplete() {
		t.Error("should be complete with all steps done")
	}
}

func TestBuildState_IsComplete_WithFailed(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// Mark as failed
	state.MarkStepFailed("lint", "error")

	// Should be complete (failed counts as finished)
	if !state.IsComplete() {
		t.Error("should be complete when all steps are done (even if failed)")
	}
}

func TestBuildState_GetReadySteps(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "checkout", Type: "checkout", Config: map[string]any{"ref": "main"}},
				{ID: "login", Type: "registry-login", Config: map[string]any{"registry": "docker.io"}},
				{ID: "build", Type: "docker-build", DependsOn: []string{"checkout", "login"}, Config: map[string]any{"dockerfile": "environments/Dockerfile"}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// Initially checkout and login are ready
	ready := state.GetReadySteps()
	if len(ready) != 2 {
		t.Errorf("expected 2 ready steps, got %d", len(ready))
	}

	readyIDs := make(map[string]bool)
	for _, node := range ready {
		readyIDs[node.ID] = true
	}
	if !readyIDs["checkout"] || !readyIDs["login"] {
		t.Error("checkout and login should be ready")
	}

	// Mark checkout as running
	state.MarkStepRunning("checkout", &domain.Task{})

	ready = state.GetReadySteps()
	if len(ready) != 1 {
		t.Errorf("expected 1 ready step, got %d", len(ready))
	}
	if ready[0].ID != "login" {
		t.Errorf("expected login to be ready, got %s", ready[0].ID)
	}

	// Complete both checkout and login
	state.MarkStepCompleted("checkout", nil)
	state.MarkStepCompleted("login", nil)

	ready = state.GetReadySteps()
	if len(ready) != 1 {
		t.Errorf("expected 1 ready step, got %d", len(ready))
	}
	if ready[0].ID != "build" {
		t.Errorf("expected build to be ready, got %s", ready[0].ID)
	}
}

func TestBuildState_Stats(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "checkout", Type: "checkout", Config: map[string]any{"ref": "main"}},
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
				{ID: "cleanup", Type: "cleanup", Config: map[string]any{"prune_images": true}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// Initial stats
	stats := state.Stats()
	if stats.TotalSteps != 3 {
		t.Errorf("expected 3 total steps, got %d", stats.TotalSteps)
	}
	if stats.PendingSteps != 3 {
		t.Errorf("expected 3 pending steps, got %d", stats.PendingSteps)
	}
	if stats.RunningSteps != 0 {
		t.Errorf("expected 0 running steps, got %d", stats.RunningSteps)
	}
	if stats.CompletedSteps != 0 {
		t.Errorf("expected 0 completed steps, got %d", stats.CompletedSteps)
	}

	// Mark checkout running
	state.MarkStepRunning("checkout", &domain.Task{})
	stats = state.Stats()
	if stats.RunningSteps != 1 {
		t.Errorf("expected 1 running step, got %d", stats.RunningSteps)
	}
	if stats.PendingSteps != 2 {
		t.Errorf("expected 2 pending steps, got %d", stats.PendingSteps)
	}

	// Complete checkout, fail lint
	state.MarkStepCompleted("checkout", nil)
	state.MarkStepFailed("lint", "error")
	stats = state.Stats()
	if stats.CompletedSteps != 1 {
		t.Errorf("expected 1 completed step, got %d", stats.CompletedSteps)
	}
	if stats.FailedSteps != 1 {
		t.Errorf("expected 1 failed step, got %d", stats.FailedSteps)
	}
	if stats.PendingSteps != 1 {
		t.Errorf("expected 1 pending step, got %d", stats.PendingSteps)
	}
}

func TestBuildState_OnFailureDispatched(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
			},
			OnFailure: &domain.StepDef{
				ID:     "notify",
				Type:   "http",
				Config: map[string]any{"url": "http://example.com/hook"},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	if state.OnFailureStep() == nil {
		t.Fatal("on_failure step should be set")
	}
	if state.OnFailureDispatched() {
		t.Error("on_failure should not be dispatched initially")
	}

	// First mark wins
	if !state.MarkOnFailureDispatched() {
		t.Error("first MarkOnFailureDispatched should return true")
	}
	if state.MarkOnFailureDispatched() {
		t.Error("second MarkOnFailureDispatched should return false")
	}
	if !state.OnFailureDispatched() {
		t.Error("on_failure should be dispatched")
	}
}

func TestBuildState_RestoreFromTasks(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "checkout", Type: "checkout", Config: map[string]any{"ref": "main"}},
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
				{ID: "login", Type: "registry-login", Config: map[string]any{"registry": "docker.io"}},
				{ID: "cleanup", Type: "cleanup", Config: map[string]any{"prune_images": true}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// Simulate tasks from DB
	tasks := []domain.Task{
		{
			ID:      uuid.New(),
			StepID:  "checkout",
			Status:  domain.TaskStatusSucceeded,
			Outputs: map[string]any{"commit": "abc1234"},
		},
		{
			ID:     uuid.New(),
			StepID: "lint",
			Status: domain.TaskStatusFailed,
		},
		{
			ID:     uuid.New(),
			StepID: "login",
			Status: domain.TaskStatusRunning,
		},
		{
			ID:     uuid.New(),
			StepID: "cleanup",
			Status: domain.TaskStatusQueued,
		},
	}

	state.RestoreFromTasks(tasks)

	// Check checkout is completed
	if !state.IsStepCompleted("checkout") {
		t.Error("checkout should be completed")
	}
	if state.Context.Steps["checkout"].Outputs["commit"] != "abc1234" {
		t.Error("checkout outputs should be in context")
	}

	// Check lint is failed
	if !state.HasFailed() {
		t.Error("state should have failed steps")
	}
	failedSteps := state.GetFailedSteps()
	found := false
	for _, s := range failedSteps {
		if s == "lint" {
			found = true
			break
		}
	}
	if !found {
		t.Error("lint should be in failed steps")
	}

	// Check login is running
	if !state.IsStepRunning("login") {
		t.Error("login should be running")
	}

	// Check cleanup is not in any state (queued)
	if state.IsStepCompleted("cleanup") || state.IsStepRunning("cleanup") {
		t.Error("cleanup should not be completed or running")
	}

	// Check tasks are stored
	if state.GetTask("checkout") == nil {
		t.Error("checkout task should be stored")
	}
}

func TestBuildState_RestoreFromTasks_OnFailure(t *testing.T) {
	build := &domain.Build{ID: uuid.New()}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
			},
			OnFailure: &domain.StepDef{
				ID:     "notify",
				Type:   "http",
				Config: map[string]any{"url": "http://example.com/hook"},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	tasks := []domain.Task{
		{ID: uuid.New(), StepID: "lint", Status: domain.TaskStatusFailed},
		{ID: uuid.New(), StepID: "notify", Status: domain.TaskStatusRunning},
	}

	state.RestoreFromTasks(tasks)

	if !state.OnFailureDispatched() {
		t.Error("on_failure dispatch should be restored from tasks")
	}
}

func TestBuildState_BuildID(t *testing.T) {
	buildID := uuid.New()
	build := &domain.Build{ID: buildID}
	state := NewBuildState(build, &domain.PipelineVersion{})

	if state.BuildID() != buildID {
		t.Error("BuildID should return build ID")
	}
}

func TestBuildState_PipelineID(t *testing.T) {
	pipelineID := uuid.New()
	build := &domain.Build{ID: uuid.New(), PipelineID: pipelineID}
	state := NewBuildState(build, &domain.PipelineVersion{})

	if state.PipelineID() != pipelineID {
		t.Error("PipelineID should return pipeline ID")
	}
}

// --- Orchestrator Tests ---

func TestNew(t *testing.T) {
	orch := New(Config{})

	if orch.activeBuilds == nil {
		t.Error("activeBuilds should be initialized")
	}
	if orch.pollInterval != defaultPollInterval {
		t.Errorf("expected default poll interval %v, got %v", defaultPollInterval, orch.pollInterval)
	}
	if orch.batchSize != defaultBatchSize {
		t.Errorf("expected default batch size %d, got %d", defaultBatchSize, orch.batchSize)
	}
}

func TestNew_CustomConfig(t *testing.T) {
	orch := New(Config{
		PollInterval: 5 * time.Second,
		BatchSize:    50,
	})

	if orch.pollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", orch.pollInterval)
	}
	if orch.batchSize != 50 {
		t.Errorf("expected batch size 50, got %d", orch.batchSize)
	}
}

func TestOrchestrator_ActiveBuilds(t *testing.T) {
	orch := New(Config{})

	buildID := uuid.New()
	state := &BuildState{
		Build: &domain.Build{ID: buildID},
	}

	// Initially no active builds
	if orch.ActiveBuildsCount() != 0 {
		t.Error("should have no active builds initially")
	}
	if orch.isBuildActive(buildID) {
		t.Error("build should not be active initially")
	}

	// Add active build
	err := orch.addActiveBuild(state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if orch.ActiveBuildsCount() != 1 {
		t.Error("should have 1 active build")
	}
	if !orch.isBuildActive(buildID) {
		t.Error("build should be active")
	}
	if orch.getActiveBuild(buildID) != state {
		t.Error("getActiveBuild should return the state")
	}

	// Try to add same build again
	err = orch.addActiveBuild(state)
	if err != ErrBuildAlreadyActive {
		t.Errorf("expected ErrBuildAlreadyActive, got %v", err)
	}

	// Remove active build
	orch.removeActiveBuild(buildID)

	if orch.ActiveBuildsCount() != 0 {
		t.Error("should have no active builds after removal")
	}
	if orch.isBuildActive(buildID) {
		t.Error("build should not be active after removal")
	}
}

func TestOrchestrator_GetActiveBuildStats(t *testing.T) {
	orch := New(Config{})

	buildID := uuid.New()
	build := &domain.Build{ID: buildID}
	version := &domain.PipelineVersion{
		Spec: domain.PipelineSpec{
			Steps: []domain.StepDef{
				{ID: "lint", Type: "command", Config: map[string]any{"command": "black --check ."}},
			},
		},
	}
	state := NewBuildState(build, version)
	_ = state.Initialize()

	// No stats for non-existent build
	_, ok := orch.GetActiveBuildStats(buildID)
	if ok {
		t.Error("should not find stats for non-active build")
	}

	// Add build and get stats
	_ = orch.addActiveBuild(state)
	stats, ok := orch.GetActiveBuildStats(buildID)
	if !ok {
		t.Fatal("should find stats for active build")
	}
	if stats.TotalSteps != 1 {
		t.Errorf("expected 1 total step, got %d", stats.TotalSteps)
	}
}

func TestOrchestrator_IsStopped(t *testing.T) {
	orch := New(Config{})

	if orch.IsStopped() {
		t.Error("should not be stopped initially")
	}

	// Set stopped state directly (simulating Stop() call)
	orch.stoppedMu.Lock()
	orch.stopped = true
	orch.stoppedMu.Unlock()

	if !orch.IsStopped() {
		t.Error("should be stopped")
	}
}
