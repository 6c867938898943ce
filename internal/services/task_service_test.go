package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	config "github.com/druid0523/task-manager-mcp/internal/configs"
	errs "github.com/druid0523/task-manager-mcp/internal/errors"
	model "github.com/druid0523/task-manager-mcp/internal/models"
	repository "github.com/druid0523/task-manager-mcp/internal/repositories"
)

func setupService(t *testing.T) (*TaskService, *repository.TaskRepository) {
	t.Helper()

	db, err := config.New(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	repo := repository.NewTaskRepository(db)
	return NewTaskService(repo), repo
}

func TestParseTaskNumber(t *testing.T) {
	levels, err := ParseTaskNumber("1.2.3")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(levels) != 3 || levels[0] != 1 || levels[1] != 2 || levels[2] != 3 {
		t.Errorf("unexpected levels: %v", levels)
	}

	if _, err := ParseTaskNumber("1.x.3"); !errors.Is(err, errs.ErrInvalidTaskNumber) {
		t.Errorf("expected ErrInvalidTaskNumber, got %v", err)
	}
	if _, err := ParseTaskNumber(""); !errors.Is(err, errs.ErrInvalidTaskNumber) {
		t.Errorf("expected ErrInvalidTaskNumber for empty number, got %v", err)
	}
}

func TestCreateRootTask(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	task, err := svc.CreateRootTask(ctx, "Project", "A project")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("expected id to be assigned")
	}
	if task.RootID != task.ID {
		t.Errorf("root_id = %d, want %d", task.RootID, task.ID)
	}
	if !task.IsLeaf {
		t.Error("fresh root should be a leaf")
	}
}

func TestAddSubTaskCreatesIntermediateAncestors(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}

	leaf, err := svc.AddSubTask(ctx, root.ID, "1.2.3", "Deep leaf")
	if err != nil {
		t.Fatalf("add sub task failed: %v", err)
	}
	if leaf.Number != "1.2.3" {
		t.Errorf("leaf number = %q, want 1.2.3", leaf.Number)
	}

	// Missing ancestors were created on the fly with auto-generated names.
	mid1, err := repo.GetByRootIDAndNumber(ctx, root.ID, "1")
	if err != nil {
		t.Fatalf("ancestor 1 missing: %v", err)
	}
	if mid1.Name != "Task 1" {
		t.Errorf("ancestor 1 name = %q, want 'Task 1'", mid1.Name)
	}
	mid2, err := repo.GetByRootIDAndNumber(ctx, root.ID, "1.2")
	if err != nil {
		t.Fatalf("ancestor 1.2 missing: %v", err)
	}
	if mid2.Name != "Task 1.2" {
		t.Errorf("ancestor 1.2 name = %q, want 'Task 1.2'", mid2.Name)
	}

	if leaf.ParentID != mid2.ID {
		t.Errorf("leaf parent = %d, want %d", leaf.ParentID, mid2.ID)
	}
	if mid2.ParentID != mid1.ID {
		t.Errorf("ancestor 1.2 parent = %d, want %d", mid2.ParentID, mid1.ID)
	}
	if mid1.IsLeaf || mid2.IsLeaf {
		t.Error("intermediate ancestors should not be leaves")
	}
	if !leaf.IsLeaf {
		t.Error("the inserted sub task should be a leaf")
	}
}

func TestAddSubTaskInvalidNumber(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}

	if _, err := svc.AddSubTask(ctx, root.ID, "1.a", "Bad"); !errors.Is(err, errs.ErrInvalidTaskNumber) {
		t.Errorf("expected ErrInvalidTaskNumber, got %v", err)
	}
}

func TestAddSubTasksBatch(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}

	tasks, err := svc.AddSubTasks(ctx, root.ID, []NumberedSubTask{
		{Number: "1", Name: "First"},
		{Number: "2", Name: "Second"},
		{Number: "2.1", Name: "Nested"},
	})
	if err != nil {
		t.Fatalf("batch add failed: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks back, got %d", len(tasks))
	}

	subTasks, err := svc.ListSubTasks(ctx, root.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(subTasks) != 3 {
		t.Errorf("expected 3 sub tasks, got %d", len(subTasks))
	}
	for _, task := range subTasks {
		if task.ParentID == 0 {
			t.Errorf("sub task listing must not contain the root (id %d)", task.ID)
		}
	}
}

func TestAddTaskTree(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()

	spec := TaskSpec{
		Name:        "Release",
		Description: "Ship it",
		Children: []TaskSpec{
			{Name: "Build"},
			{Name: "Test", Children: []TaskSpec{
				{Name: "Unit"},
				{Name: "Integration"},
			}},
		},
	}

	top, err := svc.AddTaskTree(ctx, 0, spec)
	if err != nil {
		t.Fatalf("add tree failed: %v", err)
	}
	if top.ParentID != 0 {
		t.Errorf("top node should be a root, parent = %d", top.ParentID)
	}
	if top.RootID != top.ID {
		t.Errorf("top root_id = %d, want %d", top.RootID, top.ID)
	}
	if top.IsLeaf {
		t.Error("a spec node with children must be inserted as non-leaf")
	}

	all, err := repo.ListByRootID(ctx, top.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 tasks in tree, got %d", len(all))
	}

	test, err := repo.GetByRootIDAndNumber(ctx, top.ID, "2")
	if err != nil {
		t.Fatalf("node 2 missing: %v", err)
	}
	if test.Name != "Test" || test.IsLeaf {
		t.Errorf("node 2 = %q leaf=%v, want Test non-leaf", test.Name, test.IsLeaf)
	}

	unit, err := repo.GetByRootIDAndNumber(ctx, top.ID, "2.1")
	if err != nil {
		t.Fatalf("node 2.1 missing: %v", err)
	}
	if !unit.IsLeaf {
		t.Error("childless spec node must be a leaf")
	}
	if unit.ParentID != test.ID {
		t.Errorf("node 2.1 parent = %d, want %d", unit.ParentID, test.ID)
	}
	if unit.RootID != top.ID {
		t.Errorf("root_id should be threaded down, got %d", unit.RootID)
	}
}

func TestAddTaskTreeUnderParent(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	if _, err := svc.AddSubTask(ctx, root.ID, "1", "Existing"); err != nil {
		t.Fatalf("seed sub task failed: %v", err)
	}

	top, err := svc.AddTaskTree(ctx, root.ID, TaskSpec{
		Name:     "Attached",
		Children: []TaskSpec{{Name: "Leaf"}},
	})
	if err != nil {
		t.Fatalf("add tree failed: %v", err)
	}

	// Numbered after the existing child of the parent.
	if top.Number != "2" {
		t.Errorf("attached top number = %q, want 2", top.Number)
	}
	if top.RootID != root.ID {
		t.Errorf("attached root_id = %d, want %d", top.RootID, root.ID)
	}

	leaf, err := repo.GetByRootIDAndNumber(ctx, root.ID, "2.1")
	if err != nil {
		t.Fatalf("attached leaf missing: %v", err)
	}
	if leaf.ParentID != top.ID {
		t.Errorf("leaf parent = %d, want %d", leaf.ParentID, top.ID)
	}
}

func TestAddTaskTreeSkipsOccupiedNumbers(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	// Sole child whose number is above its ordinal position.
	if _, err := svc.AddSubTask(ctx, root.ID, "2", "Existing"); err != nil {
		t.Fatalf("seed sub task failed: %v", err)
	}

	top, err := svc.AddTaskTree(ctx, root.ID, TaskSpec{Name: "New"})
	if err != nil {
		t.Fatalf("add tree failed: %v", err)
	}
	if top.Number != "3" {
		t.Errorf("attached top number = %q, want 3", top.Number)
	}

	children, err := repo.ListByParentID(ctx, root.ID)
	if err != nil {
		t.Fatalf("list children failed: %v", err)
	}
	seen := map[string]int{}
	for _, child := range children {
		seen[child.Number]++
		if seen[child.Number] > 1 {
			t.Errorf("number %q assigned to %d siblings", child.Number, seen[child.Number])
		}
	}

	// A gap left by a deletion must not be reused either: the occupied
	// number "3" stays ahead of the freed "2".
	existing, err := repo.GetByRootIDAndNumber(ctx, root.ID, "2")
	if err != nil {
		t.Fatalf("fetch existing failed: %v", err)
	}
	if err := svc.DeleteTask(ctx, existing.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	next, err := svc.AddTaskTree(ctx, root.ID, TaskSpec{Name: "After gap"})
	if err != nil {
		t.Fatalf("add tree after delete failed: %v", err)
	}
	if next.Number != "4" {
		t.Errorf("number after gap = %q, want 4", next.Number)
	}
}

func TestFindRootTasks(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateRootTask(ctx, "Project Alpha", ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.CreateRootTask(ctx, "project delta", ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.CreateRootTask(ctx, "Task Gamma", ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tasks, err := svc.FindRootTasks(ctx, "Proj")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 matches, got %d", len(tasks))
	}
}

func TestStartOrResumeThroughService(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	if _, err := svc.AddSubTasks(ctx, root.ID, []NumberedSubTask{
		{Number: "1", Name: "First"},
		{Number: "2", Name: "Second"},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	picked, err := svc.StartOrResume(ctx, root.ID)
	if err != nil {
		t.Fatalf("dequeue failed: %v", err)
	}
	if picked == nil || picked.Number != "1" {
		t.Fatalf("expected sub task 1 to be picked, got %+v", picked)
	}
	if picked.Status != model.StatusStarted {
		t.Errorf("picked status = %s, want started", picked.Status)
	}
}

func TestFinishSubTaskPropagatesToRoot(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	sub, err := svc.AddSubTask(ctx, root.ID, "1", "Only child")
	if err != nil {
		t.Fatalf("add sub task failed: %v", err)
	}

	finished, err := svc.FinishSubTask(ctx, root.ID, sub.ID)
	if err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if finished.Status != model.StatusFinished {
		t.Errorf("sub task status = %s, want finished", finished.Status)
	}

	storedRoot, err := repo.GetByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("reload root failed: %v", err)
	}
	if storedRoot.Status != model.StatusFinished {
		t.Errorf("root status = %s, want finished", storedRoot.Status)
	}
}

func TestDeleteTaskAndDeleteAll(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	root, err := svc.CreateRootTask(ctx, "Project", "")
	if err != nil {
		t.Fatalf("create root failed: %v", err)
	}
	sub, err := svc.AddSubTask(ctx, root.ID, "1", "Child")
	if err != nil {
		t.Fatalf("add sub task failed: %v", err)
	}

	if err := svc.DeleteTask(ctx, sub.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.GetTask(ctx, sub.ID); !errors.Is(err, errs.ErrTaskNotFound) {
		t.Errorf("expected deleted sub task to be invisible, got %v", err)
	}

	if err := svc.DeleteAllTasks(ctx); err != nil {
		t.Fatalf("delete all failed: %v", err)
	}
	roots, err := svc.ListRootTasks(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("expected no roots after delete all, got %d", len(roots))
	}
}

func TestClearRestartsIDs(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.CreateRootTask(ctx, "Project", ""); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	fresh, err := svc.CreateRootTask(ctx, "Fresh", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if fresh.ID != 1 {
		t.Errorf("expected id 1 after clear, got %d", fresh.ID)
	}
}
