package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	errs "github.com/druid0523/task-manager-mcp/internal/errors"
	model "github.com/druid0523/task-manager-mcp/internal/models"
)

// TaskColumn names a column that Update may write. Callers pick columns from
// this fixed set instead of passing raw field names; version is never
// writable through Update and updated_time is always refreshed.
type TaskColumn string

const (
	ColName              TaskColumn = "name"
	ColDescription       TaskColumn = "description"
	ColStatus            TaskColumn = "status"
	ColNumber            TaskColumn = "number"
	ColIsLeaf            TaskColumn = "is_leaf"
	ColParentID          TaskColumn = "parent_id"
	ColRootID            TaskColumn = "root_id"
	ColCreatedTime       TaskColumn = "created_time"
	ColStartedTime       TaskColumn = "started_time"
	ColFinishedTime      TaskColumn = "finished_time"
	ColPlannedStartTime  TaskColumn = "planned_start_time"
	ColPlannedFinishTime TaskColumn = "planned_finish_time"
	ColProgress          TaskColumn = "progress"
	ColDeleted           TaskColumn = "deleted"
)

var allTaskColumns = []TaskColumn{
	ColName, ColDescription, ColStatus, ColNumber, ColIsLeaf,
	ColParentID, ColRootID, ColCreatedTime, ColStartedTime,
	ColFinishedTime, ColPlannedStartTime, ColPlannedFinishTime,
	ColProgress, ColDeleted,
}

func taskColumnValue(task *model.Task, col TaskColumn) any {
	switch col {
	case ColName:
		return task.Name
	case ColDescription:
		return task.Description
	case ColStatus:
		return task.Status
	case ColNumber:
		return task.Number
	case ColIsLeaf:
		return task.IsLeaf
	case ColParentID:
		return task.ParentID
	case ColRootID:
		return task.RootID
	case ColCreatedTime:
		return task.CreatedTime
	case ColStartedTime:
		return task.StartedTime
	case ColFinishedTime:
		return task.FinishedTime
	case ColPlannedStartTime:
		return task.PlannedStartTime
	case ColPlannedFinishTime:
		return task.PlannedFinishTime
	case ColProgress:
		return task.Progress
	case ColDeleted:
		return task.Deleted
	}
	return nil
}

// TaskRepository persists one project's task forest. It performs no internal
// locking; the only concurrency control is the per-row version column.
// Multi-statement operations rely on the caller's transaction for
// all-or-nothing behavior (see Transaction).
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// Transaction runs fn against a repository bound to one transaction.
func (r *TaskRepository) Transaction(ctx context.Context, fn func(r *TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewTaskRepository(tx))
	})
}

func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) GetByRootIDAndNumber(ctx context.Context, rootID int64, number string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("root_id = ? AND number = ? AND deleted = ?", rootID, number, false).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// ListByParentID returns the non-deleted children of a parent ordered by
// number. The ordering is lexicographic on the stored string: "10" sorts
// before "2".
func (r *TaskRepository) ListByParentID(ctx context.Context, parentID int64) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND deleted = ?", parentID, false).
		Order("number").
		Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepository) ListByRootID(ctx context.Context, rootID int64) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("root_id = ? AND deleted = ?", rootID, false).
		Order("number").
		Find(&tasks).Error
	return tasks, err
}

func (r *TaskRepository) ListLeaves(ctx context.Context, rootID int64) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("root_id = ? AND is_leaf = ? AND deleted = ?", rootID, true, false).
		Order("number").
		Find(&tasks).Error
	return tasks, err
}

// ListRootsByName returns root tasks whose name starts with the given
// prefix. Matching is case-insensitive (sqlite LIKE) and anchored at the
// start of the name.
func (r *TaskRepository) ListRootsByName(ctx context.Context, prefix string) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("parent_id = 0 AND name LIKE ? AND deleted = ?", prefix+"%", false).
		Order("name").
		Find(&tasks).Error
	return tasks, err
}

// Insert persists a new task. For a root (ParentID == 0) a second write sets
// root_id to the freshly assigned id, since the id is unknown before the
// insert completes. For a child the parent is demoted to non-leaf with a
// plain unversioned update.
func (r *TaskRepository) Insert(ctx context.Context, task *model.Task) error {
	if task.Status == "" {
		task.Status = model.StatusCreated
	}
	if task.Version == 0 {
		task.Version = 1
	}
	if task.CreatedTime.IsZero() {
		task.CreatedTime = time.Now()
	}

	isRoot := task.ParentID == 0

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return err
	}

	if isRoot {
		err := r.db.WithContext(ctx).Model(&model.Task{}).
			Where("id = ?", task.ID).
			Update("root_id", task.ID).Error
		if err != nil {
			return err
		}
		task.RootID = task.ID
		return nil
	}

	parent := &model.Task{ID: task.ParentID, IsLeaf: false}
	return r.Update(ctx, parent, ColIsLeaf)
}

// Update writes the given columns (all writable columns when none are given)
// with WHERE id = ?. updated_time is always refreshed; version is never
// written. A zero-row match reports ErrUpdateConflict.
func (r *TaskRepository) Update(ctx context.Context, task *model.Task, cols ...TaskColumn) error {
	return r.update(ctx, task, false, cols)
}

// UpdateVersioned is Update with optimistic locking: WHERE id = ? AND
// version = ? plus an atomic version = version + 1. On success the entity's
// version is incremented to stay in sync with storage. A zero-row match
// means the id is gone or the version is stale; both surface as
// ErrUpdateConflict.
func (r *TaskRepository) UpdateVersioned(ctx context.Context, task *model.Task, cols ...TaskColumn) error {
	return r.update(ctx, task, true, cols)
}

func (r *TaskRepository) update(ctx context.Context, task *model.Task, useVersion bool, cols []TaskColumn) error {
	if len(cols) == 0 {
		cols = allTaskColumns
	}

	now := time.Now()
	values := make(map[string]any, len(cols)+2)
	for _, col := range cols {
		values[string(col)] = taskColumnValue(task, col)
	}
	values["updated_time"] = now

	query := r.db.WithContext(ctx).Model(&model.Task{})
	if useVersion {
		values["version"] = gorm.Expr("version + 1")
		query = query.Where("id = ? AND version = ?", task.ID, task.Version)
	} else {
		query = query.Where("id = ?", task.ID)
	}

	res := query.Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.ErrUpdateConflict
	}

	task.UpdatedTime = &now
	if useVersion {
		task.Version++
	}
	return nil
}

// applyStatus sets the status on the entity and stamps the matching
// timestamp. Transition validity must be checked by the caller.
func applyStatus(task *model.Task, newStatus model.TaskStatus) {
	now := time.Now()
	task.Status = newStatus
	switch newStatus {
	case model.StatusStarted:
		task.StartedTime = &now
	case model.StatusFinished:
		task.FinishedTime = &now
	}
}

// UpdateStatus moves a task through the state machine and then re-derives
// ancestor statuses level by level up to the root.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, newStatus model.TaskStatus) (*model.Task, error) {
	task, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransition(task.Status, newStatus) {
		return nil, fmt.Errorf(
			"cannot transition task id=%d from %s to %s: %w",
			id, task.Status, newStatus, errs.ErrInvalidStatusTransition,
		)
	}

	applyStatus(task, newStatus)
	if err := r.UpdateVersioned(ctx, task, ColStatus, ColStartedTime, ColFinishedTime); err != nil {
		return nil, err
	}

	if err := r.checkParentStatus(ctx, task.ParentID); err != nil {
		return nil, err
	}

	return task, nil
}

// deriveStatus computes a parent's status from its non-deleted children.
// The second return is false when the children imply no change.
func deriveStatus(children []model.Task) (model.TaskStatus, bool) {
	if len(children) == 0 {
		return "", false
	}

	allFinished := true
	anyActive := false
	for i := range children {
		switch children[i].Status {
		case model.StatusFinished:
			anyActive = true
		case model.StatusStarted:
			anyActive = true
			allFinished = false
		default:
			allFinished = false
		}
	}

	if allFinished {
		return model.StatusFinished, true
	}
	if anyActive {
		return model.StatusStarted, true
	}
	return "", false
}

// checkParentStatus walks from the given parent to the root, one level per
// iteration, applying the derived status wherever it differs from the
// stored one. Each level goes through the same transition table as a direct
// status update. Termination is bounded by tree depth.
func (r *TaskRepository) checkParentStatus(ctx context.Context, parentID int64) error {
	for parentID != 0 {
		children, err := r.ListByParentID(ctx, parentID)
		if err != nil {
			return err
		}
		derived, ok := deriveStatus(children)
		if !ok {
			return nil
		}

		parent, err := r.GetByID(ctx, parentID)
		if err != nil {
			if errors.Is(err, errs.ErrTaskNotFound) {
				return nil
			}
			return err
		}
		if parent.Status == derived {
			return nil
		}

		if !model.CanTransition(parent.Status, derived) {
			return fmt.Errorf(
				"cannot transition task id=%d from %s to %s: %w",
				parent.ID, parent.Status, derived, errs.ErrInvalidStatusTransition,
			)
		}

		applyStatus(parent, derived)
		if err := r.UpdateVersioned(ctx, parent, ColStatus, ColStartedTime, ColFinishedTime); err != nil {
			return err
		}

		parentID = parent.ParentID
	}
	return nil
}

// StartByID starts a leaf task that is still in created status.
func (r *TaskRepository) StartByID(ctx context.Context, id int64) (*model.Task, error) {
	task, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != model.StatusCreated {
		return nil, errs.ErrTaskNotStartable
	}
	if !task.IsLeaf {
		return nil, errs.ErrTaskNotLeaf
	}

	if _, err := r.UpdateStatus(ctx, id, model.StatusStarted); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// FinishByID finishes a leaf task that is currently started.
func (r *TaskRepository) FinishByID(ctx context.Context, id int64) (*model.Task, error) {
	task, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.Status != model.StatusStarted {
		return nil, errs.ErrTaskNotFinishable
	}
	if !task.IsLeaf {
		return nil, errs.ErrTaskNotLeaf
	}

	if _, err := r.UpdateStatus(ctx, id, model.StatusFinished); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// UpdateProgress sets the task's own progress and then recomputes each
// ancestor's progress as the arithmetic mean of its direct non-deleted
// children, walking up to the root.
func (r *TaskRepository) UpdateProgress(ctx context.Context, id int64, progress float64) (*model.Task, error) {
	if progress < 0.0 || progress > 1.0 {
		return nil, errs.ErrInvalidProgress
	}

	task, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	task.Progress = progress
	if err := r.Update(ctx, task, ColProgress); err != nil {
		return nil, err
	}

	cur := task
	for cur.ParentID != 0 {
		children, err := r.ListByParentID(ctx, cur.ParentID)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			break
		}

		sum := 0.0
		for i := range children {
			sum += children[i].Progress
		}
		avg := sum / float64(len(children))

		parent, err := r.GetByID(ctx, cur.ParentID)
		if err != nil {
			return nil, err
		}
		parent.Progress = avg
		if err := r.Update(ctx, parent, ColProgress); err != nil {
			return nil, err
		}

		cur = parent
	}

	return task, nil
}

// StartOrResume picks one leaf of the tree to hand to a worker: a leaf that
// is already started wins (resume); otherwise the first created leaf in
// number order is started. Returns (nil, nil) when no leaf is available.
func (r *TaskRepository) StartOrResume(ctx context.Context, rootID int64) (*model.Task, error) {
	leaves, err := r.ListLeaves(ctx, rootID)
	if err != nil {
		return nil, err
	}

	for i := range leaves {
		if leaves[i].Status == model.StatusStarted {
			return &leaves[i], nil
		}
	}

	for i := range leaves {
		if leaves[i].Status == model.StatusCreated {
			if _, err := r.UpdateStatus(ctx, leaves[i].ID, model.StatusStarted); err != nil {
				return nil, err
			}
			return r.GetByID(ctx, leaves[i].ID)
		}
	}

	return nil, nil
}

// DeleteByID marks the task and every descendant deleted, breadth-first one
// level at a time, then re-derives the original parent's status (deleting a
// child can leave the survivors all finished).
func (r *TaskRepository) DeleteByID(ctx context.Context, id int64) error {
	task, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	parentID := task.ParentID

	level := []int64{id}
	for len(level) > 0 {
		err := r.db.WithContext(ctx).Model(&model.Task{}).
			Where("id IN ?", level).
			Update("deleted", true).Error
		if err != nil {
			return err
		}

		var next []int64
		err = r.db.WithContext(ctx).Model(&model.Task{}).
			Where("parent_id IN ? AND deleted = ?", level, false).
			Pluck("id", &next).Error
		if err != nil {
			return err
		}
		level = next
	}

	return r.checkParentStatus(ctx, parentID)
}

// DeleteAll marks every row deleted in one statement.
func (r *TaskRepository) DeleteAll(ctx context.Context) error {
	return r.db.WithContext(ctx).Exec("UPDATE tasks SET deleted = ?", true).Error
}

// Clear physically purges all rows and resets the autoincrement counter so
// the next insert receives id 1. Irreversible; meant for full project reset.
func (r *TaskRepository) Clear(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Exec("DELETE FROM tasks").Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec("DELETE FROM sqlite_sequence WHERE name = 'tasks'").Error
}
