package services

import (
	"context"
	"errors"
	"time"

	errs "github.com/druid0523/task-manager-mcp/internal/errors"
	model "github.com/druid0523/task-manager-mcp/internal/models"
	repository "github.com/druid0523/task-manager-mcp/internal/repositories"
)

// NumberedSubTask is one sub-task position in a root's tree, addressed by
// its dotted number.
type NumberedSubTask struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// TaskSpec is a nested task specification for bulk insertion. A node with
// children is inserted as a non-leaf.
type TaskSpec struct {
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	PlannedStartTime  *time.Time `json:"planned_start_time,omitempty"`
	PlannedFinishTime *time.Time `json:"planned_finish_time,omitempty"`
	Children          []TaskSpec `json:"children,omitempty"`
}

// TaskService is the operation surface consumed by the transport layer. It
// adds tree-assembly logic on top of the repository; everything stateful
// lives in the repository.
type TaskService struct {
	repo *repository.TaskRepository
}

func NewTaskService(repo *repository.TaskRepository) *TaskService {
	return &TaskService{repo: repo}
}

// CreateRootTask inserts a new root task. The insert's second write points
// root_id back at the fresh id.
func (s *TaskService) CreateRootTask(ctx context.Context, name, description string) (*model.Task, error) {
	task := &model.Task{
		Name:        name,
		Description: description,
		RootID:      0,
		ParentID:    0,
		IsLeaf:      true,
	}
	if err := s.repo.Insert(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	return s.repo.GetByID(ctx, id)
}

// getRootTask fetches a task and verifies it is a root.
func (s *TaskService) getRootTask(ctx context.Context, id int64) (*model.Task, error) {
	task, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.IsRoot() {
		return nil, errs.ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) addSubTasks(ctx context.Context, repo *repository.TaskRepository, root *model.Task, subTasks []NumberedSubTask) error {
	for _, subTask := range subTasks {
		levels, err := ParseTaskNumber(subTask.Number)
		if err != nil {
			return err
		}

		parent, err := findOrCreateParent(ctx, repo, root, levels[:len(levels)-1])
		if err != nil {
			return err
		}

		task := &model.Task{
			Name:     subTask.Name,
			Number:   subTask.Number,
			RootID:   root.ID,
			ParentID: parent.ID,
			IsLeaf:   true,
		}
		if err := repo.Insert(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// AddSubTask inserts one sub-task at the given dotted number under the root,
// creating missing intermediate ancestors.
func (s *TaskService) AddSubTask(ctx context.Context, rootID int64, number, name string) (*model.Task, error) {
	root, err := s.repo.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(repo *repository.TaskRepository) error {
		return s.addSubTasks(ctx, repo, root, []NumberedSubTask{{Number: number, Name: name}})
	})
	if err != nil {
		return nil, err
	}

	return s.repo.GetByRootIDAndNumber(ctx, root.ID, number)
}

// AddSubTasks inserts many numbered sub-tasks in one transaction so a
// partial batch is never visible.
func (s *TaskService) AddSubTasks(ctx context.Context, rootID int64, subTasks []NumberedSubTask) ([]model.Task, error) {
	root, err := s.repo.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(repo *repository.TaskRepository) error {
		return s.addSubTasks(ctx, repo, root, subTasks)
	})
	if err != nil {
		return nil, err
	}

	tasks := make([]model.Task, 0, len(subTasks))
	for _, subTask := range subTasks {
		task, err := s.repo.GetByRootIDAndNumber(ctx, root.ID, subTask.Number)
		if err != nil {
			if errors.Is(err, errs.ErrTaskNotFound) {
				continue
			}
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

// AddTaskTree inserts a whole nested specification in one transaction.
// parentID == 0 makes the top node a new root; otherwise the subtree is
// numbered after the existing children of the target parent.
func (s *TaskService) AddTaskTree(ctx context.Context, parentID int64, spec TaskSpec) (*model.Task, error) {
	var created *model.Task
	err := s.repo.Transaction(ctx, func(repo *repository.TaskRepository) error {
		if parentID == 0 {
			task, err := s.insertTree(ctx, repo, nil, "", spec)
			if err != nil {
				return err
			}
			created = task
			return nil
		}

		parent, err := repo.GetByID(ctx, parentID)
		if err != nil {
			return err
		}
		siblings, err := repo.ListByParentID(ctx, parent.ID)
		if err != nil {
			return err
		}
		number := nextChildNumber(parent.Number, siblings)

		task, err := s.insertTree(ctx, repo, parent, number, spec)
		if err != nil {
			return err
		}
		created = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// insertTree creates one task per spec node, depth-first. is_leaf is decided
// by the spec ("no children in the spec"), not re-derived from storage, and
// root_id is threaded down from the ancestor root.
func (s *TaskService) insertTree(ctx context.Context, repo *repository.TaskRepository, parent *model.Task, number string, spec TaskSpec) (*model.Task, error) {
	task := &model.Task{
		Name:              spec.Name,
		Description:       spec.Description,
		Number:            number,
		IsLeaf:            len(spec.Children) == 0,
		PlannedStartTime:  spec.PlannedStartTime,
		PlannedFinishTime: spec.PlannedFinishTime,
	}
	if parent != nil {
		task.ParentID = parent.ID
		task.RootID = parent.RootID
	}

	if err := repo.Insert(ctx, task); err != nil {
		return nil, err
	}

	for i, child := range spec.Children {
		if _, err := s.insertTree(ctx, repo, task, childNumber(number, i+1), child); err != nil {
			return nil, err
		}
	}
	return task, nil
}

func (s *TaskService) ListRootTasks(ctx context.Context) ([]model.Task, error) {
	return s.repo.ListByParentID(ctx, 0)
}

// FindRootTasks matches root tasks by case-insensitive name prefix.
func (s *TaskService) FindRootTasks(ctx context.Context, prefix string) ([]model.Task, error) {
	return s.repo.ListRootsByName(ctx, prefix)
}

// ListSubTasks returns every non-deleted task of the root's tree except the
// root itself, in number order.
func (s *TaskService) ListSubTasks(ctx context.Context, rootID int64) ([]model.Task, error) {
	root, err := s.getRootTask(ctx, rootID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListByRootID(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	subTasks := make([]model.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.ParentID != 0 {
			subTasks = append(subTasks, task)
		}
	}
	return subTasks, nil
}

func (s *TaskService) ListLeaves(ctx context.Context, rootID int64) ([]model.Task, error) {
	return s.repo.ListLeaves(ctx, rootID)
}

// StartOrResume hands out one workable leaf of the tree, or nil when none is
// available.
func (s *TaskService) StartOrResume(ctx context.Context, rootID int64) (*model.Task, error) {
	return s.repo.StartOrResume(ctx, rootID)
}

func (s *TaskService) StartTask(ctx context.Context, id int64) (*model.Task, error) {
	return s.repo.StartByID(ctx, id)
}

func (s *TaskService) FinishTask(ctx context.Context, id int64) (*model.Task, error) {
	return s.repo.FinishByID(ctx, id)
}

// FinishSubTask finishes a sub-task of the given root through the plain
// state machine (no leaf check, matching the tool-level contract).
func (s *TaskService) FinishSubTask(ctx context.Context, rootID, subTaskID int64) (*model.Task, error) {
	if _, err := s.repo.GetByID(ctx, rootID); err != nil {
		return nil, err
	}
	task, err := s.repo.GetByID(ctx, subTaskID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.UpdateStatus(ctx, task.ID, model.StatusFinished); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, task.ID)
}

func (s *TaskService) UpdateProgress(ctx context.Context, id int64, progress float64) (*model.Task, error) {
	return s.repo.UpdateProgress(ctx, id, progress)
}

func (s *TaskService) DeleteTask(ctx context.Context, id int64) error {
	return s.repo.DeleteByID(ctx, id)
}

func (s *TaskService) DeleteAllTasks(ctx context.Context) error {
	return s.repo.DeleteAll(ctx)
}

// Clear irreversibly purges the project's task table.
func (s *TaskService) Clear(ctx context.Context) error {
	return s.repo.Clear(ctx)
}
