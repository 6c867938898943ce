package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	dto "github.com/druid0523/task-manager-mcp/internal/data_models"
	errs "github.com/druid0523/task-manager-mcp/internal/errors"
	"github.com/druid0523/task-manager-mcp/internal/http/validators"
	model "github.com/druid0523/task-manager-mcp/internal/models"
	"github.com/druid0523/task-manager-mcp/internal/registry"
	"github.com/druid0523/task-manager-mcp/internal/services"
)

// Handler exposes each task operation over HTTP. It holds no state of its
// own: every request names a project directory and the registry resolves it
// to a storage handle.
type Handler struct {
	registry *registry.Registry
}

func NewHandler(reg *registry.Registry) *Handler {
	return &Handler{registry: reg}
}

func (h *Handler) service(c echo.Context, projectDir string) (*services.TaskService, error) {
	if projectDir == "" {
		return nil, errs.ErrProjectDirRequired
	}
	project, err := h.registry.Open(c.Request().Context(), projectDir)
	if err != nil {
		return nil, err
	}
	return services.NewTaskService(project.Tasks), nil
}

func fail(err error) error {
	return echo.NewHTTPError(errs.StatusCode(err), err.Error())
}

func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.ErrTaskIDRequired
	}
	return id, nil
}

func (h *Handler) CreateRootTask(c echo.Context) error {
	var req dto.CreateRootTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateCreateRootTaskRequest(&req); err != nil {
		return err
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	task, err := svc.CreateRootTask(c.Request().Context(), req.Name, req.Description)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"task": task})
}

func (h *Handler) AddSubTask(c echo.Context) error {
	rootID, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	var req dto.AddSubTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateAddSubTaskRequest(&req); err != nil {
		return err
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	task, err := svc.AddSubTask(c.Request().Context(), rootID, req.Number, req.Name)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"task": task})
}

func (h *Handler) AddSubTasks(c echo.Context) error {
	rootID, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	var req dto.AddSubTasksRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateAddSubTasksRequest(&req); err != nil {
		return err
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	tasks, err := svc.AddSubTasks(c.Request().Context(), rootID, req.SubTasks)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) AddTaskTree(c echo.Context) error {
	var req dto.AddTaskTreeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}
	if err := validators.ValidateAddTaskTreeRequest(&req); err != nil {
		return err
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	task, err := svc.AddTaskTree(c.Request().Context(), req.ParentID, req.Spec)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"task": task})
}

func (h *Handler) GetTask(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	svc, err := h.service(c, c.QueryParam("project_dir"))
	if err != nil {
		return fail(err)
	}

	task, err := svc.GetTask(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

// ListRootTasks lists all roots, or only those matching a case-insensitive
// name prefix when the name query parameter is present.
func (h *Handler) ListRootTasks(c echo.Context) error {
	svc, err := h.service(c, c.QueryParam("project_dir"))
	if err != nil {
		return fail(err)
	}

	var tasks []model.Task
	if name := c.QueryParam("name"); name != "" {
		tasks, err = svc.FindRootTasks(c.Request().Context(), name)
	} else {
		tasks, err = svc.ListRootTasks(c.Request().Context())
	}
	if err != nil {
		return fail(err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) ListSubTasks(c echo.Context) error {
	rootID, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	svc, err := h.service(c, c.QueryParam("project_dir"))
	if err != nil {
		return fail(err)
	}

	tasks, err := svc.ListSubTasks(c.Request().Context(), rootID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

func (h *Handler) ListLeaves(c echo.Context) error {
	rootID, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	svc, err := h.service(c, c.QueryParam("project_dir"))
	if err != nil {
		return fail(err)
	}

	tasks, err := svc.ListLeaves(c.Request().Context(), rootID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"count": len(tasks),
		"tasks": tasks,
	})
}

// StartOrResume dequeues one workable leaf. An empty tree is not an error;
// the response carries a null task.
func (h *Handler) StartOrResume(c echo.Context) error {
	rootID, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	var req dto.ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	task, err := svc.StartOrResume(c.Request().Context(), rootID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

func (h *Handler) StartTask(c echo.Context) error {
	return h.transition(c, (*services.TaskService).StartTask)
}

func (h *Handler) FinishTask(c echo.Context) error {
	return h.transition(c, (*services.TaskService).FinishTask)
}

func (h *Handler) transition(c echo.Context, op func(*services.TaskService, context.Context, int64) (*model.Task, error)) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	var req dto.ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	task, err := op(svc, c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

func (h *Handler) FinishSubTask(c echo.Context) error {
	rootID, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}
	subTaskID, err := pathID(c, "sub_id")
	if err != nil {
		return fail(err)
	}

	var req dto.ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	task, err := svc.FinishSubTask(c.Request().Context(), rootID, subTaskID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

func (h *Handler) UpdateProgress(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	var req dto.UpdateProgressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	task, err := svc.UpdateProgress(c.Request().Context(), id, req.Progress)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"task": task})
}

func (h *Handler) DeleteTask(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return fail(err)
	}

	svc, err := h.service(c, c.QueryParam("project_dir"))
	if err != nil {
		return fail(err)
	}

	if err := svc.DeleteTask(c.Request().Context(), id); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"result": true})
}

func (h *Handler) DeleteAllTasks(c echo.Context) error {
	svc, err := h.service(c, c.QueryParam("project_dir"))
	if err != nil {
		return fail(err)
	}

	if err := svc.DeleteAllTasks(c.Request().Context()); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"result": true})
}

// Clear physically purges the project's tasks and resets id generation.
func (h *Handler) Clear(c echo.Context) error {
	var req dto.ProjectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON payload")
	}

	svc, err := h.service(c, req.ProjectDir)
	if err != nil {
		return fail(err)
	}

	if err := svc.Clear(c.Request().Context()); err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"result": true})
}
