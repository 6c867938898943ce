package validators

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/druid0523/task-manager-mcp/internal/data_models"
)

func ValidateAddSubTaskRequest(r *dto.AddSubTaskRequest) error {
	if r.ProjectDir == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_dir is required")
	}
	if r.Number == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "number is required")
	}
	if r.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	return nil
}

func ValidateAddSubTasksRequest(r *dto.AddSubTasksRequest) error {
	if r.ProjectDir == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_dir is required")
	}
	if len(r.SubTasks) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "sub_tasks must not be empty")
	}
	for _, subTask := range r.SubTasks {
		if subTask.Number == "" || subTask.Name == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "every sub task needs a number and a name")
		}
	}
	return nil
}
