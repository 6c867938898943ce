package validators

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/druid0523/task-manager-mcp/internal/data_models"
)

func ValidateCreateRootTaskRequest(r *dto.CreateRootTaskRequest) error {
	if r.ProjectDir == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_dir is required")
	}
	if r.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	return nil
}
