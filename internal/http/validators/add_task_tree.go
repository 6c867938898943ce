package validators

import (
	"net/http"

	"github.com/labstack/echo/v4"

	dto "github.com/druid0523/task-manager-mcp/internal/data_models"
	"github.com/druid0523/task-manager-mcp/internal/services"
)

func ValidateAddTaskTreeRequest(r *dto.AddTaskTreeRequest) error {
	if r.ProjectDir == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "project_dir is required")
	}
	return validateTaskSpec(&r.Spec)
}

// validateTaskSpec rejects an empty name anywhere in the nested spec, not
// only at the top level.
func validateTaskSpec(spec *services.TaskSpec) error {
	if spec.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "every task in the spec needs a name")
	}
	for i := range spec.Children {
		if err := validateTaskSpec(&spec.Children[i]); err != nil {
			return err
		}
	}
	return nil
}
