package dto

import (
	"github.com/druid0523/task-manager-mcp/internal/services"
)

// Every request carries the project directory the operation targets; the
// handler resolves it to a storage handle through the registry.

type CreateRootTaskRequest struct {
	ProjectDir  string `json:"project_dir"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type AddSubTaskRequest struct {
	ProjectDir string `json:"project_dir"`
	Number     string `json:"number"`
	Name       string `json:"name"`
}

type AddSubTasksRequest struct {
	ProjectDir string                     `json:"project_dir"`
	SubTasks   []services.NumberedSubTask `json:"sub_tasks"`
}

type AddTaskTreeRequest struct {
	ProjectDir string            `json:"project_dir"`
	ParentID   int64             `json:"parent_id"`
	Spec       services.TaskSpec `json:"spec"`
}

type UpdateProgressRequest struct {
	ProjectDir string  `json:"project_dir"`
	Progress   float64 `json:"progress"`
}

type ProjectRequest struct {
	ProjectDir string `json:"project_dir"`
}
