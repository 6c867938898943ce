package http

import (
	"github.com/labstack/echo/v4"
)

func Register(e *echo.Echo, h *Handler, rateLimiter echo.MiddlewareFunc) {
	e.Use(rateLimiter)

	e.POST("/roots", h.CreateRootTask)
	e.GET("/roots", h.ListRootTasks)
	e.GET("/roots/:id/tasks", h.ListSubTasks)
	e.GET("/roots/:id/leaves", h.ListLeaves)
	e.POST("/roots/:id/subtasks", h.AddSubTask)
	e.POST("/roots/:id/subtasks/batch", h.AddSubTasks)
	e.POST("/roots/:id/subtasks/:sub_id/finish", h.FinishSubTask)
	e.POST("/roots/:id/dequeue", h.StartOrResume)

	e.POST("/tasks/tree", h.AddTaskTree)
	e.GET("/tasks/:id", h.GetTask)
	e.POST("/tasks/:id/start", h.StartTask)
	e.POST("/tasks/:id/finish", h.FinishTask)
	e.PUT("/tasks/:id/progress", h.UpdateProgress)
	e.DELETE("/tasks/:id", h.DeleteTask)
	e.DELETE("/tasks", h.DeleteAllTasks)
	e.POST("/clear", h.Clear)
}
