package model

import (
	"time"
)

type TaskStatus string

const (
	StatusCreated  TaskStatus = "created"
	StatusStarted  TaskStatus = "started"
	StatusFinished TaskStatus = "finished"
)

// statusTransitions is the exhaustive transition table. A status missing
// from the map (finished) is terminal.
var statusTransitions = map[TaskStatus][]TaskStatus{
	StatusCreated: {StatusStarted, StatusFinished},
	StatusStarted: {StatusFinished},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to TaskStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Task is one node in a project's forest of task trees. A task with
// ParentID == 0 is a root and its RootID equals its own ID. Number is the
// dotted-decimal position within the root's tree ("1.2.3"), unique per
// (root_id, number) among non-deleted rows.
type Task struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"size:256;not null" json:"name"`
	Description string     `gorm:"type:text;default:''" json:"description"`
	Status      TaskStatus `gorm:"size:64;default:'created'" json:"status"`
	Version     uint       `gorm:"default:1" json:"version"`
	Number      string     `gorm:"size:256;not null" json:"number"`
	IsLeaf      bool       `gorm:"default:false" json:"is_leaf"`
	ParentID    int64      `gorm:"not null;default:0" json:"parent_id"`
	RootID      int64      `gorm:"not null;default:0" json:"root_id"`

	CreatedTime       time.Time  `gorm:"not null" json:"created_time"`
	UpdatedTime       *time.Time `json:"updated_time,omitempty"`
	StartedTime       *time.Time `json:"started_time,omitempty"`
	FinishedTime      *time.Time `json:"finished_time,omitempty"`
	PlannedStartTime  *time.Time `json:"planned_start_time,omitempty"`
	PlannedFinishTime *time.Time `json:"planned_finish_time,omitempty"`

	Progress float64 `gorm:"not null;default:0.0" json:"progress"`
	Deleted  bool    `gorm:"not null;default:false" json:"deleted"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) IsRoot() bool {
	return t.ParentID == 0
}

// PlannedDuration returns the planned duration in seconds, or false when
// either planned time is unset.
func (t *Task) PlannedDuration() (float64, bool) {
	if t.PlannedStartTime == nil || t.PlannedFinishTime == nil {
		return 0, false
	}
	return t.PlannedFinishTime.Sub(*t.PlannedStartTime).Seconds(), true
}

// SetPlannedDuration derives PlannedFinishTime from PlannedStartTime plus
// the given number of seconds. It is a no-op when the start is unset.
func (t *Task) SetPlannedDuration(seconds float64) {
	if t.PlannedStartTime == nil {
		return
	}
	finish := t.PlannedStartTime.Add(time.Duration(seconds * float64(time.Second)))
	t.PlannedFinishTime = &finish
}
