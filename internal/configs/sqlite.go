package config

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	model "github.com/druid0523/task-manager-mcp/internal/models"
)

// taskIndexes mirrors the lookups the repository performs: children of a
// parent, (root, number) resolution, deleted filtering and recency scans.
var taskIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id, deleted)",
	"CREATE INDEX IF NOT EXISTS idx_tasks_root_id_number ON tasks(root_id, number, deleted)",
	"CREATE INDEX IF NOT EXISTS idx_tasks_deleted ON tasks(deleted)",
	"CREATE INDEX IF NOT EXISTS idx_tasks_updated_time ON tasks(updated_time)",
}

// New opens the sqlite database at dsn and migrates the schema.
func New(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("db open failed: %w", err)
	}

	if err := db.AutoMigrate(&model.Task{}, &model.Metadata{}); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	for _, stmt := range taskIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return nil, fmt.Errorf("index creation failed: %w", err)
		}
	}

	return db, nil
}
