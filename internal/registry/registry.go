package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gorm.io/gorm"

	config "github.com/druid0523/task-manager-mcp/internal/configs"
	model "github.com/druid0523/task-manager-mcp/internal/models"
	repository "github.com/druid0523/task-manager-mcp/internal/repositories"
)

const (
	storageDirName    = ".taskmgr"
	defaultDBFile     = "taskmgr.sqlite"
	projectConfigFile = "taskmgr.toml"
	schemaVersion     = "1"
)

// ProjectConfig is the optional per-project override file
// <project>/.taskmgr/taskmgr.toml.
type ProjectConfig struct {
	DatabaseFile string `toml:"database_file"`
}

// Project is one opened project: its database handle and the repositories
// bound to it.
type Project struct {
	Dir      string
	DB       *gorm.DB
	Tasks    *repository.TaskRepository
	Metadata *repository.MetadataRepository
}

// ID returns the stable project identifier stamped into the metadata table
// on first open.
func (p *Project) ID(ctx context.Context) (string, error) {
	id, ok, err := p.Metadata.Get(ctx, model.MetaProjectID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("project id not stamped")
	}
	return id, nil
}

// Registry owns one storage handle per project directory with an explicit
// open/close lifecycle. It replaces a process-wide singleton: tests and
// callers construct their own instances.
type Registry struct {
	mu       sync.Mutex
	projects map[string]*Project
}

func New() *Registry {
	return &Registry{projects: make(map[string]*Project)}
}

// DBPath returns where a project's database lives.
func DBPath(projectDir string) string {
	return filepath.Join(projectDir, storageDirName, defaultDBFile)
}

func loadProjectConfig(projectDir string) (ProjectConfig, error) {
	cfg := ProjectConfig{DatabaseFile: defaultDBFile}

	path := filepath.Join(projectDir, storageDirName, projectConfigFile)
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read project config: %w", err)
	}
	if cfg.DatabaseFile == "" {
		cfg.DatabaseFile = defaultDBFile
	}
	return cfg, nil
}

// Open returns the project handle for a directory, creating and migrating
// the database on first use. Repeated opens return the cached handle.
func (r *Registry) Open(ctx context.Context, projectDir string) (*Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if project, ok := r.projects[projectDir]; ok {
		return project, nil
	}

	cfg, err := loadProjectConfig(projectDir)
	if err != nil {
		return nil, err
	}

	storageDir := filepath.Join(projectDir, storageDirName)
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	db, err := config.New(filepath.Join(storageDir, cfg.DatabaseFile))
	if err != nil {
		return nil, err
	}

	project := &Project{
		Dir:      projectDir,
		DB:       db,
		Tasks:    repository.NewTaskRepository(db),
		Metadata: repository.NewMetadataRepository(db),
	}

	if err := stampMetadata(ctx, project.Metadata); err != nil {
		return nil, err
	}

	r.projects[projectDir] = project
	return project, nil
}

// stampMetadata records the project id (generated once) and schema version.
func stampMetadata(ctx context.Context, meta *repository.MetadataRepository) error {
	if _, ok, err := meta.Get(ctx, model.MetaProjectID); err != nil {
		return err
	} else if !ok {
		if err := meta.Set(ctx, model.MetaProjectID, uuid.NewString()); err != nil {
			return err
		}
	}
	return meta.Set(ctx, model.MetaSchemaVersion, schemaVersion)
}

// Close releases one project's handle.
func (r *Registry) Close(projectDir string) error {
	r.mu.Lock()
	project, ok := r.projects[projectDir]
	delete(r.projects, projectDir)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	return closeDB(project.DB)
}

// CloseAll releases every handle. Intended for shutdown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	projects := make([]*Project, 0, len(r.projects))
	for _, project := range r.projects {
		projects = append(projects, project)
	}
	r.projects = make(map[string]*Project)
	r.mu.Unlock()

	var firstErr error
	for _, project := range projects {
		if err := closeDB(project.DB); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
