package storage

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/pkg/logger"
)

// DiskStorage keeps one JSON document per user and per project:
//
//	<data_dir>/users/<user>.json
//	<data_dir>/projects/<user>/<title>.json
//
// Path components are base64url encoded so any id or title is a safe name.
type DiskStorage struct {
	dataDir string
	mu      sync.RWMutex
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{dataDir: dataDir}
}

func (d *DiskStorage) Init() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "users"),
		filepath.Join(d.dataDir, "projects"),
		filepath.Join(d.dataDir, "backup"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) Close() error {
	return nil
}

func (d *DiskStorage) Ping() error {
	if _, err := os.Stat(d.dataDir); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func encodeName(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func (d *DiskStorage) userPath(userID string) string {
	return filepath.Join(d.dataDir, "users", encodeName(userID)+".json")
}

func (d *DiskStorage) projectDir(userID string) string {
	return filepath.Join(d.dataDir, "projects", encodeName(userID))
}

func (d *DiskStorage) projectPath(userID, title string) string {
	return filepath.Join(d.projectDir(userID), encodeName(title)+".json")
}

func (d *DiskStorage) CreateUser(user *model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.userPath(user.ID)
	if _, err := os.Stat(path); err == nil {
		return ErrUserExists
	}
	if err := writeJSON(path, user); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) GetUser(userID string) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var user model.User
	if err := readJSON(d.userPath(userID), &user); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (d *DiskStorage) CreateProject(project *model.Project) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	path := d.projectPath(project.UserID, project.Title)
	if _, err := os.Stat(path); err == nil {
		return ErrProjectExists
	}
	if err := os.MkdirAll(d.projectDir(project.UserID), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := writeJSON(path, project); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) GetProject(userID, title string) (*model.Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var project model.Project
	if err := readJSON(d.projectPath(userID, title), &project); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &project, nil
}

func (d *DiskStorage) ListProjects(userID string) ([]*model.Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	projects := make([]*model.Project, 0)

	files, err := os.ReadDir(d.projectDir(userID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return projects, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		var project model.Project
		if err := readJSON(filepath.Join(d.projectDir(userID), file.Name()), &project); err != nil {
			logger.Errorf("Failed to load project %s for user %s: %v", file.Name(), userID, err)
			continue
		}
		projects = append(projects, &project)
	}

	sortProjects(projects)
	return projects, nil
}

func (d *DiskStorage) DeleteProject(userID, title string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.projectPath(userID, title)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

// Backup copies users/ and projects/ into backup/backup_<unix>.
func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().UnixNano()))

	for _, dir := range []string{"users", "projects"} {
		if err := copyDir(filepath.Join(d.dataDir, dir), filepath.Join(backupDir, dir)); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

// writeJSON writes through a temp file and rename so readers never see a
// partial document.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}
