package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/pkg/logger"
)

// UserRecord is the users table.
type UserRecord struct {
	ID        string `gorm:"primaryKey"`
	FirstName string
	LastName  string
	ImageURL  string
	CreatedAt time.Time
}

// ProjectRecord is the projects table. The transcript is stored as JSON.
type ProjectRecord struct {
	gorm.Model
	UserID   string `gorm:"uniqueIndex:idx_project_user_title;not null"`
	Title    string `gorm:"uniqueIndex:idx_project_user_title;not null"`
	ChatJSON string `gorm:"type:text"`
	Code     string `gorm:"type:text"`
	Style    string `gorm:"type:text"`
}

// SQLStorage implements Storage on gorm for SQLite and PostgreSQL.
type SQLStorage struct {
	db        *gorm.DB
	dialector gorm.Dialector
	kind      string
	source    string
	backupDir string
}

func NewSQLiteStorage(path, backupDir string) *SQLStorage {
	return &SQLStorage{
		dialector: sqlite.Open(path),
		kind:      "sqlite",
		source:    path,
		backupDir: backupDir,
	}
}

func NewPostgresStorage(dsn string) *SQLStorage {
	return &SQLStorage{
		dialector: postgres.Open(dsn),
		kind:      "postgres",
		source:    dsn,
	}
}

func (s *SQLStorage) Init() error {
	if s.kind == "sqlite" {
		if err := os.MkdirAll(filepath.Dir(s.source), 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	db, err := gorm.Open(s.dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", ErrStorageInit, s.kind, err)
	}
	s.db = db

	if err := s.db.AutoMigrate(&UserRecord{}, &ProjectRecord{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStorageInit, err)
	}

	logger.Infof("%s storage initialized successfully", s.kind)
	return nil
}

func (s *SQLStorage) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLStorage) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Backup snapshots a SQLite database with VACUUM INTO. PostgreSQL backups
// are left to the database operator.
func (s *SQLStorage) Backup() error {
	if s.kind != "sqlite" || s.backupDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	target := filepath.Join(s.backupDir, fmt.Sprintf("backup_%d.sqlite", time.Now().UnixNano()))
	if err := s.db.Exec("VACUUM INTO ?", target).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", target)
	return nil
}

func (s *SQLStorage) CreateUser(user *model.User) error {
	var count int64
	if err := s.db.Model(&UserRecord{}).Where("id = ?", user.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return ErrUserExists
	}

	record := UserRecord{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		ImageURL:  user.ImageURL,
		CreatedAt: user.CreatedAt,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *SQLStorage) GetUser(userID string) (*model.User, error) {
	var record UserRecord
	if err := s.db.Where("id = ?", userID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &model.User{
		ID:        record.ID,
		FirstName: record.FirstName,
		LastName:  record.LastName,
		ImageURL:  record.ImageURL,
		CreatedAt: record.CreatedAt,
	}, nil
}

func (s *SQLStorage) CreateProject(project *model.Project) error {
	var count int64
	if err := s.db.Model(&ProjectRecord{}).
		Where("user_id = ? AND title = ?", project.UserID, project.Title).
		Count(&count).Error; err != nil {
		return fmt.Errorf("count projects: %w", err)
	}
	if count > 0 {
		return ErrProjectExists
	}

	chat, err := json.Marshal(project.Chat)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	record := ProjectRecord{
		UserID:   project.UserID,
		Title:    project.Title,
		ChatJSON: string(chat),
		Code:     project.Code,
		Style:    project.Style,
	}
	record.CreatedAt = project.CreatedAt
	record.UpdatedAt = project.UpdatedAt

	tx := s.db.Begin()
	if err := tx.Create(&record).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("create project: %w", err)
	}
	return tx.Commit().Error
}

func (s *SQLStorage) GetProject(userID, title string) (*model.Project, error) {
	var record ProjectRecord
	if err := s.db.Where("user_id = ? AND title = ?", userID, title).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return record.toModel()
}

func (s *SQLStorage) ListProjects(userID string) ([]*model.Project, error) {
	var records []ProjectRecord
	if err := s.db.Where("user_id = ?", userID).Order("updated_at desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	projects := make([]*model.Project, 0, len(records))
	for i := range records {
		project, err := records[i].toModel()
		if err != nil {
			logger.Errorf("Failed to decode project %q for user %s: %v", records[i].Title, userID, err)
			continue
		}
		projects = append(projects, project)
	}
	return projects, nil
}

func (s *SQLStorage) DeleteProject(userID, title string) error {
	// Unscoped: a soft-deleted row would still hold the unique (user, title) key
	result := s.db.Unscoped().Where("user_id = ? AND title = ?", userID, title).Delete(&ProjectRecord{})
	if result.Error != nil {
		return fmt.Errorf("delete project: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRecord) toModel() (*model.Project, error) {
	var chat []model.ChatTurn
	if r.ChatJSON != "" {
		if err := json.Unmarshal([]byte(r.ChatJSON), &chat); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}
	return &model.Project{
		UserID:    r.UserID,
		Title:     r.Title,
		Chat:      chat,
		Code:      r.Code,
		Style:     r.Style,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}
