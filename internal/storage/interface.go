package storage

import (
	"weboptimizer-backend/internal/model"
)

// Storage keeps users and their saved projects. Projects are keyed by
// (user id, title); creating an existing key fails with ErrProjectExists.
type Storage interface {
	// users
	CreateUser(user *model.User) error
	GetUser(userID string) (*model.User, error)

	// projects
	CreateProject(project *model.Project) error
	GetProject(userID, title string) (*model.Project, error)
	ListProjects(userID string) ([]*model.Project, error)
	DeleteProject(userID, title string) error

	// lifecycle
	Init() error
	Close() error
	Backup() error
	Ping() error
}
