package storage

import (
	"sort"
	"sync"

	"weboptimizer-backend/internal/model"
)

type projectKey struct {
	userID string
	title  string
}

type MemoryStorage struct {
	users    map[string]*model.User
	projects map[projectKey]*model.Project
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:    make(map[string]*model.User),
		projects: make(map[projectKey]*model.Project),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) Ping() error {
	return nil
}

func (m *MemoryStorage) CreateUser(user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[user.ID]; exists {
		return ErrUserExists
	}
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *MemoryStorage) GetUser(userID string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	u := *user
	return &u, nil
}

func (m *MemoryStorage) CreateProject(project *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := projectKey{project.UserID, project.Title}
	if _, exists := m.projects[key]; exists {
		return ErrProjectExists
	}
	m.projects[key] = cloneProject(project)
	return nil
}

func (m *MemoryStorage) GetProject(userID, title string) (*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	project, exists := m.projects[projectKey{userID, title}]
	if !exists {
		return nil, ErrProjectNotFound
	}
	return cloneProject(project), nil
}

func (m *MemoryStorage) ListProjects(userID string) ([]*model.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	projects := make([]*model.Project, 0)
	for key, project := range m.projects {
		if key.userID == userID {
			projects = append(projects, cloneProject(project))
		}
	}
	sortProjects(projects)
	return projects, nil
}

func (m *MemoryStorage) DeleteProject(userID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := projectKey{userID, title}
	if _, exists := m.projects[key]; !exists {
		return ErrProjectNotFound
	}
	delete(m.projects, key)
	return nil
}

func cloneProject(p *model.Project) *model.Project {
	c := *p
	c.Chat = append([]model.ChatTurn(nil), p.Chat...)
	return &c
}

// most recently updated first
func sortProjects(projects []*model.Project) {
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].UpdatedAt.After(projects[j].UpdatedAt)
	})
}
