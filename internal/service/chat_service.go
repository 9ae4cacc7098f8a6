package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/internal/generation"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/parser"
	"weboptimizer-backend/internal/storage"
	"weboptimizer-backend/pkg/logger"
)

// MaxTitleBytes keeps an encoded project title within a single file name.
const MaxTitleBytes = 180

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyTitle      = errors.New("project title is empty")
	ErrTitleTooLong    = fmt.Errorf("project title is longer than %d bytes", MaxTitleBytes)
)

// ChatService owns the live conversations and saves them as projects.
type ChatService struct {
	storage   storage.Storage
	generator generation.Generator
	options   ConversationOptions
	config    config.SessionConfig
	backup    time.Duration

	mu       sync.RWMutex
	sessions map[string]*Conversation

	scheduler *cron.Cron
}

func NewChatService(cfg *config.Config, store storage.Storage, gen generation.Generator) (*ChatService, error) {
	parse, err := parser.ByName(cfg.Conversation.Parser)
	if err != nil {
		return nil, err
	}

	return &ChatService{
		storage:   store,
		generator: gen,
		options: ConversationOptions{
			Greeting:    cfg.Conversation.Greeting,
			DefaultCode: cfg.Conversation.DefaultCode,
			Parser:      parse,
			Policy:      ReplacePolicy(cfg.Conversation.ReplacePolicy),
		},
		config:    cfg.Session,
		backup:    cfg.Storage.BackupInterval,
		sessions:  make(map[string]*Conversation),
		scheduler: cron.New(),
	}, nil
}

// Start schedules session expiry and storage backups.
func (s *ChatService) Start() error {
	if s.config.TTL > 0 && s.config.CleanupInterval > 0 {
		if _, err := s.scheduler.AddFunc(every(s.config.CleanupInterval), s.cleanupOldSessions); err != nil {
			return fmt.Errorf("failed to schedule session cleanup: %w", err)
		}
	}
	if s.backup > 0 {
		if _, err := s.scheduler.AddFunc(every(s.backup), s.backupStorage); err != nil {
			return fmt.Errorf("failed to schedule storage backup: %w", err)
		}
	}
	s.scheduler.Start()
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *ChatService) Stop(ctx context.Context) {
	done := s.scheduler.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Warn("Scheduler jobs still running at shutdown")
	}
	s.ClosePreviews()
}

// ClosePreviews ends every open preview subscription.
func (s *ChatService) ClosePreviews() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.sessions {
		conv.Preview().Close()
	}
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}

func (s *ChatService) CreateSession(userID string) *Conversation {
	conv := NewConversation(uuid.New().String(), userID, s.generator, s.options)
	s.add(conv)
	logger.WithFields(logrus.Fields{"session_id": conv.ID(), "user_id": userID}).Info("Session created")
	return conv
}

// GetSession returns the session only to the user who owns it.
func (s *ChatService) GetSession(userID, sessionID string) (*Conversation, error) {
	s.mu.RLock()
	conv, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok || conv.UserID() != userID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return conv, nil
}

// ListSessions returns the user's sessions, most recently updated first.
func (s *ChatService) ListSessions(userID string) []model.SessionResponse {
	s.mu.RLock()
	list := make([]model.SessionResponse, 0)
	for _, conv := range s.sessions {
		if conv.UserID() == userID {
			list = append(list, conv.Summary())
		}
	}
	s.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list
}

func (s *ChatService) DeleteSession(userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.sessions[sessionID]
	if !ok || conv.UserID() != userID {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(s.sessions, sessionID)
	conv.Preview().Close()
	return nil
}

// SaveProject stores a session's transcript and buffer under title. An
// existing project with the same title is left untouched.
func (s *ChatService) SaveProject(userID, sessionID, title string) (*model.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if len(title) > MaxTitleBytes {
		return nil, ErrTitleTooLong
	}

	conv, err := s.GetSession(userID, sessionID)
	if err != nil {
		return nil, err
	}

	snap := conv.Snapshot()
	now := time.Now()
	project := &model.Project{
		UserID:    userID,
		Title:     title,
		Chat:      snap.Turns,
		Code:      snap.Buffer.Code,
		Style:     snap.Buffer.Style,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.CreateProject(project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	logger.WithFields(logrus.Fields{"session_id": sessionID, "user_id": userID, "title": title}).Info("Project saved")
	return project, nil
}

// OpenProject starts a new session from a saved project.
func (s *ChatService) OpenProject(userID, title string) (*Conversation, error) {
	project, err := s.storage.GetProject(userID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}

	conv := RestoreConversation(uuid.New().String(), userID, s.generator, s.options, project)
	s.add(conv)
	return conv, nil
}

func (s *ChatService) GetProject(userID, title string) (*model.Project, error) {
	project, err := s.storage.GetProject(userID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (s *ChatService) ListProjects(userID string) ([]model.ProjectSummary, error) {
	projects, err := s.storage.ListProjects(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	summaries := make([]model.ProjectSummary, len(projects))
	for i, p := range projects {
		summaries[i] = p.Summary()
	}
	return summaries, nil
}

func (s *ChatService) DeleteProject(userID, title string) error {
	if err := s.storage.DeleteProject(userID, title); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// RegisterUser records the caller. A user that already exists is returned
// unchanged with created=false.
func (s *ChatService) RegisterUser(user *model.User) (*model.User, bool, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	err := s.storage.CreateUser(user)
	if errors.Is(err, storage.ErrUserExists) {
		existing, getErr := s.storage.GetUser(user.ID)
		if getErr != nil {
			return nil, false, fmt.Errorf("failed to get user: %w", getErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
	return user, true, nil
}

func (s *ChatService) GetUser(userID string) (*model.User, error) {
	user, err := s.storage.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetStorage returns the storage instance shared with the handlers.
func (s *ChatService) GetStorage() storage.Storage {
	return s.storage
}

func (s *ChatService) add(conv *Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[conv.ID()] = conv
}

func (s *ChatService) cleanupOldSessions() {
	cutoff := time.Now().Add(-s.config.TTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conv := range s.sessions {
		updated, idle := conv.idleSince()
		if !idle || !updated.Before(cutoff) {
			continue
		}
		delete(s.sessions, id)
		conv.Preview().Close()
		logger.Infof("Cleaned up expired session: %s", id)
	}
}

func (s *ChatService) backupStorage() {
	if err := s.storage.Backup(); err != nil {
		logger.Errorf("Storage backup failed: %v", err)
	}
}
