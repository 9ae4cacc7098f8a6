package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"weboptimizer-backend/internal/generation"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/parser"
	"weboptimizer-backend/pkg/logger"
)

var (
	ErrEmptyMessage     = errors.New("message is empty")
	ErrRequestInFlight  = errors.New("a request is already in flight")
	ErrTurnNotFound     = errors.New("turn not found")
	ErrNotAssistantTurn = errors.New("turn is not an assistant reply")
)

// ReplacePolicy decides whether Apply overwrites the buffer's code.
type ReplacePolicy string

const (
	// ReplaceWhenFound replaces the code only when the reply carried an App
	// component.
	ReplaceWhenFound ReplacePolicy = "found"
	// ReplaceWhenAppGuard replaces the code whenever the current code mentions
	// "App", even with an empty fragment.
	ReplaceWhenAppGuard ReplacePolicy = "app-guard"
)

const titleLength = 30

// Snapshot is a copy of a conversation's state.
type Snapshot struct {
	Turns    []model.ChatTurn
	InFlight bool
	Buffer   model.Buffer
}

type ConversationOptions struct {
	Greeting    string
	DefaultCode string
	Parser      parser.Func
	Policy      ReplacePolicy
}

// Conversation is one chat with the assistant and the buffer it edits. At
// most one generation request is outstanding at a time.
type Conversation struct {
	id        string
	userID    string
	generator generation.Generator
	parse     parser.Func
	policy    ReplacePolicy
	hub       *PreviewHub
	createdAt time.Time

	mu        sync.Mutex
	title     string
	turns     []model.ChatTurn
	inFlight  bool
	buffer    model.Buffer
	updatedAt time.Time
}

// NewConversation starts a conversation with the greeting turn and the
// default code.
func NewConversation(id, userID string, gen generation.Generator, opts ConversationOptions) *Conversation {
	c := newConversation(id, userID, gen, opts, model.Buffer{Code: opts.DefaultCode})
	c.appendTurn(model.RoleAssistant, opts.Greeting)
	return c
}

// RestoreConversation starts a conversation from a saved project.
func RestoreConversation(id, userID string, gen generation.Generator, opts ConversationOptions, project *model.Project) *Conversation {
	c := newConversation(id, userID, gen, opts, model.Buffer{Code: project.Code, Style: project.Style})
	c.title = project.Title
	c.turns = append(c.turns, project.Chat...)
	return c
}

func newConversation(id, userID string, gen generation.Generator, opts ConversationOptions, buffer model.Buffer) *Conversation {
	parse := opts.Parser
	if parse == nil {
		parse = parser.Parse
	}
	policy := opts.Policy
	if policy == "" {
		policy = ReplaceWhenFound
	}

	now := time.Now()
	return &Conversation{
		id:        id,
		userID:    userID,
		generator: gen,
		parse:     parse,
		policy:    policy,
		hub:       NewPreviewHub(buffer.Files()),
		createdAt: now,
		title:     "New chat " + now.Format("2006-01-02 15:04"),
		turns:     make([]model.ChatTurn, 0),
		buffer:    buffer,
		updatedAt: now,
	}
}

func (c *Conversation) ID() string {
	return c.id
}

func (c *Conversation) UserID() string {
	return c.userID
}

func (c *Conversation) Preview() *PreviewHub {
	return c.hub
}

// Submit sends text to the generator and records the reply. A failed request
// still yields exactly one assistant turn carrying the failure message. The
// generation call outlives ctx cancellation; only ctx values are carried.
func (c *Conversation) Submit(ctx context.Context, text string) (model.SubmitResponse, error) {
	if strings.TrimSpace(text) == "" {
		return model.SubmitResponse{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return model.SubmitResponse{}, ErrRequestInFlight
	}
	c.inFlight = true
	c.appendTurn(model.RoleUser, text)
	if len(c.userTurns()) == 1 && strings.HasPrefix(c.title, "New chat") {
		c.title = truncateString(text, titleLength)
	}
	body := text
	if c.buffer.ReferencedCode != "" {
		body = text + ": " + c.buffer.ReferencedCode
	}
	c.mu.Unlock()

	log := logger.WithFields(logrus.Fields{"session_id": c.id, "user_id": c.userID})
	log.Debugf("Submitting message (%d bytes)", len(body))

	start := time.Now()
	output, err := c.generator.Generate(context.WithoutCancel(ctx), body)

	content, failure := output, ""
	if err != nil {
		failure, content = generation.Classify(err)
		log.Warnf("Generation failed (%s) after %s: %v", failure, time.Since(start), err)
	} else {
		log.Infof("Generation completed in %s", time.Since(start))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	index := c.appendTurn(model.RoleAssistant, content)
	c.inFlight = false
	c.buffer.ReferencedCode = ""

	return model.SubmitResponse{Turn: c.view(index), Failure: failure}, nil
}

// Apply copies the fragments of an assistant turn into the buffer. The style
// and the referenced code are always replaced; the code follows the policy.
func (c *Conversation) Apply(index int) (model.ApplyResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.turns) {
		return model.ApplyResponse{}, fmt.Errorf("%w: %d", ErrTurnNotFound, index)
	}
	turn := c.turns[index]
	if turn.Role != model.RoleAssistant {
		return model.ApplyResponse{}, fmt.Errorf("%w: %d", ErrNotAssistantTurn, index)
	}

	reply := c.parse(turn.Content)
	replaced := c.shouldReplace(reply)
	if replaced {
		c.buffer.Code = reply.App.Text
	}
	c.buffer.Style = reply.Style.Text
	c.buffer.ReferencedCode = reply.Code.Text
	c.updatedAt = time.Now()
	c.hub.Publish(c.buffer.Files())

	logger.WithFields(logrus.Fields{
		"session_id": c.id,
		"turn":       index,
		"replaced":   replaced,
		"missing":    reply.Missing(),
	}).Info("Applied reply to buffer")

	return model.ApplyResponse{Buffer: c.buffer, CodeReplaced: replaced}, nil
}

func (c *Conversation) shouldReplace(reply parser.Reply) bool {
	if c.policy == ReplaceWhenAppGuard {
		return strings.Contains(c.buffer.Code, "App")
	}
	return reply.App.Found
}

// EditBuffer stores code edited in the playground. Nil leaves a file as is.
func (c *Conversation) EditBuffer(code, style *string) model.Buffer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if code != nil {
		c.buffer.Code = *code
	}
	if style != nil {
		c.buffer.Style = *style
	}
	c.updatedAt = time.Now()
	c.hub.Publish(c.buffer.Files())
	return c.buffer
}

func (c *Conversation) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	turns := make([]model.ChatTurn, len(c.turns))
	copy(turns, c.turns)
	return Snapshot{Turns: turns, InFlight: c.inFlight, Buffer: c.buffer}
}

func (c *Conversation) Summary() model.SessionResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary()
}

func (c *Conversation) Detail() model.SessionDetail {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]model.TurnView, len(c.turns))
	for i := range c.turns {
		views[i] = c.view(i)
	}
	return model.SessionDetail{
		SessionResponse: c.summary(),
		Turns:           views,
		Buffer:          c.buffer,
	}
}

// idleSince reports the last change, and false while a request is running.
func (c *Conversation) idleSince() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt, !c.inFlight
}

func (c *Conversation) summary() model.SessionResponse {
	return model.SessionResponse{
		SessionID: c.id,
		Title:     c.title,
		TurnCount: len(c.turns),
		InFlight:  c.inFlight,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
}

func (c *Conversation) view(index int) model.TurnView {
	turn := c.turns[index]
	v := model.TurnView{
		Index:     index,
		ID:        turn.ID,
		Role:      turn.Role,
		Content:   turn.Content,
		Display:   turn.Content,
		Timestamp: turn.Timestamp,
	}
	if turn.Role == model.RoleAssistant {
		reply := c.parse(turn.Content)
		v.Display = reply.Explanation.Text
		v.Appliable = reply.App.Found
		v.Missing = reply.Missing()
	}
	return v
}

func (c *Conversation) appendTurn(role model.Role, content string) int {
	now := time.Now()
	c.turns = append(c.turns, model.ChatTurn{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	c.updatedAt = now
	return len(c.turns) - 1
}

func (c *Conversation) userTurns() []model.ChatTurn {
	var turns []model.ChatTurn
	for _, t := range c.turns {
		if t.Role == model.RoleUser {
			turns = append(turns, t)
		}
	}
	return turns
}

func truncateString(str string, maxLen int) string {
	runes := []rune(str)
	if len(runes) <= maxLen {
		return str
	}
	return string(runes[:maxLen]) + "..."
}
