package model

import "time"

type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// ChatTurn is one message of a transcript. Turns are appended, never edited.
type ChatTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Buffer is what the playground currently shows, plus the snippet that will
// be attached to the next outgoing message.
type Buffer struct {
	Code           string `json:"code"`
	Style          string `json:"style"`
	ReferencedCode string `json:"referenced_code"`
}

// Preview file names understood by the playground.
const (
	PreviewCodeFile  = "/App.js"
	PreviewStyleFile = "/App.css"
)

func (b Buffer) Files() PreviewFiles {
	return PreviewFiles{
		PreviewCodeFile:  {Code: b.Code, Active: true},
		PreviewStyleFile: {Code: b.Style, Active: true},
	}
}

type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a saved transcript and buffer, unique per user and title.
type Project struct {
	UserID    string     `json:"user_id"`
	Title     string     `json:"title"`
	Chat      []ChatTurn `json:"chat"`
	Code      string     `json:"code"`
	Style     string     `json:"style"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (p *Project) Summary() ProjectSummary {
	return ProjectSummary{
		Title:     p.Title,
		TurnCount: len(p.Chat),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
