package model

import "time"

// GenerateResponse is the reply of the generation endpoint: Output on
// success, Error otherwise. An empty output is still sent.
type GenerateResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// TurnView is a chat turn as the client renders it. Assistant turns show the
// parsed explanation instead of the raw reply.
type TurnView struct {
	Index     int       `json:"index"`
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Display   string    `json:"display"`
	Appliable bool      `json:"appliable"`
	Missing   []string  `json:"missing,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	TurnCount int       `json:"turn_count"`
	InFlight  bool      `json:"in_flight"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionDetail struct {
	SessionResponse
	Turns  []TurnView `json:"turns"`
	Buffer Buffer     `json:"buffer"`
}

type SubmitResponse struct {
	Turn    TurnView `json:"turn"`
	Failure string   `json:"failure,omitempty"` // transport, endpoint
}

type ApplyResponse struct {
	Buffer       Buffer `json:"buffer"`
	CodeReplaced bool   `json:"code_replaced"`
}

// PreviewFile mirrors one entry of the playground's files object.
type PreviewFile struct {
	Code   string `json:"code"`
	Active bool   `json:"active"`
}

type PreviewFiles map[string]PreviewFile

type ProjectSummary struct {
	Title     string    `json:"title"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SignInResponse struct {
	User    *User `json:"user"`
	Created bool  `json:"created"`
}
