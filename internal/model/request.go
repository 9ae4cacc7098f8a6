package model

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	Body string `json:"body"`
}

// SubmitRequest carries one chat message. Empty text is rejected by the
// conversation, not by binding, so the same rule holds for every caller.
type SubmitRequest struct {
	Message string `json:"message"`
}

type EditBufferRequest struct {
	Code  *string `json:"code"`
	Style *string `json:"style"`
}

type SaveProjectRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Title     string `json:"title" binding:"required"`
}

type SignUpRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ImageURL  string `json:"image_url"`
}
