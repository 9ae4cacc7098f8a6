package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weboptimizer-backend/internal/auth"
	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/internal/generation"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/service"
	"weboptimizer-backend/internal/storage"
)

const reply = "import React from 'react';\nfunction App(){return <p>hi</p>}\nexport default App;\n" +
	"```css\np { color: red; }\n```\nResponse: A paragraph."

type stubGenerator struct {
	mu     sync.Mutex
	output string
	err    error
	block  chan struct{}
	called chan struct{}
}

func (s *stubGenerator) Generate(ctx context.Context, body string) (string, error) {
	if s.called != nil {
		s.called <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.output, s.err
}

type testServer struct {
	router *gin.Engine
	auth   *auth.Authenticator
	gen    *stubGenerator
}

func newTestServer(t *testing.T, authEnabled bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Conversation: config.ConversationConfig{
			Greeting:      config.DefaultGreeting,
			DefaultCode:   config.DefaultCode,
			ReplacePolicy: "found",
			Parser:        "structured",
		},
		Auth: config.AuthConfig{
			Enabled:       authEnabled,
			Secret:        "test-secret",
			AnonymousUser: "anonymous",
		},
	}

	store := storage.NewMemoryStorage()
	require.NoError(t, store.Init())

	gen := &stubGenerator{output: reply}
	chatService, err := service.NewChatService(cfg, store, gen)
	require.NoError(t, err)

	authenticator := auth.NewAuthenticator(cfg.Auth)
	return &testServer{
		router: SetupRouter(cfg, chatService, gen, authenticator),
		auth:   authenticator,
		gen:    gen,
	}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createSession(t *testing.T) model.SessionDetail {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sessions", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[model.SessionDetail](t, rec)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGenerateEndpoint(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/generate", `{"body":"make a paragraph"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.GenerateResponse{Output: reply}, decode[model.GenerateResponse](t, rec))

	rec = s.do(t, http.MethodPost, "/api/generate", `{"body":"  "}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode[model.GenerateResponse](t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/generate", `not json`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.gen.err = &generation.EndpointError{StatusCode: 502, Message: "model overloaded"}
	rec = s.do(t, http.MethodPost, "/api/generate", `{"body":"x"}`, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, model.GenerateResponse{Error: "model overloaded"}, decode[model.GenerateResponse](t, rec))

	s.gen.err = errors.New("boom")
	rec = s.do(t, http.MethodPost, "/api/generate", `{"body":"x"}`, "")
	assert.Equal(t, "boom", decode[model.GenerateResponse](t, rec).Error)
}

func TestGenerateEndpointEmptyOutput(t *testing.T) {
	s := newTestServer(t, false)
	s.gen.output = ""

	rec := s.do(t, http.MethodPost, "/api/generate", `{"body":"say nothing"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"output":""}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/generate", `{"body":" "}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"body is required"}`, rec.Body.String())
}

func TestGenerateEndpointFeedsHTTPClient(t *testing.T) {
	s := newTestServer(t, false)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	out, err := generation.NewHTTPClientWith(srv.URL+"/api/generate", srv.Client()).Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, reply, out)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	created := s.createSession(t)
	require.Len(t, created.Turns, 1)
	assert.Equal(t, config.DefaultGreeting, created.Turns[0].Display)
	assert.Equal(t, config.DefaultCode, created.Buffer.Code)

	base := "/api/sessions/" + created.SessionID

	rec := s.do(t, http.MethodPost, base+"/messages", `{"message":""}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/messages", `{"message":"make a paragraph"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	submitted := decode[model.SubmitResponse](t, rec)
	assert.Empty(t, submitted.Failure)
	assert.Equal(t, "A paragraph.", submitted.Turn.Display)
	assert.True(t, submitted.Turn.Appliable)

	rec = s.do(t, http.MethodPost, base+"/turns/1/apply", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/turns/9/apply", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(t, http.MethodPost, base+"/turns/x/apply", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, base+"/turns/2/apply", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	applied := decode[model.ApplyResponse](t, rec)
	assert.True(t, applied.CodeReplaced)
	assert.Equal(t, "p { color: red; }", applied.Buffer.Style)

	rec = s.do(t, http.MethodGet, base+"/preview", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decode[struct {
		Files model.PreviewFiles `json:"files"`
	}](t, rec)
	assert.Equal(t, "p { color: red; }", preview.Files[model.PreviewStyleFile].Code)
	assert.Equal(t, applied.Buffer.Code, preview.Files[model.PreviewCodeFile].Code)

	rec = s.do(t, http.MethodPut, base+"/buffer", `{"code":"edited"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"edited"`)

	rec = s.do(t, http.MethodGet, base, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[model.SessionDetail](t, rec)
	assert.Len(t, detail.Turns, 3)
	assert.Equal(t, "edited", detail.Buffer.Code)
	assert.Equal(t, "make a paragraph", detail.Title)

	rec = s.do(t, http.MethodGet, "/api/sessions", "", "")
	assert.Contains(t, rec.Body.String(), created.SessionID)

	rec = s.do(t, http.MethodDelete, base, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, base, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendMessageFailureStillAnswers(t *testing.T) {
	s := newTestServer(t, false)
	s.gen.err = &generation.TransportError{Err: errors.New("dial tcp: refused")}
	created := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/sessions/"+created.SessionID+"/messages", `{"message":"hi"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[model.SubmitResponse](t, rec)
	assert.Equal(t, generation.FailureTransport, resp.Failure)
	assert.Equal(t, generation.TransportFailureMessage, resp.Turn.Content)
}

func TestSendMessageConflictWhileInFlight(t *testing.T) {
	s := newTestServer(t, false)
	s.gen.block = make(chan struct{})
	s.gen.called = make(chan struct{}, 1)
	created := s.createSession(t)
	path := "/api/sessions/" + created.SessionID + "/messages"

	done := make(chan int, 1)
	go func() {
		done <- s.do(t, http.MethodPost, path, `{"message":"first"}`, "").Code
	}()
	<-s.gen.called

	rec := s.do(t, http.MethodPost, path, `{"message":"second"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(s.gen.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestProjects(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t)

	rec := s.do(t, http.MethodPost, "/api/projects", `{"title":"missing session"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"session_id":"` + created.SessionID + `","title":"my app"}`
	rec = s.do(t, http.MethodPost, "/api/projects", body, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "my app", decode[model.ProjectSummary](t, rec).Title)

	rec = s.do(t, http.MethodPost, "/api/projects", body, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	long := `{"session_id":"` + created.SessionID + `","title":"` + strings.Repeat("x", service.MaxTitleBytes+1) + `"}`
	rec = s.do(t, http.MethodPost, "/api/projects", long, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/projects", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"my app"`)

	escaped := "/api/projects/" + url.PathEscape("my app")
	rec = s.do(t, http.MethodGet, escaped, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.DefaultCode, decode[model.Project](t, rec).Code)

	rec = s.do(t, http.MethodPost, escaped+"/open", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	opened := decode[model.SessionDetail](t, rec)
	assert.NotEqual(t, created.SessionID, opened.SessionID)
	assert.Equal(t, "my app", opened.Title)

	rec = s.do(t, http.MethodDelete, escaped, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, escaped, "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/sessions", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := s.auth.Issue("user_1", time.Hour)
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/api/auth/sign-in", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/sign-up", `{"first_name":"Ada"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	signed := decode[model.SignInResponse](t, rec)
	assert.True(t, signed.Created)
	assert.Equal(t, "user_1", signed.User.ID)

	rec = s.do(t, http.MethodPost, "/api/auth/sign-up", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.SignInResponse](t, rec).Created)

	rec = s.do(t, http.MethodPost, "/api/auth/sign-in", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decode[model.SignInResponse](t, rec).User.FirstName)

	// sessions are private to their owner
	rec = s.do(t, http.MethodPost, "/api/sessions", "", token)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[model.SessionDetail](t, rec).SessionID

	other, err := s.auth.Issue("user_2", time.Hour)
	require.NoError(t, err)
	rec = s.do(t, http.MethodGet, "/api/sessions/"+id, "", other)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamPreview(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/sessions/"+created.SessionID+"/preview/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := events.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.Contains(t, readData(), "Start creating!")

	rec := s.do(t, http.MethodPut, "/api/sessions/"+created.SessionID+"/buffer", `{"code":"streamed"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, readData(), `"code":"streamed"`)
}

func TestPreviewSocket(t *testing.T) {
	s := newTestServer(t, false)
	created := s.createSession(t)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + created.SessionID + "/preview/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg struct {
		Files model.PreviewFiles `json:"files"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, config.DefaultCode, msg.Files[model.PreviewCodeFile].Code)

	rec := s.do(t, http.MethodPut, "/api/sessions/"+created.SessionID+"/buffer", `{"style":"h1{}"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "h1{}", msg.Files[model.PreviewStyleFile].Code)
}

func TestPreviewSocketUnknownSession(t *testing.T) {
	s := newTestServer(t, false)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/nope/preview/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
