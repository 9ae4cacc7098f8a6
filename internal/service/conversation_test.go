package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weboptimizer-backend/internal/config"
	"weboptimizer-backend/internal/generation"
	"weboptimizer-backend/internal/model"
	"weboptimizer-backend/internal/parser"
)

const reply = "import React from 'react';\nfunction App(){return <p>hi</p>}\nexport default App;\n" +
	"```css\np { color: red; }\n```\nResponse: A paragraph."

type fakeGenerator struct {
	mu     sync.Mutex
	bodies []string
	output string
	err    error
	block  chan struct{}
	called chan struct{}
}

func (f *fakeGenerator) Generate(ctx context.Context, body string) (string, error) {
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	if f.called != nil {
		f.called <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.output, f.err
}

// slowGenerator answers after delay unless its context ends first.
type slowGenerator struct {
	delay  time.Duration
	output string
}

func (g *slowGenerator) Generate(ctx context.Context, body string) (string, error) {
	select {
	case <-time.After(g.delay):
		return g.output, nil
	case <-ctx.Done():
		return "", &generation.TransportError{Err: ctx.Err()}
	}
}

func (f *fakeGenerator) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

func newTestConversation(gen generation.Generator, policy ReplacePolicy) *Conversation {
	return NewConversation("s1", "u1", gen, ConversationOptions{
		Greeting:    config.DefaultGreeting,
		DefaultCode: config.DefaultCode,
		Parser:      parser.Parse,
		Policy:      policy,
	})
}

func TestNewConversationSeedsGreeting(t *testing.T) {
	conv := newTestConversation(&fakeGenerator{}, ReplaceWhenFound)

	snap := conv.Snapshot()
	require.Len(t, snap.Turns, 1)
	assert.Equal(t, model.RoleAssistant, snap.Turns[0].Role)
	assert.Equal(t, config.DefaultGreeting, snap.Turns[0].Content)
	assert.False(t, snap.InFlight)
	assert.Equal(t, config.DefaultCode, snap.Buffer.Code)
	assert.Empty(t, snap.Buffer.Style)

	detail := conv.Detail()
	assert.Equal(t, config.DefaultGreeting, detail.Turns[0].Display)
	assert.False(t, detail.Turns[0].Appliable)
}

func TestSubmitSuccess(t *testing.T) {
	gen := &fakeGenerator{output: reply}
	conv := newTestConversation(gen, ReplaceWhenFound)

	resp, err := conv.Submit(context.Background(), "make a paragraph")
	require.NoError(t, err)

	assert.Empty(t, resp.Failure)
	assert.Equal(t, 2, resp.Turn.Index)
	assert.Equal(t, model.RoleAssistant, resp.Turn.Role)
	assert.Equal(t, reply, resp.Turn.Content)
	assert.Equal(t, "A paragraph.", resp.Turn.Display)
	assert.True(t, resp.Turn.Appliable)

	snap := conv.Snapshot()
	require.Len(t, snap.Turns, 3)
	assert.Equal(t, model.RoleUser, snap.Turns[1].Role)
	assert.Equal(t, "make a paragraph", snap.Turns[1].Content)
	assert.False(t, snap.InFlight)
	assert.Equal(t, []string{"make a paragraph"}, gen.calls())
	assert.Equal(t, "make a paragraph", conv.Summary().Title)
}

func TestSubmitSurvivesCallerCancellation(t *testing.T) {
	conv := newTestConversation(&slowGenerator{delay: 300 * time.Millisecond, output: reply}, ReplaceWhenFound)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	resp, err := conv.Submit(ctx, "make a paragraph")
	require.NoError(t, err)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Empty(t, resp.Failure)
	assert.Equal(t, reply, resp.Turn.Content)
	assert.True(t, resp.Turn.Appliable)
	assert.False(t, conv.Snapshot().InFlight)
}

func TestSubmitRejectsEmpty(t *testing.T) {
	gen := &fakeGenerator{output: reply}
	conv := newTestConversation(gen, ReplaceWhenFound)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := conv.Submit(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Len(t, conv.Snapshot().Turns, 1)
	assert.Empty(t, gen.calls())
}

func TestSubmitFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		failure string
		content string
	}{
		{
			name:    "transport",
			err:     &generation.TransportError{Err: errors.New("connection refused")},
			failure: generation.FailureTransport,
			content: generation.TransportFailureMessage,
		},
		{
			name:    "endpoint with message",
			err:     &generation.EndpointError{StatusCode: 500, Message: "model overloaded"},
			failure: generation.FailureEndpoint,
			content: "model overloaded",
		},
		{
			name:    "endpoint without message",
			err:     &generation.EndpointError{StatusCode: 500},
			failure: generation.FailureEndpoint,
			content: generation.EndpointFailureMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := newTestConversation(&fakeGenerator{err: tt.err}, ReplaceWhenFound)

			resp, err := conv.Submit(context.Background(), "hello")
			require.NoError(t, err)
			assert.Equal(t, tt.failure, resp.Failure)
			assert.Equal(t, tt.content, resp.Turn.Content)

			snap := conv.Snapshot()
			assert.Len(t, snap.Turns, 3)
			assert.False(t, snap.InFlight)
		})
	}
}

func TestSubmitWhileInFlight(t *testing.T) {
	gen := &fakeGenerator{output: reply, block: make(chan struct{}), called: make(chan struct{}, 1)}
	conv := newTestConversation(gen, ReplaceWhenFound)

	done := make(chan error, 1)
	go func() {
		_, err := conv.Submit(context.Background(), "first")
		done <- err
	}()
	<-gen.called

	assert.True(t, conv.Snapshot().InFlight)
	assert.True(t, conv.Summary().InFlight)

	_, err := conv.Submit(context.Background(), "second")
	assert.ErrorIs(t, err, ErrRequestInFlight)
	assert.Len(t, conv.Snapshot().Turns, 2)

	close(gen.block)
	require.NoError(t, <-done)

	snap := conv.Snapshot()
	assert.False(t, snap.InFlight)
	assert.Len(t, snap.Turns, 3)
	assert.Equal(t, []string{"first"}, gen.calls())
}

func TestApplyUpdatesBufferAndReferencesCode(t *testing.T) {
	gen := &fakeGenerator{output: reply}
	conv := newTestConversation(gen, ReplaceWhenFound)

	resp, err := conv.Submit(context.Background(), "make a paragraph")
	require.NoError(t, err)

	applied, err := conv.Apply(resp.Turn.Index)
	require.NoError(t, err)
	assert.True(t, applied.CodeReplaced)
	assert.Equal(t, "import React from 'react';\nfunction App(){return <p>hi</p>}\nexport default App;", applied.Buffer.Code)
	assert.Equal(t, "p { color: red; }", applied.Buffer.Style)
	assert.NotEmpty(t, applied.Buffer.ReferencedCode)

	_, err = conv.Submit(context.Background(), "make it blue")
	require.NoError(t, err)

	calls := gen.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "make it blue: "+applied.Buffer.ReferencedCode, calls[1])
	assert.Empty(t, conv.Snapshot().Buffer.ReferencedCode)
}

func TestReferenceClearedOnFailure(t *testing.T) {
	gen := &fakeGenerator{output: reply}
	conv := newTestConversation(gen, ReplaceWhenFound)

	resp, err := conv.Submit(context.Background(), "make a paragraph")
	require.NoError(t, err)
	_, err = conv.Apply(resp.Turn.Index)
	require.NoError(t, err)

	gen.err = &generation.TransportError{Err: context.DeadlineExceeded}
	_, err = conv.Submit(context.Background(), "again")
	require.NoError(t, err)

	assert.Empty(t, conv.Snapshot().Buffer.ReferencedCode)
}

func TestApplyErrors(t *testing.T) {
	conv := newTestConversation(&fakeGenerator{output: reply}, ReplaceWhenFound)
	_, err := conv.Submit(context.Background(), "hi")
	require.NoError(t, err)

	_, err = conv.Apply(-1)
	assert.ErrorIs(t, err, ErrTurnNotFound)
	_, err = conv.Apply(3)
	assert.ErrorIs(t, err, ErrTurnNotFound)
	_, err = conv.Apply(1)
	assert.ErrorIs(t, err, ErrNotAssistantTurn)
}

func TestApplyReplacePolicies(t *testing.T) {
	noApp := "Sorry, I can only help with React.\nResponse: Please ask about a component."

	t.Run("found keeps code without an App fragment", func(t *testing.T) {
		conv := newTestConversation(&fakeGenerator{output: noApp}, ReplaceWhenFound)
		resp, err := conv.Submit(context.Background(), "hi")
		require.NoError(t, err)

		applied, err := conv.Apply(resp.Turn.Index)
		require.NoError(t, err)
		assert.False(t, applied.CodeReplaced)
		assert.Equal(t, config.DefaultCode, applied.Buffer.Code)
	})

	t.Run("app-guard replaces code mentioning App", func(t *testing.T) {
		conv := newTestConversation(&fakeGenerator{output: noApp}, ReplaceWhenAppGuard)
		resp, err := conv.Submit(context.Background(), "hi")
		require.NoError(t, err)

		applied, err := conv.Apply(resp.Turn.Index)
		require.NoError(t, err)
		assert.True(t, applied.CodeReplaced)
		assert.Empty(t, applied.Buffer.Code)

		// the guard no longer matches an empty buffer
		applied, err = conv.Apply(resp.Turn.Index)
		require.NoError(t, err)
		assert.False(t, applied.CodeReplaced)
	})
}

func TestEditBufferPublishesPreview(t *testing.T) {
	conv := newTestConversation(&fakeGenerator{}, ReplaceWhenFound)
	updates, cancel := conv.Preview().Subscribe()
	defer cancel()

	initial := <-updates
	assert.Equal(t, config.DefaultCode, initial[model.PreviewCodeFile].Code)

	style := ".x { margin: 0; }"
	buf := conv.EditBuffer(nil, &style)
	assert.Equal(t, config.DefaultCode, buf.Code)
	assert.Equal(t, style, buf.Style)

	select {
	case files := <-updates:
		assert.Equal(t, style, files[model.PreviewStyleFile].Code)
		assert.True(t, files[model.PreviewStyleFile].Active)
	case <-time.After(time.Second):
		t.Fatal("no preview update")
	}
}

func TestRestoreConversation(t *testing.T) {
	project := &model.Project{
		UserID: "u1",
		Title:  "todo",
		Chat: []model.ChatTurn{
			{ID: "a", Role: model.RoleAssistant, Content: "Hi"},
			{ID: "b", Role: model.RoleUser, Content: "todo list"},
			{ID: "c", Role: model.RoleAssistant, Content: reply},
		},
		Code:  "code",
		Style: "style",
	}

	conv := RestoreConversation("s2", "u1", &fakeGenerator{}, ConversationOptions{}, project)

	detail := conv.Detail()
	assert.Equal(t, "todo", detail.Title)
	assert.Len(t, detail.Turns, 3)
	assert.True(t, detail.Turns[2].Appliable)
	assert.Equal(t, model.Buffer{Code: "code", Style: "style"}, detail.Buffer)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 30))
	assert.Equal(t, "héllo...", truncateString("héllo wörld", 5))
}
