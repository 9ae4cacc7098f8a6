package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	require.NoError(t, w.WriteJSON("preview", map[string]string{"code": "x"}))
	require.NoError(t, w.Comment("ping"))
	require.NoError(t, w.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "event: preview\ndata: {\"code\":\"x\"}\n\n"+
		": ping\n\n"+
		"event: close\ndata: [DONE]\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestSSEWriterSplitsLines(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	require.NoError(t, w.Write("", "a\nb"))
	assert.Equal(t, "data: a\ndata: b\n\n", rec.Body.String())
}
