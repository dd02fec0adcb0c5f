package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runFail(t *testing.T, err error) (int, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/actors", nil)

	Fail(c, err)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, c.IsAborted())
	return rec.Code, body
}

func TestFail_MapsErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unprocessable", Unprocessable(errors.New("name is required")), 422, "unprocessable"},
		{"not found", ErrNotFound, 404, "Resource Not Found"},
		{"wrapped not found", fmt.Errorf("lookup actor: %w", ErrNotFound), 404, "Resource Not Found"},
		{"bad request", ErrBadRequest, 400, "bad request"},
		{"method not allowed", ErrMethodNotAllowed, 405, "method not allowed"},
		{"auth", NewAuthError(AuthCodeUnauthorized, "Permission not found.", http.StatusForbidden), 401, "Permission not found."},
		{"unknown", errors.New("connection refused"), 500, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := runFail(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.False(t, body.Success)
			assert.Equal(t, tt.status, body.Error)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestAppError_Is(t *testing.T) {
	err := Unprocessable(errors.New("bad json"))
	assert.ErrorIs(t, err, ErrUnprocessable)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "bad json")
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")
	logger.Debug("hello", "k", "v")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "v", entry["k"])

	buf.Reset()
	NewLogger(&buf, "error", "text").Info("dropped")
	assert.Empty(t, buf.String())
}
