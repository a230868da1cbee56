package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeErrorStatus(t *testing.T, err error) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	WriteError(rec, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestWriteErrorValidation(t *testing.T) {
	status, body := writeErrorStatus(t, &ValidationError{
		Errors:   []string{"debits and credits differ by 100.00"},
		Warnings: []string{"large transaction of 600000.00"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation failed", body["error"])
	assert.Len(t, body["details"], 1)
	assert.Len(t, body["warnings"], 1)
}

func TestWriteErrorConflicts(t *testing.T) {
	status, body := writeErrorStatus(t, &DependencyError{Reason: "account has children"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "account has children", body["error"])

	status, _ = writeErrorStatus(t, &CycleError{AccountID: "a", ParentID: "b"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = writeErrorStatus(t, &StateError{Reason: "transaction already reversed"})
	assert.Equal(t, http.StatusConflict, status)
}

func TestWriteErrorNotFound(t *testing.T) {
	status, _ := writeErrorStatus(t, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = writeErrorStatus(t, fmt.Errorf("load account: %w", ErrNotFound))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWriteErrorRemote(t *testing.T) {
	status, body := writeErrorStatus(t, &RemoteError{Op: "put", Err: errors.New("connection refused")})
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "remote store unavailable", body["error"])
}

func TestWriteErrorFallback(t *testing.T) {
	status, _ := writeErrorStatus(t, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(NewValidationError("bad")))
	assert.True(t, IsClientError(&DependencyError{Reason: "children"}))
	assert.True(t, IsClientError(&CycleError{}))
	assert.True(t, IsClientError(&StateError{Reason: "closed"}))
	assert.True(t, IsClientError(ErrNotFound))
	assert.False(t, IsClientError(&RemoteError{Op: "get", Err: errors.New("down")}))
	assert.False(t, IsClientError(errors.New("boom")))
}
