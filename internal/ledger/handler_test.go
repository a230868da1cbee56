package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopbooks/shopbooks/internal/shared"
)

func newHandlerServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	svc, _, _ := newPostingFixture(t)
	handler := NewHandler(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), svc)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), adminActor)))
		})
	})
	r.Route("/transactions", handler.MountRoutes)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, svc
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandlerPostTransaction(t *testing.T) {
	server, svc := newHandlerServer(t)

	resp := postJSON(t, server.URL+"/transactions", saleInput(150.25))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "posted", body["status"])
	assert.Equal(t, "fy-2025", body["financialYearId"])

	assert.Equal(t, 150.25, balanceOf(t, svc, "cash"))
}

func TestHandlerPostUnbalancedRejected(t *testing.T) {
	server, _ := newHandlerServer(t)

	in := saleInput(150.25)
	in.Entries[1].Amount = 140.25
	resp := postJSON(t, server.URL+"/transactions", in)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "validation failed", body["error"])
	assert.NotEmpty(t, body["details"])
}

func TestHandlerValidatePreflight(t *testing.T) {
	server, _ := newHandlerServer(t)

	in := saleInput(150.25)
	in.Entries[1].Amount = 140.25
	resp := postJSON(t, server.URL+"/transactions/validate", in)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, false, body["valid"])
	assert.NotEmpty(t, body["errors"])
}

func TestHandlerGetMissingTransaction(t *testing.T) {
	server, _ := newHandlerServer(t)

	resp, err := http.Get(server.URL + "/transactions/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerReverseTwiceConflicts(t *testing.T) {
	server, svc := newHandlerServer(t)

	tx, err := svc.Post(context.Background(), saleInput(150.25), adminActor)
	require.NoError(t, err)

	resp := postJSON(t, server.URL+"/transactions/"+tx.ID+"/reverse", map[string]string{"reason": "entered twice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, server.URL+"/transactions/"+tx.ID+"/reverse", map[string]string{"reason": "again"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestHandlerReverseMalformedBodyRejected(t *testing.T) {
	server, svc := newHandlerServer(t)

	tx, err := svc.Post(context.Background(), saleInput(150.25), adminActor)
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/transactions/"+tx.ID+"/reverse", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	stored, err := svc.Get(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPosted, stored.Status)
}
