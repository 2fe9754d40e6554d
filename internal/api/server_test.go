// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ManuGH/tvbroker/internal/broker"
	"github.com/ManuGH/tvbroker/internal/transport"
	"github.com/ManuGH/tvbroker/internal/watchlog"
)

func newTestServer(t *testing.T, opts Options) (*Server, *broker.Broker, *transport.FakeConnector) {
	t.Helper()
	conn := transport.NewFakeConnector()
	b := broker.New(broker.Options{Connector: conn})
	t.Cleanup(b.Shutdown)
	b.SetProviders([]transport.ProviderDescriptor{
		{ID: "hdmi1", Name: "Living Room HDMI", Kind: "hdmi"},
		{ID: "tuner0", Name: "Tuner 0", Kind: "tuner"},
	})
	return NewServer(b, nil, "test", opts), b, conn
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReadiness(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	h := s.Router()

	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	s.SetReady(false)
	rec = doRequest(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	rec := doRequest(t, s.Router(), http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "test", got.Version)
	require.Equal(t, 2, got.Providers)
	require.Equal(t, 0, got.Sessions)
}

func TestProvidersEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	rec := doRequest(t, s.Router(), http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []broker.ProviderRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	require.Equal(t, "hdmi1", got[0].ID)
	require.Equal(t, broker.BindingUnbound, got[0].Binding)
}

func TestDumpEndpoint(t *testing.T) {
	s, b, _ := newTestServer(t, Options{})
	client := transport.NewFakeClient("a")
	require.NoError(t, b.CreateSession("hdmi1", client, 1, 0, broker.Identity("a")))

	rec := doRequest(t, s.Router(), http.MethodGet, "/api/dump", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap broker.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Sessions, 1)
	require.Len(t, snap.Clients, 1)
}

func TestForceReleaseEndpoint(t *testing.T) {
	s, b, _ := newTestServer(t, Options{})
	client := transport.NewFakeClient("a")
	require.NoError(t, b.CreateSession("hdmi1", client, 1, 0, broker.Identity("a")))

	var token string
	require.Eventually(t, func() bool {
		sessions := b.Sessions()
		if len(sessions) == 1 && sessions[0].Phase == broker.SessionActive {
			token = sessions[0].Token
			return true
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	h := s.Router()
	rec := doRequest(t, h, http.MethodPost, "/api/sessions/"+token+"/release", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Releasing again maps ErrSessionNotFound to 404.
	rec = doRequest(t, h, http.MethodPost, "/api/sessions/"+token+"/release", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSetCurrentUser(t *testing.T) {
	s, b, _ := newTestServer(t, Options{})
	h := s.Router()

	rec := doRequest(t, h, http.MethodPost, "/api/users/current", `{"user_id": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, b.CurrentUser())

	rec = doRequest(t, h, http.MethodPost, "/api/users/current", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/users/3", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, "/api/users/nope", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenAuth(t *testing.T) {
	s, _, _ := newTestServer(t, Options{APIToken: "secret"})
	h := s.Router()

	rec := doRequest(t, h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-API-Token", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Health probes stay open.
	rec = doRequest(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestWatchLogEndpoint(t *testing.T) {
	conn := transport.NewFakeConnector()
	b := broker.New(broker.Options{Connector: conn})
	t.Cleanup(b.Shutdown)

	store := watchlog.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), &watchlog.Entry{
		ID: "e1", ProviderID: "hdmi1", Channel: "7", StartAt: time.Now(),
	}))

	s := NewServer(b, store, "test", Options{})
	rec := doRequest(t, s.Router(), http.MethodGet, "/api/watchlog", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []*watchlog.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.Equal(t, "7", entries[0].Channel)

	rec = doRequest(t, s.Router(), http.MethodGet, "/api/watchlog?limit=bogus", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWatchLogDisabled(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	rec := doRequest(t, s.Router(), http.MethodGet, "/api/watchlog", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSecurityHeadersApplied(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	rec := doRequest(t, s.Router(), http.MethodGet, "/healthz", "")
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestRequestIDPropagated(t *testing.T) {
	s, _, _ := newTestServer(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}

func TestCORSPreflight(t *testing.T) {
	s, _, _ := newTestServer(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})
	h := s.Router()

	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
