// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/tvbroker/internal/broker"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusResponse struct {
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	CurrentUser int    `json:"current_user"`
	Providers   int    `json:"providers"`
	Sessions    int    `json:"sessions"`
	Clients     int    `json:"clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.broker.Dump()
	writeJSON(w, http.StatusOK, statusResponse{
		Version:     s.version,
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		CurrentUser: snap.CurrentUser,
		Providers:   len(snap.Providers),
		Sessions:    len(snap.Sessions),
		Clients:     len(snap.Clients),
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Providers())
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Sessions())
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Clients())
}

// handleForceRelease tears a session down under the system identity. Meant
// for operators cleaning up after a stuck client.
func (s *Server) handleForceRelease(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := s.broker.ReleaseSession(token, broker.SystemIdentity); err != nil {
		writeBrokerError(w, err)
		return
	}
	s.logger.Info().Str("event", "api.force_release").Str("session_token", token).Msg("session released via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func (s *Server) handleDump(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.broker.Dump())
}

type setUserRequest struct {
	UserID *int `json:"user_id"`
}

func (s *Server) handleSetCurrentUser(w http.ResponseWriter, r *http.Request) {
	var req setUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.UserID == nil {
		writeError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	s.broker.SetCurrentUser(*req.UserID)
	s.logger.Info().Str("event", "api.user_switch").Int("user_id", *req.UserID).Msg("active user set via API")
	writeJSON(w, http.StatusOK, map[string]int{"current_user": s.broker.CurrentUser()})
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("user id must be an integer"))
		return
	}
	s.broker.RemoveUser(userID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleWatchLog(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		writeError(w, http.StatusNotFound, errors.New("watch log disabled"))
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := s.watch.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
