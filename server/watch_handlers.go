package server

import (
	"errors"
	"net/http"
	"time"
)

type createWatchRequest struct {
	Expression string `json:"expression"`
	Schedule   string `json:"schedule"`
}

// handleCreateWatch registers a goal watch.
func (s *Server) handleCreateWatch(w http.ResponseWriter, r *http.Request) {
	var req createWatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Expression == "" {
		writeError(w, http.StatusBadRequest, "INVALID_WATCH", "expression is required")
		return
	}
	watch, err := s.watches.Create(req.Expression, req.Schedule, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_WATCH", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, watch)
}

// handleListWatches returns all registered watches.
func (s *Server) handleListWatches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.watches.List())
}

// handleGetWatch returns a single watch by ID.
func (s *Server) handleGetWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	watch, err := s.watches.Get(id)
	if err != nil {
		if errors.Is(err, ErrWatchNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "watch "+id+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, watch)
}

// handleDeleteWatch removes a watch.
func (s *Server) handleDeleteWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.watches.Delete(id); err != nil {
		if errors.Is(err, ErrWatchNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "watch "+id+" not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
