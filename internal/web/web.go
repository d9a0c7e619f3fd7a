// Package web exposes the sync engine to the staff admin UI. Every route
// except /health sits behind the staff-group gate; the caller's identity
// arrives in a trusted proxy header, never from the request body.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gcal "github.com/gracechapel/calsync/calendar/google"
	"github.com/gracechapel/calsync/internal"
	"github.com/gracechapel/calsync/internal/directory"
	"github.com/gracechapel/calsync/internal/engine"
)

// IdentityHeader carries the authenticated caller's email, set by the
// reverse proxy after it has verified the session. The server trusts it
// blindly, so it must never be reachable without the proxy in front.
const IdentityHeader = "X-Authenticated-Email"

const defaultWindow = 90 * 24 * time.Hour

// Syncer is the part of the engine the HTTP surface needs. Unpublish is
// deliberately absent: taking events down is a CLI operation.
type Syncer interface {
	Snapshot(ctx context.Context, opts internal.ListOptions) (*internal.Snapshot, error)
	Publish(ctx context.Context, req engine.PublishRequest) (*engine.WriteResult, error)
	Update(ctx context.Context, req engine.UpdateRequest) (*engine.WriteResult, error)
}

type Server struct {
	syncer  Syncer
	checker directory.Checker
	origin  string
	logger  *slog.Logger
	mux     *http.ServeMux
}

func NewServer(syncer Syncer, checker directory.Checker, origin string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		syncer:  syncer,
		checker: checker,
		origin:  origin,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/calendar/events", s.handleEvents)
	s.mux.HandleFunc("/calendar/publish", s.handlePublish)
	s.mux.HandleFunc("/calendar/update", s.handleUpdate)
	s.mux.HandleFunc("/calendar/access", s.handleAccess)
}

// Handler wraps the mux with the response headers and the staff-group gate.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Admin responses carry live calendar data and must never be
		// served stale by an intermediary.
		w.Header().Set("Cache-Control", "no-store")

		if s.origin != "" && r.Header.Get("Origin") == s.origin {
			w.Header().Set("Access-Control-Allow-Origin", s.origin)
			w.Header().Set("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+IdentityHeader)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		if r.URL.Path == "/health" {
			s.mux.ServeHTTP(w, r)
			return
		}

		email := r.Header.Get(IdentityHeader)
		if email == "" {
			writeError(w, http.StatusUnauthorized, "missing authenticated identity")
			return
		}
		decision, err := s.checker.Check(r.Context(), email)
		if err != nil {
			s.logger.Error("membership check failed", "email", email, "err", err)
			writeError(w, http.StatusBadGateway, "could not verify staff membership")
			return
		}
		if !decision.Allowed {
			writeError(w, http.StatusForbidden, "staff access required")
			return
		}
		s.mux.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents returns the reconciliation snapshot.
//
// GET /calendar/events?timeMin=...&timeMax=...   full listing over a window
// GET /calendar/events?syncToken=...             incremental listing
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}

	q := r.URL.Query()
	opts := internal.ListOptions{SyncToken: q.Get("syncToken")}
	if opts.SyncToken == "" {
		var err error
		now := time.Now()
		if opts.TimeMin, err = parseTimeDefault(q.Get("timeMin"), now); err != nil {
			writeError(w, http.StatusBadRequest, "timeMin must be RFC 3339")
			return
		}
		if opts.TimeMax, err = parseTimeDefault(q.Get("timeMax"), opts.TimeMin.Add(defaultWindow)); err != nil {
			writeError(w, http.StatusBadRequest, "timeMax must be RFC 3339")
			return
		}
		if !opts.TimeMax.After(opts.TimeMin) {
			writeError(w, http.StatusBadRequest, "timeMax must be after timeMin")
			return
		}
	}

	snap, err := s.syncer.Snapshot(r.Context(), opts)
	if err != nil {
		if gcal.IsStaleSyncToken(err) {
			// The client must drop its token and request a full window.
			writeError(w, http.StatusGone, "sync token is no longer valid")
			return
		}
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req engine.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SourceEventID == "" {
		writeError(w, http.StatusBadRequest, "sourceEventId is required")
		return
	}

	res, err := s.syncer.Publish(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req engine.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.PublicEventID == "" && req.SourceEventID == "" {
		writeError(w, http.StatusBadRequest, "publicEventId or sourceEventId is required")
		return
	}

	res, err := s.syncer.Update(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAccess lets the UI probe whether an email would pass the gate,
// e.g. before handing a colleague a link.
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	decision, err := s.checker.Check(r.Context(), req.Email)
	if err != nil {
		s.logger.Error("membership check failed", "email", req.Email, "err", err)
		writeError(w, http.StatusBadGateway, "could not verify staff membership")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// writeEngineError maps engine and provider failures onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var accessErr *gcal.AccessError
	switch {
	case errors.Is(err, internal.ErrStoreUnavailable):
		writeError(w, http.StatusUnauthorized, "mapping store is not configured")
	case errors.Is(err, internal.ErrSourceEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, internal.ErrMappingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, internal.ErrNotPublished):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &accessErr):
		writeError(w, http.StatusForbidden, accessErr.Error())
	default:
		// Operator-facing surface: the raw provider message is more useful
		// than a generic one.
		s.logger.Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func parseTimeDefault(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(time.RFC3339, s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
