// Package server exposes the page service over HTTP: page JSON, an SSE enrichment stream,
// visitor counters and bio generation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codeGROOVE-dev/linkhub/pkg/bio"
	"github.com/codeGROOVE-dev/linkhub/pkg/inapp"
	"github.com/codeGROOVE-dev/linkhub/pkg/link"
	"github.com/codeGROOVE-dev/linkhub/pkg/linkhub"
	"github.com/codeGROOVE-dev/linkhub/pkg/store"
)

// LikedCookie marks a visitor who already liked the profile.
const LikedCookie = "linkhub_liked_profile"

// Service is the part of linkhub.Service the API needs.
type Service interface {
	Snapshot(ctx context.Context) store.Snapshot
	Page(ctx context.Context, userAgent string, forceBanner bool) linkhub.Page
	Links(ctx context.Context) []link.Entry
	EnrichedLinks(ctx context.Context) []link.Entry
	StreamLinks(ctx context.Context, onLinks func([]link.Entry), onPatch func(link.Entry)) int
	Like(ctx context.Context, profileID string) error
	Click(ctx context.Context, linkID string) error
	Download(ctx context.Context, mapID string) error
	GenerateBio(ctx context.Context, keywords, tone string) (string, error)
}

// Server routes API requests to a Service.
type Server struct {
	svc     Service
	logger  *slog.Logger
	router  chi.Router
	timeout time.Duration
}

// Option configures a Server.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithRequestTimeout bounds non-streaming requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New creates a Server.
func New(svc Service, opts ...Option) *Server {
	cfg := &config{logger: slog.Default(), timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}
	s := &Server{svc: svc, logger: cfg.logger, timeout: cfg.timeout}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/links/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))
			r.Get("/page", s.handlePage)
			r.Get("/links", s.handleLinks)
			r.Get("/links/enriched", s.handleEnriched)
			r.Get("/browser", s.handleBrowser)
			r.Post("/like", s.handleLike)
			r.Post("/links/{id}/click", s.handleClick)
			r.Post("/maps/{id}/download", s.handleDownload)
			r.Post("/bio", s.handleBio)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed", time.Since(start).Round(time.Millisecond))
	})
}

func forceBanner(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("debug_banner"))
	return err == nil && v
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Page(r.Context(), r.UserAgent(), forceBanner(r)))
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Links(r.Context()))
}

func (s *Server) handleEnriched(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.EnrichedLinks(r.Context()))
}

func (s *Server) handleBrowser(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, inapp.ClassifyRequest(r.UserAgent(), forceBanner(r)))
}

// handleStream sends the static list, then one patch per enriched entry, then done.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, v any) {
		data, err := json.Marshal(v)
		if err != nil {
			s.logger.WarnContext(r.Context(), "encode event", "event", event, "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			s.logger.DebugContext(r.Context(), "flush unsupported", "error", err)
		}
	}

	n := s.svc.StreamLinks(r.Context(),
		func(entries []link.Entry) { send("links", entries) },
		func(e link.Entry) { send("patch", e) })
	send("done", map[string]int{"enriched": n})
}

type likeRequest struct {
	ProfileID string `json:"profileId"`
}

type likeResponse struct {
	Liked   bool `json:"liked"`
	Counted bool `json:"counted"`
}

// handleLike counts at most one like per visitor, remembered in a cookie.
func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	var req likeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.ProfileID == "" {
		req.ProfileID = s.svc.Snapshot(r.Context()).Profile.ID
	}

	if c, err := r.Cookie(LikedCookie); err == nil && c.Value == req.ProfileID {
		s.writeJSON(w, http.StatusOK, likeResponse{Liked: true})
		return
	}

	if err := s.svc.Like(r.Context(), req.ProfileID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LikedCookie,
		Value:    req.ProfileID,
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.writeJSON(w, http.StatusOK, likeResponse{Liked: true, Counted: true})
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Click(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Download(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bioRequest struct {
	Keywords string `json:"keywords"`
	Tone     string `json:"tone"`
}

func (s *Server) handleBio(w http.ResponseWriter, r *http.Request) {
	var req bioRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, err := s.svc.GenerateBio(r.Context(), req.Keywords, req.Tone)
	switch {
	case errors.Is(err, bio.ErrNotConfigured):
		s.writeError(w, http.StatusServiceUnavailable, "bio generation is not configured")
	case errors.Is(err, bio.ErrNoKeywords):
		s.writeError(w, http.StatusBadRequest, "keywords required")
	case err != nil:
		s.writeError(w, http.StatusBadGateway, "bio generation failed")
	default:
		s.writeJSON(w, http.StatusOK, map[string]string{"bio": text})
	}
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidID):
		s.writeError(w, http.StatusBadRequest, "invalid id")
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found")
	default:
		s.logger.WarnContext(r.Context(), "store write failed", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusBadGateway, "store unavailable")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "error", err)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.logger.InfoContext(ctx, "shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}
