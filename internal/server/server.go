// Package server exposes forms over HTTP: GET renders a form pre-populated for
// the visitor's session, POST runs the processors and re-renders the form
// with their notes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/goliatone/go-formcrm/pkg/form"
	"github.com/goliatone/go-formcrm/pkg/orchestrator"
	"github.com/goliatone/go-formcrm/pkg/render"
)

const (
	defaultCookieName = "formcrm_session"
	maxFormBytes      = 1 << 20
)

// Option customises the server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCookieName sets the session cookie name.
func WithCookieName(name string) Option {
	return func(s *Server) {
		if strings.TrimSpace(name) != "" {
			s.cookieName = name
		}
	}
}

// WithSessionTTL sets the session cookie lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.sessionTTL = ttl
		}
	}
}

// WithContactSeeding mounts PUT /sessions/{id}/contacts/{link}. The route
// lets any caller bind a contact to a session, so it is for development
// against the in-process CRM only.
func WithContactSeeding(enabled bool) Option {
	return func(s *Server) {
		s.seedContacts = enabled
	}
}

// Server is the HTTP host.
type Server struct {
	generator    *orchestrator.Orchestrator
	logger       *zap.Logger
	cookieName   string
	sessionTTL   time.Duration
	seedContacts bool
	mux          *http.ServeMux
}

// New builds the handler tree.
func New(generator *orchestrator.Orchestrator, options ...Option) (*Server, error) {
	if generator == nil {
		return nil, errors.New("server: orchestrator is required")
	}
	s := &Server{
		generator:  generator,
		logger:     zap.NewNop(),
		cookieName: defaultCookieName,
		sessionTTL: time.Hour,
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /forms/{id}", s.handleRender)
	mux.HandleFunc("POST /forms/{id}", s.handleSubmit)
	if s.seedContacts {
		s.logger.Warn("contact seeding route enabled")
		mux.HandleFunc("PUT /sessions/{id}/contacts/{link}", s.handleSeedContact)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux = mux
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout, grace time.Duration) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("id")
	sessionID := s.session(w, r, "")

	output, contentType, err := s.generator.Generate(r.Context(), orchestrator.Request{
		FormID:        formID,
		SessionID:     sessionID,
		Renderer:      r.URL.Query().Get("renderer"),
		RenderOptions: render.RenderOptions{Action: r.URL.Path},
		ThemeName:     r.URL.Query().Get("theme"),
		ThemeVariant:  r.URL.Query().Get("variant"),
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.write(w, http.StatusOK, contentType, output)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	formID := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form payload", http.StatusBadRequest)
		return
	}

	f, err := s.generator.Form(formID)
	if err != nil {
		s.fail(w, err)
		return
	}

	sessionID := s.session(w, r, r.PostForm.Get(render.HiddenSession))
	result, err := s.generator.Submit(r.Context(), orchestrator.SubmitRequest{
		Form:         &f,
		SessionID:    sessionID,
		Renderer:     r.URL.Query().Get("renderer"),
		Values:       submittedValues(f, r),
		Meta:         requestMeta(r),
		Action:       r.URL.Path,
		ThemeName:    r.URL.Query().Get("theme"),
		ThemeVariant: r.URL.Query().Get("variant"),
	})
	if err != nil {
		s.fail(w, err)
		return
	}

	status := http.StatusOK
	if !result.Accepted() {
		status = http.StatusUnprocessableEntity
	}
	s.write(w, status, result.ContentType, result.Output)
}

type seedRequest struct {
	ContactID int64 `json:"contact_id"`
}

// handleSeedContact stands in for the contact processor that resolves a
// contact and records it on the visitor's transient object.
func (s *Server) handleSeedContact(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	link := r.PathValue("link")
	if _, err := strconv.Atoi(link); err != nil {
		http.Error(w, "contact link must be a number", http.StatusBadRequest)
		return
	}

	var req seedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}
	if req.ContactID <= 0 {
		http.Error(w, "contact_id must be positive", http.StatusBadRequest)
		return
	}

	if err := s.generator.SeedContact(r.Context(), sessionID, link, req.ContactID); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// session resolves the visitor's session: an explicit value from the posted
// form wins, then the cookie, then a freshly minted ID.
func (s *Server) session(w http.ResponseWriter, r *http.Request, explicit string) string {
	sessionID := strings.TrimSpace(explicit)
	if sessionID == "" {
		if cookie, err := r.Cookie(s.cookieName); err == nil {
			sessionID = strings.TrimSpace(cookie.Value)
		}
	}
	if sessionID == "" {
		sessionID = s.generator.NewSessionID()
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sessionID
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	if errors.Is(err, orchestrator.ErrFormNotFound) {
		http.Error(w, "form not found", http.StatusNotFound)
		return
	}
	s.logger.Error("request failed", zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) write(w http.ResponseWriter, status int, contentType string, body []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

// submittedValues keeps only posted keys that name a field of f. Multi-valued
// keys stay slices.
func submittedValues(f form.Form, r *http.Request) map[string]any {
	values := make(map[string]any, len(f.Fields))
	for id := range f.Fields {
		posted, ok := r.PostForm[id]
		if !ok || len(posted) == 0 {
			continue
		}
		if len(posted) == 1 {
			values[id] = posted[0]
			continue
		}
		values[id] = append([]string(nil), posted...)
	}
	return values
}

func requestMeta(r *http.Request) map[string]string {
	return map[string]string{
		form.MetaIP:        clientIP(r),
		form.MetaReferer:   r.Referer(),
		form.MetaUserAgent: r.UserAgent(),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
