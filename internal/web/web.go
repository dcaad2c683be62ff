package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"

	"schedgen/internal/config"
	"schedgen/internal/ics"
	appLog "schedgen/internal/log"
	"schedgen/internal/model"
	"schedgen/internal/projector"
	"schedgen/internal/session"
	"schedgen/internal/timeline"
)

// wallClockLayout is how the page sends and receives calendar points.
const wallClockLayout = "2006-01-02T15:04"

// Server provides the HTTP API behind the schedule browser page.
type Server struct {
	cfg    *config.Config
	mapper *timeline.Mapper
	router chi.Router

	sessions *sessionStore

	// limitSubmit throttles everything that reaches the scheduling service:
	// POST /api/submit and the Enter key on /api/key share one quota.
	limitSubmit func(http.Handler) http.Handler
}

// embeddedStatic contains the browser page.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a new Server. gen is the remote scheduling service
// shared by all browsing sessions.
func NewServer(cfg *config.Config, mapper *timeline.Mapper, gen session.Generator) *Server {
	s := &Server{
		cfg:    cfg,
		mapper: mapper,
		router: chi.NewRouter(),
	}
	s.sessions = newSessionStore(cfg.SessionIdle(), func() *session.Session {
		return session.New(mapper, projector.NewColorCache(cfg.Palette, nil), gen)
	})
	s.limitSubmit = httprate.NewRateLimiter(cfg.SubmitRatePerMinute, time.Minute,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusTooManyRequests, "too many submissions, try again later")
		}),
	).Handler
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schedgen", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves on cfg.Listen until ctx is canceled, then shuts down
// gracefully. The idle-session sweeper runs for the same lifetime.
func StartServer(ctx context.Context, cfg *config.Config, mapper *timeline.Mapper, gen session.Generator) error {
	s := NewServer(cfg, mapper, gen)
	if err := s.StartSweeper(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP server shutdown failed", err)
		}
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "service_url", cfg.ServiceURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/intervals", s.handleSelect)
		r.Delete("/intervals", s.handleRemove)
		r.Post("/prev", s.handlePrev)
		r.Post("/next", s.handleNext)
		r.Post("/clear", s.handleClear)
		r.Get("/export.ics", s.handleExport)
		r.Post("/key", s.handleKey)
		r.With(s.limitSubmit).Post("/submit", s.handleSubmit)
	})

	// The embedded page serves everything outside /api and /health.
	r.Handle("/*", s.staticFileServer())
}

// requestLogger logs one debug line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"remote", r.RemoteAddr,
			"elapsed", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// staticFileServer returns an http.Handler that serves the embedded page
// from internal/web/static.
func (s *Server) staticFileServer() http.Handler {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		})
	}

	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Unknown API paths must 404 rather than return the page.
		if path == "/api" || strings.HasPrefix(path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	s.writeState(w, http.StatusOK, sess)
}

// selectRequest is the body of POST /api/intervals.
type selectRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// handleSelect adds a drag-selected busy interval. Out-of-range or empty
// selections are dropped without surfacing an error to the page.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	loc := s.mapper.Location()
	start, err := time.ParseInLocation(wallClockLayout, req.Start, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := time.ParseInLocation(wallClockLayout, req.End, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end")
		return
	}

	err = sess.SelectSlot(start, end)
	switch {
	case errors.Is(err, session.ErrSchedulesLoaded):
		writeError(w, http.StatusConflict, "clear the calendar to select new busy times")
		return
	case err != nil:
		// Validation rejections are diagnostic only.
	}
	s.writeState(w, http.StatusOK, sess)
}

// handleRemove drops the busy interval identified by its minute offsets.
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	q := r.URL.Query()
	start, err1 := strconv.Atoi(q.Get("start"))
	end, err2 := strconv.Atoi(q.Get("end"))
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "start and end must be integers")
		return
	}

	if _, err := sess.RemoveInterval(model.Interval{Start: start, End: end}); errors.Is(err, session.ErrSchedulesLoaded) {
		writeError(w, http.StatusConflict, "clear the calendar to remove busy times")
		return
	}
	s.writeState(w, http.StatusOK, sess)
}

// submitRequest is the body of POST /api/submit.
type submitRequest struct {
	Query string `json:"query"`
}

// handleSubmit runs one submission. The outbound call is detached from the
// client connection so a closed tab does not abort it midway.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.RequestTimeout())
	defer cancel()

	if err := sess.Submit(ctx, req.Query); errors.Is(err, session.ErrSubmitInFlight) {
		writeError(w, http.StatusConflict, "a submission is already in progress")
		return
	}
	s.writeState(w, http.StatusOK, sess)
}

// keyRequest is the body of POST /api/key. Query carries the current text
// of the course input so Enter submits what the user sees.
type keyRequest struct {
	Key   string `json:"key"`
	Query string `json:"query"`
}

// handleKey dispatches a keyboard shortcut. Only Enter reaches the
// scheduling service, so only Enter counts against the submit quota.
func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)

	var req keyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess.SetQuery(req.Query)

	if req.Key != session.KeySubmit {
		_, _ = sess.HandleKey(r.Context(), req.Key)
		s.writeState(w, http.StatusOK, sess)
		return
	}

	s.limitSubmit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.RequestTimeout())
		defer cancel()

		if _, err := sess.HandleKey(ctx, req.Key); errors.Is(err, session.ErrSubmitInFlight) {
			writeError(w, http.StatusConflict, "a submission is already in progress")
			return
		}
		s.writeState(w, http.StatusOK, sess)
	})).ServeHTTP(w, r)
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.Previous()
	s.writeState(w, http.StatusOK, sess)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.Next()
	s.writeState(w, http.StatusOK, sess)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	sess.Clear()
	s.writeState(w, http.StatusOK, sess)
}

// handleExport returns the current schedule as an iCalendar feed.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := s.sessionFor(w, r)
	v := sess.View()
	if v.Schedule == nil {
		writeError(w, http.StatusNotFound, "no schedule loaded")
		return
	}

	term, err := s.term()
	if err != nil {
		appLog.Error("ics export: bad term config", err)
		writeError(w, http.StatusInternalServerError, "invalid term configuration")
		return
	}

	body, err := ics.Export(v.Events, ics.ExportOptions{
		Term: term,
		Name: heading(v),
	})
	if err != nil {
		appLog.Error("ics export failed", err)
		writeError(w, http.StatusInternalServerError, "failed to export schedule")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="schedule-`+strconv.Itoa(v.Index+1)+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// term resolves the configured export term. Without a configured start the
// current week is used.
func (s *Server) term() (ics.Term, error) {
	loc := s.mapper.Location()
	start := time.Now().In(loc)
	if s.cfg.Term.Start != "" {
		t, err := time.ParseInLocation("2006-01-02", s.cfg.Term.Start, loc)
		if err != nil {
			return ics.Term{}, err
		}
		start = t
	}
	return ics.Term{Start: start, Weeks: s.cfg.Term.Weeks}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
