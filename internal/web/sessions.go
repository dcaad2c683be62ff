package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appLog "schedgen/internal/log"
	"schedgen/internal/session"
)

const sessionCookie = "schedgen_session"

// sessionStore keeps one browsing session per browser. Each browser tab
// sharing a cookie shares the session.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	idle     time.Duration
	create   func() *session.Session
}

func newSessionStore(idle time.Duration, create func() *session.Session) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*session.Session),
		idle:     idle,
		create:   create,
	}
}

func (st *sessionStore) get(id string) (*session.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	return sess, ok
}

func (st *sessionStore) add() (string, *session.Session) {
	id := uuid.NewString()
	sess := st.create()

	st.mu.Lock()
	st.sessions[id] = sess
	st.mu.Unlock()
	return id, sess
}

func (st *sessionStore) len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// sweep drops sessions untouched since now-idle and returns how many were
// dropped.
func (st *sessionStore) sweep(now time.Time) int {
	cutoff := now.Add(-st.idle)

	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, sess := range st.sessions {
		if sess.IdleSince().Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// sessionFor returns the caller's session, starting a new one (and setting
// the cookie) when the request carries none or an expired one.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session.Session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			if sess, ok := s.sessions.get(c.Value); ok {
				return sess
			}
		}
	}

	id, sess := s.sessions.add()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	appLog.Debug("browsing session started", "session", id)
	return sess
}

// StartSweeper schedules idle-session cleanup on cfg.SessionSweep. The cron
// runner stops when ctx is canceled.
func (s *Server) StartSweeper(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.cfg.SessionSweep, func() {
		if n := s.sessions.sweep(time.Now()); n > 0 {
			appLog.Info("idle sessions dropped", "count", n, "remaining", s.sessions.len())
		}
	})
	if err != nil {
		return err
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
