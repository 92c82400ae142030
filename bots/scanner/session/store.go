// Package session keeps per-user conversation records in memory.
// Records are lost on restart and evicted after an idle TTL.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/scanbot/core/logger"
)

// ErrNotFound is returned when no session exists for the user.
var ErrNotFound = errors.New("session: not found")

// Options configures a Store.
type Options struct {
	// IdleTTL evicts sessions not touched for this long; 0 disables eviction.
	IdleTTL time.Duration
	Now     func() time.Time
}

// Store is a mutex-guarded map of sessions keyed by user id.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewStore constructs an empty Store.
func NewStore(opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions: make(map[int64]*Session),
		ttl:      opts.IdleTTL,
		now:      now,
	}
}

// Get returns a copy of the user's session.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Exists reports whether the user has a live session.
func (s *Store) Exists(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	return ok
}

// Reset creates a fresh session for the user, discarding any previous one.
func (s *Store) Reset(userID, chatID int64) Session {
	now := s.now()
	sess := &Session{
		UserID:        userID,
		ChatID:        chatID,
		State:         StateStart,
		FunnelStage:   StageStart,
		PaymentStatus: PaymentNone,
		CreatedAt:     now,
		LastSeenAt:    now,
	}
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
	return *sess
}

// Renew replaces the session with a fresh one that keeps the entitlement
// (payment status, credits, subscription) and funnel stage of the old record.
func (s *Store) Renew(userID int64) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.sessions[userID]
	if !ok {
		return Session{}, ErrNotFound
	}
	now := s.now()
	sess := &Session{
		UserID:        userID,
		ChatID:        old.ChatID,
		State:         old.State,
		FunnelStage:   old.FunnelStage,
		PaymentStatus: old.PaymentStatus,
		Credits:       old.Credits,
		Subscription:  old.Subscription,
		CreatedAt:     now,
		LastSeenAt:    now,
	}
	s.sessions[userID] = sess
	return *sess, nil
}

// Update applies fn to the stored session under the store lock and returns the result.
// When fn returns an error the session is left unchanged.
func (s *Store) Update(userID int64, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, ErrNotFound
	}
	draft := *sess
	if err := fn(&draft); err != nil {
		return *sess, err
	}
	draft.LastSeenAt = s.now()
	*sess = draft
	return draft, nil
}

// Delete removes the user's session.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle longer than the TTL as of now and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastSeenAt) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if n := s.Sweep(s.now()); n > 0 {
				logger.Info(ctx, "service.sessions", "sessions.evicted",
					slog.Int("count", n),
					slog.Int("pending_count", s.Len()),
					slog.Duration("duration", logger.RoundMS(time.Since(start))),
				)
			}
		}
	}
}
