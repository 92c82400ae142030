// Package followup sends delayed reminders to users who entered the funnel
// but have not paid.
package followup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/bots/scanner/session"
	"github.com/m3rciful/scanbot/core/logger"
)

// Sessions exposes live session snapshots.
type Sessions interface {
	Get(userID int64) (session.Session, bool)
}

type task struct {
	cancel context.CancelFunc
}

// Scheduler runs one reminder task per user. Starting a task for a user
// replaces the previous one.
type Scheduler struct {
	sessions Sessions
	out      chat.Outbound
	stages   []Stage

	mu      sync.Mutex
	tasks   map[int64]*task
	stopped bool
	wg      sync.WaitGroup
}

// New returns a scheduler. Stages must be ordered by After.
func New(sessions Sessions, out chat.Outbound, stages []Stage) *Scheduler {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Scheduler{
		sessions: sessions,
		out:      out,
		stages:   stages,
		tasks:    make(map[int64]*task),
	}
}

// Start schedules the reminder stages for the user, counted from now.
func (s *Scheduler) Start(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, ok := s.tasks[userID]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(logger.WithJob(context.Background(), "followup", userID))
	t := &task{cancel: cancel}
	s.tasks[userID] = t
	s.wg.Add(1)
	go s.run(ctx, userID, t, time.Now())
	logger.LogEvent(ctx, logger.SVCFollowup, slog.LevelDebug, "followup.scheduled",
		slog.Int64("user_id", userID),
		slog.Int("stages", len(s.stages)),
	)
}

// Cancel stops pending reminders for the user.
func (s *Scheduler) Cancel(userID int64) {
	s.mu.Lock()
	t, ok := s.tasks[userID]
	if ok {
		delete(s.tasks, userID)
	}
	s.mu.Unlock()
	if ok {
		t.cancel()
		logger.LogEvent(logger.WithJob(context.Background(), "followup", userID), logger.SVCFollowup, slog.LevelDebug, "followup.cancelled",
			slog.Int64("user_id", userID),
		)
	}
}

// Pending reports whether the user has a running reminder task.
func (s *Scheduler) Pending(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[userID]
	return ok
}

// Stop cancels every task and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.tasks {
		t.cancel()
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, userID int64, t *task, started time.Time) {
	defer s.wg.Done()
	defer s.release(userID, t)

	for i, st := range s.stages {
		timer := time.NewTimer(time.Until(started.Add(st.After)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		sess, ok := s.sessions.Get(userID)
		if !ok {
			logger.LogEvent(ctx, logger.SVCFollowup, slog.LevelDebug, "followup.session_gone",
				slog.Int64("user_id", userID),
				slog.Int("stage", i+1),
			)
			return
		}
		if sess.Entitled() {
			return
		}
		s.send(ctx, sess, i+1, st)
	}
}

func (s *Scheduler) send(ctx context.Context, sess session.Session, n int, st Stage) {
	menu := chat.NewMenu(chat.Row(chat.Button{Text: st.Button, Tag: TagPricing}))
	chatID := sess.ChatID
	if chatID == 0 {
		chatID = sess.UserID
	}
	if _, err := s.out.SendText(ctx, chatID, st.Text, menu); err != nil {
		logger.LogEvent(ctx, logger.SVCFollowup, slog.LevelWarn, "followup.send_failed",
			slog.Int64("user_id", sess.UserID),
			slog.Int("stage", n),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.LogEvent(ctx, logger.SVCFollowup, slog.LevelInfo, "followup.sent",
		slog.Int64("user_id", sess.UserID),
		slog.Int("stage", n),
	)
}

func (s *Scheduler) release(userID int64, t *task) {
	s.mu.Lock()
	if cur, ok := s.tasks[userID]; ok && cur == t {
		delete(s.tasks, userID)
	}
	s.mu.Unlock()
}
