// Package entitlement grants and consumes analysis credits on top of the session store.
package entitlement

import (
	"errors"
	"fmt"

	"github.com/m3rciful/scanbot/bots/scanner/session"
)

// Unlimited is the credit count used for free and promo access.
const Unlimited = 999999

var (
	// ErrNotEntitled means the user has neither paid nor free access.
	ErrNotEntitled = errors.New("entitlement: not entitled")
	// ErrNoCredits means the user is entitled but has no credits left.
	ErrNoCredits = errors.New("entitlement: no credits left")
)

// Gate is the outcome of checking whether an analysis may start.
type Gate int

// Gate outcomes.
const (
	GateOpen Gate = iota
	GateNotEntitled
	GateExhausted
)

func (g Gate) String() string {
	switch g {
	case GateOpen:
		return "open"
	case GateNotEntitled:
		return "not_entitled"
	case GateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Ledger mutates entitlement fields of sessions.
type Ledger struct {
	sessions *session.Store
}

// NewLedger binds a Ledger to the store.
func NewLedger(sessions *session.Store) *Ledger {
	return &Ledger{sessions: sessions}
}

// Check evaluates the analysis gate for the user.
func (l *Ledger) Check(userID int64) Gate {
	sess, ok := l.sessions.Get(userID)
	if !ok {
		return GateNotEntitled
	}
	return GateFor(sess)
}

// GateFor evaluates the gate for a session snapshot.
func GateFor(sess session.Session) Gate {
	if !sess.Entitled() {
		return GateNotEntitled
	}
	if sess.Credits <= 0 {
		return GateExhausted
	}
	return GateOpen
}

// GrantPaid marks the session paid and adds credits for the given tariff.
func (l *Ledger) GrantPaid(userID int64, credits int, tariff string) (session.Session, error) {
	if credits <= 0 {
		return session.Session{}, fmt.Errorf("entitlement: grant of %d credits", credits)
	}
	return l.sessions.Update(userID, func(s *session.Session) error {
		s.PaymentStatus = session.PaymentPaid
		s.FunnelStage = session.StagePaid
		s.Credits += credits
		if tariff != "" {
			s.Subscription = tariff
		}
		return nil
	})
}

// GrantFree marks the session as free access with unlimited credits.
func (l *Ledger) GrantFree(userID int64, kind string) (session.Session, error) {
	return l.sessions.Update(userID, func(s *session.Session) error {
		s.PaymentStatus = session.PaymentFree
		s.FunnelStage = session.StageFreeAccess
		s.Credits = Unlimited
		s.Subscription = kind
		return nil
	})
}

// MarkPending records that the user has seen payment links.
func (l *Ledger) MarkPending(userID int64) (session.Session, error) {
	return l.sessions.Update(userID, func(s *session.Session) error {
		if !s.Entitled() {
			s.PaymentStatus = session.PaymentPending
		}
		return nil
	})
}

// Consume takes one credit and returns how many are left.
// Credits never go below zero.
func (l *Ledger) Consume(userID int64) (int, error) {
	sess, err := l.sessions.Update(userID, func(s *session.Session) error {
		switch GateFor(*s) {
		case GateNotEntitled:
			return ErrNotEntitled
		case GateExhausted:
			return ErrNoCredits
		}
		s.Credits--
		return nil
	})
	if err != nil {
		return sess.Credits, err
	}
	return sess.Credits, nil
}
