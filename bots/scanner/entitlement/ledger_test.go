package entitlement

import (
	"errors"
	"testing"

	"github.com/m3rciful/scanbot/bots/scanner/session"
)

func newLedger(t *testing.T) (*Ledger, *session.Store) {
	t.Helper()
	st := session.NewStore(session.Options{})
	st.Reset(1, 1)
	return NewLedger(st), st
}

func TestGateRequiresPaidOrFree(t *testing.T) {
	cases := []struct {
		status  session.PaymentStatus
		credits int
		want    Gate
	}{
		{session.PaymentNone, 5, GateNotEntitled},
		{session.PaymentPending, 5, GateNotEntitled},
		{session.PaymentPaid, 1, GateOpen},
		{session.PaymentFree, Unlimited, GateOpen},
		{session.PaymentPaid, 0, GateExhausted},
	}
	for _, tc := range cases {
		got := GateFor(session.Session{PaymentStatus: tc.status, Credits: tc.credits})
		if got != tc.want {
			t.Fatalf("GateFor(%s, %d) = %s, want %s", tc.status, tc.credits, got, tc.want)
		}
	}
}

func TestConsumeNeverGoesNegative(t *testing.T) {
	l, st := newLedger(t)
	if _, err := l.GrantPaid(1, 1, "tariff1"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	left, err := l.Consume(1)
	if err != nil || left != 0 {
		t.Fatalf("first consume = %d, %v", left, err)
	}
	left, err = l.Consume(1)
	if !errors.Is(err, ErrNoCredits) {
		t.Fatalf("second consume err = %v", err)
	}
	if left != 0 {
		t.Fatalf("left = %d", left)
	}
	if sess, _ := st.Get(1); sess.Credits != 0 {
		t.Fatalf("credits = %d", sess.Credits)
	}
	if l.Check(1) != GateExhausted {
		t.Fatalf("gate = %s", l.Check(1))
	}
}

func TestConsumeWithoutEntitlement(t *testing.T) {
	l, _ := newLedger(t)
	if _, err := l.Consume(1); !errors.Is(err, ErrNotEntitled) {
		t.Fatalf("err = %v", err)
	}
	if _, err := l.Consume(99); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("missing session err = %v", err)
	}
}

func TestGrantFreeAndPending(t *testing.T) {
	l, _ := newLedger(t)
	sess, err := l.MarkPending(1)
	if err != nil || sess.PaymentStatus != session.PaymentPending {
		t.Fatalf("pending = %+v, %v", sess, err)
	}
	sess, err = l.GrantFree(1, "free")
	if err != nil {
		t.Fatalf("grant free: %v", err)
	}
	if sess.Credits != Unlimited || sess.FunnelStage != session.StageFreeAccess || sess.Subscription != "free" {
		t.Fatalf("unexpected free session: %+v", sess)
	}
	sess, _ = l.MarkPending(1)
	if sess.PaymentStatus != session.PaymentFree {
		t.Fatalf("MarkPending must not downgrade, got %s", sess.PaymentStatus)
	}
	if _, err := l.GrantPaid(1, 0, ""); err == nil {
		t.Fatal("expected error for zero-credit grant")
	}
}
