package session

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestStoreResetAndUpdate(t *testing.T) {
	st := NewStore(Options{})
	sess := st.Reset(10, 20)
	if sess.State != StateStart || sess.PaymentStatus != PaymentNone || sess.ChatID != 20 {
		t.Fatalf("unexpected fresh session: %+v", sess)
	}

	updated, err := st.Update(10, func(s *Session) error {
		s.State = StateWelcome
		s.DisplayName = "Анна"
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.State != StateWelcome {
		t.Fatalf("state = %s", updated.State)
	}

	got, ok := st.Get(10)
	if !ok || got.DisplayName != "Анна" {
		t.Fatalf("get = %+v, %v", got, ok)
	}
	got.DisplayName = "changed"
	again, _ := st.Get(10)
	if again.DisplayName != "Анна" {
		t.Fatal("Get must return a copy")
	}
}

func TestStoreUpdateErrorLeavesSession(t *testing.T) {
	st := NewStore(Options{})
	st.Reset(1, 1)
	boom := errors.New("boom")
	_, err := st.Update(1, func(s *Session) error {
		s.Credits = 5
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if got, _ := st.Get(1); got.Credits != 0 {
		t.Fatalf("credits changed to %d", got.Credits)
	}
	if _, err := st.Update(2, func(*Session) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session err = %v", err)
	}
}

func TestStoreRenewKeepsEntitlement(t *testing.T) {
	st := NewStore(Options{})
	st.Reset(7, 70)
	_, _ = st.Update(7, func(s *Session) error {
		s.PaymentStatus = PaymentPaid
		s.Credits = 2
		s.Subscription = "tariff2"
		s.PendingPhoto = "file-1"
		s.PendingText = "деньги"
		s.DisplayName = "Мария"
		return nil
	})
	renewed, err := st.Renew(7)
	if err != nil {
		t.Fatalf("renew: %v", err)
	}
	if renewed.PaymentStatus != PaymentPaid || renewed.Credits != 2 || renewed.Subscription != "tariff2" || renewed.ChatID != 70 {
		t.Fatalf("entitlement lost: %+v", renewed)
	}
	if renewed.PendingPhoto != "" || renewed.PendingText != "" || renewed.DisplayName != "" {
		t.Fatalf("request data kept: %+v", renewed)
	}
}

func TestStoreSweepEvictsIdle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	st := NewStore(Options{IdleTTL: time.Hour, Now: clock.Now})
	st.Reset(1, 1)
	clock.t = clock.t.Add(30 * time.Minute)
	st.Reset(2, 2)

	if n := st.Sweep(clock.t.Add(45 * time.Minute)); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if st.Exists(1) || !st.Exists(2) {
		t.Fatalf("wrong session evicted")
	}
	if n := NewStore(Options{}).Sweep(time.Now().Add(1000 * time.Hour)); n != 0 {
		t.Fatalf("ttl=0 must not evict, got %d", n)
	}
}
