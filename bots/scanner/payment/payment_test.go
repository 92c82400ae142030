package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/scanbot/bots/scanner/storage"
)

type fakeLedger struct {
	mu       sync.Mutex
	payments []storage.Payment
	seen     map[string]bool
}

func (f *fakeLedger) RecordPayment(_ context.Context, p storage.Payment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[p.ProviderRef] {
		return false, nil
	}
	f.seen[p.ProviderRef] = true
	f.payments = append(f.payments, p)
	return true, nil
}

func (f *fakeLedger) ClaimPayment(_ context.Context, userID int64) (storage.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.payments {
		if p.UserID == userID {
			f.payments = append(f.payments[:i], f.payments[i+1:]...)
			return p, nil
		}
	}
	return storage.Payment{}, storage.ErrNoPayment
}

func TestStubVerifierDefaultsToOneCredit(t *testing.T) {
	res, err := Stub{}.Verify(context.Background(), 42)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Credits != 1 {
		t.Fatalf("expected 1 credit, got %d", res.Credits)
	}
}

func TestLedgerVerifier(t *testing.T) {
	fl := &fakeLedger{}
	v := NewLedger(fl)
	if _, err := v.Verify(context.Background(), 42); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("expected ErrNotPaid, got %v", err)
	}
	if _, err := fl.RecordPayment(context.Background(), storage.Payment{ProviderRef: "cs_1", UserID: 42, Tariff: "tarif2", Credits: 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	res, err := v.Verify(context.Background(), 42)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Credits != 3 || res.Tariff != "tarif2" {
		t.Fatalf("unexpected result: %#v", res)
	}
	if _, err := v.Verify(context.Background(), 42); !errors.Is(err, ErrNotPaid) {
		t.Fatalf("payment must be claimed once, got %v", err)
	}
}

func TestTariffLink(t *testing.T) {
	tr, ok := FindTariff(DefaultTariffs(), "tarif3")
	if !ok {
		t.Fatalf("tarif3 missing")
	}
	if got := tr.Link(42); got != "https://lizaperman.online/scaner_fullpay_tarif3?tg_id=42" {
		t.Fatalf("unexpected link %q", got)
	}
	if _, ok := FindTariff(DefaultTariffs(), "nope"); ok {
		t.Fatalf("unexpected tariff")
	}
}

const testSecret = "whsec_test"

func signedRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func checkoutEvent(sessionID, ref, tariff, status string) string {
	return fmt.Sprintf(`{"id":"evt_%s","object":"event","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","client_reference_id":%q,"payment_status":%q,"amount_total":9900,"currency":"rub","metadata":{"tariff":%q}}}}`,
		sessionID, sessionID, ref, status, tariff)
}

func TestStripeWebhookRecordsOnce(t *testing.T) {
	fl := &fakeLedger{}
	var notified []int64
	h := &StripeWebhook{
		Secret:   testSecret,
		Payments: fl,
		Tariffs:  DefaultTariffs(),
		Notify:   func(_ context.Context, userID int64) { notified = append(notified, userID) },
	}
	payload := checkoutEvent("cs_1", "42", "tarif2", "paid")
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, signedRequest(t, payload))
		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: status %d body %s", i, rec.Code, rec.Body.String())
		}
	}
	if len(fl.payments) != 1 {
		t.Fatalf("expected one recorded payment, got %d", len(fl.payments))
	}
	p := fl.payments[0]
	if p.UserID != 42 || p.Credits != 3 || p.AmountCents != 9900 || p.Currency != "rub" {
		t.Fatalf("unexpected payment: %#v", p)
	}
	if len(notified) != 1 || notified[0] != 42 {
		t.Fatalf("expected single notification, got %v", notified)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	h := &StripeWebhook{Secret: testSecret, Payments: &fakeLedger{}}
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(checkoutEvent("cs_1", "42", "tarif1", "paid")))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStripeWebhookSkipsUnpaidAndBadReference(t *testing.T) {
	fl := &fakeLedger{}
	h := &StripeWebhook{Secret: testSecret, Payments: fl}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutEvent("cs_2", "42", "tarif1", "unpaid")))
	if rec.Code != http.StatusOK || len(fl.payments) != 0 {
		t.Fatalf("unpaid session must be acknowledged without recording: %d %d", rec.Code, len(fl.payments))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, signedRequest(t, checkoutEvent("cs_3", "abc", "tarif1", "paid")))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad reference, got %d", rec.Code)
	}
}
