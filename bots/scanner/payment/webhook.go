package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/m3rciful/scanbot/bots/scanner/storage"
	"github.com/m3rciful/scanbot/core/logger"
)

const maxWebhookBody = int64(65536)

// Recorder stores confirmed payments idempotently.
type Recorder interface {
	RecordPayment(ctx context.Context, p storage.Payment) (bool, error)
}

// StripeWebhook records completed Checkout Sessions. The session's
// client_reference_id carries the Telegram user id and metadata.tariff the
// purchased tariff.
type StripeWebhook struct {
	Secret   string
	Payments Recorder
	Tariffs  []Tariff
	// Notify is called once per newly recorded payment.
	Notify func(ctx context.Context, userID int64)
}

func (h *StripeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if h.Secret == "" {
		logger.LogEvent(ctx, logger.SVCPayments, slog.LevelError, "webhook.not_configured")
		writeJSON(w, http.StatusInternalServerError, "webhook not configured")
		return
	}

	event, err := webhook.ConstructEventWithOptions(body, r.Header.Get("Stripe-Signature"), h.Secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		logger.LogEvent(ctx, logger.SVCPayments, slog.LevelWarn, "webhook.signature_failed",
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			writeJSON(w, http.StatusBadRequest, "invalid session payload")
			return
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			logger.LogEvent(ctx, logger.SVCPayments, slog.LevelInfo, "webhook.unpaid",
				slog.String("session", sess.ID),
			)
			break
		}
		userID, err := strconv.ParseInt(strings.TrimSpace(sess.ClientReferenceID), 10, 64)
		if err != nil || userID <= 0 {
			writeJSON(w, http.StatusBadRequest, "missing client reference id")
			return
		}
		ctx = logger.WithJob(ctx, "stripe.webhook", userID)
		p := h.paymentFor(&sess, userID)
		inserted, err := h.Payments.RecordPayment(ctx, p)
		if err != nil {
			logger.LogEvent(ctx, logger.SVCPayments, slog.LevelError, "webhook.record_failed",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusInternalServerError, "failed to record payment")
			return
		}
		logger.LogEvent(ctx, logger.SVCPayments, slog.LevelInfo, "webhook.payment",
			slog.Int64("user_id", userID),
			slog.String("tariff", p.Tariff),
			slog.Int("credits", p.Credits),
			slog.Bool("duplicate", !inserted),
		)
		if inserted && h.Notify != nil {
			h.Notify(ctx, userID)
		}
	}

	writeJSON(w, http.StatusOK, "")
}

func (h *StripeWebhook) paymentFor(sess *stripe.CheckoutSession, userID int64) storage.Payment {
	tariff := strings.TrimSpace(sess.Metadata["tariff"])
	credits := 0
	if t, ok := FindTariff(h.Tariffs, tariff); ok {
		credits = t.Credits
	}
	if credits <= 0 {
		if n, err := strconv.Atoi(sess.Metadata["credits"]); err == nil {
			credits = n
		}
	}
	if credits <= 0 {
		credits = 1
	}
	return storage.Payment{
		Provider:    "stripe",
		ProviderRef: sess.ID,
		UserID:      userID,
		Tariff:      tariff,
		Credits:     credits,
		AmountCents: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}
}

func writeJSON(w http.ResponseWriter, status int, errText string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if errText == "" {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errText})
}
