package funnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/scanbot/bots/scanner/analysis"
	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/bots/scanner/entitlement"
	"github.com/m3rciful/scanbot/bots/scanner/names"
	"github.com/m3rciful/scanbot/bots/scanner/payment"
	"github.com/m3rciful/scanbot/bots/scanner/session"
	"github.com/m3rciful/scanbot/bots/scanner/storage"
	"github.com/m3rciful/scanbot/core/logger"
	"github.com/m3rciful/scanbot/core/telegram/format"
)

// minCaptionLen is the caption length above which a photo caption counts as the request.
const minCaptionLen = 10

func (m *Machine) onStart(ctx context.Context, ev chat.Event) error {
	m.fresh(ev.UserID, ev.ChatID)

	param := ""
	if len(ev.Args) > 0 {
		param = strings.ToLower(strings.TrimSpace(ev.Args[0]))
	}
	logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelInfo, "funnel.start",
		slog.Int64("user_id", ev.UserID),
		slog.String("deep_link", param),
	)

	switch param {
	case DeepLinkCheckAccess:
		if _, err := m.moveTo(ev.UserID, session.StateCheckingFreeAccess, session.StageCheckAccess); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textAccessPrompt, nil)
	case DeepLinkFreeScan:
		if _, err := m.ledger.GrantFree(ev.UserID, DeepLinkFreeScan); err != nil {
			return err
		}
		m.cancelReminders(ev.UserID)
		if _, err := m.moveTo(ev.UserID, session.StateAwaitingPhoto, ""); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textFreeScanWelcome, nil)
	}

	sess, err := m.moveTo(ev.UserID, session.StateWelcome, session.StageWelcome)
	if err != nil {
		return err
	}
	if m.reminders != nil && !sess.Entitled() {
		m.reminders.Start(ev.UserID)
	}
	return m.send(ctx, ev.ChatID, textWelcome, welcomeMenu(sess))
}

// fresh replaces the session. Purchased entitlement survives a restart.
func (m *Machine) fresh(userID, chatID int64) session.Session {
	old, had := m.sessions.Get(userID)
	sess := m.sessions.Reset(userID, chatID)
	if !had || !old.Entitled() {
		return sess
	}
	kept, err := m.sessions.Update(userID, func(s *session.Session) error {
		s.PaymentStatus = old.PaymentStatus
		s.Credits = old.Credits
		s.Subscription = old.Subscription
		return nil
	})
	if err != nil {
		return sess
	}
	return kept
}

func (m *Machine) upsertUser(ctx context.Context, ev chat.Event) {
	if m.users == nil {
		return
	}
	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	err := m.users.UpsertUser(cctx, storage.User{
		ID:        ev.UserID,
		Username:  ev.Profile.Username,
		FirstName: ev.Profile.FirstName,
		LastName:  ev.Profile.LastName,
	})
	if err != nil {
		logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelWarn, "funnel.upsert_user_failed",
			slog.Int64("user_id", ev.UserID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Machine) onCancel(ctx context.Context, ev chat.Event) error {
	m.cancelReminders(ev.UserID)
	if m.sessions.Exists(ev.UserID) {
		if _, err := m.moveTo(ev.UserID, session.StateTerminal, ""); err != nil {
			return err
		}
	}
	return m.send(ctx, ev.ChatID, textCancelled, nil)
}

func (m *Machine) onTerminal(ctx context.Context, _ session.Session, ev chat.Event) error {
	return m.send(ctx, ev.ChatID, textRestart, nil)
}

// onNavigate handles menu buttons of the marketing screens.
func (m *Machine) onNavigate(ctx context.Context, sess session.Session, ev chat.Event) error {
	switch {
	case ev.Tag == TagShowWelcome:
		if _, err := m.moveTo(sess.UserID, session.StateWelcome, session.StageWelcome); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textWelcome, welcomeMenu(sess))
	case ev.Tag == TagAbout:
		if _, err := m.moveTo(sess.UserID, session.StateAbout, session.StageAbout); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textAbout, aboutMenu())
	case ev.Tag == TagExamples:
		if _, err := m.moveTo(sess.UserID, session.StateExamples, session.StageExamples); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textExamples+"\n\n"+textExamplesCTA, examplesMenu())
	case isQuizTag(ev.Tag):
		if _, err := m.sessions.Update(sess.UserID, func(s *session.Session) error {
			s.State = session.StateQuizResult
			s.FunnelStage = session.StageQuizResult
			s.QuizAnswer = strings.TrimPrefix(ev.Tag, "quiz_")
			return nil
		}); err != nil {
			return err
		}
		if err := m.send(ctx, ev.ChatID, quizExamples[ev.Tag], nil); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textQuizCTA, quizResultMenu())
	case ev.Tag == TagPricing:
		return m.showPricing(ctx, sess, ev.ChatID)
	case ev.Tag == TagCheckPayment:
		return m.checkPayment(ctx, sess, ev.ChatID)
	case ev.Tag == TagNewAnalysis:
		return m.newAnalysis(ctx, sess, ev.ChatID)
	}
	return m.send(ctx, ev.ChatID, textStaleButton, nil)
}

// onMenuText handles typed text on marketing screens.
func (m *Machine) onMenuText(ctx context.Context, sess session.Session, ev chat.Event) error {
	if strings.EqualFold(strings.TrimSpace(ev.Text), DeepLinkCheckAccess) {
		if _, err := m.moveTo(sess.UserID, session.StateCheckingFreeAccess, session.StageCheckAccess); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textAccessPrompt, nil)
	}
	return m.send(ctx, ev.ChatID, textUseMenu, nil)
}

func (m *Machine) showPricing(ctx context.Context, sess session.Session, chatID int64) error {
	if _, err := m.ledger.MarkPending(sess.UserID); err != nil {
		return err
	}
	if _, err := m.moveTo(sess.UserID, session.StateAwaitingPayment, session.StagePricing); err != nil {
		return err
	}
	return m.send(ctx, chatID, textPricing, m.pricingMenu(sess.UserID))
}

func (m *Machine) checkPayment(ctx context.Context, sess session.Session, chatID int64) error {
	if sess.State != session.StateAwaitingPayment {
		return m.showPricing(ctx, sess, chatID)
	}
	if err := m.send(ctx, chatID, textCheckingPayment, nil); err != nil {
		return err
	}
	cctx, cancel := m.callCtx(ctx)
	res, err := m.payments.Verify(cctx, sess.UserID)
	cancel()
	if errors.Is(err, payment.ErrNotPaid) {
		return m.send(ctx, chatID, textPaymentNotFound, retryPaymentMenu())
	}
	if err != nil {
		return m.fail(ctx, sess.UserID, chatID, err)
	}
	if _, err := m.ledger.GrantPaid(sess.UserID, res.Credits, res.Tariff); err != nil {
		return m.fail(ctx, sess.UserID, chatID, err)
	}
	m.cancelReminders(sess.UserID)
	if _, err := m.moveTo(sess.UserID, session.StateAwaitingPhoto, ""); err != nil {
		return err
	}
	return m.send(ctx, chatID, textPaymentConfirmed, nil)
}

func (m *Machine) newAnalysis(ctx context.Context, sess session.Session, chatID int64) error {
	switch entitlement.GateFor(sess) {
	case entitlement.GateNotEntitled:
		return m.showPricing(ctx, sess, chatID)
	case entitlement.GateExhausted:
		return m.exhausted(ctx, sess.UserID, chatID)
	}
	if _, err := m.sessions.Renew(sess.UserID); err != nil {
		return err
	}
	if _, err := m.moveTo(sess.UserID, session.StateAwaitingPhoto, ""); err != nil {
		return err
	}
	return m.send(ctx, chatID, textPhotoPrompt, nil)
}

// onContact treats the text as the email of a free-access grant.
func (m *Machine) onContact(ctx context.Context, sess session.Session, ev chat.Event) error {
	contact := strings.TrimSpace(ev.Text)
	ref, err := m.out.SendText(ctx, ev.ChatID, textAccessVerifying, nil)
	if err != nil {
		return err
	}
	cctx, cancel := m.callCtx(ctx)
	defer cancel()

	st, err := m.access.CheckFreeAccess(cctx, contact)
	if err != nil {
		return m.failEdit(ctx, sess.UserID, ref, err)
	}
	if !st.HasAccess {
		return m.out.EditText(ctx, ref, textAccessNotFound, retryEmailMenu(btnRetryEmail))
	}
	activated, err := m.access.ActivateFreeAccess(cctx, contact, sess.UserID)
	if err != nil {
		return m.failEdit(ctx, sess.UserID, ref, err)
	}
	if !activated {
		return m.out.EditText(ctx, ref, textAccessAlreadyUsed, retryEmailMenu(btnOtherEmail))
	}
	if _, err := m.ledger.GrantFree(sess.UserID, "free"); err != nil {
		return m.failEdit(ctx, sess.UserID, ref, err)
	}
	m.cancelReminders(sess.UserID)
	if _, err := m.moveTo(sess.UserID, session.StateAwaitingPhoto, ""); err != nil {
		return err
	}
	until := "без ограничений"
	if !st.ExpiresAt.IsZero() {
		until = st.ExpiresAt.Format("02.01.2006")
	}
	return m.out.EditText(ctx, ref, fmt.Sprintf(textAccessGranted, until, st.DaysRemaining), nil)
}

func (m *Machine) onAccessMenu(ctx context.Context, sess session.Session, ev chat.Event) error {
	switch ev.Tag {
	case TagRetryEmail:
		return m.send(ctx, ev.ChatID, textAccessPrompt, nil)
	case TagPricing:
		return m.showPricing(ctx, sess, ev.ChatID)
	}
	return m.send(ctx, ev.ChatID, textStaleButton, nil)
}

// onWorkMenu handles buttons while the user is assembling a request.
func (m *Machine) onWorkMenu(ctx context.Context, sess session.Session, ev chat.Event) error {
	switch ev.Tag {
	case TagNewAnalysis:
		return m.newAnalysis(ctx, sess, ev.ChatID)
	case TagPricing:
		if sess.Entitled() {
			return m.send(ctx, ev.ChatID, textPhotoPrompt, nil)
		}
		return m.showPricing(ctx, sess, ev.ChatID)
	}
	return m.send(ctx, ev.ChatID, textStaleButton, nil)
}

// gate enforces entitlement before any analysis input is accepted. It reports
// whether the caller may continue.
func (m *Machine) gate(ctx context.Context, sess session.Session, chatID int64) (bool, error) {
	switch entitlement.GateFor(sess) {
	case entitlement.GateNotEntitled:
		if err := m.send(ctx, chatID, textNeedPayment, payAccessMenu()); err != nil {
			return false, err
		}
		return false, m.showPricing(ctx, sess, chatID)
	case entitlement.GateExhausted:
		return false, m.exhausted(ctx, sess.UserID, chatID)
	}
	return true, nil
}

func (m *Machine) exhausted(ctx context.Context, userID, chatID int64) error {
	if _, err := m.moveTo(userID, session.StateTerminal, ""); err != nil {
		return err
	}
	return m.send(ctx, chatID, textNoCredits, m.topUpMenu(userID))
}

func (m *Machine) onPhoto(ctx context.Context, sess session.Session, ev chat.Event) error {
	if ok, err := m.gate(ctx, sess, ev.ChatID); !ok {
		return err
	}
	caption := strings.TrimSpace(ev.Text)
	sess, err := m.sessions.Update(sess.UserID, func(s *session.Session) error {
		s.PendingPhoto = ev.PhotoRef
		if utf8.RuneCountInString(caption) > minCaptionLen {
			s.PendingText = caption
			if name, ok := m.names.Extract(caption); ok {
				s.DisplayName = name
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch {
	case sess.PendingText != "" && sess.DisplayName != "":
		return m.runAnalysis(ctx, sess, ev.ChatID)
	case sess.PendingText != "":
		if _, err := m.moveTo(sess.UserID, session.StateAwaitingName, ""); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textNamePrompt, nil)
	}
	if _, err := m.moveTo(sess.UserID, session.StateAwaitingRequest, ""); err != nil {
		return err
	}
	return m.send(ctx, ev.ChatID, textRequestPrompt, nil)
}

func (m *Machine) onTextInsteadOfPhoto(ctx context.Context, sess session.Session, ev chat.Event) error {
	if ok, err := m.gate(ctx, sess, ev.ChatID); !ok {
		return err
	}
	text := strings.TrimSpace(ev.Text)
	name, found := m.names.Extract(text)
	if _, err := m.sessions.Update(sess.UserID, func(s *session.Session) error {
		s.PendingText = text
		if found {
			s.DisplayName = name
		} else {
			s.State = session.StateAwaitingName
		}
		return nil
	}); err != nil {
		return err
	}
	if found {
		return m.send(ctx, ev.ChatID, textRequestSavedSendPhoto, nil)
	}
	return m.send(ctx, ev.ChatID, textNamePrompt, nil)
}

func (m *Machine) onRequestText(ctx context.Context, sess session.Session, ev chat.Event) error {
	if sess.PendingPhoto == "" {
		if _, err := m.moveTo(sess.UserID, session.StateTerminal, ""); err != nil {
			return err
		}
		return m.send(ctx, ev.ChatID, textPhotoFirst, nil)
	}
	if ok, err := m.gate(ctx, sess, ev.ChatID); !ok {
		return err
	}
	text := strings.TrimSpace(ev.Text)
	name, found := m.names.Extract(text)
	sess, err := m.sessions.Update(sess.UserID, func(s *session.Session) error {
		s.PendingText = text
		if found {
			s.DisplayName = name
		} else {
			s.State = session.StateAwaitingName
		}
		return nil
	})
	if err != nil {
		return err
	}
	if found {
		return m.runAnalysis(ctx, sess, ev.ChatID)
	}
	return m.send(ctx, ev.ChatID, textNamePrompt, nil)
}

func (m *Machine) onName(ctx context.Context, sess session.Session, ev chat.Event) error {
	fields := strings.Fields(ev.Text)
	if len(fields) == 0 {
		return m.send(ctx, ev.ChatID, textNameRetry, nil)
	}
	name, ok := names.Normalize(fields[0])
	if !ok {
		return m.send(ctx, ev.ChatID, textNameRetry, nil)
	}
	if ok, err := m.gate(ctx, sess, ev.ChatID); !ok {
		return err
	}
	sess, err := m.sessions.Update(sess.UserID, func(s *session.Session) error {
		s.DisplayName = name
		if s.PendingPhoto == "" {
			s.State = session.StateAwaitingPhoto
		}
		return nil
	})
	if err != nil {
		return err
	}
	if sess.PendingPhoto == "" {
		return m.send(ctx, ev.ChatID, textNameSavedSendPhoto, nil)
	}
	return m.runAnalysis(ctx, sess, ev.ChatID)
}

func (m *Machine) runAnalysis(ctx context.Context, sess session.Session, chatID int64) error {
	ref, err := m.out.SendText(ctx, chatID, textProcessing, nil)
	if err != nil {
		return err
	}
	actx, cancel := context.WithTimeout(ctx, m.opts.AnalysisTimeout)
	res, err := m.analyzer.Run(actx, analysis.Request{
		UserID:      sess.UserID,
		ChatID:      chatID,
		DisplayName: sess.DisplayName,
		RequestText: sess.PendingText,
		PhotoRef:    sess.PendingPhoto,
	})
	cancel()

	if errors.Is(err, entitlement.ErrNoCredits) || errors.Is(err, entitlement.ErrNotEntitled) {
		m.deleteQuietly(ctx, ref)
		return m.exhausted(ctx, sess.UserID, chatID)
	}
	if err != nil {
		if _, uerr := m.sessions.Update(sess.UserID, func(s *session.Session) error {
			s.ClearRequest()
			s.State = session.StateTerminal
			return nil
		}); uerr != nil {
			return uerr
		}
		return m.out.EditText(ctx, ref, failureText(textAnalysisFailed, err), nil)
	}

	m.deleteQuietly(ctx, ref)
	next := session.StateAwaitingPhoto
	if res.Remaining <= 0 {
		next = session.StateTerminal
	}
	if _, err := m.sessions.Update(sess.UserID, func(s *session.Session) error {
		s.ClearRequest()
		s.State = next
		return nil
	}); err != nil {
		return err
	}
	switch {
	case res.Remaining <= 0:
		return m.send(ctx, chatID, textLastScan, m.topUpMenu(sess.UserID))
	case res.Remaining >= entitlement.Unlimited/2:
		return m.send(ctx, chatID, textUnlimitedMore, newAnalysisMenu())
	}
	return m.send(ctx, chatID, fmt.Sprintf(textRemaining, res.Remaining), newAnalysisMenu())
}

// failureText fills a failure template with the escaped cause; replies are sent as HTML.
func failureText(tmpl string, cause error) string {
	return fmt.Sprintf(tmpl, format.EscapeHTML(cause.Error()))
}

// fail reports a collaborator error and ends the conversation.
func (m *Machine) fail(ctx context.Context, userID, chatID int64, cause error) error {
	logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelError, "funnel.collaborator_failed",
		slog.Int64("user_id", userID),
		slog.String("error", cause.Error()),
	)
	if _, err := m.moveTo(userID, session.StateTerminal, ""); err != nil {
		return err
	}
	return m.send(ctx, chatID, failureText(textGenericFailure, cause), nil)
}

// failEdit is fail for flows that already show a progress message.
func (m *Machine) failEdit(ctx context.Context, userID int64, ref chat.MessageRef, cause error) error {
	logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelError, "funnel.collaborator_failed",
		slog.Int64("user_id", userID),
		slog.String("error", cause.Error()),
	)
	if _, err := m.moveTo(userID, session.StateTerminal, ""); err != nil {
		return err
	}
	return m.out.EditText(ctx, ref, failureText(textGenericFailure, cause), nil)
}

func (m *Machine) deleteQuietly(ctx context.Context, ref chat.MessageRef) {
	if err := m.out.Delete(ctx, ref); err != nil {
		logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelDebug, "funnel.delete_failed",
			slog.String("error", err.Error()),
		)
	}
}

func (m *Machine) cancelReminders(userID int64) {
	if m.reminders != nil {
		m.reminders.Cancel(userID)
	}
}

// NotifyPaymentReceived tells a user that a webhook-confirmed payment is waiting.
func (m *Machine) NotifyPaymentReceived(ctx context.Context, userID int64) {
	sess, ok := m.sessions.Get(userID)
	chatID := userID
	if ok && sess.ChatID != 0 {
		chatID = sess.ChatID
	}
	if err := m.send(ctx, chatID, textPaymentReceived, retryPaymentMenu()); err != nil {
		logger.LogEvent(ctx, logger.SVCFunnel, slog.LevelWarn, "funnel.notify_failed",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
