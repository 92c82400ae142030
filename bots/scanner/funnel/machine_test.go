package funnel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/scanbot/bots/scanner/access"
	"github.com/m3rciful/scanbot/bots/scanner/analysis"
	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/bots/scanner/entitlement"
	"github.com/m3rciful/scanbot/bots/scanner/llm"
	"github.com/m3rciful/scanbot/bots/scanner/names"
	"github.com/m3rciful/scanbot/bots/scanner/payment"
	"github.com/m3rciful/scanbot/bots/scanner/render"
	"github.com/m3rciful/scanbot/bots/scanner/session"
	"github.com/m3rciful/scanbot/bots/scanner/storage"
)

const uid = int64(7)

type sent struct {
	ref  chat.MessageRef
	body string
	menu *chat.Menu
}

type recordingOut struct {
	mu      sync.Mutex
	next    int
	sent    []sent
	edits   []sent
	deleted []chat.MessageRef
	docs    []string
}

func (o *recordingOut) SendText(_ context.Context, chatID int64, body string, menu *chat.Menu) (chat.MessageRef, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	ref := chat.MessageRef{ChatID: chatID, MessageID: o.next}
	o.sent = append(o.sent, sent{ref: ref, body: body, menu: menu})
	return ref, nil
}

func (o *recordingOut) SendDocument(_ context.Context, _ int64, path, filename, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, err := os.Stat(path); err != nil {
		return err
	}
	o.docs = append(o.docs, filename)
	return nil
}

func (o *recordingOut) EditText(_ context.Context, ref chat.MessageRef, body string, menu *chat.Menu) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.edits = append(o.edits, sent{ref: ref, body: body, menu: menu})
	return nil
}

func (o *recordingOut) Delete(_ context.Context, ref chat.MessageRef) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deleted = append(o.deleted, ref)
	return nil
}

func (o *recordingOut) last() sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return sent{}
	}
	return o.sent[len(o.sent)-1]
}

func hasTag(menu *chat.Menu, tag string) bool {
	if menu == nil {
		return false
	}
	for _, row := range menu.Rows {
		for _, b := range row {
			if b.Tag == tag {
				return true
			}
		}
	}
	return false
}

type fakeUsers struct{ ids []int64 }

func (f *fakeUsers) UpsertUser(_ context.Context, u storage.User) error {
	f.ids = append(f.ids, u.ID)
	return nil
}

type fakeReminders struct {
	started   []int64
	cancelled []int64
}

func (f *fakeReminders) Start(userID int64)  { f.started = append(f.started, userID) }
func (f *fakeReminders) Cancel(userID int64) { f.cancelled = append(f.cancelled, userID) }

type fakeAccess struct {
	known     map[string]access.Status
	activated map[string]bool
	err       error
}

func (f *fakeAccess) CheckFreeAccess(_ context.Context, contact string) (access.Status, error) {
	if f.err != nil {
		return access.Status{}, f.err
	}
	return f.known[access.NormalizeContact(contact)], nil
}

func (f *fakeAccess) ActivateFreeAccess(_ context.Context, contact string, _ int64) (bool, error) {
	c := access.NormalizeContact(contact)
	if f.activated[c] {
		return false, nil
	}
	if f.activated == nil {
		f.activated = map[string]bool{}
	}
	f.activated[c] = true
	return true, nil
}

type fakePayments struct {
	res payment.Result
	err error
}

func (f fakePayments) Verify(context.Context, int64) (payment.Result, error) { return f.res, f.err }

type fakeAnalyzer struct {
	reqs []analysis.Request
	res  analysis.Result
	err  error
}

func (f *fakeAnalyzer) Run(_ context.Context, req analysis.Request) (analysis.Result, error) {
	f.reqs = append(f.reqs, req)
	return f.res, f.err
}

type fixture struct {
	sessions  *session.Store
	ledger    *entitlement.Ledger
	out       *recordingOut
	users     *fakeUsers
	reminders *fakeReminders
	access    *fakeAccess
	analyzer  *fakeAnalyzer
	machine   *Machine
}

func newFixture(t *testing.T, payments payment.Verifier) *fixture {
	t.Helper()
	sessions := session.NewStore(session.Options{})
	f := &fixture{
		sessions:  sessions,
		ledger:    entitlement.NewLedger(sessions),
		out:       &recordingOut{},
		users:     &fakeUsers{},
		reminders: &fakeReminders{},
		access:    &fakeAccess{known: map[string]access.Status{}},
		analyzer:  &fakeAnalyzer{},
	}
	if payments == nil {
		payments = fakePayments{err: payment.ErrNotPaid}
	}
	f.machine = New(Deps{
		Sessions:  sessions,
		Ledger:    f.ledger,
		Out:       f.out,
		Users:     f.users,
		Payments:  payments,
		Access:    f.access,
		Analyzer:  f.analyzer,
		Reminders: f.reminders,
	}, Options{})
	return f
}

func (f *fixture) handle(t *testing.T, ev chat.Event) {
	t.Helper()
	ev.UserID = uid
	if err := f.machine.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle %+v: %v", ev, err)
	}
}

func (f *fixture) start(t *testing.T, args ...string) {
	f.handle(t, chat.Event{Kind: chat.EventCommand, Command: "start", Args: args})
}

func (f *fixture) press(t *testing.T, tag string) {
	f.handle(t, chat.Event{Kind: chat.EventMenu, Tag: tag})
}

func (f *fixture) text(t *testing.T, body string) {
	f.handle(t, chat.Event{Kind: chat.EventText, Text: body})
}

func (f *fixture) photo(t *testing.T, ref, caption string) {
	f.handle(t, chat.Event{Kind: chat.EventPhoto, PhotoRef: ref, Text: caption})
}

func (f *fixture) wantState(t *testing.T, want session.State) {
	t.Helper()
	if got := f.machine.State(uid); got != want {
		t.Fatalf("state = %q, want %q", got, want)
	}
}

func TestStartShowsWelcomeAndSchedulesFollowups(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	f.wantState(t, session.StateWelcome)
	if last := f.out.last(); last.body != textWelcome || !hasTag(last.menu, TagPricing) || !hasTag(last.menu, TagAbout) {
		t.Fatalf("unexpected welcome: %+v", last)
	}
	if len(f.reminders.started) != 1 || len(f.users.ids) != 1 {
		t.Fatalf("reminders=%v users=%v", f.reminders.started, f.users.ids)
	}
}

func TestEventWithoutSessionAsksForRestart(t *testing.T) {
	f := newFixture(t, nil)
	f.text(t, "привет")

	if f.out.last().body != textRestart {
		t.Fatalf("got %q", f.out.last().body)
	}
	if f.machine.Active(uid) {
		t.Fatal("no session must be created")
	}
}

func TestQuizAnswerIsStored(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.press(t, TagAbout)
	f.press(t, TagExamples)
	f.press(t, TagQuizLove)

	f.wantState(t, session.StateQuizResult)
	sess, _ := f.sessions.Get(uid)
	if sess.QuizAnswer != "love" {
		t.Fatalf("quiz answer = %q", sess.QuizAnswer)
	}
	if !hasTag(f.out.last().menu, TagPricing) {
		t.Fatal("quiz result must offer pricing")
	}
}

func TestCheckPaymentNotFoundStays(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.press(t, TagPricing)
	f.wantState(t, session.StateAwaitingPayment)

	f.press(t, TagCheckPayment)
	f.wantState(t, session.StateAwaitingPayment)
	last := f.out.last()
	if last.body != textPaymentNotFound || !hasTag(last.menu, TagCheckPayment) {
		t.Fatalf("unexpected reply: %+v", last)
	}
	if f.ledger.Check(uid) != entitlement.GateNotEntitled {
		t.Fatal("no credits must be granted")
	}
}

func TestCheckPaymentErrorEndsConversation(t *testing.T) {
	f := newFixture(t, fakePayments{err: errors.New("provider down")})
	f.start(t)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)

	f.wantState(t, session.StateTerminal)
	if !strings.Contains(f.out.last().body, "provider down") {
		t.Fatalf("got %q", f.out.last().body)
	}
}

func TestCheckPaymentErrorIsEscaped(t *testing.T) {
	f := newFixture(t, fakePayments{err: errors.New(`GET /check?a=1&b=2: status <502>`)})
	f.start(t)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)

	body := f.out.last().body
	if strings.ContainsAny(body, "<>") || !strings.Contains(body, "a=1&amp;b=2: status &lt;502&gt;") {
		t.Fatalf("error text must be HTML-escaped: %q", body)
	}
}

func TestEveryEventRefreshesUser(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.press(t, TagAbout)
	f.text(t, "просто текст")

	if len(f.users.ids) != 3 {
		t.Fatalf("upserts = %v, want one per event", f.users.ids)
	}
	for _, id := range f.users.ids {
		if id != uid {
			t.Fatalf("upserted %d, want %d", id, uid)
		}
	}
}

func TestPhotoWithoutEntitlementShowsPricing(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	if _, err := f.sessions.Update(uid, func(s *session.Session) error {
		s.State = session.StateAwaitingPhoto
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.photo(t, "p1", "Меня зовут Мария, хочу больше дохода")

	f.wantState(t, session.StateAwaitingPayment)
	if len(f.analyzer.reqs) != 0 {
		t.Fatal("analysis must not run without entitlement")
	}
}

func TestExhaustedCreditsOfferTopUp(t *testing.T) {
	f := newFixture(t, fakePayments{res: payment.Result{Tariff: "tarif1", Credits: 1}})
	f.start(t)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)
	if _, err := f.ledger.Consume(uid); err != nil {
		t.Fatal(err)
	}
	f.photo(t, "p1", "")

	f.wantState(t, session.StateTerminal)
	if f.out.last().body != textNoCredits {
		t.Fatalf("got %q", f.out.last().body)
	}
}

func TestPhotoThenTextThenName(t *testing.T) {
	f := newFixture(t, fakePayments{res: payment.Result{Tariff: "tarif2", Credits: 3}})
	f.analyzer.res = analysis.Result{AnalysisID: 1, Remaining: 2}
	f.start(t)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)
	f.wantState(t, session.StateAwaitingPhoto)
	if len(f.reminders.cancelled) == 0 {
		t.Fatal("payment must cancel reminders")
	}

	f.photo(t, "p1", "")
	f.wantState(t, session.StateAwaitingRequest)

	f.text(t, "хочу больше денег")
	f.wantState(t, session.StateAwaitingName)

	f.text(t, "анна!")
	if len(f.analyzer.reqs) != 1 {
		t.Fatalf("analysis runs = %d", len(f.analyzer.reqs))
	}
	req := f.analyzer.reqs[0]
	if req.DisplayName != "Анна" || req.RequestText != "хочу больше денег" || req.PhotoRef != "p1" {
		t.Fatalf("unexpected request: %+v", req)
	}
	f.wantState(t, session.StateAwaitingPhoto)
	last := f.out.last()
	if !strings.Contains(last.body, "2") || !hasTag(last.menu, TagNewAnalysis) {
		t.Fatalf("unexpected reply: %+v", last)
	}
	sess, _ := f.sessions.Get(uid)
	if sess.PendingPhoto != "" || sess.PendingText != "" || sess.DisplayName != "" {
		t.Fatalf("request not cleared: %+v", sess)
	}
	if len(f.out.deleted) != 1 {
		t.Fatal("processing message must be deleted")
	}
}

func TestRequestTextWithoutPhoto(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	if _, err := f.sessions.Update(uid, func(s *session.Session) error {
		s.State = session.StateAwaitingRequest
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	f.text(t, "хочу любви")

	f.wantState(t, session.StateTerminal)
	if f.out.last().body != textPhotoFirst {
		t.Fatalf("got %q", f.out.last().body)
	}
}

func TestAnalysisFailureEndsConversation(t *testing.T) {
	f := newFixture(t, fakePayments{res: payment.Result{Credits: 1}})
	f.analyzer.err = errors.New("model timeout")
	f.start(t)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)
	f.photo(t, "p1", "Меня зовут Мария, хочу больше дохода")

	f.wantState(t, session.StateTerminal)
	if len(f.out.edits) != 1 || !strings.Contains(f.out.edits[0].body, "model timeout") {
		t.Fatalf("edits = %+v", f.out.edits)
	}
	if f.ledger.Check(uid) != entitlement.GateOpen {
		t.Fatal("failed analysis must keep the credit")
	}
}

func TestAnalysisFailureTextIsEscaped(t *testing.T) {
	f := newFixture(t, fakePayments{res: payment.Result{Credits: 1}})
	f.analyzer.err = errors.New(`generate: Post "https://ark.example/api?a=1&b=2": status <503>`)
	f.start(t)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)
	f.photo(t, "p1", "Меня зовут Мария, хочу больше дохода")

	if len(f.out.edits) != 1 {
		t.Fatalf("edits = %+v", f.out.edits)
	}
	want := failureText(textAnalysisFailed, f.analyzer.err)
	if got := f.out.edits[0].body; got != want || strings.Contains(got, "<503>") || strings.Contains(got, "a=1&b") {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFreeAccessUnknownEmail(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t, "checkdostup")
	f.wantState(t, session.StateCheckingFreeAccess)

	f.text(t, "nobody@example.com")
	f.wantState(t, session.StateCheckingFreeAccess)
	if len(f.out.edits) != 1 {
		t.Fatalf("edits = %d", len(f.out.edits))
	}
	edit := f.out.edits[0]
	if edit.body != textAccessNotFound || !hasTag(edit.menu, TagRetryEmail) {
		t.Fatalf("unexpected edit: %+v", edit)
	}
}

func TestFreeAccessGrantedOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.access.known["anna@example.com"] = access.Status{
		HasAccess:     true,
		ExpiresAt:     time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		DaysRemaining: 30,
	}
	f.start(t, "checkdostup")
	f.text(t, " Anna@Example.com ")

	f.wantState(t, session.StateAwaitingPhoto)
	if f.ledger.Check(uid) != entitlement.GateOpen {
		t.Fatal("free access must open the gate")
	}
	if !strings.Contains(f.out.edits[0].body, "31.12.2026") {
		t.Fatalf("got %q", f.out.edits[0].body)
	}

	f.start(t, "checkdostup")
	f.text(t, "anna@example.com")
	if f.out.edits[1].body != textAccessAlreadyUsed {
		t.Fatalf("got %q", f.out.edits[1].body)
	}
}

func TestFreeScanDeepLink(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t, "freescan")

	f.wantState(t, session.StateAwaitingPhoto)
	sess, _ := f.sessions.Get(uid)
	if sess.PaymentStatus != session.PaymentFree || sess.Credits != entitlement.Unlimited {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestRestartKeepsPaidCredits(t *testing.T) {
	f := newFixture(t, fakePayments{res: payment.Result{Credits: 5}})
	f.start(t)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)
	f.start(t)

	sess, _ := f.sessions.Get(uid)
	if sess.Credits != 5 || sess.State != session.StateWelcome {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if !hasTag(f.out.last().menu, TagNewAnalysis) {
		t.Fatal("entitled welcome must offer a new analysis")
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.handle(t, chat.Event{Kind: chat.EventCommand, Command: "cancel"})

	f.wantState(t, session.StateTerminal)
	if len(f.reminders.cancelled) != 1 {
		t.Fatal("cancel must stop reminders")
	}
	f.press(t, TagPricing)
	if f.out.last().body != textRestart {
		t.Fatalf("got %q", f.out.last().body)
	}
}

func TestTypedTextOnMenuScreen(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.text(t, "что дальше?")
	f.wantState(t, session.StateWelcome)
	if f.out.last().body != textUseMenu {
		t.Fatalf("got %q", f.out.last().body)
	}

	f.text(t, "checkdostup")
	f.wantState(t, session.StateCheckingFreeAccess)
}

// Pipeline fakes for the end-to-end scenario.

type stubGenerator struct{}

func (stubGenerator) Analyze(context.Context, string, string) (llm.Result, error) {
	return llm.Result{Text: "**1) Суть**\nу тебя есть ресурс", Model: "test-model"}, nil
}

func (stubGenerator) Declensions(_ context.Context, name string) (names.Declensions, error) {
	return names.Fallback(name), nil
}

type fileRenderer struct{ dir string }

func (r fileRenderer) Render(_ context.Context, _ render.Document) (string, error) {
	path := filepath.Join(r.dir, "scan.pdf")
	return path, os.WriteFile(path, []byte("%PDF-1.3"), 0o600)
}

type memoryStore struct {
	analyses []storage.Analysis
	photos   int
}

func (s *memoryStore) SaveAnalysis(_ context.Context, a storage.Analysis) (int64, error) {
	s.analyses = append(s.analyses, a)
	return int64(len(s.analyses)), nil
}

func (s *memoryStore) SavePhoto(context.Context, int64, []byte) error {
	s.photos++
	return nil
}

type filePhotos struct{}

func (filePhotos) Download(_ context.Context, ref, dir string) (string, error) {
	path := filepath.Join(dir, ref+".jpg")
	return path, os.WriteFile(path, []byte("jpeg"), 0o600)
}

func TestPaidScenarioEndToEnd(t *testing.T) {
	sessions := session.NewStore(session.Options{})
	ledger := entitlement.NewLedger(sessions)
	out := &recordingOut{}
	store := &memoryStore{}
	orch := analysis.New(analysis.Deps{
		Generator: stubGenerator{},
		Renderer:  fileRenderer{dir: t.TempDir()},
		Store:     store,
		Photos:    filePhotos{},
		Out:       out,
		Credits:   ledger,
	}, analysis.Options{PhotosDir: t.TempDir()})
	f := &fixture{sessions: sessions, ledger: ledger, out: out}
	f.machine = New(Deps{
		Sessions: sessions,
		Ledger:   ledger,
		Out:      out,
		Payments: payment.Stub{Credits: 1},
		Access:   &fakeAccess{},
		Analyzer: orch,
	}, Options{})

	f.start(t)
	f.press(t, TagAbout)
	f.press(t, TagExamples)
	f.press(t, TagPricing)
	f.press(t, TagCheckPayment)
	f.wantState(t, session.StateAwaitingPhoto)

	f.photo(t, "photo-1", "Меня зовут Мария, хочу больше дохода")

	f.wantState(t, session.StateTerminal)
	sess, _ := sessions.Get(uid)
	if sess.Credits != 0 {
		t.Fatalf("credits = %d", sess.Credits)
	}
	if len(store.analyses) != 1 || store.photos != 1 {
		t.Fatalf("analyses=%d photos=%d", len(store.analyses), store.photos)
	}
	if got := store.analyses[0].RequestText; got != "Меня зовут Мария, хочу больше дохода" {
		t.Fatalf("request = %q", got)
	}
	if len(out.docs) != 1 || out.docs[0] != "Сканер_подсознания_Мария.pdf" {
		t.Fatalf("docs = %v", out.docs)
	}
	if out.last().body != textLastScan {
		t.Fatalf("got %q", out.last().body)
	}
}
