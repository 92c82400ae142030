package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestUpsertUser(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users").
		WithArgs(int64(42), "maria", "Мария", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpsertUser(context.Background(), User{ID: 42, Username: "maria", FirstName: "Мария"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUserStats(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM users").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "username", "first_name", "last_name", "created_at", "last_active", "total_analyses"}).
			AddRow(int64(42), "maria", "Мария", "", now, now, 3))
	mock.ExpectQuery("FROM users").
		WithArgs(int64(43)).
		WillReturnError(sql.ErrNoRows)

	u, err := repo.UserStats(context.Background(), 42)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if u.FirstName != "Мария" || u.TotalAnalyses != 3 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := repo.UserStats(context.Background(), 43); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveAnalysisWritesThemesAndCounterInOneTx(t *testing.T) {
	repo, mock := newMock(t)
	a := Analysis{
		UserID:      42,
		PhotoRef:    "file-1",
		RequestText: "хочу больше дохода и любви",
		Result:      "текст",
		PDFPath:     "/tmp/scan.pdf",
		TokensUsed:  3000,
		CostUSD:     0.0135,
		Model:       "gpt-4o",
	}
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO analyses").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectExec("INSERT INTO request_themes").
		WithArgs(int64(7), "деньги").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO request_themes").
		WithArgs(int64(7), "отношения").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE users SET total_analyses").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := repo.SaveAnalysis(context.Background(), a)
	if err != nil {
		t.Fatalf("save analysis: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveAnalysisRollsBackOnFailure(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO analyses").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	if _, err := repo.SaveAnalysis(context.Background(), Analysis{UserID: 1, RequestText: "x"}); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSavePhotoEncodesBase64(t *testing.T) {
	repo, mock := newMock(t)
	data := bytes.Repeat([]byte{0xFF}, 2048)
	mock.ExpectExec("INSERT INTO photos").
		WithArgs(int64(7), sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.SavePhoto(context.Background(), 7, data); err != nil {
		t.Fatalf("save photo: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestClassifyThemes(t *testing.T) {
	cases := map[string][]string{
		"Хочу больше дохода":            {"деньги"},
		"проблемы в отношениях с мужем": {"отношения"},
		"здоровье и работа":             {"здоровье", "реализация"},
		"мне нужен ответ":               {"другое"},
		"":                              {"другое"},
	}
	for in, want := range cases {
		if got := ClassifyThemes(in); !reflect.DeepEqual(got, want) {
			t.Fatalf("ClassifyThemes(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestApproveForDataset(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("UPDATE analyses").
		WithArgs(5, "хорошо", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE analyses").
		WithArgs(4, "", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.ApproveForDataset(context.Background(), 7, 5, "хорошо"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := repo.ApproveForDataset(context.Background(), 8, 4, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.ApproveForDataset(context.Background(), 9, 6, ""); err == nil {
		t.Fatalf("expected rating validation error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReports(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM request_themes").
		WillReturnRows(sqlmock.NewRows([]string{"theme", "count"}).
			AddRow("деньги", 3).
			AddRow("другое", 1))
	mock.ExpectQuery("FROM analyses").
		WillReturnRows(sqlmock.NewRows([]string{
			"total_analyses", "total_cost_usd", "avg_cost_usd", "min_cost_usd",
			"max_cost_usd", "total_tokens", "avg_tokens",
		}).AddRow(2, 0.02, 0.01, 0.005, 0.015, int64(4000), 2000.0))

	themes, err := repo.ThemeCounts(context.Background())
	if err != nil {
		t.Fatalf("themes: %v", err)
	}
	if len(themes) != 2 || themes[0].Theme != "деньги" || themes[0].Count != 3 {
		t.Fatalf("unexpected themes: %#v", themes)
	}
	sum, err := repo.CostSummary(context.Background())
	if err != nil {
		t.Fatalf("costs: %v", err)
	}
	if sum.Analyses != 2 || sum.TotalTokens != 4000 || sum.MaxUSD != 0.015 {
		t.Fatalf("unexpected summary: %#v", sum)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExportDataset(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM analyses a").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"request_text", "analysis_result", "photo_base64"}).
			AddRow("запрос <1>", "ответ", "QUJD").
			AddRow("без фото", "ответ 2", ""))

	var buf bytes.Buffer
	n, err := repo.ExportDataset(context.Background(), &buf, 4)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 lines, got %d", n)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 jsonl lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "запрос <1>") || !strings.Contains(lines[0], "data:image/jpeg;base64,QUJD") {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
	var second struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(second.Messages) != 2 || second.Messages[1].Role != "assistant" {
		t.Fatalf("unexpected messages: %#v", second.Messages)
	}
	if strings.Contains(string(second.Messages[0].Content), "image_url") {
		t.Fatalf("photo-less row must not carry an image: %s", second.Messages[0].Content)
	}
}

func TestRecordPaymentIsIdempotent(t *testing.T) {
	repo, mock := newMock(t)
	p := Payment{Provider: "stripe", ProviderRef: "cs_1", UserID: 42, Tariff: "tarif1", Credits: 1}
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payments").WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.RecordPayment(context.Background(), p)
	if err != nil || !first {
		t.Fatalf("first record: inserted=%v err=%v", first, err)
	}
	second, err := repo.RecordPayment(context.Background(), p)
	if err != nil || second {
		t.Fatalf("second record: inserted=%v err=%v", second, err)
	}
}

func TestClaimPayment(t *testing.T) {
	repo, mock := newMock(t)
	cols := []string{"id", "provider", "provider_ref", "user_id", "tariff", "credits", "amount_cents", "currency"}
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(3), "stripe", "cs_1", int64(42), "tarif2", 3, int64(9900), "rub"))
	mock.ExpectExec("UPDATE payments SET claimed_at").
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	p, err := repo.ClaimPayment(context.Background(), 42)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if p.Credits != 3 || p.Tariff != "tarif2" {
		t.Fatalf("unexpected payment: %#v", p)
	}
	if _, err := repo.ClaimPayment(context.Background(), 42); !errors.Is(err, ErrNoPayment) {
		t.Fatalf("expected ErrNoPayment, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
