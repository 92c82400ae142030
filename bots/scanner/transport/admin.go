package transport

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/scanbot/bots/scanner/storage"
	tg "github.com/m3rciful/scanbot/core/telegram"
	"github.com/m3rciful/scanbot/core/telegram/commands"
	"github.com/m3rciful/scanbot/core/telegram/format"
	"github.com/m3rciful/scanbot/core/telegram/helpers"
)

// Reports are the read-mostly queries behind the admin commands.
type Reports interface {
	RecentAnalyses(ctx context.Context, limit int) ([]storage.RecentAnalysis, error)
	ThemeCounts(ctx context.Context) ([]storage.ThemeCount, error)
	CostSummary(ctx context.Context) (storage.CostSummary, error)
	ApproveForDataset(ctx context.Context, analysisID int64, rating int, notes string) error
	UserStats(ctx context.Context, userID int64) (storage.User, error)
}

const recentLimit = 10

func (h *Handlers) registerAdmin(reg *tg.Registry) {
	reg.RegisterCommand("/stats", commands.Command{
		Handler:     h.stats,
		Description: "Статистика анализов",
		Args:        "[user_id]",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/recent", commands.Command{
		Handler:     h.recent,
		Description: "Последние анализы",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/approve", commands.Command{
		Handler:     h.approve,
		Description: "Одобрить анализ для датасета",
		Args:        "<id> <1-5> [заметка]",
		MinArgs:     2,
		AdminOnly:   true,
	})
}

// stats prints totals, or one user's record with "/stats <user_id>".
func (h *Handlers) stats(c tele.Context) error {
	ctx := helpers.WithHandler(c, "admin.stats")
	if args := commandArgs(c); len(args) > 0 {
		userID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return helpers.SendHTML(c, "Использование: /stats [user_id]")
		}
		u, err := h.reports.UserStats(ctx, userID)
		if errors.Is(err, storage.ErrNotFound) {
			return helpers.SendHTML(c, "Пользователь не найден")
		}
		if err != nil {
			return err
		}
		return helpers.SendHTML(c, formatUser(u))
	}

	sum, err := h.reports.CostSummary(ctx)
	if err != nil {
		return err
	}
	themes, err := h.reports.ThemeCounts(ctx)
	if err != nil {
		return err
	}
	return helpers.SendHTML(c, formatStats(sum, themes))
}

func (h *Handlers) recent(c tele.Context) error {
	ctx := helpers.WithHandler(c, "admin.recent")
	rows, err := h.reports.RecentAnalyses(ctx, recentLimit)
	if err != nil {
		return err
	}
	return helpers.SendHTML(c, formatRecent(rows))
}

// approve handles "/approve <id> <rating> [notes]".
func (h *Handlers) approve(c tele.Context) error {
	ctx := helpers.WithHandler(c, "admin.approve")
	args := commandArgs(c)
	if len(args) < 2 {
		return helpers.SendHTML(c, format.EscapeHTML("Использование: /approve <id> <1-5> [заметка]"))
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return helpers.SendHTML(c, "Некорректный id")
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil || rating < 1 || rating > 5 {
		return helpers.SendHTML(c, "Оценка должна быть от 1 до 5")
	}
	notes := strings.Join(args[2:], " ")
	err = h.reports.ApproveForDataset(ctx, id, rating, notes)
	if errors.Is(err, storage.ErrNotFound) {
		return helpers.SendHTML(c, "Анализ не найден")
	}
	if err != nil {
		return err
	}
	return helpers.SendHTML(c, fmt.Sprintf("✅ Анализ #%d одобрен (оценка %d)", id, rating))
}

func commandArgs(c tele.Context) []string {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	_, args, _ := parseCommand(msg.Text)
	return args
}

func formatStats(sum storage.CostSummary, themes []storage.ThemeCount) string {
	var b strings.Builder
	b.WriteString(format.Bold("Статистика") + "\n\n")
	fmt.Fprintf(&b, "Анализов: %d\n", sum.Analyses)
	fmt.Fprintf(&b, "Затраты: $%.2f (в среднем $%.4f, от $%.4f до $%.4f)\n", sum.TotalUSD, sum.AvgUSD, sum.MinUSD, sum.MaxUSD)
	fmt.Fprintf(&b, "Токены: %d (в среднем %.0f)\n", sum.TotalTokens, sum.AvgTokens)
	if len(themes) > 0 {
		b.WriteString("\n" + format.Bold("Темы") + "\n")
		for _, t := range themes {
			fmt.Fprintf(&b, "• %s: %d\n", format.EscapeHTML(t.Theme), t.Count)
		}
	}
	return b.String()
}

func formatRecent(rows []storage.RecentAnalysis) string {
	if len(rows) == 0 {
		return "Анализов пока нет"
	}
	var b strings.Builder
	b.WriteString(format.Bold("Последние анализы") + "\n")
	for _, r := range rows {
		mark := ""
		if r.Approved {
			mark = " ✅"
		}
		fmt.Fprintf(&b, "\n#%d %s · %s%s\n%s\n",
			r.ID,
			format.EscapeHTML(r.FirstName),
			r.CreatedAt.Format("02.01 15:04"),
			mark,
			format.EscapeHTML(format.Truncate(r.RequestText, 80)),
		)
	}
	return b.String()
}

func formatUser(u storage.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if u.Username != "" {
		name += " (@" + u.Username + ")"
	}
	return fmt.Sprintf("%s\nID: %d\nАнализов: %d\nС нами с %s, последняя активность %s",
		format.Bold(name),
		u.ID,
		u.TotalAnalyses,
		u.CreatedAt.Format("02.01.2006"),
		u.LastActive.Format("02.01.2006 15:04"),
	)
}
