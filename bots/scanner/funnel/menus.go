package funnel

import (
	"github.com/m3rciful/scanbot/bots/scanner/chat"
	"github.com/m3rciful/scanbot/bots/scanner/session"
)

func tagButton(text, tag string) chat.Button { return chat.Button{Text: text, Tag: tag} }

func welcomeMenu(sess session.Session) *chat.Menu {
	menu := chat.NewMenu(
		chat.Row(tagButton(btnWantScan, TagPricing)),
		chat.Row(tagButton(btnMore, TagAbout)),
	)
	if sess.Entitled() && sess.Credits > 0 {
		menu.Rows = append([][]chat.Button{chat.Row(tagButton(btnStartScan, TagNewAnalysis))}, menu.Rows...)
	}
	return menu
}

func aboutMenu() *chat.Menu {
	return chat.NewMenu(
		chat.Row(tagButton(btnExamples, TagExamples)),
		chat.Row(tagButton(btnGoScan, TagPricing)),
	)
}

func examplesMenu() *chat.Menu {
	return chat.NewMenu(
		chat.Row(tagButton(btnQuizMoney, TagQuizMoney), tagButton(btnQuizLove, TagQuizLove)),
		chat.Row(tagButton(btnQuizHealth, TagQuizHealth), tagButton(btnQuizRealize, TagQuizRealization)),
		chat.Row(tagButton(btnOwnScan, TagPricing)),
	)
}

func quizResultMenu() *chat.Menu {
	return chat.NewMenu(
		chat.Row(tagButton(btnAboutMore, TagShowWelcome)),
		chat.Row(tagButton(btnOwnScan, TagPricing)),
	)
}

func (m *Machine) pricingMenu(userID int64) *chat.Menu {
	menu := &chat.Menu{}
	for _, t := range m.opts.Tariffs {
		menu.Rows = append(menu.Rows, chat.Row(chat.Button{Text: t.Title, URL: t.Link(userID)}))
	}
	menu.Rows = append(menu.Rows,
		chat.Row(tagButton(btnCheckPayment, TagCheckPayment)),
		chat.Row(tagButton(btnBack, TagAbout)),
	)
	return menu
}

func (m *Machine) topUpMenu(userID int64) *chat.Menu {
	menu := &chat.Menu{}
	for _, t := range m.opts.Tariffs {
		menu.Rows = append(menu.Rows, chat.Row(chat.Button{Text: t.Title, URL: t.Link(userID)}))
	}
	return menu
}

func retryPaymentMenu() *chat.Menu {
	return chat.NewMenu(chat.Row(tagButton(btnRetryPayment, TagCheckPayment)))
}

func retryEmailMenu(text string) *chat.Menu {
	return chat.NewMenu(chat.Row(tagButton(text, TagRetryEmail)))
}

func newAnalysisMenu() *chat.Menu {
	return chat.NewMenu(chat.Row(tagButton(btnNewAnalysis, TagNewAnalysis)))
}

func payAccessMenu() *chat.Menu {
	return chat.NewMenu(chat.Row(tagButton(btnPayAccess, TagPricing)))
}
