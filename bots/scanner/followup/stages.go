package followup

import "time"

// TagPricing is the menu tag that leads back to the pricing screen.
const TagPricing = "goto_pricing"

// Stage is one reminder, fired After the funnel was entered.
type Stage struct {
	After  time.Duration
	Text   string
	Button string
}

// DefaultStages are the 24h, 48h and 72h nudges.
func DefaultStages() []Stage {
	return []Stage{
		{
			After: 24 * time.Hour,
			Text: "Привет! 🌿\n\n" +
				"Вчера ты заглянула в <b>Сканер подсознания</b>, но так и не начала.\n" +
				"Одна фотография и твой запрос покажут, какие блоки мешают тебе прямо сейчас.",
			Button: "👉 Пройти Сканирование сейчас",
		},
		{
			After: 48 * time.Hour,
			Text: "Ответы уже внутри тебя ✨\n\n" +
				"Сканер бережно подсветит, где застряла энергия, и даст практики, " +
				"которые помогут сдвинуться с места.",
			Button: "👉 Начать Сканирование",
		},
		{
			After: 72 * time.Hour,
			Text: "Последнее напоминание 💫\n\n" +
				"Если запрос всё ещё откликается, самое время получить свой персональный разбор.",
			Button: "👉 Перейти к Сканеру Подсознания",
		},
	}
}
