package payment

import (
	"strconv"
	"strings"
)

// Tariff is one purchasable package shown on the pricing screen.
type Tariff struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	URL     string `yaml:"url"`
	Credits int    `yaml:"credits"`
}

// DefaultTariffs mirrors the landing-page checkout links.
func DefaultTariffs() []Tariff {
	return []Tariff{
		{ID: "tarif1", Title: "💎 Тариф 1 - Оплатить", URL: "https://lizaperman.online/scaner_fullpay_tarif1?tg_id={user_id}", Credits: 1},
		{ID: "tarif2", Title: "✨ Тариф 2 - Оплатить", URL: "https://lizaperman.online/scaner_fullpay_tarif2?tg_id={user_id}", Credits: 3},
		{ID: "tarif3", Title: "🌟 Тариф 3 - Оплатить", URL: "https://lizaperman.online/scaner_fullpay_tarif3?tg_id={user_id}", Credits: 5},
		{ID: "tarif4", Title: "🔥 Тариф 4 - Оплатить", URL: "https://lizaperman.online/scaner_fullpay_tarif4?tg_id={user_id}", Credits: 10},
	}
}

// Link renders the checkout URL for userID.
func (t Tariff) Link(userID int64) string {
	return strings.ReplaceAll(t.URL, "{user_id}", strconv.FormatInt(userID, 10))
}

// FindTariff looks a tariff up by id.
func FindTariff(tariffs []Tariff, id string) (Tariff, bool) {
	id = strings.TrimSpace(id)
	for _, t := range tariffs {
		if t.ID == id {
			return t, true
		}
	}
	return Tariff{}, false
}
