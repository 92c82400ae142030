package telegram

import (
	"testing"

	coreconfig "github.com/m3rciful/scanbot/core/config"
)

func middlewareNames(mws []Middleware) []string {
	names := make([]string, 0, len(mws))
	for _, m := range mws {
		names = append(names, m.Name)
	}
	return names
}

func TestDefaultMiddlewaresWithoutRateLimit(t *testing.T) {
	got := middlewareNames(DefaultMiddlewares(nil, nil))
	want := []string{"recover", "logger", "metrics"}
	if len(got) != len(want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chain = %v, want %v", got, want)
		}
	}
}

func TestDefaultMiddlewaresRateLimitSecond(t *testing.T) {
	cfg := &coreconfig.Config{}
	cfg.RateLimit.IntervalMS = 700
	cfg.RateLimit.ExcludeUpdates = []string{"Callback"}
	got := middlewareNames(DefaultMiddlewares(cfg, nil))
	if len(got) != 4 || got[1] != "rate_limit" {
		t.Fatalf("chain = %v", got)
	}
}
