// Package llm runs text generation through eino chains: the analysis itself
// and the declension of the client's name.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/m3rciful/scanbot/bots/scanner/names"
	"github.com/m3rciful/scanbot/core/logger"
)

// ErrEmptyReply is returned when the model produced no content.
var ErrEmptyReply = errors.New("llm: empty reply")

// Usage reports token accounting for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// Result is a finished generation.
type Result struct {
	Text  string
	Model string
	Usage Usage
}

// Options configures a Generator.
type Options struct {
	// Model is the name recorded with results and used for pricing.
	Model        string
	SystemPrompt string
	Prices       PriceTable
}

// Generator wraps two compiled chains over the same chat model.
type Generator struct {
	model    string
	system   string
	prices   PriceTable
	analysis compose.Runnable[map[string]any, *schema.Message]
	declines compose.Runnable[map[string]any, *schema.Message]
}

// New compiles the chains around chatModel.
func New(ctx context.Context, chatModel model.ChatModel, opts Options) (*Generator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("llm: nil chat model")
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.Prices == nil {
		opts.Prices = PriceTable(DefaultPrices)
	}

	analysis, err := compile(ctx, chatModel,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("llm: compile analysis chain: %w", err)
	}
	declines, err := compile(ctx, chatModel, schema.UserMessage("{prompt}"))
	if err != nil {
		return nil, fmt.Errorf("llm: compile declension chain: %w", err)
	}

	return &Generator{
		model:    opts.Model,
		system:   opts.SystemPrompt,
		prices:   opts.Prices,
		analysis: analysis,
		declines: declines,
	}, nil
}

func compile(ctx context.Context, chatModel model.ChatModel, msgs ...schema.MessagesTemplate) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(prompt.FromMessages(schema.FString, msgs...))
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Analyze generates the scan text for the request.
func (g *Generator) Analyze(ctx context.Context, requestText, displayName string) (Result, error) {
	start := time.Now()
	msg, err := g.analysis.Invoke(ctx, map[string]any{
		"system": g.system,
		"query":  analysisQuery(requestText, displayName),
	})
	if err != nil {
		return Result{}, fmt.Errorf("llm: analysis: %w", err)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return Result{}, ErrEmptyReply
	}

	res := Result{Text: text, Model: g.model, Usage: g.usage(msg)}
	logger.Info(ctx, "service.analysis", "llm.analysis",
		slog.String("status", "ok"),
		slog.String("model", g.model),
		slog.Int("tokens", res.Usage.TotalTokens),
		slog.Float64("cost_usd", res.Usage.CostUSD),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return res, nil
}

// Declensions asks the model for the six cases of name.
func (g *Generator) Declensions(ctx context.Context, name string) (names.Declensions, error) {
	msg, err := g.declines.Invoke(ctx, map[string]any{"prompt": names.DeclensionPrompt(name)})
	if err != nil {
		return names.Declensions{}, fmt.Errorf("llm: declensions: %w", err)
	}
	return names.ParseDeclensions(msg.Content)
}

func (g *Generator) usage(msg *schema.Message) Usage {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return Usage{}
	}
	u := msg.ResponseMeta.Usage
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
		CostUSD:          g.prices.Cost(g.model, u.PromptTokens, u.CompletionTokens),
	}
}
