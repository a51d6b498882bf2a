// Package advisor wraps the generative model that answers free-text business
// questions over a read-only ledger snapshot. It is a black box to the rest
// of the system: its failures degrade to a fixed message and never touch
// ledger state.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"google.golang.org/genai"

	"github.com/rudro-kalix/business-management/internal/ledger"
)

const (
	// Unavailable is returned whenever the model cannot be reached or
	// produces nothing usable.
	Unavailable = "The analysis engine is unavailable right now. Please check your API key or try again later."

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultRecentLimit bounds the snapshot handed to the model.
	DefaultRecentLimit = 50
)

type Service struct {
	client *genai.Client
	model  string
	limit  int
	logger *slog.Logger
}

// New builds the advisor. An empty API key yields a disabled service whose
// answers are always Unavailable, so a missing key never blocks startup.
func New(ctx context.Context, apiKey, model string, recentLimit int, logger *slog.Logger) (*Service, error) {
	s := &Service{model: model, limit: recentLimit, logger: logger}

	if s.model == "" {
		s.model = DefaultModel
	}

	if s.limit <= 0 {
		s.limit = DefaultRecentLimit
	}

	if apiKey == "" {
		logger.Warn("no advisor API key configured, analysis disabled")
		return s, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	s.client = client

	return s, nil
}

// Analyze answers a free-text question over the most recent transactions.
func (s *Service) Analyze(ctx context.Context, transactions []ledger.Transaction, query string) string {
	snapshot, err := s.snapshot(transactions)
	if err != nil {
		return Unavailable
	}

	prompt := fmt.Sprintf(`You are an expert business analyst for a digital subscription reseller.

The business model:
1. Base subscription cost per sale (costPrice, total for the quantity sold).
2. Sale price per sale (salePrice, total for the quantity sold).
3. Operating expenses (Gmail accounts, Facebook Ads, posters) are tracked separately per period.

Recent transaction data in JSON:
%s

User query: %s

Analyze the data and give a helpful, professional, actionable response.
If asked for insights, look for trends in net profit (salePrice - costPrice, less operating spend).
Keep the response concise and formatted with Markdown.`, snapshot, query)

	return s.generate(ctx, prompt, nil)
}

// Forecast predicts the next month's trend and the most profitable plan.
func (s *Service) Forecast(ctx context.Context, transactions []ledger.Transaction) string {
	snapshot, err := s.snapshot(transactions)
	if err != nil {
		return Unavailable
	}

	prompt := fmt.Sprintf(`Based on the following sales history, predict the trend for the next month.
Identify which plan type is most profitable after costs.
Suggest whether marketing spend should shift between channels if the data supports it.
Data: %s`, snapshot)

	// A small thinking budget noticeably improves the forecast reasoning.
	cfg := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(1024))},
	}

	return s.generate(ctx, prompt, cfg)
}

func (s *Service) snapshot(transactions []ledger.Transaction) (string, error) {
	recent := make([]ledger.Transaction, len(transactions))
	copy(recent, transactions)

	// Newest first, whatever order the collection holds. Local snapshots
	// arrive oldest-first, remote ones newest-first.
	sort.Slice(recent, func(i, j int) bool { return recent[i].Date > recent[j].Date })

	if len(recent) > s.limit {
		recent = recent[:s.limit]
	}

	data, err := json.Marshal(recent)
	if err != nil {
		s.logger.Error("encoding advisor snapshot", "error", err)
		return "", err
	}

	return string(data), nil
}

func (s *Service) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) string {
	if s.client == nil {
		return Unavailable
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), cfg)
	if err != nil {
		s.logger.Warn("advisor call failed", "error", err)
		return Unavailable
	}

	text := resp.Text()
	if text == "" {
		return Unavailable
	}

	return text
}
