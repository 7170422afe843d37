package budget

import (
	"context"
	"errors"
	"log/slog"

	"patient-chat/internal/domain"
)

const (
	// keepRecentTurns is how many of the newest turns survive compaction verbatim.
	keepRecentTurns = 2

	summaryPrefix = "Previous conversation summary: "
)

// HistorySummarizer compresses a transcript into a single text. It must not
// fail: on error it returns a degraded summary instead.
type HistorySummarizer interface {
	SummarizeHistory(ctx context.Context, turns []domain.ConversationTurn) Summary
}

type PlanInput struct {
	SystemPrompt    string
	DocumentContext string
	History         []domain.ConversationTurn
}

// PlanResult is what fits the budget for one request.
type PlanResult struct {
	SystemMessages  []string
	HistoryMessages []domain.ConversationTurn
	WasSummarized   bool
	// EstimatedInputTokens counts the system prompt and document only.
	EstimatedInputTokens int
}

// Planner decides whether conversation history fits a Budget and compacts it
// when it does not. A Planner holds no per-request state.
type Planner struct {
	budget     Budget
	summarizer HistorySummarizer
	compaction bool
	logger     *slog.Logger
}

type PlannerOption func(*Planner)

// WithCompaction toggles history summarization. With compaction disabled
// history is always passed through untouched.
func WithCompaction(enabled bool) PlannerOption {
	return func(p *Planner) {
		p.compaction = enabled
	}
}

func WithPlannerLogger(logger *slog.Logger) PlannerOption {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPlanner(b Budget, s HistorySummarizer, opts ...PlannerOption) (*Planner, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	p := &Planner{
		budget:     b,
		summarizer: s,
		compaction: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.compaction && p.summarizer == nil {
		return nil, errors.New("budget: history summarizer must not be nil when compaction is enabled")
	}
	return p, nil
}

func (p *Planner) Budget() Budget {
	return p.budget
}

// Plan fits in.History into the space left by the system prompt and document.
// It never fails; summarization problems are absorbed by the summarizer.
func (p *Planner) Plan(ctx context.Context, in PlanInput) PlanResult {
	baseTokens := EstimateTokens(in.SystemPrompt) + EstimateTokens(in.DocumentContext)
	result := PlanResult{
		SystemMessages:       []string{baseSystemMessage(in.SystemPrompt, in.DocumentContext)},
		EstimatedInputTokens: baseTokens,
	}

	available := p.budget.AvailableForHistory(baseTokens)
	if available <= 0 {
		p.logger.Warn("document context exceeds budget before history",
			"base_tokens", baseTokens,
			"max_total_tokens", p.budget.MaxTotalTokens,
			"reserved_for_response", p.budget.ReservedForResponse,
		)
	}

	historyTokens := 0
	for _, turn := range in.History {
		historyTokens += EstimateTokens(turn.Content)
	}

	threshold := p.budget.HistoryThreshold(baseTokens)
	if !p.compaction || len(in.History) == 0 || float64(historyTokens) <= threshold {
		result.HistoryMessages = copyTurns(in.History)
		return result
	}

	p.logger.Info("history over budget, summarizing",
		"history_tokens", historyTokens,
		"threshold", threshold,
		"turns", len(in.History),
	)
	summary := p.summarizer.SummarizeHistory(ctx, in.History)
	result.SystemMessages = append(result.SystemMessages, summaryPrefix+summary.Text)
	result.HistoryMessages = copyTurns(lastTurns(in.History, keepRecentTurns))
	result.WasSummarized = true
	return result
}

func baseSystemMessage(systemPrompt, document string) string {
	if document == "" {
		return systemPrompt
	}
	if systemPrompt == "" {
		return document
	}
	return systemPrompt + "\n\n" + document
}

func lastTurns(turns []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}

func copyTurns(turns []domain.ConversationTurn) []domain.ConversationTurn {
	if len(turns) == 0 {
		return []domain.ConversationTurn{}
	}
	out := make([]domain.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}
