package budget

import (
	"errors"
	"fmt"
)

const (
	DefaultMaxTotalTokens      = 12000
	DefaultReservedForResponse = 1000
	DefaultHistoryFraction     = 0.7
)

// Budget caps the tokens one request may use, split between input and the
// space held back for the model's answer.
type Budget struct {
	MaxTotalTokens      int
	ReservedForResponse int
	// HistoryFraction is the share of the space left after the system prompt
	// and document that history may occupy before it is summarized.
	HistoryFraction float64
}

func DefaultBudget() Budget {
	return Budget{
		MaxTotalTokens:      DefaultMaxTotalTokens,
		ReservedForResponse: DefaultReservedForResponse,
		HistoryFraction:     DefaultHistoryFraction,
	}
}

func (b Budget) Validate() error {
	if b.MaxTotalTokens <= 0 {
		return errors.New("budget: max total tokens must be positive")
	}
	if b.ReservedForResponse < 0 {
		return errors.New("budget: reserved response tokens must not be negative")
	}
	if b.ReservedForResponse >= b.MaxTotalTokens {
		return fmt.Errorf("budget: reserved response tokens (%d) must be below max total tokens (%d)", b.ReservedForResponse, b.MaxTotalTokens)
	}
	if b.HistoryFraction <= 0 || b.HistoryFraction > 1 {
		return fmt.Errorf("budget: history fraction %v must be in (0, 1]", b.HistoryFraction)
	}
	return nil
}

// AvailableForHistory returns the input tokens left once baseTokens are spent.
// Zero or less means the fixed prompt alone already overflows the budget.
func (b Budget) AvailableForHistory(baseTokens int) int {
	return b.MaxTotalTokens - b.ReservedForResponse - baseTokens
}

// HistoryThreshold is the history size above which compaction kicks in.
func (b Budget) HistoryThreshold(baseTokens int) float64 {
	return float64(b.AvailableForHistory(baseTokens)) * b.HistoryFraction
}

// DocumentOverBudget reports whether systemPrompt and document leave no room
// at all for history. Callers compact the document before planning when true.
func (b Budget) DocumentOverBudget(systemPrompt, document string) bool {
	return b.AvailableForHistory(EstimateTokens(systemPrompt)+EstimateTokens(document)) <= 0
}
