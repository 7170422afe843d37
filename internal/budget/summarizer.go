package budget

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"patient-chat/internal/domain"
)

const (
	DefaultSummaryModel   = "sonar-pro"
	DefaultSummaryTimeout = 30 * time.Second

	summaryTemperature      = 0.1
	historySummaryMaxTokens = 500
	// Documents carry denser unique information than chat turns.
	documentSummaryMaxTokens = 1500
	// fallbackHistoryTurns is how many trailing turns stand in for a failed
	// history summary.
	fallbackHistoryTurns = 3

	historySummaryInstruction = "You are a medical AI assistant. Summarize the following conversation history concisely " +
		"while preserving all important medical information, patient details, and key discussion points. " +
		"Keep the summary comprehensive but compact."
	documentSummaryInstruction = "You are a medical AI assistant. Create a comprehensive but concise summary of the " +
		"following patient medical information. Preserve all critical medical details, diagnoses, medications, " +
		"procedures, and key findings while reducing the overall length."
)

var errEmptySummary = errors.New("budget: model returned an empty summary")

// Completer is the model API as seen by the summarizer.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// Summary is the outcome of a compaction attempt. When FallbackApplied is set
// Text holds the degraded substitute and Cause the reason the model call was
// abandoned.
type Summary struct {
	Text            string
	FallbackApplied bool
	Cause           error
}

// Summarizer compresses conversation history or source documents through the
// model API. Failures never escape: history degrades to its last turns and
// documents to their original text.
type Summarizer struct {
	completer Completer
	model     string
	timeout   time.Duration
	logger    *slog.Logger
}

type SummarizerOption func(*Summarizer)

func WithSummaryModel(model string) SummarizerOption {
	return func(s *Summarizer) {
		if model = strings.TrimSpace(model); model != "" {
			s.model = model
		}
	}
}

func WithSummaryTimeout(d time.Duration) SummarizerOption {
	return func(s *Summarizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithSummarizerLogger(logger *slog.Logger) SummarizerOption {
	return func(s *Summarizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSummarizer(c Completer, opts ...SummarizerOption) (*Summarizer, error) {
	if c == nil {
		return nil, errors.New("budget: completer must not be nil")
	}
	s := &Summarizer{
		completer: c,
		model:     DefaultSummaryModel,
		timeout:   DefaultSummaryTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SummarizeHistory compresses turns into one text. If the model call fails the
// last few turns are returned verbatim instead.
func (s *Summarizer) SummarizeHistory(ctx context.Context, turns []domain.ConversationTurn) Summary {
	text, err := s.summarize(ctx, historySummaryInstruction,
		"Please summarize this conversation history:\n\n"+renderTranscript(turns),
		historySummaryMaxTokens,
	)
	if err != nil {
		s.logger.Warn("history summarization failed, keeping recent turns",
			"err", err,
			"turns", len(turns),
		)
		return Summary{
			Text:            renderRecent(turns, fallbackHistoryTurns),
			FallbackApplied: true,
			Cause:           err,
		}
	}
	return Summary{Text: text}
}

// SummarizeDocument compresses a source document. If the model call fails the
// document is returned unchanged, even though it may then overflow the budget.
func (s *Summarizer) SummarizeDocument(ctx context.Context, document string) Summary {
	text, err := s.summarize(ctx, documentSummaryInstruction,
		"Please summarize this patient medical information:\n\n"+document,
		documentSummaryMaxTokens,
	)
	if err != nil {
		s.logger.Warn("document summarization failed, keeping original text",
			"err", err,
			"document_tokens", EstimateTokens(document),
		)
		return Summary{Text: document, FallbackApplied: true, Cause: err}
	}
	return Summary{Text: text}
}

func (s *Summarizer) summarize(ctx context.Context, instruction, prompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Model: s.model,
		Messages: []domain.ChatMessage{
			{Role: domain.RoleSystem, Content: instruction},
			{Role: domain.RoleUser, Content: prompt},
		},
		Temperature: summaryTemperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(out.Content)
	if text == "" {
		return "", errEmptySummary
	}
	return text, nil
}

// renderRecent renders the last n conversational turns. System turns count only
// when nothing else is left, so a non-empty history never yields empty text.
func renderRecent(turns []domain.ConversationTurn, n int) string {
	spoken := make([]domain.ConversationTurn, 0, len(turns))
	for _, t := range turns {
		if t.Role != domain.RoleSystem {
			spoken = append(spoken, t)
		}
	}
	if len(spoken) > 0 {
		return renderTranscript(lastTurns(spoken, n))
	}
	recent := lastTurns(turns, n)
	parts := make([]string, 0, len(recent))
	for _, t := range recent {
		parts = append(parts, t.Role+": "+t.Content)
	}
	return strings.Join(parts, "\n\n")
}

func renderTranscript(turns []domain.ConversationTurn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		if t.Role == domain.RoleSystem {
			continue
		}
		parts = append(parts, t.Role+": "+t.Content)
	}
	return strings.Join(parts, "\n\n")
}
