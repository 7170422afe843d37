package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"patient-chat/internal/budget"
	"patient-chat/internal/domain"
)

const (
	DefaultMaxDocumentTokens = 8000
	DefaultCompletionTimeout = 60 * time.Second
	defaultModel             = "sonar-pro"
	answerTemperature        = 0.2
	answerTopP               = 0.9
	answerMaxTokens          = 1000
	fileAnalysisMaxTokens    = 4000
)

type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

type DocumentSource interface {
	GetDocument(ctx context.Context, key string) (string, error)
}

type DocumentSummarizer interface {
	SummarizeDocument(ctx context.Context, document string) budget.Summary
}

type HistoryPlanner interface {
	Plan(ctx context.Context, in budget.PlanInput) budget.PlanResult
	Budget() budget.Budget
}

type BlobStore interface {
	Stage(ctx context.Context, fileName, contentType string, data []byte) (domain.StagedFile, error)
	Delete(ctx context.Context, key string) error
}

// SummaryCache remembers document summaries between requests. Failures are
// logged and otherwise ignored.
type SummaryCache interface {
	Get(ctx context.Context, document string) (string, bool, error)
	Put(ctx context.Context, document, summary string) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Service runs the search, chat and file analysis flows against the model API.
type Service struct {
	completer  Completer
	documents  DocumentSource
	summarizer DocumentSummarizer
	planner    HistoryPlanner
	blobs      BlobStore
	cache      SummaryCache

	model              string
	maxDocumentTokens  int
	documentCompaction bool
	completionTimeout  time.Duration
	logger             *slog.Logger
}

type Option func(*Service)

func WithModel(model string) Option {
	return func(s *Service) {
		if model = strings.TrimSpace(model); model != "" {
			s.model = model
		}
	}
}

func WithMaxDocumentTokens(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxDocumentTokens = n
		}
	}
}

// WithDocumentCompaction toggles summarization of oversize documents.
func WithDocumentCompaction(enabled bool) Option {
	return func(s *Service) {
		s.documentCompaction = enabled
	}
}

func WithCompletionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.completionTimeout = d
		}
	}
}

func WithBlobStore(b BlobStore) Option {
	return func(s *Service) {
		s.blobs = b
	}
}

func WithSummaryCache(c SummaryCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(c Completer, docs DocumentSource, sum DocumentSummarizer, p HistoryPlanner, opts ...Option) (*Service, error) {
	if c == nil {
		return nil, errors.New("usecase: completer must not be nil")
	}
	if docs == nil {
		return nil, errors.New("usecase: document source must not be nil")
	}
	if sum == nil {
		return nil, errors.New("usecase: document summarizer must not be nil")
	}
	if p == nil {
		return nil, errors.New("usecase: planner must not be nil")
	}
	s := &Service{
		completer:          c,
		documents:          docs,
		summarizer:         sum,
		planner:            p,
		model:              defaultModel,
		maxDocumentTokens:  DefaultMaxDocumentTokens,
		documentCompaction: true,
		completionTimeout:  DefaultCompletionTimeout,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// compactDocument summarizes document and reports whether the returned text is
// a model summary rather than the original.
func (s *Service) compactDocument(ctx context.Context, document string) (string, bool) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, document)
		if err != nil {
			s.logger.Warn("summary cache read failed", "err", err)
		} else if ok {
			s.logger.Debug("document summary cache hit")
			return cached, true
		}
	}

	summary := s.summarizer.SummarizeDocument(ctx, document)
	if summary.FallbackApplied {
		return summary.Text, false
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, document, summary.Text); err != nil {
			s.logger.Warn("summary cache write failed", "err", err)
		}
	}
	return summary.Text, true
}

// complete runs the final model call. Summarization never reaches this path,
// so every failure here is surfaced to the caller.
func (s *Service) complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.completionTimeout)
	defer cancel()

	out, err := s.completer.Complete(ctx, req)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == http.StatusTooManyRequests {
			return domain.Completion{}, newError(ErrorRateLimited, "completion_rate_limited", err)
		}
		return domain.Completion{}, newError(ErrorUpstream, "completion_error", err)
	}
	if out.SearchResults == nil {
		out.SearchResults = []domain.SearchResult{}
	}
	return out, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}
