package usecase

import (
	"context"
	"errors"
	"strings"

	"patient-chat/internal/budget"
	"patient-chat/internal/domain"
	"patient-chat/internal/repository"
)

type SearchInput struct {
	SearchTerm   string
	SystemPrompt string
}

type SearchMetadata struct {
	OriginalTokens  int
	ProcessedTokens int
	Summarized      bool
}

type SearchOutput struct {
	Completion domain.Completion
	// FileContent is the record as sent to the model, summarized or not. The
	// caller passes it back as patientContext on follow-up chats.
	FileContent string
	Metadata    SearchMetadata
}

// Search looks up a patient record by key and asks the model for a summary
// of it, with web search restricted to research domains.
func (s *Service) Search(ctx context.Context, in SearchInput) (SearchOutput, error) {
	term := strings.TrimSpace(in.SearchTerm)
	if term == "" {
		return SearchOutput{}, newError(ErrorInvalidInput, "empty_search_term", nil)
	}

	record, err := s.documents.GetDocument(ctx, term)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return SearchOutput{}, newError(ErrorNotFound, "document_not_found", err)
		}
		return SearchOutput{}, newError(ErrorInternal, "document_read_error", err)
	}

	originalTokens := budget.EstimateTokens(record)
	processed, summarized := record, false
	if s.documentCompaction && originalTokens > s.maxDocumentTokens {
		s.logger.Info("patient record over budget, summarizing",
			"search_term", term,
			"tokens", originalTokens,
			"max_tokens", s.maxDocumentTokens,
		)
		processed, summarized = s.compactDocument(ctx, record)
	}

	out, err := s.complete(ctx, domain.CompletionRequest{
		Model:       s.model,
		Messages:    searchMessages(in.SystemPrompt, processed),
		Temperature: answerTemperature,
		TopP:        answerTopP,
		MaxTokens:   answerMaxTokens,
		Search:      webSearch(searchDomains),
	})
	if err != nil {
		return SearchOutput{}, err
	}

	return SearchOutput{
		Completion:  out,
		FileContent: processed,
		Metadata: SearchMetadata{
			OriginalTokens:  originalTokens,
			ProcessedTokens: budget.EstimateTokens(processed),
			Summarized:      summarized,
		},
	}, nil
}
