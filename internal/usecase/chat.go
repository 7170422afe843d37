package usecase

import (
	"context"
	"strings"

	"patient-chat/internal/budget"
	"patient-chat/internal/domain"
)

type ChatInput struct {
	Message        string
	PatientContext string
	SystemPrompt   string
	History        []domain.ConversationTurn
}

type ChatMetadata struct {
	Summarized           bool
	EstimatedInputTokens int
}

type ChatOutput struct {
	Completion domain.Completion
	Metadata   ChatMetadata
}

// Chat answers a follow-up question about a patient record, compacting the
// record and the prior conversation when they do not fit the token budget.
func (s *Service) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if strings.TrimSpace(in.PatientContext) == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_patient_context", nil)
	}
	for _, turn := range in.History {
		if !validRole(turn.Role) {
			return ChatOutput{}, newError(ErrorInvalidInput, "invalid_history_role", nil)
		}
	}

	systemPrompt := chatSystemPrompt(in.SystemPrompt)
	record := in.PatientContext
	if s.documentCompaction && s.planner.Budget().DocumentOverBudget(systemPrompt, chatDocument(record)) {
		s.logger.Info("patient context leaves no room for history, summarizing",
			"tokens", budget.EstimateTokens(record),
		)
		record, _ = s.compactDocument(ctx, record)
	}

	plan := s.planner.Plan(ctx, budget.PlanInput{
		SystemPrompt:    systemPrompt,
		DocumentContext: chatDocument(record),
		History:         in.History,
	})
	req := budget.Assemble(plan, message, budget.CallParams{
		Model:       s.model,
		Temperature: answerTemperature,
		TopP:        answerTopP,
		MaxTokens:   answerMaxTokens,
		Search:      webSearch(chatDomains),
	})

	out, err := s.complete(ctx, req)
	if err != nil {
		return ChatOutput{}, err
	}
	return ChatOutput{
		Completion: out,
		Metadata: ChatMetadata{
			Summarized:           plan.WasSummarized,
			EstimatedInputTokens: plan.EstimatedInputTokens,
		},
	}, nil
}

func validRole(role string) bool {
	switch role {
	case domain.RoleUser, domain.RoleAssistant, domain.RoleSystem:
		return true
	}
	return false
}
