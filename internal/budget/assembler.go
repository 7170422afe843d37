package budget

import "patient-chat/internal/domain"

// CallParams are the static sampling and search settings of one route. They
// are copied into the request as-is.
type CallParams struct {
	Model            string
	Temperature      float64
	TopP             float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
	Search           *domain.SearchOptions
}

// Assemble orders the final message list: plan system messages, retained
// history, then the current user message.
func Assemble(plan PlanResult, currentMessage string, params CallParams) domain.CompletionRequest {
	messages := make([]domain.ChatMessage, 0, len(plan.SystemMessages)+len(plan.HistoryMessages)+1)
	for _, content := range plan.SystemMessages {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: content})
	}
	for _, turn := range plan.HistoryMessages {
		messages = append(messages, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: currentMessage})

	req := domain.CompletionRequest{
		Model:            params.Model,
		Messages:         messages,
		Temperature:      params.Temperature,
		TopP:             params.TopP,
		MaxTokens:        params.MaxTokens,
		PresencePenalty:  params.PresencePenalty,
		FrequencyPenalty: params.FrequencyPenalty,
	}
	if params.Search != nil {
		search := *params.Search
		search.DomainFilter = append([]string(nil), params.Search.DomainFilter...)
		req.Search = &search
	}
	return req
}
