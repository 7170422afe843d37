package budget

import (
	"testing"

	"github.com/stretchr/testify/require"

	"patient-chat/internal/domain"
)

func TestAssemble_OrdersMessages(t *testing.T) {
	plan := PlanResult{
		SystemMessages: []string{"base", "Previous conversation summary: s"},
		HistoryMessages: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "q1"},
			{Role: domain.RoleAssistant, Content: "a1"},
		},
	}
	search := &domain.SearchOptions{Mode: "web", DomainFilter: []string{"medlineplus.gov"}, RecencyFilter: "month"}
	req := Assemble(plan, "q2", CallParams{
		Model:       "sonar-pro",
		Temperature: 0.2,
		TopP:        0.9,
		MaxTokens:   1000,
		Search:      search,
	})

	require.Equal(t, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: "base"},
		{Role: domain.RoleSystem, Content: "Previous conversation summary: s"},
		{Role: domain.RoleUser, Content: "q1"},
		{Role: domain.RoleAssistant, Content: "a1"},
		{Role: domain.RoleUser, Content: "q2"},
	}, req.Messages)
	require.Equal(t, "sonar-pro", req.Model)
	require.Equal(t, 0.2, req.Temperature)
	require.Equal(t, 0.9, req.TopP)
	require.Equal(t, 1000, req.MaxTokens)
	require.Equal(t, search, req.Search)

	req.Search.DomainFilter[0] = "changed"
	require.Equal(t, "medlineplus.gov", search.DomainFilter[0])
}

func TestAssemble_ConsecutiveSameRoleAllowed(t *testing.T) {
	plan := PlanResult{
		SystemMessages:  []string{"base"},
		HistoryMessages: []domain.ConversationTurn{{Role: domain.RoleUser, Content: "q1"}},
	}
	req := Assemble(plan, "q2", CallParams{})
	require.Len(t, req.Messages, 3)
	require.Equal(t, domain.RoleUser, req.Messages[1].Role)
	require.Equal(t, domain.RoleUser, req.Messages[2].Role)
	require.Nil(t, req.Search)
}
