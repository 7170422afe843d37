package usecase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatPrompt_MatchesRecordLayout(t *testing.T) {
	got := chatSystemPrompt("") + "\n\n" + chatDocument("RECORD")
	want := "Be precise and concise.\n\n" +
		"You are a medical AI assistant helping with questions about a specific patient. " +
		"Here is the patient's medical information:\n\nRECORD\n\n" +
		"Please answer questions about this patient based on the provided medical information. " +
		"If asked about information not in the patient record, clearly state that the information is not " +
		"available in the current patient data."
	require.Equal(t, want, got)
}

func TestOrDefault(t *testing.T) {
	require.Equal(t, "x", orDefault("x", "y"))
	require.Equal(t, "y", orDefault("  ", "y"))
}

func TestWebSearch_CopiesDomains(t *testing.T) {
	opts := webSearch(chatDomains)
	opts.DomainFilter[0] = "changed"
	require.Equal(t, "ncbi.nlm.nih.gov", chatDomains[0])
}
