package usecase

import (
	"strings"

	"patient-chat/internal/domain"
)

const (
	defaultSystemPrompt       = "Be precise and concise."
	defaultAnalystPrompt      = "You are an expert analyst. Summarize the key findings from the provided document."
	patientSummaryInstruction = "generate a Patient summary based on the following information: "
	fileAnalysisInstruction   = "Summarize and analyze the following document."

	chatFramingPrompt = "You are a medical AI assistant helping with questions about a specific patient. " +
		"Here is the patient's medical information:"
	chatAnswerRules = "Please answer questions about this patient based on the provided medical information. " +
		"If asked about information not in the patient record, clearly state that the information is not " +
		"available in the current patient data."
)

var (
	searchDomains = []string{"government.gov", "nature.com", "science.org"}
	chatDomains   = []string{"ncbi.nlm.nih.gov", "mayoclinic.org", "webmd.com", "medlineplus.gov"}
)

func orDefault(prompt, fallback string) string {
	if strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

// chatSystemPrompt is the part of the chat system message that precedes the
// patient record.
func chatSystemPrompt(userPrompt string) string {
	return orDefault(userPrompt, defaultSystemPrompt) + "\n\n" + chatFramingPrompt
}

// chatDocument wraps the patient record with the answering rules that follow
// it in the system message.
func chatDocument(record string) string {
	return record + "\n\n" + chatAnswerRules
}

func searchMessages(userPrompt, record string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: orDefault(userPrompt, defaultSystemPrompt)},
		{Role: domain.RoleUser, Content: patientSummaryInstruction + record},
	}
}

func fileMessages(userPrompt, fileURL string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: orDefault(userPrompt, defaultAnalystPrompt)},
		{Role: domain.RoleUser, Content: fileAnalysisInstruction, FileURL: fileURL},
	}
}

func webSearch(domains []string) *domain.SearchOptions {
	return &domain.SearchOptions{
		Mode:          "web",
		DomainFilter:  append([]string(nil), domains...),
		RecencyFilter: "month",
	}
}
