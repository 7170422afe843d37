package domain

import "time"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the use
// cases and the model integration. FileURL, when set, is sent as an attached
// file part alongside Content.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	FileURL string `json:"-"`
}

// ConversationTurn is one prior exchange supplied by the caller. Turns are
// ordered chronologically and never persisted by this service.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchOptions are the web-search extensions understood by the model API.
type SearchOptions struct {
	Mode          string
	DomainFilter  []string
	RecencyFilter string
}

// CompletionRequest is a fully assembled call to the model API.
type CompletionRequest struct {
	Model            string
	Messages         []ChatMessage
	Temperature      float64
	TopP             float64
	MaxTokens        int
	PresencePenalty  float64
	FrequencyPenalty float64
	Search           *SearchOptions
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Completion is the model API answer reduced to what callers surface.
type Completion struct {
	Content       string
	Model         string
	Usage         Usage
	SearchResults []SearchResult
}
