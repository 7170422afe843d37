package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"patient-chat/internal/domain"
)

const DefaultBaseURL = "https://api.perplexity.ai"

// TokenGetter resolves a secret token by parameter name.
// *paramstore.Client satisfies this interface.
type TokenGetter interface {
	GetToken(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *HTTPStatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("perplexity: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("perplexity: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

func (e *HTTPStatusError) Unwrap() error {
	return e.Err
}

// Client talks to the Perplexity chat completions API, which is
// OpenAI-compatible apart from its web-search extensions.
type Client struct {
	api         openai.Client
	baseURL     string
	httpClient  *http.Client
	tokens      TokenGetter
	paramPrefix string

	keyMu  sync.Mutex
	apiKey string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithAPIKey uses a fixed key instead of reading it from the parameter store.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if key = strings.TrimSpace(key); key != "" {
			c.apiKey = key
		}
	}
}

// NewClient creates a Client. Unless WithAPIKey is given, the API key is read
// through tokens from "<paramPrefix>/perplexity-token" on the first call and
// reused for the lifetime of the process. A failed lookup is retried on the
// next call.
func NewClient(tokens TokenGetter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		tokens:      tokens,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.apiKey == "" {
		if c.tokens == nil {
			return nil, errors.New("perplexity: token getter must not be nil without a static API key")
		}
		if c.paramPrefix == "" {
			return nil, errors.New("perplexity: parameter prefix must not be empty without a static API key")
		}
	}
	c.api = openai.NewClient(
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	)
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/perplexity-token"
}

// resolveAPIKey returns the cached API key, fetching it until one lookup
// succeeds. Errors are not cached.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := c.tokens.GetToken(ctx, c.tokenParameterName())
	if err != nil {
		return "", fmt.Errorf("perplexity: resolve api key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("perplexity: resolve api key: parameter is empty")
	}
	c.apiKey = key
	return key, nil
}

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	if strings.TrimSpace(req.Model) == "" {
		return domain.Completion{}, errors.New("perplexity: model must not be empty")
	}
	if len(req.Messages) == 0 {
		return domain.Completion{}, errors.New("perplexity: messages must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return domain.Completion{}, err
	}

	params, extra := buildParams(req)
	opts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, extra...)

	completion, err := c.api.Chat.Completions.New(ctx, params, opts...)
	if err != nil {
		return domain.Completion{}, wrapError(err)
	}
	if len(completion.Choices) == 0 {
		return domain.Completion{}, errors.New("perplexity: no choices in response")
	}

	return domain.Completion{
		Content: completion.Choices[0].Message.Content,
		Model:   completion.Model,
		Usage: domain.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		SearchResults: searchResults(completion.RawJSON()),
	}, nil
}

// buildParams maps the request onto the OpenAI parameter types. Fields the
// OpenAI schema lacks (web search, file parts) are returned as body overrides.
func buildParams(req domain.CompletionRequest) (openai.ChatCompletionNewParams, []option.RequestOption) {
	var extra []option.RequestOption

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for i, m := range req.Messages {
		switch m.Role {
		case domain.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
		if m.FileURL != "" {
			extra = append(extra, option.WithJSONSet(fmt.Sprintf("messages.%d.content", i), fileContentParts(m)))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP != 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(req.PresencePenalty)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}

	if s := req.Search; s != nil {
		if s.Mode != "" {
			extra = append(extra, option.WithJSONSet("search_mode", s.Mode))
		}
		if len(s.DomainFilter) > 0 {
			extra = append(extra, option.WithJSONSet("search_domain_filter", s.DomainFilter))
		}
		if s.RecencyFilter != "" {
			extra = append(extra, option.WithJSONSet("search_recency_filter", s.RecencyFilter))
		}
	}
	return params, extra
}

type contentPart struct {
	Type    string   `json:"type"`
	Text    string   `json:"text,omitempty"`
	FileURL *fileURL `json:"file_url,omitempty"`
}

type fileURL struct {
	URL string `json:"url"`
}

func fileContentParts(m domain.ChatMessage) []contentPart {
	return []contentPart{
		{Type: "text", Text: m.Content},
		{Type: "file_url", FileURL: &fileURL{URL: m.FileURL}},
	}
}

// searchResults reads the Perplexity-only search_results field. A missing or
// malformed field yields an empty list.
func searchResults(raw string) []domain.SearchResult {
	var payload struct {
		SearchResults []domain.SearchResult `json:"search_results"`
	}
	if raw == "" || json.Unmarshal([]byte(raw), &payload) != nil || payload.SearchResults == nil {
		return []domain.SearchResult{}
	}
	return payload.SearchResults
}

func wrapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &HTTPStatusError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return fmt.Errorf("perplexity: request failed: %w", err)
}
