package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"patient-chat/internal/domain"
	"patient-chat/internal/usecase"
)

const (
	correlationHeader     = "X-Correlation-Id"
	defaultMaxUploadBytes = 10 << 20
)

type Service interface {
	Search(ctx context.Context, in usecase.SearchInput) (usecase.SearchOutput, error)
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	AnalyzeUpload(ctx context.Context, in usecase.UploadInput) (usecase.UploadOutput, error)
}

type searchRequest struct {
	SearchTerm   string `json:"searchTerm"`
	SystemPrompt string `json:"systemPrompt"`
}

type chatRequest struct {
	Message        string                    `json:"message"`
	PatientContext string                    `json:"patientContext"`
	SystemPrompt   string                    `json:"systemPrompt"`
	ChatHistory    []domain.ConversationTurn `json:"chatHistory"`
}

type searchMetadata struct {
	OriginalTokens  int  `json:"originalTokens"`
	ProcessedTokens int  `json:"processedTokens"`
	Summarized      bool `json:"summarized"`
}

type chatMetadata struct {
	Summarized           bool `json:"summarized"`
	EstimatedInputTokens int  `json:"estimatedInputTokens"`
}

type completionResponse struct {
	Content       string                `json:"content"`
	Model         string                `json:"model"`
	Usage         domain.Usage          `json:"usage"`
	SearchResults []domain.SearchResult `json:"search_results"`
	FileContent   string                `json:"fileContent,omitempty"`
	Metadata      any                   `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type route func(ctx context.Context, body []byte, headers map[string]string) (any, error)

type Handler struct {
	svc            Service
	logger         *slog.Logger
	maxUploadBytes int64
	routes         map[string]route
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func NewHandler(svc Service, opts ...Option) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("handler: service must not be nil")
	}
	h := &Handler{
		svc:            svc,
		logger:         slog.Default(),
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes = map[string]route{
		"/api/search": h.search,
		"/api/chat":   h.chat,
		"/api/files":  h.files,
	}
	return h, nil
}

// Handle serves one API Gateway proxy request. Failures are always rendered
// as JSON responses; the returned error is reserved for the runtime.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	correlationID := headerValue(req.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlation_id", correlationID, "method", req.HTTPMethod, "path", req.Path)

	status, payload, allow := h.dispatch(ctx, logger, req)
	resp := jsonResponse(status, payload, correlationID)
	if allow != "" {
		resp.Headers["Allow"] = allow
	}
	logger.Info("request completed", "status", status, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (h *Handler) dispatch(ctx context.Context, logger *slog.Logger, req events.APIGatewayProxyRequest) (int, any, string) {
	path := strings.TrimRight(req.Path, "/")
	if path == "/health" {
		if req.HTTPMethod != http.MethodGet {
			return http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}, http.MethodGet
		}
		return http.StatusOK, map[string]string{"status": "ok"}, ""
	}

	handle, ok := h.routes[path]
	if !ok {
		return http.StatusNotFound, errorResponse{Error: string(usecase.ErrorNotFound), Message: "unknown route"}, ""
	}
	if req.HTTPMethod != http.MethodPost {
		return http.StatusMethodNotAllowed, errorResponse{Error: "METHOD_NOT_ALLOWED"}, http.MethodPost
	}

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Message: "invalid base64 body"}, ""
		}
		body = decoded
	}

	out, err := handle(ctx, body, req.Headers)
	if err != nil {
		status, resp := mapError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", "err", err)
		} else {
			logger.Warn("request rejected", "err", err)
		}
		return status, resp, ""
	}
	return http.StatusOK, out, ""
}

func (h *Handler) search(ctx context.Context, body []byte, _ map[string]string) (any, error) {
	var in searchRequest
	if err := decodeJSON(body, &in); err != nil {
		return nil, err
	}
	out, err := h.svc.Search(ctx, usecase.SearchInput{SearchTerm: in.SearchTerm, SystemPrompt: in.SystemPrompt})
	if err != nil {
		return nil, err
	}
	resp := newCompletionResponse(out.Completion)
	resp.FileContent = out.FileContent
	resp.Metadata = searchMetadata{
		OriginalTokens:  out.Metadata.OriginalTokens,
		ProcessedTokens: out.Metadata.ProcessedTokens,
		Summarized:      out.Metadata.Summarized,
	}
	return resp, nil
}

func (h *Handler) chat(ctx context.Context, body []byte, _ map[string]string) (any, error) {
	var in chatRequest
	if err := decodeJSON(body, &in); err != nil {
		return nil, err
	}
	out, err := h.svc.Chat(ctx, usecase.ChatInput{
		Message:        in.Message,
		PatientContext: in.PatientContext,
		SystemPrompt:   in.SystemPrompt,
		History:        in.ChatHistory,
	})
	if err != nil {
		return nil, err
	}
	resp := newCompletionResponse(out.Completion)
	resp.Metadata = chatMetadata{
		Summarized:           out.Metadata.Summarized,
		EstimatedInputTokens: out.Metadata.EstimatedInputTokens,
	}
	return resp, nil
}

func (h *Handler) files(ctx context.Context, body []byte, headers map[string]string) (any, error) {
	in, err := parseUpload(body, headerValue(headers, "Content-Type"), h.maxUploadBytes)
	if err != nil {
		return nil, err
	}
	out, err := h.svc.AnalyzeUpload(ctx, in)
	if err != nil {
		return nil, err
	}
	resp := newCompletionResponse(out.Completion)
	resp.FileContent = out.FileContent
	return resp, nil
}

func decodeJSON(body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: "invalid_json", Err: err}
	}
	return nil
}

func newCompletionResponse(c domain.Completion) completionResponse {
	results := c.SearchResults
	if results == nil {
		results = []domain.SearchResult{}
	}
	return completionResponse{
		Content:       c.Content,
		Model:         c.Model,
		Usage:         c.Usage,
		SearchResults: results,
	}
}

func mapError(err error) (int, errorResponse) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	resp := errorResponse{Error: string(ucErr.Code), Message: ucErr.Reason}
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest, resp
	case usecase.ErrorNotFound:
		return http.StatusNotFound, resp
	case usecase.ErrorRateLimited:
		return http.StatusTooManyRequests, resp
	case usecase.ErrorUpstream:
		if ucErr.Err != nil {
			resp.Message = ucErr.Err.Error()
		}
		return http.StatusBadGateway, resp
	default:
		return http.StatusInternalServerError, resp
	}
}

func jsonResponse(status int, payload any, correlationID string) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}
}

// headerValue looks a header up case-insensitively; API Gateway preserves the
// client's casing.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
