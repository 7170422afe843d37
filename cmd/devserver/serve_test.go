package main

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	req  events.APIGatewayProxyRequest
	resp events.APIGatewayProxyResponse
	err  error
}

func (r *recordingHandler) Handle(_ context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	r.req = req
	return r.resp, r.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProxy_ForwardsRequestAndResponse(t *testing.T) {
	h := &recordingHandler{resp: events.APIGatewayProxyResponse{
		StatusCode: http.StatusCreated,
		Headers:    map[string]string{"Content-Type": "application/json", "X-Extra": "1"},
		Body:       `{"content":"ok"}`,
	}}
	srv := newApp(h, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/search?debug=true", strings.NewReader(`{"searchTerm":"john"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(correlationHeader, "corr-42")
	resp, err := srv.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get("X-Extra"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, `{"content":"ok"}`, string(body))

	require.Equal(t, http.MethodPost, h.req.HTTPMethod)
	require.Equal(t, "/api/search", h.req.Path)
	require.Equal(t, "true", h.req.QueryStringParameters["debug"])
	require.Equal(t, "corr-42", h.req.Headers[correlationHeader])
	require.True(t, h.req.IsBase64Encoded)
	decoded, err := base64.StdEncoding.DecodeString(h.req.Body)
	require.NoError(t, err)
	require.Equal(t, `{"searchTerm":"john"}`, string(decoded))
}

func TestProxy_GeneratesCorrelationID(t *testing.T) {
	h := &recordingHandler{resp: events.APIGatewayProxyResponse{StatusCode: http.StatusOK}}
	srv := newApp(h, discardLogger())

	resp, err := srv.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NotEmpty(t, h.req.Headers[correlationHeader])
}

func TestProxy_HandlerErrorIs500(t *testing.T) {
	h := &recordingHandler{err: errors.New("runtime failure")}
	srv := newApp(h, discardLogger())

	resp, err := srv.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}
