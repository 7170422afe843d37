package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/require"

	"patient-chat/internal/config"
	"patient-chat/internal/repository"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Documents.Dir = t.TempDir()
	cfg.Model.APIKey = "pplx-test"
	return cfg
}

func TestNewDocumentSource(t *testing.T) {
	awsCfg := aws.Config{Region: "us-east-1"}

	src, err := newDocumentSource(config.DocumentsConfig{Source: config.SourceDirectory, Dir: t.TempDir()}, awsCfg)
	require.NoError(t, err)
	require.IsType(t, &repository.DirectorySource{}, src)

	src, err = newDocumentSource(config.DocumentsConfig{Source: config.SourceDynamoDB, Table: "patients"}, awsCfg)
	require.NoError(t, err)
	require.IsType(t, &repository.Client{}, src)

	src, err = newDocumentSource(config.DocumentsConfig{Source: config.SourceS3, Bucket: "records", Prefix: "p/"}, awsCfg)
	require.NoError(t, err)
	require.IsType(t, &repository.S3Source{}, src)

	_, err = newDocumentSource(config.DocumentsConfig{Source: config.SourceDirectory, Dir: "/does/not/exist"}, awsCfg)
	require.Error(t, err)

	_, err = newDocumentSource(config.DocumentsConfig{Source: "ftp"}, awsCfg)
	require.Error(t, err)
}

func TestNewContainer_ServesHealth(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	var logs bytes.Buffer
	cfg := testConfig(t)

	c, err := NewContainer(context.Background(), cfg, NewLogger(cfg, true, &logs))
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, c.Handler)
	require.Contains(t, logs.String(), "file analysis is disabled")

	resp, err := c.Handler.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: "/health"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewContainer_UnreachableRedisDisablesCache(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	var logs bytes.Buffer
	cfg := testConfig(t)
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	c, err := NewContainer(context.Background(), cfg, NewLogger(cfg, false, &logs))
	require.NoError(t, err)
	defer c.Close()
	require.Nil(t, c.redis)
	require.Contains(t, logs.String(), "summary cache disabled")
}

func TestNewLogger_Level(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	var buf bytes.Buffer
	logger := NewLogger(cfg, true, &buf)
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	cfg.LogLevel = "nonsense"
	logger = NewLogger(cfg, false, &buf)
	require.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
