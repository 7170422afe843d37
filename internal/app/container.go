package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"patient-chat/handler"
	"patient-chat/internal/budget"
	"patient-chat/internal/config"
	"patient-chat/internal/integrations/blobstore"
	"patient-chat/internal/integrations/paramstore"
	"patient-chat/internal/integrations/perplexity"
	"patient-chat/internal/integrations/summarycache"
	"patient-chat/internal/repository"
	"patient-chat/internal/usecase"
)

const redisPingTimeout = 3 * time.Second

// Container holds the wired dependencies shared by the Lambda and the dev
// server entry points.
type Container struct {
	Handler *handler.Handler
	AWS     aws.Config

	redis  *redis.Client
	logger *slog.Logger
}

func NewContainer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Container, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load aws config: %w", err)
	}
	c := &Container{AWS: awsCfg, logger: logger}

	docs, err := newDocumentSource(cfg.Documents, awsCfg)
	if err != nil {
		return nil, err
	}

	var tokens perplexity.TokenGetter
	if cfg.Model.APIKey == "" {
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, fmt.Errorf("app: create parameter store client: %w", err)
		}
		tokens = ps
	}
	model, err := perplexity.NewClient(tokens, cfg.Model.ParamPrefix,
		perplexity.WithBaseURL(cfg.Model.BaseURL),
		perplexity.WithAPIKey(cfg.Model.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create model client: %w", err)
	}

	summarizer, err := budget.NewSummarizer(model,
		budget.WithSummaryModel(cfg.Model.Model),
		budget.WithSummaryTimeout(cfg.SummaryTimeout()),
		budget.WithSummarizerLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create summarizer: %w", err)
	}
	planner, err := budget.NewPlanner(cfg.TokenBudget(), summarizer,
		budget.WithCompaction(cfg.Budget.EnableCompaction),
		budget.WithPlannerLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("app: create planner: %w", err)
	}

	opts := []usecase.Option{
		usecase.WithModel(cfg.Model.Model),
		usecase.WithMaxDocumentTokens(cfg.Budget.MaxDocumentTokens),
		usecase.WithDocumentCompaction(cfg.Budget.EnableCompaction),
		usecase.WithCompletionTimeout(cfg.CompletionTimeout()),
		usecase.WithLogger(logger),
	}
	if cfg.UploadBucket != "" {
		s3Client := awss3.NewFromConfig(awsCfg)
		blobs, err := blobstore.New(s3Client, awss3.NewPresignClient(s3Client), cfg.UploadBucket)
		if err != nil {
			return nil, fmt.Errorf("app: create upload store: %w", err)
		}
		opts = append(opts, usecase.WithBlobStore(blobs))
	} else {
		logger.Warn("UPLOAD_BUCKET not set, file analysis is disabled")
	}
	if cfg.Cache.RedisAddr != "" {
		if cache := c.connectCache(ctx, cfg.Cache); cache != nil {
			opts = append(opts, usecase.WithSummaryCache(cache))
		}
	}

	svc, err := usecase.NewService(model, docs, summarizer, planner, opts...)
	if err != nil {
		return nil, fmt.Errorf("app: create service: %w", err)
	}
	h, err := handler.NewHandler(svc, handler.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("app: create handler: %w", err)
	}
	c.Handler = h
	return c, nil
}

// connectCache returns nil when Redis is unreachable; the service then runs
// without a summary cache.
func (c *Container) connectCache(ctx context.Context, cfg config.CacheConfig) *summarycache.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		c.logger.Warn("redis unavailable, summary cache disabled", "addr", cfg.RedisAddr, "err", err)
		_ = rdb.Close()
		return nil
	}
	cache, err := summarycache.New(rdb, time.Duration(cfg.TTLSeconds)*time.Second)
	if err != nil {
		c.logger.Warn("summary cache disabled", "err", err)
		_ = rdb.Close()
		return nil
	}
	c.redis = rdb
	return cache
}

func (c *Container) Close() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.logger.Warn("failed to close redis client", "err", err)
		}
	}
}

func newDocumentSource(cfg config.DocumentsConfig, awsCfg aws.Config) (repository.DocumentSource, error) {
	switch cfg.Source {
	case config.SourceDirectory:
		src, err := repository.NewDirectorySource(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("app: create directory source: %w", err)
		}
		return src, nil
	case config.SourceDynamoDB:
		src, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Table)
		if err != nil {
			return nil, fmt.Errorf("app: create dynamodb source: %w", err)
		}
		return src, nil
	case config.SourceS3:
		src, err := repository.NewS3Source(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("app: create s3 source: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("app: unknown document source %q", cfg.Source)
	}
}

// NewLogger builds the process logger at the configured level, as JSON for
// Lambda and as text for local runs.
func NewLogger(cfg config.Config, jsonFormat bool, w io.Writer) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
