package main

import (
	"context"
	"errors"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"patient-chat/internal/repository"
)

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Copy patient records from a directory into the DynamoDB table",
		RunE:  runSeedCmd,
	}
	cmd.Flags().String("dir", "", "source directory (defaults to DOCUMENT_DIR)")
	cmd.Flags().String("table", "", "target table (defaults to DOCUMENT_TABLE)")
	return cmd
}

func runSeedCmd(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.Documents.Dir
	}
	table, _ := cmd.Flags().GetString("table")
	if table == "" {
		table = cfg.Documents.Table
	}
	if table == "" {
		return errors.New("seed: a target table is required (--table or DOCUMENT_TABLE)")
	}

	src, err := repository.NewDirectorySource(dir)
	if err != nil {
		return err
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(cmd.Context())
	if err != nil {
		return fmt.Errorf("seed: load aws config: %w", err)
	}
	dst, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), table)
	if err != nil {
		return err
	}

	n, err := seed(cmd.Context(), src, dst)
	if err != nil {
		return err
	}
	log.Info("seeded patient records", "count", n, "table", table, "dir", dir)
	return nil
}

type recordLister interface {
	Keys() ([]string, error)
	GetDocument(ctx context.Context, key string) (string, error)
}

type recordWriter interface {
	PutDocument(ctx context.Context, key, content string) error
}

func seed(ctx context.Context, src recordLister, dst recordWriter) (int, error) {
	keys, err := src.Keys()
	if err != nil {
		return 0, fmt.Errorf("seed: list records: %w", err)
	}
	for i, key := range keys {
		content, err := src.GetDocument(ctx, key)
		if err != nil {
			return i, fmt.Errorf("seed: read %q: %w", key, err)
		}
		if err := dst.PutDocument(ctx, key, content); err != nil {
			return i, fmt.Errorf("seed: write %q: %w", key, err)
		}
	}
	return len(keys), nil
}
