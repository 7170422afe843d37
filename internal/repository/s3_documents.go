package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// maxDocumentBytes bounds how much of an object is read into memory. Larger
// records are rejected rather than cut short.
const maxDocumentBytes = 10 << 20

var errDocumentTooLarge = fmt.Errorf("repository: document exceeds %d bytes", maxDocumentBytes)

type s3GetAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves "<prefix><key>.txt" objects from a bucket.
type S3Source struct {
	api    s3GetAPI
	bucket string
	prefix string
}

func NewS3Source(api s3GetAPI, bucket, prefix string) (*S3Source, error) {
	if api == nil {
		return nil, errors.New("repository: s3 api must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("repository: bucket must not be empty")
	}
	return &S3Source{api: api, bucket: bucket, prefix: strings.TrimLeft(prefix, "/")}, nil
}

func (s *S3Source) objectKey(key string) string {
	return s.prefix + key + documentExt
}

func (s *S3Source) GetDocument(ctx context.Context, key string) (string, error) {
	key, ok := normalizeKey(key)
	if !ok {
		return "", ErrNotFound
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("repository: get object %q: %w", s.objectKey(key), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("repository: read object %q: %w", s.objectKey(key), err)
	}
	if len(data) > maxDocumentBytes {
		return "", fmt.Errorf("repository: read object %q: %w", s.objectKey(key), errDocumentTooLarge)
	}
	return string(data), nil
}
