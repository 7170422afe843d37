package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"patient-chat/internal/domain"
)

const (
	uploadPrefix       = "uploads/"
	defaultURLLifetime = 15 * time.Minute
)

// s3API is the minimal S3 interface required by Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// presignAPI is satisfied by *s3.PresignClient.
type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store stages uploaded files in an S3 bucket for the duration of one request.
type Store struct {
	api         s3API
	presign     presignAPI
	bucket      string
	urlLifetime time.Duration
}

func New(api s3API, presign presignAPI, bucket string) (*Store, error) {
	if api == nil {
		return nil, errors.New("blobstore: s3 api must not be nil")
	}
	if presign == nil {
		return nil, errors.New("blobstore: presign client must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("blobstore: bucket must not be empty")
	}
	return &Store{api: api, presign: presign, bucket: bucket, urlLifetime: defaultURLLifetime}, nil
}

// objectKey namespaces every upload under a fresh UUID so concurrent uploads
// with the same file name never collide.
func objectKey(fileName string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(fileName), `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload"
	}
	return uploadPrefix + uuid.NewString() + "/" + name
}

// Stage uploads data and returns a presigned download URL for it.
func (s *Store) Stage(ctx context.Context, fileName, contentType string, data []byte) (domain.StagedFile, error) {
	key := objectKey(fileName)
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := s.api.PutObject(ctx, in); err != nil {
		return domain.StagedFile{}, fmt.Errorf("blobstore: put object %q: %w", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.urlLifetime))
	if err != nil {
		// Best effort: the object is useless without a URL.
		_ = s.Delete(ctx, key)
		return domain.StagedFile{}, fmt.Errorf("blobstore: presign %q: %w", key, err)
	}
	return domain.StagedFile{Key: key, URL: req.URL}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("blobstore: delete object %q: %w", key, err)
	}
	return nil
}
