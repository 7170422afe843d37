package repository

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

type fakeS3Get struct {
	body   string
	err    error
	lastIn *s3.GetObjectInput
}

func (f *fakeS3Get) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestNewS3Source_Validates(t *testing.T) {
	_, err := NewS3Source(nil, "b", "")
	require.Error(t, err)
	_, err = NewS3Source(&fakeS3Get{}, "", "")
	require.Error(t, err)
}

func TestS3Source_GetDocument(t *testing.T) {
	api := &fakeS3Get{body: "record"}
	src, err := NewS3Source(api, "records", "/sample-data/")
	require.NoError(t, err)

	doc, err := src.GetDocument(context.Background(), "p-1")
	require.NoError(t, err)
	require.Equal(t, "record", doc)
	require.Equal(t, "records", *api.lastIn.Bucket)
	require.Equal(t, "sample-data/p-1.txt", *api.lastIn.Key)
}

func TestS3Source_NotFound(t *testing.T) {
	src, err := NewS3Source(&fakeS3Get{err: &s3types.NoSuchKey{}}, "records", "")
	require.NoError(t, err)
	_, err = src.GetDocument(context.Background(), "p-1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = src.GetDocument(context.Background(), "a/../b")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3Source_OtherError(t *testing.T) {
	src, err := NewS3Source(&fakeS3Get{err: errors.New("access denied")}, "records", "")
	require.NoError(t, err)
	_, err = src.GetDocument(context.Background(), "p-1")
	require.ErrorContains(t, err, "access denied")
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestS3Source_RejectsOversizedDocument(t *testing.T) {
	body := strings.Repeat("a", maxDocumentBytes) + "ALLERGY: penicillin"
	src, err := NewS3Source(&fakeS3Get{body: body}, "records", "")
	require.NoError(t, err)

	doc, err := src.GetDocument(context.Background(), "p-1")
	require.ErrorIs(t, err, errDocumentTooLarge)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Empty(t, doc)
}

func TestS3Source_DocumentAtSizeLimit(t *testing.T) {
	body := strings.Repeat("a", maxDocumentBytes)
	src, err := NewS3Source(&fakeS3Get{body: body}, "records", "")
	require.NoError(t, err)

	doc, err := src.GetDocument(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, doc, maxDocumentBytes)
}
