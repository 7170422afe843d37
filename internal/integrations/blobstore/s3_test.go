package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	putErr    error
	deleteErr error
	putIn     *s3.PutObjectInput
	putBody   string
	deleted   []string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.putIn = in
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.putBody = string(b)
	}
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, *in.Key)
	return &s3.DeleteObjectOutput{}, f.deleteErr
}

type fakePresign struct {
	err    error
	lastIn *s3.GetObjectInput
}

func (f *fakePresign) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://uploads.example/" + *in.Key + "?sig=1"}, nil
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, &fakePresign{}, "b")
	require.Error(t, err)
	_, err = New(&fakeS3{}, nil, "b")
	require.Error(t, err)
	_, err = New(&fakeS3{}, &fakePresign{}, " ")
	require.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	key := objectKey("../../report.pdf")
	require.True(t, strings.HasPrefix(key, "uploads/"))
	require.True(t, strings.HasSuffix(key, "/report.pdf"))

	require.True(t, strings.HasSuffix(objectKey(`C:\tmp\scan.txt`), "/scan.txt"))
	require.True(t, strings.HasSuffix(objectKey(""), "/upload"))
	require.NotEqual(t, objectKey("a.txt"), objectKey("a.txt"))
}

func TestStage_HappyPath(t *testing.T) {
	api := &fakeS3{}
	presign := &fakePresign{}
	store, err := New(api, presign, "staging")
	require.NoError(t, err)

	staged, err := store.Stage(context.Background(), "labs.txt", "text/plain", []byte("HbA1c 7.2%"))
	require.NoError(t, err)
	require.Equal(t, "staging", *api.putIn.Bucket)
	require.Equal(t, staged.Key, *api.putIn.Key)
	require.Equal(t, "text/plain", *api.putIn.ContentType)
	require.Equal(t, "HbA1c 7.2%", api.putBody)
	require.Equal(t, staged.Key, *presign.lastIn.Key)
	require.Contains(t, staged.URL, staged.Key)
}

func TestStage_PutError(t *testing.T) {
	store, err := New(&fakeS3{putErr: errors.New("denied")}, &fakePresign{}, "staging")
	require.NoError(t, err)
	_, err = store.Stage(context.Background(), "a.txt", "", []byte("x"))
	require.ErrorContains(t, err, "denied")
}

func TestStage_PresignErrorRemovesObject(t *testing.T) {
	api := &fakeS3{}
	store, err := New(api, &fakePresign{err: errors.New("no creds")}, "staging")
	require.NoError(t, err)
	_, err = store.Stage(context.Background(), "a.txt", "", []byte("x"))
	require.ErrorContains(t, err, "no creds")
	require.Len(t, api.deleted, 1)
}

func TestDelete(t *testing.T) {
	api := &fakeS3{}
	store, err := New(api, &fakePresign{}, "staging")
	require.NoError(t, err)
	require.NoError(t, store.Delete(context.Background(), "uploads/x/a.txt"))
	require.Equal(t, []string{"uploads/x/a.txt"}, api.deleted)

	api.deleteErr = errors.New("gone")
	require.ErrorContains(t, store.Delete(context.Background(), "k"), "gone")
}
