package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"patient-chat/internal/usecase"
)

const (
	fileField         = "file"
	systemPromptField = "systemPrompt"
)

func invalidUpload(reason string, err error) error {
	return &usecase.Error{Code: usecase.ErrorInvalidInput, Reason: reason, Err: err}
}

// parseUpload extracts the uploaded file and optional system prompt from a
// multipart/form-data body.
func parseUpload(body []byte, contentType string, maxBytes int64) (usecase.UploadInput, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		return usecase.UploadInput{}, invalidUpload("expected_multipart", err)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return usecase.UploadInput{}, invalidUpload("missing_boundary", nil)
	}

	form, err := multipart.NewReader(bytes.NewReader(body), boundary).ReadForm(maxBytes)
	if err != nil {
		return usecase.UploadInput{}, invalidUpload("invalid_multipart", err)
	}
	defer func() { _ = form.RemoveAll() }()

	files := form.File[fileField]
	if len(files) == 0 {
		return usecase.UploadInput{}, invalidUpload("missing_file", nil)
	}
	fh := files[0]
	if fh.Size > maxBytes {
		return usecase.UploadInput{}, invalidUpload("file_too_large", fmt.Errorf("%d bytes exceeds %d", fh.Size, maxBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return usecase.UploadInput{}, invalidUpload("invalid_multipart", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return usecase.UploadInput{}, invalidUpload("invalid_multipart", err)
	}
	if len(data) == 0 {
		return usecase.UploadInput{}, invalidUpload("empty_file", errors.New("uploaded file is empty"))
	}

	in := usecase.UploadInput{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}
	if vals := form.Value[systemPromptField]; len(vals) > 0 {
		in.SystemPrompt = strings.TrimSpace(vals[0])
	}
	return in, nil
}
