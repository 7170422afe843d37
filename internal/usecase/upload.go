package usecase

import (
	"context"
	"strings"

	"patient-chat/internal/domain"
)

type UploadInput struct {
	FileName     string
	ContentType  string
	Data         []byte
	SystemPrompt string
}

type UploadOutput struct {
	Completion domain.Completion
	// FileContent is the raw file text for use as patientContext in chat.
	FileContent string
}

// AnalyzeUpload stages a file where the model API can fetch it, asks for an
// analysis and removes the staged copy whatever the outcome.
func (s *Service) AnalyzeUpload(ctx context.Context, in UploadInput) (UploadOutput, error) {
	if len(in.Data) == 0 {
		return UploadOutput{}, newError(ErrorInvalidInput, "empty_file", nil)
	}
	if s.blobs == nil {
		return UploadOutput{}, newError(ErrorInternal, "upload_storage_unconfigured", nil)
	}
	name := strings.TrimSpace(in.FileName)
	if name == "" {
		name = "upload.txt"
	}

	staged, err := s.blobs.Stage(ctx, name, in.ContentType, in.Data)
	if err != nil {
		return UploadOutput{}, newError(ErrorUpstream, "upload_staging_error", err)
	}
	defer func() {
		// The request context may already be done; deletion must still run.
		if err := s.blobs.Delete(context.WithoutCancel(ctx), staged.Key); err != nil {
			s.logger.Error("failed to delete staged upload", "key", staged.Key, "err", err)
			return
		}
		s.logger.Debug("deleted staged upload", "key", staged.Key)
	}()

	out, err := s.complete(ctx, domain.CompletionRequest{
		Model:       s.model,
		Messages:    fileMessages(in.SystemPrompt, staged.URL),
		Temperature: answerTemperature,
		MaxTokens:   fileAnalysisMaxTokens,
	})
	if err != nil {
		return UploadOutput{}, err
	}
	return UploadOutput{Completion: out, FileContent: string(in.Data)}, nil
}
