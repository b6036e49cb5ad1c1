package services

import (
	"context"
	"fmt"

	"filament-recognition-go/internal/domain/filament"
	domainimage "filament-recognition-go/internal/domain/image"
	platformerrors "filament-recognition-go/internal/platform/errors"
	"filament-recognition-go/internal/utils"
)

// LabelDescriber is the narrow port to the vision-language model: one
// image data URI and one instruction in, the raw reply text out.
type LabelDescriber interface {
	Describe(ctx context.Context, imageURI string, prompt string) (string, error)
}

// RecognitionService drives one recognition: prepare the image, ask the
// model, interpret the reply. All dependencies are injected; the service
// holds no per-request state and is safe for concurrent use.
type RecognitionService struct {
	pipeline  *domainimage.Pipeline
	describer LabelDescriber
	logger    *utils.Logger
}

// NewRecognitionService wires the recognition flow.
func NewRecognitionService(
	pipeline *domainimage.Pipeline,
	describer LabelDescriber,
	logger *utils.Logger,
) (*RecognitionService, error) {
	if pipeline == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "recognition.new", "image pipeline is required")
	}
	if describer == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "recognition.new", "label describer is required")
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}

	return &RecognitionService{
		pipeline:  pipeline,
		describer: describer,
		logger:    logger,
	}, nil
}

// Recognize runs the full flow for one uploaded label image.
//
// A non-nil error means the input image itself was rejected (undecodable,
// oversized, disallowed format) and the caller should answer with a
// client error. Failures past that point — the model call or the reply
// interpretation — are folded into a failed RecognitionResult instead,
// because the upload was fine and the caller still gets a well-formed
// response body.
func (s *RecognitionService) Recognize(ctx context.Context, input domainimage.Input) (filament.RecognitionResult, error) {
	output, err := s.pipeline.Process(ctx, input)
	if err != nil {
		return filament.RecognitionResult{}, platformerrors.Wrap(
			platformerrors.KindTransport, "recognition.prepare", "invalid image file", err)
	}

	reply, err := s.describer.Describe(ctx, output.DataURI, filament.ExtractionPrompt)
	if err != nil {
		s.logger.WarnTag("Vision", "model call failed: %v", err)
		return filament.Failure(fmt.Sprintf("recognition failed: %v", err)), nil
	}

	data, confidence, err := filament.Interpret(reply)
	if err != nil {
		s.logger.WarnTag("Vision", "uninterpretable model reply: %v reply_length=%d", err, len(reply))
		return filament.Failure(fmt.Sprintf("recognition failed: %v", err)), nil
	}

	s.logger.InfoTag("Vision", "recognition succeeded: confidence=%.2f source_format=%s size=%dx%d",
		confidence, output.Format, output.Width, output.Height)

	return filament.Succeeded(data, confidence), nil
}
