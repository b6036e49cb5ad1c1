package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"

	"filament-recognition-go/internal/platform/config"
	"filament-recognition-go/internal/utils"
)

// JPEGQuality is the encoder quality used for the transmitted image.
const JPEGQuality = 85

// Pipeline orchestrates ingestion, validation and JPEG normalisation of
// image payloads before they are shipped to the vision model.
type Pipeline struct {
	validator *SecurityValidator
	logger    *utils.Logger
	security  *config.SecurityConfig
}

// Options configures the pipeline behaviour.
type Options struct {
	Security *config.SecurityConfig
	Logger   *utils.Logger
}

// Input describes a streaming image payload.
type Input struct {
	Reader         io.Reader
	DeclaredFormat string
	Source         string
}

// Output contains the sanitised artefacts produced by the pipeline. The
// payload is always an opaque RGB JPEG regardless of the source format.
type Output struct {
	JPEGBytes  []byte
	Base64     string
	DataURI    string
	Format     string
	Width      int
	Height     int
	Validation ValidationResult
}

// NewPipeline constructs an image pipeline.
func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Security == nil {
		return nil, fmt.Errorf("security config is required")
	}
	if opts.Logger == nil {
		opts.Logger = utils.DefaultLogger
	}

	validator := NewSecurityValidator(opts.Security, opts.Logger)

	return &Pipeline{
		validator: validator,
		logger:    opts.Logger,
		security:  opts.Security,
	}, nil
}

// Process streams the input through validation, flattening and JPEG encoding.
func (p *Pipeline) Process(ctx context.Context, input Input) (*Output, error) {
	if input.Reader == nil {
		return nil, fmt.Errorf("image reader is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	maxSize := p.security.MaxFileSize
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}

	limited := &io.LimitedReader{
		R: input.Reader,
		N: maxSize + 1,
	}

	rawBuf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	if _, err := io.Copy(rawBuf, limited); err != nil {
		return nil, fmt.Errorf("stream image bytes: %w", err)
	}
	if limited.N <= 0 {
		return nil, fmt.Errorf("image exceeds maximum size of %d bytes", maxSize)
	}

	rawBytes := rawBuf.Bytes()
	validation := p.validator.ValidateBytes(rawBytes, input.DeclaredFormat)
	if !validation.IsValid {
		if validation.Error != nil {
			return nil, validation.Error
		}
		return nil, fmt.Errorf("image validation failed")
	}

	decoded, _, err := image.Decode(bytes.NewReader(rawBytes))
	if err != nil {
		// DecodeConfig accepted the header, so a full-decode failure means
		// the body is truncated or corrupt past the header.
		return nil, fmt.Errorf("decode image: %w", err)
	}

	flattened := flattenToOpaque(decoded)

	jpegBuf := bytes.NewBuffer(make([]byte, 0, 64*1024))
	if err := jpeg.Encode(jpegBuf, flattened, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	jpegBytes := jpegBuf.Bytes()
	base64Data := base64.StdEncoding.EncodeToString(jpegBytes)

	bounds := flattened.Bounds()
	p.logger.DebugTag("Image",
		"normalised image: source_format=%s size=%dx%d jpeg_bytes=%d source=%s",
		validation.Format, bounds.Dx(), bounds.Dy(), len(jpegBytes), input.Source)

	return &Output{
		JPEGBytes:  jpegBytes,
		Base64:     base64Data,
		DataURI:    "data:image/jpeg;base64," + base64Data,
		Format:     validation.Format,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Validation: validation,
	}, nil
}

// flattenToOpaque renders the decoded image onto an opaque canvas. Formats
// that may carry transparency (straight or premultiplied alpha, palette
// entries with alpha) are composited over white so translucent label edges
// do not turn black in the JPEG; everything else is converted to RGB as-is.
func flattenToOpaque(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	switch src.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64, *image.Paletted:
		white := image.NewUniform(color.White)
		draw.Draw(canvas, canvas.Bounds(), white, image.Point{}, draw.Src)
		draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Over)
	default:
		draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)
	}

	return canvas
}
