package recognition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"filament-recognition-go/internal/app/services"
	"filament-recognition-go/internal/domain/filament"
	domainimage "filament-recognition-go/internal/domain/image"
	"filament-recognition-go/internal/platform/config"
	platformerrors "filament-recognition-go/internal/platform/errors"
	httptransport "filament-recognition-go/internal/transport/http"
	"filament-recognition-go/internal/utils"
)

// Service is the HTTP facade over the recognition flow.
type Service struct {
	logger     *utils.Logger
	config     *config.Config
	recognizer *services.RecognitionService
}

// NewService creates the recognition HTTP service.
func NewService(
	config *config.Config,
	logger *utils.Logger,
	recognizer *services.RecognitionService,
) (*Service, error) {
	if config == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "recognition.http.new", "config is required")
	}
	if logger == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "recognition.http.new", "logger is required")
	}
	if recognizer == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "recognition.http.new", "recognition service is required")
	}

	return &Service{
		logger:     logger,
		config:     config,
		recognizer: recognizer,
	}, nil
}

// Register registers the recognition routes on the API group.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/v1/recognize", s.handleGet)
	router.POST("/v1/recognize", s.handlePost)

	s.logger.InfoTag("HTTP", "recognition routes registered")
	return nil
}

// handleGet 处理GET请求（状态检查）
// @Summary 识别服务状态
// @Description 获取耗材识别服务的运行状态和当前模型
// @Tags Recognition
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /api/v1/recognize [get]
func (s *Service) handleGet(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, StatusData{
		Service: httptransport.ServiceName,
		Version: httptransport.ServiceVersion,
		Status:  "running",
		Model:   s.modelName(),
	}, "recognition service is running")
}

// handlePost 处理POST请求（耗材标签识别）
// @Summary 耗材标签识别
// @Description 上传耗材标签图片，返回识别出的结构化字段和置信度
// @Tags Recognition
// @Accept multipart/form-data
// @Produce json
// @Param image formData file true "标签图片文件"
// @Success 200 {object} filament.RecognitionResult
// @Failure 400 {object} filament.RecognitionResult
// @Failure 500 {object} filament.RecognitionResult
// @Router /api/v1/recognize [post]
func (s *Service) handlePost(c *gin.Context) {
	requestID := httptransport.RequestID(c)

	input, file, err := s.parseUpload(c)
	if err != nil {
		s.logger.WarnTag("HTTP", "upload rejected: %v request_id=%s", err, requestID)
		c.JSON(http.StatusBadRequest, filament.Failure(err.Error()))
		return
	}
	defer file.Close()

	result, err := s.recognizer.Recognize(c.Request.Context(), input)
	if err != nil {
		if platformerrors.IsKind(err, platformerrors.KindTransport) {
			s.logger.WarnTag("HTTP", "invalid image: %v request_id=%s", err, requestID)
			c.JSON(http.StatusBadRequest, filament.Failure(err.Error()))
			return
		}
		s.logger.ErrorTag("HTTP", "recognition failed unexpectedly: %v request_id=%s", err, requestID)
		c.JSON(http.StatusInternalServerError, filament.Failure("internal server error"))
		return
	}

	c.JSON(http.StatusOK, result)
}

// parseUpload validates the multipart upload against the configured
// extension allow-list and size limit. The returned closer is the opened
// upload; the caller closes it once recognition is done.
func (s *Service) parseUpload(c *gin.Context) (domainimage.Input, io.Closer, error) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return domainimage.Input{}, nil, platformerrors.New(platformerrors.KindTransport,
			"recognize.parse", "image file field is required")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if !s.extensionAllowed(ext) {
		return domainimage.Input{}, nil, platformerrors.New(platformerrors.KindTransport,
			"recognize.parse", fmt.Sprintf("unsupported image type. allowed types: %s",
				strings.Join(s.config.Upload.AllowedExtensions, ", ")))
	}

	if maxBytes := s.config.Upload.MaxUploadBytes(); maxBytes > 0 && fileHeader.Size > maxBytes {
		return domainimage.Input{}, nil, platformerrors.New(platformerrors.KindTransport,
			"recognize.parse", fmt.Sprintf("image file too large. maximum size: %dMB",
				s.config.Upload.MaxSizeMB))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return domainimage.Input{}, nil, platformerrors.Wrap(platformerrors.KindTransport,
			"recognize.parse", "failed to open uploaded file", err)
	}

	return domainimage.Input{
		Reader:         file,
		DeclaredFormat: declaredFormat(ext),
		Source:         "upload",
	}, file, nil
}

func (s *Service) extensionAllowed(ext string) bool {
	for _, allowed := range s.config.Upload.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

func (s *Service) modelName() string {
	selected := s.config.Selected.VLLLM
	if entry, ok := s.config.VLLLM[selected]; ok {
		return entry.ModelName
	}
	return ""
}

// declaredFormat maps a filename extension to the canonical format name
// the image pipeline expects.
func declaredFormat(ext string) string {
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}
