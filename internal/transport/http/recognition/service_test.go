package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"filament-recognition-go/internal/app/services"
	"filament-recognition-go/internal/domain/filament"
	domainimage "filament-recognition-go/internal/domain/image"
	"filament-recognition-go/internal/platform/config"
	httptransport "filament-recognition-go/internal/transport/http"
	"filament-recognition-go/internal/utils"
)

type stubDescriber struct {
	reply string
	err   error
}

func (s *stubDescriber) Describe(ctx context.Context, imageURI string, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestEngine(t *testing.T, describer services.LabelDescriber) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: "error",
		LogDir:   t.TempDir(),
		LogFile:  "test.log",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	cfg := config.DefaultConfig()
	cfg.Upload.MaxSizeMB = 1
	cfg.Web.Enabled = false
	cfg.Web.StaticDir = ""

	security := config.DefaultSecurityConfig()
	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Security: &security,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}

	recognizer, err := services.NewRecognitionService(pipeline, describer, logger)
	if err != nil {
		t.Fatalf("failed to create recognition service: %v", err)
	}

	router, err := httptransport.Build(httptransport.Options{
		Config: cfg,
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}

	service, err := NewService(cfg, logger, recognizer)
	if err != nil {
		t.Fatalf("failed to create http service: %v", err)
	}
	if err := service.Register(context.Background(), router.API); err != nil {
		t.Fatalf("failed to register routes: %v", err)
	}

	return router.Engine
}

func labelPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeResult(t *testing.T, recorder *httptest.ResponseRecorder) filament.RecognitionResult {
	t.Helper()

	var result filament.RecognitionResult
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
	return result
}

func TestRecognizeEndpoint_Success(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{
		reply: "```json\n" +
			`{"brand":"eSUN","material":"PETG","colorName":"黑色",` +
			`"colorHex":"1A1A1A","weight":"1000","diameter":"1.75"}` + "\n```",
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, uploadRequest(t, "label.png", labelPNG(t)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if recorder.Header().Get("X-Request-Id") == "" {
		t.Error("response should carry a request ID")
	}

	result := decodeResult(t, recorder)
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Data == nil || result.Data.Brand == nil || *result.Data.Brand != "eSUN" {
		t.Errorf("unexpected data: %+v", result.Data)
	}
	if result.Data.ColorHex == nil || *result.Data.ColorHex != "#1A1A1A" {
		t.Errorf("colorHex not normalized: %+v", result.Data.ColorHex)
	}
	if result.Confidence == nil || *result.Confidence != 1.0 {
		t.Errorf("unexpected confidence: %v", result.Confidence)
	}
}

func TestRecognizeEndpoint_MissingFileField(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{reply: "{}"})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	writer.WriteField("note", "no image here")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	result := decodeResult(t, recorder)
	if result.Success {
		t.Error("expected failed result")
	}
	if !strings.Contains(result.Error, "image file field is required") {
		t.Errorf("unexpected error text: %q", result.Error)
	}
}

func TestRecognizeEndpoint_BadExtension(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{reply: "{}"})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, uploadRequest(t, "label.txt", labelPNG(t)))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	result := decodeResult(t, recorder)
	if !strings.Contains(result.Error, "unsupported image type") {
		t.Errorf("unexpected error text: %q", result.Error)
	}
}

func TestRecognizeEndpoint_OversizedUpload(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{reply: "{}"})

	// Upload limit in the test config is 1MB.
	oversized := bytes.Repeat([]byte{0xAB}, 1<<20+1)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, uploadRequest(t, "label.png", oversized))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	result := decodeResult(t, recorder)
	if !strings.Contains(result.Error, "too large") {
		t.Errorf("unexpected error text: %q", result.Error)
	}
}

func TestRecognizeEndpoint_UndecodableImage(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{reply: "{}"})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, uploadRequest(t, "label.png", []byte("not an image at all")))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", recorder.Code, recorder.Body.String())
	}
	result := decodeResult(t, recorder)
	if result.Success {
		t.Error("expected failed result")
	}
}

func TestRecognizeEndpoint_ModelFailureStaysOK(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{
		err: context.DeadlineExceeded,
	})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, uploadRequest(t, "label.png", labelPNG(t)))

	if recorder.Code != http.StatusOK {
		t.Fatalf("model failures should answer 200, got %d", recorder.Code)
	}
	result := decodeResult(t, recorder)
	if result.Success {
		t.Error("expected failed result")
	}
	if !strings.Contains(result.Error, "recognition failed") {
		t.Errorf("unexpected error text: %q", result.Error)
	}
}

func TestStatusEndpoint(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{reply: "{}"})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/recognize", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var response httptransport.APIResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success {
		t.Error("status endpoint should report success")
	}
}

func TestUnknownAPIRoute(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{reply: "{}"})

	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}

	var response httptransport.APIResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Success {
		t.Error("unknown API routes should answer a failure envelope")
	}
	if response.Code != http.StatusNotFound {
		t.Errorf("envelope code should mirror the status, got %d", response.Code)
	}
}

func TestRootAndHealthEndpoints(t *testing.T) {
	engine := newTestEngine(t, &stubDescriber{reply: "{}"})

	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "test-request-id")
	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if got := recorder.Header().Get("X-Request-Id"); got != "test-request-id" {
		t.Errorf("caller-supplied request ID not echoed, got %q", got)
	}
	if !strings.Contains(recorder.Body.String(), "healthy") {
		t.Errorf("unexpected health body: %s", recorder.Body.String())
	}

	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var banner map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &banner); err != nil {
		t.Fatalf("failed to decode banner: %v", err)
	}
	if banner["service"] == "" || banner["status"] != "running" {
		t.Errorf("unexpected banner: %v", banner)
	}
}
