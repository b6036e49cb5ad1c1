package vlllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"filament-recognition-go/internal/platform/config"
	platformerrors "filament-recognition-go/internal/platform/errors"
	"filament-recognition-go/internal/utils"

	"github.com/sashabaranov/go-openai"
)

// Config carries the provider settings for one VLLLM entry.
type Config struct {
	Type        string
	ModelName   string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Security    config.SecurityConfig
}

// Provider calls a hosted vision-language model with an image and a text
// instruction and returns the model's raw reply text. Construct once and
// share; the underlying HTTP clients are safe for concurrent use.
type Provider struct {
	config *Config
	logger *utils.Logger

	openaiClient *openai.Client
	httpClient   *http.Client
}

// OllamaRequest is the request body of the Ollama chat API.
type OllamaRequest struct {
	Model    string                 `json:"model"`
	Messages []OllamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// OllamaMessage is a single chat turn; images ride alongside as raw base64.
type OllamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// OllamaResponse is the non-streaming reply of the Ollama chat API.
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// NewProvider creates a provider from its config.
func NewProvider(config *Config, logger *utils.Logger) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("provider config is required")
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}

	return &Provider{
		config:     config,
		logger:     logger,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

// Initialize sets up the backend client for the configured provider type.
func (p *Provider) Initialize() error {
	switch strings.ToLower(p.config.Type) {
	case "openai":
		if p.config.APIKey == "" {
			return platformerrors.New(platformerrors.KindConfig, "vlllm.init",
				"API key is required for openai-type providers")
		}

		clientConfig := openai.DefaultConfig(p.config.APIKey)
		if p.config.BaseURL != "" {
			clientConfig.BaseURL = p.config.BaseURL
		}
		p.openaiClient = openai.NewClientWithConfig(clientConfig)

	case "ollama":
		if p.config.BaseURL == "" {
			p.config.BaseURL = "http://localhost:11434"
		}
		p.logger.DebugTag("VLLLM", "ollama backend ready: base_url=%s model=%s",
			p.config.BaseURL, p.config.ModelName)

	default:
		return platformerrors.New(platformerrors.KindConfig, "vlllm.init",
			fmt.Sprintf("unsupported VLLLM type: %s", p.config.Type))
	}

	p.logger.DebugTag("VLLLM", "provider initialised: type=%s model_name=%s",
		p.config.Type, p.config.ModelName)

	return nil
}

// Cleanup releases provider resources.
func (p *Provider) Cleanup() error {
	p.logger.InfoTag("VLLLM", "provider cleaned up")
	return nil
}

// Describe sends one user turn carrying the image and the instruction
// prompt, blocking until the model's full reply text is available. The
// image must already be a data URI (the pipeline's DataURI output).
func (p *Provider) Describe(ctx context.Context, imageURI string, prompt string) (string, error) {
	p.logger.DebugTag("VLLLM", "invoke vision API: type=%s model_name=%s prompt_length=%d image_length=%d",
		p.config.Type, p.config.ModelName, len(prompt), len(imageURI))

	switch strings.ToLower(p.config.Type) {
	case "openai":
		return p.describeWithOpenAI(ctx, imageURI, prompt)
	case "ollama":
		return p.describeWithOllama(ctx, imageURI, prompt)
	default:
		return "", platformerrors.New(platformerrors.KindConfig, "vlllm.describe",
			fmt.Sprintf("unsupported VLLLM type: %s", p.config.Type))
	}
}

func (p *Provider) describeWithOpenAI(ctx context.Context, imageURI string, prompt string) (string, error) {
	if p.openaiClient == nil {
		return "", platformerrors.New(platformerrors.KindVision, "vlllm.describe",
			"provider not initialised")
	}

	visionMessage := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: imageURI,
				},
			},
			{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt,
			},
		},
	}

	response, err := p.openaiClient.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       p.config.ModelName,
			Messages:    []openai.ChatCompletionMessage{visionMessage},
			MaxTokens:   p.config.MaxTokens,
			Temperature: float32(p.config.Temperature),
			TopP:        float32(p.config.TopP),
		},
	)
	if err != nil {
		p.logger.ErrorTag("VLLLM", "vision API call failed: model=%s err=%v", p.config.ModelName, err)
		return "", platformerrors.Wrap(platformerrors.KindVision, "vlllm.describe",
			"vision API call failed", err)
	}

	if len(response.Choices) == 0 {
		return "", platformerrors.New(platformerrors.KindVision, "vlllm.describe",
			"vision API returned no choices")
	}

	text, err := extractMessageText(response.Choices[0].Message)
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.KindVision, "vlllm.describe",
			"no text content in vision API response", err)
	}
	return text, nil
}

func (p *Provider) describeWithOllama(ctx context.Context, imageURI string, prompt string) (string, error) {
	request := OllamaRequest{
		Model: p.config.ModelName,
		Messages: []OllamaMessage{
			{
				Role:    "user",
				Content: prompt,
				// Ollama wants bare base64 without the data URL prefix.
				Images: []string{stripDataURI(imageURI)},
			},
		},
		Stream: false,
		Options: map[string]interface{}{
			"temperature": p.config.Temperature,
			"top_p":       p.config.TopP,
		},
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.KindVision, "vlllm.describe",
			"failed to serialise ollama request", err)
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimSuffix(p.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", platformerrors.Wrap(platformerrors.KindVision, "vlllm.describe",
			"failed to create ollama request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.ErrorTag("VLLLM", "ollama API call failed: %v", err)
		return "", platformerrors.Wrap(platformerrors.KindVision, "vlllm.describe",
			"ollama API call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		p.logger.ErrorTag("VLLLM", "ollama API returned error: status=%s body=%s", resp.Status, body)
		return "", platformerrors.New(platformerrors.KindVision, "vlllm.describe",
			fmt.Sprintf("ollama API returned status %d", resp.StatusCode))
	}

	var response OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", platformerrors.Wrap(platformerrors.KindVision, "vlllm.describe",
			"failed to decode ollama response", err)
	}

	if response.Message.Content == "" {
		return "", platformerrors.New(platformerrors.KindVision, "vlllm.describe",
			"no text content in ollama response")
	}
	return response.Message.Content, nil
}

// stripDataURI removes a data URL prefix, if any, leaving bare base64.
func stripDataURI(uri string) string {
	if idx := strings.Index(uri, "base64,"); idx != -1 {
		return uri[idx+len("base64,"):]
	}
	return uri
}

// GetConfig exposes the provider configuration.
func (p *Provider) GetConfig() *Config {
	return p.config
}
