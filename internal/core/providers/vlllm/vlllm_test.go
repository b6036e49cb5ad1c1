package vlllm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	platformerrors "filament-recognition-go/internal/platform/errors"
	"filament-recognition-go/internal/utils"

	"github.com/sashabaranov/go-openai"
)

func testLogger(t *testing.T) *utils.Logger {
	t.Helper()
	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: "error",
		LogDir:   t.TempDir(),
		LogFile:  "test.log",
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestInitialize(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "openai with key",
			config:  Config{Type: "openai", APIKey: "sk-test", ModelName: "qwen-vl-plus"},
			wantErr: false,
		},
		{
			name:    "openai without key",
			config:  Config{Type: "openai", ModelName: "qwen-vl-plus"},
			wantErr: true,
		},
		{
			name:    "ollama defaults base url",
			config:  Config{Type: "ollama", ModelName: "qwen2.5vl:7b"},
			wantErr: false,
		},
		{
			name:    "unknown type",
			config:  Config{Type: "grpc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(&tt.config, testLogger(t))
			if err != nil {
				t.Fatalf("NewProvider failed: %v", err)
			}
			err = provider.Initialize()
			if (err != nil) != tt.wantErr {
				t.Errorf("Initialize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !platformerrors.IsKind(err, platformerrors.KindConfig) {
				t.Errorf("initialisation errors should be config kind, got %v", err)
			}
		})
	}
}

func TestDescribe_Ollama(t *testing.T) {
	var received OllamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		response := OllamaResponse{Done: true}
		response.Message.Role = "assistant"
		response.Message.Content = `{"brand":"Sunlu"}`
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider, err := NewProvider(&Config{
		Type:        "ollama",
		ModelName:   "qwen2.5vl:7b",
		BaseURL:     server.URL,
		Temperature: 0.1,
		TopP:        0.9,
	}, testLogger(t))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if err := provider.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	reply, err := provider.Describe(context.Background(),
		"data:image/jpeg;base64,aGVsbG8=", "extract the label")
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	if reply != `{"brand":"Sunlu"}` {
		t.Errorf("unexpected reply: %q", reply)
	}

	if received.Stream {
		t.Error("request should be non-streaming")
	}
	if received.Model != "qwen2.5vl:7b" {
		t.Errorf("unexpected model: %s", received.Model)
	}
	if len(received.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(received.Messages))
	}
	message := received.Messages[0]
	if message.Content != "extract the label" {
		t.Errorf("unexpected prompt: %q", message.Content)
	}
	if len(message.Images) != 1 || message.Images[0] != "aGVsbG8=" {
		t.Errorf("data URI prefix not stripped: %v", message.Images)
	}
}

func TestDescribe_OllamaErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider, err := NewProvider(&Config{
		Type:      "ollama",
		ModelName: "missing",
		BaseURL:   server.URL,
	}, testLogger(t))
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	if err := provider.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	_, err = provider.Describe(context.Background(), "data:image/jpeg;base64,aGVsbG8=", "extract")
	if err == nil {
		t.Fatal("expected error for non-success status")
	}
	if !platformerrors.IsKind(err, platformerrors.KindVision) {
		t.Errorf("external-call failures should be vision kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error should carry the status code, got %v", err)
	}
}

func TestExtractMessageText(t *testing.T) {
	tests := []struct {
		name     string
		message  openai.ChatCompletionMessage
		expected string
		wantErr  bool
	}{
		{
			name:     "plain string content",
			message:  openai.ChatCompletionMessage{Content: `{"material":"PLA"}`},
			expected: `{"material":"PLA"}`,
		},
		{
			name: "multi-part content",
			message: openai.ChatCompletionMessage{
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeImageURL},
					{Type: openai.ChatMessagePartTypeText, Text: `{"brand":"eSUN"}`},
				},
			},
			expected: `{"brand":"eSUN"}`,
		},
		{
			name: "plain content wins over parts",
			message: openai.ChatCompletionMessage{
				Content: "primary",
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: "secondary"},
				},
			},
			expected: "primary",
		},
		{
			name:    "no text anywhere",
			message: openai.ChatCompletionMessage{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := extractMessageText(tt.message)
			if (err != nil) != tt.wantErr {
				t.Fatalf("extractMessageText() error = %v, wantErr %v", err, tt.wantErr)
			}
			if text != tt.expected {
				t.Errorf("extractMessageText() = %q, expected %q", text, tt.expected)
			}
		})
	}
}

func TestStripDataURI(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{name: "jpeg data uri", uri: "data:image/jpeg;base64,Zm9v", expected: "Zm9v"},
		{name: "bare base64", uri: "Zm9v", expected: "Zm9v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripDataURI(tt.uri); got != tt.expected {
				t.Errorf("stripDataURI(%q) = %q, expected %q", tt.uri, got, tt.expected)
			}
		})
	}
}
