package vlllm

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// messageText recovers the reply text from one observed response shape.
// OpenAI-compatible endpoints answer with a plain string content most of
// the time, but some return the reply as multi-part content; each shape
// gets its own implementation instead of scattering branches through the
// calling code.
type messageText interface {
	text() (string, bool)
}

// plainContent handles the common shape: content is a single string.
type plainContent struct {
	message openai.ChatCompletionMessage
}

func (s plainContent) text() (string, bool) {
	if s.message.Content == "" {
		return "", false
	}
	return s.message.Content, true
}

// multiPartContent handles endpoints that answer with content parts;
// the first non-empty text part wins.
type multiPartContent struct {
	message openai.ChatCompletionMessage
}

func (s multiPartContent) text() (string, bool) {
	for _, part := range s.message.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			return part.Text, true
		}
	}
	return "", false
}

// extractMessageText tries each known shape in turn.
func extractMessageText(message openai.ChatCompletionMessage) (string, error) {
	shapes := []messageText{
		plainContent{message: message},
		multiPartContent{message: message},
	}
	for _, shape := range shapes {
		if text, ok := shape.text(); ok {
			return text, nil
		}
	}
	return "", fmt.Errorf("message carries neither string nor multi-part text content")
}
