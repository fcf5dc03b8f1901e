package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ChatCompletionRequest represents a request to the chat completions API.
// Tool options (content_type, size, tone, ...) are read separately from the
// raw body, see resolver.ParseOptions.
type ChatCompletionRequest struct {
	Model       string    `json:"model" example:"gpt-4o"`
	Messages    []Message `json:"messages" validate:"required,min=1,dive"`
	Stream      bool      `json:"stream,omitempty" example:"false"`
	ContentType string    `json:"content_type,omitempty" example:"SUMMARIZER"`
	Temperature *float64  `json:"temperature,omitempty" example:"0.7"`
	MaxTokens   int       `json:"max_tokens,omitempty" example:"100"`
	User        string    `json:"user,omitempty" example:"user-123"`
}

// Message represents a chat message
type Message struct {
	Role    string         `json:"role" example:"user" validate:"omitempty,oneof=system developer user assistant tool function"`
	Content MessageContent `json:"content" swaggertype:"string" example:"Hello, how are you?"`
	Name    string         `json:"name,omitempty" example:"John"`
}

// MessageContent is either a plain string or a list of typed parts.
type MessageContent struct {
	Text  string
	Parts []ContentPart
	// Structured is true when the JSON value was an array.
	Structured bool
}

// NewTextContent wraps plain text.
func NewTextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// NewPartsContent wraps structured parts.
func NewPartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts, Structured: true}
}

func (c *MessageContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*c = MessageContent{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &c.Text)
	case '[':
		c.Structured = true
		return json.Unmarshal(data, &c.Parts)
	default:
		return fmt.Errorf("message content must be a string or an array of parts")
	}
}

func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Structured {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// PlainText returns the text, joining text parts without separators.
func (c MessageContent) PlainText() string {
	if !c.Structured {
		return c.Text
	}
	var b strings.Builder
	for _, part := range c.Parts {
		if part.Type == ContentPartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// IsEmpty reports whether there is neither text nor any non-text part.
func (c MessageContent) IsEmpty() bool {
	if !c.Structured {
		return strings.TrimSpace(c.Text) == ""
	}
	for _, part := range c.Parts {
		if part.Type != ContentPartText || strings.TrimSpace(part.Text) != "" {
			return false
		}
	}
	return true
}

// HasImages reports whether any part references an image.
func (c MessageContent) HasImages() bool {
	for _, part := range c.Parts {
		if part.Type == ContentPartImageURL {
			return true
		}
	}
	return false
}

// Content part types.
const (
	ContentPartText     = "text"
	ContentPartImageURL = "image_url"
	ContentPartFile     = "file"
)

// ContentPart is one element of structured message content.
type ContentPart struct {
	Type     string    `json:"type" validate:"required,oneof=text image_url file"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	File     *FileRef  `json:"file,omitempty"`
	FileID   string    `json:"file_id,omitempty"`
}

// FileIdentifier returns the referenced upstream file id, if any.
func (p ContentPart) FileIdentifier() string {
	if p.File != nil && p.File.FileID != "" {
		return p.File.FileID
	}
	return p.FileID
}

// ImageURL accepts both {"url": "..."} and a bare string.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

func (u *ImageURL) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		*u = ImageURL{}
		return json.Unmarshal(data, &u.URL)
	}
	type plain ImageURL
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = ImageURL(p)
	return nil
}

// FileRef points at a file previously uploaded to the provider.
type FileRef struct {
	FileID string `json:"file_id"`
}

// ChatCompletion is the non-streaming response.
type ChatCompletion struct {
	ID      string   `json:"id" example:"chatcmpl-abc123"`
	Object  string   `json:"object" example:"chat.completion"`
	Created int64    `json:"created" example:"1677652288"`
	Model   string   `json:"model" example:"gpt-4o"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice
type Choice struct {
	Index        int             `json:"index" example:"0"`
	Message      ResponseMessage `json:"message"`
	LogProbs     *string         `json:"logprobs" swaggertype:"string" example:"null"`
	FinishReason string          `json:"finish_reason" example:"stop"`
}

// ResponseMessage is the assistant message in a completion.
type ResponseMessage struct {
	Role    string `json:"role" example:"assistant"`
	Content string `json:"content" example:"Hello! How can I help?"`
}

// ChatCompletionChunk is one SSE event of a streamed completion.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
	Usage   *Usage        `json:"usage,omitempty"`
}

// ChunkChoice carries a delta; FinishReason is null until the last chunk.
type ChunkChoice struct {
	Index        int     `json:"index"`
	Delta        Delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

// Delta is the incremental message content.
type Delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens" example:"10"`
	CompletionTokens int `json:"completion_tokens" example:"20"`
	TotalTokens      int `json:"total_tokens" example:"30"`
}

// NewUsage fills in the total.
func NewUsage(prompt, completion int) Usage {
	return Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

// ModelsResponse represents the response from the models endpoint
type ModelsResponse struct {
	Object string  `json:"object" example:"list"`
	Data   []Model `json:"data"`
}

// Model represents a language model
type Model struct {
	ID      string `json:"id" example:"gpt-4o"`
	Object  string `json:"object" example:"model"`
	OwnedBy string `json:"owned_by" example:"1min-gateway"`
	Created int64  `json:"created" example:"1727389042"`
}

// ImageGenerationRequest mirrors the OpenAI images API.
type ImageGenerationRequest struct {
	Model          string `json:"model" example:"dall-e-3"`
	Prompt         string `json:"prompt" validate:"required" example:"A lighthouse at dusk"`
	N              int    `json:"n,omitempty" validate:"omitempty,min=1,max=10" example:"1"`
	Size           string `json:"size,omitempty" example:"1024x1024"`
	Quality        string `json:"quality,omitempty" example:"standard"`
	Style          string `json:"style,omitempty" example:"vivid"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	ResponseFormat string `json:"response_format,omitempty" validate:"omitempty,oneof=url" example:"url"`
}

// ImageGenerationResponse lists generated image URLs.
type ImageGenerationResponse struct {
	Created int64       `json:"created" example:"1727389042"`
	Data    []ImageData `json:"data"`
}

// ImageData is one generated image.
type ImageData struct {
	URL string `json:"url" example:"https://asset.1min.ai/images/abc.png"`
}
