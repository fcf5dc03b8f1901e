package fixtures

// PNGDataURI is a 1x1 transparent PNG.
const PNGDataURI = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func userMessage(content any) map[string]any {
	return map[string]any{"role": "user", "content": content}
}

// BasicChatRequest returns a basic chat completion request
func BasicChatRequest() map[string]any {
	return map[string]any{
		"model":    "gpt-4o",
		"messages": []any{userMessage("Hello, how are you?")},
	}
}

// StreamingChatRequest returns a streaming chat completion request
func StreamingChatRequest() map[string]any {
	req := BasicChatRequest()
	req["stream"] = true
	return req
}

// LongConversationRequest has more messages than the session skip limit.
func LongConversationRequest() map[string]any {
	return map[string]any{
		"model": "gpt-4o",
		"messages": []any{
			map[string]any{"role": "system", "content": "You are terse."},
			userMessage("What is Go?"),
			map[string]any{"role": "assistant", "content": "A programming language."},
			userMessage("Who made it?"),
		},
	}
}

// VisionChatRequest returns a chat request with an inline image
func VisionChatRequest() map[string]any {
	return map[string]any{
		"model": "gpt-4o",
		"messages": []any{userMessage([]any{
			map[string]any{"type": "text", "text": "What do you see in this image?"},
			map[string]any{"type": "image_url", "image_url": map[string]any{"url": PNGDataURI}},
		})},
	}
}

// YouTubeChatRequest asks about a video link.
func YouTubeChatRequest() map[string]any {
	return map[string]any{
		"model":    "gpt-4o",
		"messages": []any{userMessage("Summarize https://www.youtube.com/watch?v=dQw4w9WgXcQ please")},
	}
}

// SummarizerRequest selects the SUMMARIZER tool.
func SummarizerRequest() map[string]any {
	return map[string]any{
		"model":        "gpt-4o-mini",
		"content_type": "SUMMARIZER",
		"bullets":      3,
		"messages":     []any{userMessage("A long article about distributed systems.")},
	}
}

// ImageGenerationRequest returns an images API request.
func ImageGenerationRequest() map[string]any {
	return map[string]any{
		"model":  "dall-e-3",
		"prompt": "A lighthouse at dusk",
		"n":      1,
		"size":   "1024x1024",
	}
}
