// Package resolver decides, per chat request, which kind of upstream
// conversation to run, uploads referenced images, creates a provider session
// when one is needed and builds the provider prompt object.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/aashari/go-onemin-gateway/internal/assets"
	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/types"
	"github.com/aashari/go-onemin-gateway/internal/upstream"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// Conversation types understood by the provider.
const (
	TypeChat              = "CHAT_WITH_AI"
	TypeChatWithImage     = "CHAT_WITH_IMAGE"
	TypeChatWithPDF       = "CHAT_WITH_PDF"
	TypeChatWithYouTube   = "CHAT_WITH_YOUTUBE_VIDEO"
	TypeImageGenerator    = "IMAGE_GENERATOR"
	TypeContentGenerator  = contentGeneratorPrefix
	sessionTitlePrefix    = "Chat_"
	sessionTitleModelRune = 20
)

// Where a ConversationContext's session id came from.
const (
	SessionFromTag         = "type_tag"
	SessionFromUpstream    = "upstream"
	SessionFromPlaceholder = "placeholder"
)

// HistoryPolicy decides how much of the conversation is sent as prompt text.
type HistoryPolicy string

const (
	// HistoryLastMessage sends only the last message; the provider session
	// carries the rest.
	HistoryLastMessage HistoryPolicy = "last_message"
	// HistoryFull sends every message as "role: text" lines.
	HistoryFull HistoryPolicy = "full_history"
)

// ParseHistoryPolicy accepts the two policy names, defaulting to the last
// message policy for an empty string.
func ParseHistoryPolicy(s string) (HistoryPolicy, error) {
	switch HistoryPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", HistoryLastMessage:
		return HistoryLastMessage, nil
	case HistoryFull:
		return HistoryFull, nil
	}
	return "", fmt.Errorf("unknown history policy %q", s)
}

var youtubePattern = regexp.MustCompile(`https?://(?:www\.|m\.)?(?:youtube\.com/watch\?v=|youtu\.be/)[^\s&]+`)

// AssetUploader stores an image and returns its provider path.
type AssetUploader interface {
	Upload(ctx context.Context, ref *types.ImageURL, headers http.Header) (string, error)
}

// SessionCreator creates a provider conversation.
type SessionCreator interface {
	CreateSession(ctx context.Context, req upstream.SessionRequest) (string, error)
}

// Config tunes the resolver.
type Config struct {
	HistoryPolicy HistoryPolicy
	// SessionSkipMaxMessages is the longest plain chat answered without a
	// provider session. Zero always creates one.
	SessionSkipMaxMessages int
}

// DefaultConfig sends the last message only and skips sessions for chats of
// up to two messages.
func DefaultConfig() Config {
	return Config{HistoryPolicy: HistoryLastMessage, SessionSkipMaxMessages: 2}
}

// Request is one inbound chat completion.
type Request struct {
	APIKey   string
	Model    string
	Messages []types.Message
	Options  Options
}

// ConversationContext is everything the completion call needs. It lives for
// one request.
type ConversationContext struct {
	Type          string
	SessionID     string
	SessionSource string
	ImagePaths    []string
	FileIDs       []string
	YouTubeURL    string
	Prompt        string
	PromptObject  map[string]any
}

// IsTool reports whether the context targets a feature tool rather than chat.
func (c *ConversationContext) IsTool() bool {
	return !isChatType(c.Type)
}

// FeatureRequest turns the context into the completion payload.
func (c *ConversationContext) FeatureRequest(apiKey, model string) upstream.FeatureRequest {
	return upstream.FeatureRequest{
		APIKey:         apiKey,
		Model:          model,
		Type:           c.Type,
		ConversationID: c.SessionID,
		PromptObject:   c.PromptObject,
	}
}

// Resolver is safe for concurrent use; it keeps no per-request state.
type Resolver struct {
	uploader AssetUploader
	sessions SessionCreator
	config   Config
	newID    func() string
}

// New builds a Resolver.
func New(uploader AssetUploader, sessions SessionCreator, config Config) *Resolver {
	if config.HistoryPolicy == "" {
		config.HistoryPolicy = HistoryLastMessage
	}
	return &Resolver{
		uploader: uploader,
		sessions: sessions,
		config:   config,
		newID:    utils.GeneratePlaceholderID,
	}
}

// Resolve builds the conversation context. Upload and session failures
// degrade (image skipped, placeholder session id); only an image over the
// size cap is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*ConversationContext, error) {
	if req.Options == nil {
		req.Options = ChatOptions{NumOfSite: DefaultNumOfSite, MaxWord: DefaultMaxWord}
	}

	conv := &ConversationContext{Type: TypeChat}

	var last types.Message
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1]
	}

	for _, part := range last.Content.Parts {
		switch part.Type {
		case types.ContentPartImageURL:
			path, err := r.upload(ctx, req.APIKey, part.ImageURL)
			if err != nil {
				if errors.Is(err, assets.ErrTooLarge) {
					return nil, err
				}
				logger.WarnCtx(ctx, "Skipping image after failed upload",
					"error", err.Error(),
					"stage", logger.LogStages.AssetUpload)
				continue
			}
			conv.ImagePaths = append(conv.ImagePaths, path)
		case types.ContentPartFile:
			if id := part.FileIdentifier(); id != "" {
				conv.FileIDs = append(conv.FileIDs, id)
			}
		}
	}

	conv.Prompt = r.promptText(req.Messages, last)

	switch opts := req.Options.(type) {
	case ImageOptions:
		conv.Type = TypeImageGenerator
		conv.PromptObject = compact(imagePrompt(opts, req.Model, conv.Prompt, conv.ImagePaths))
		r.useTag(conv)
		r.logResolved(ctx, conv)
		return conv, nil
	case ToolOptions:
		conv.Type = toolConversationType(opts.ContentType)
		conv.PromptObject = compact(toolPrompt(opts, conv.Prompt))
		r.useTag(conv)
		r.logResolved(ctx, conv)
		return conv, nil
	}

	chat, _ := req.Options.(ChatOptions)

	// A video link wins over uploaded images; the images stay in the prompt.
	youtubeURL := youtubePattern.FindString(last.Content.PlainText())

	needSession := false
	switch {
	case len(conv.FileIDs) > 0:
		conv.Type = TypeChatWithPDF
		needSession = true
	case youtubeURL != "":
		conv.Type = TypeChatWithYouTube
		conv.YouTubeURL = youtubeURL
		needSession = true
	case len(conv.ImagePaths) > 0:
		conv.Type = TypeChatWithImage
	}
	if !needSession {
		needSession = r.config.SessionSkipMaxMessages <= 0 || len(req.Messages) > r.config.SessionSkipMaxMessages
	}

	conv.PromptObject = compact(chatPrompt(conv.Prompt, chat, conv.ImagePaths))
	if needSession {
		r.createSession(ctx, req, conv)
	} else {
		r.useTag(conv)
	}

	r.logResolved(ctx, conv)
	return conv, nil
}

func (r *Resolver) upload(ctx context.Context, apiKey string, ref *types.ImageURL) (string, error) {
	if r.uploader == nil {
		return "", fmt.Errorf("%w: no uploader configured", assets.ErrInvalidInput)
	}
	return r.uploader.Upload(ctx, ref, assets.AuthHeaders(apiKey))
}

func (r *Resolver) promptText(messages []types.Message, last types.Message) string {
	if r.config.HistoryPolicy != HistoryFull || len(messages) <= 1 {
		return last.Content.PlainText()
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		text := m.Content.PlainText()
		if strings.TrimSpace(text) == "" {
			continue
		}
		role := m.Role
		if role == "" {
			role = "user"
		}
		lines = append(lines, role+": "+text)
	}
	return strings.Join(lines, "\n")
}

func (r *Resolver) useTag(conv *ConversationContext) {
	conv.SessionID = conv.Type
	conv.SessionSource = SessionFromTag
}

func (r *Resolver) createSession(ctx context.Context, req Request, conv *ConversationContext) {
	if r.sessions != nil {
		id, err := r.sessions.CreateSession(ctx, upstream.SessionRequest{
			APIKey:       req.APIKey,
			Model:        req.Model,
			Type:         conv.Type,
			Title:        sessionTitle(req.Model),
			FileIDs:      conv.FileIDs,
			YouTubeURL:   conv.YouTubeURL,
			PromptObject: conv.PromptObject,
		})
		if err == nil {
			conv.SessionID = id
			conv.SessionSource = SessionFromUpstream
			return
		}
		logger.WarnCtx(ctx, "Session creation failed, continuing with placeholder id",
			"error", err.Error(),
			"outcome", upstream.Outcome(err),
			"conversation_type", conv.Type,
			"stage", logger.LogStages.Fallback)
	}
	conv.SessionID = r.newID()
	conv.SessionSource = SessionFromPlaceholder
}

func (r *Resolver) logResolved(ctx context.Context, conv *ConversationContext) {
	logger.InfoCtx(ctx, "Conversation context resolved",
		"conversation_type", conv.Type,
		"session_source", conv.SessionSource,
		"image_count", len(conv.ImagePaths),
		"file_count", len(conv.FileIDs),
		"stage", logger.LogStages.Resolution)
}

func sessionTitle(model string) string {
	if utf8.RuneCountInString(model) > sessionTitleModelRune {
		model = string([]rune(model)[:sessionTitleModelRune])
	}
	return sessionTitlePrefix + model
}

func isChatType(t string) bool {
	switch t {
	case TypeChat, TypeChatWithImage, TypeChatWithPDF, TypeChatWithYouTube:
		return true
	}
	return false
}
