package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/types"
)

const (
	sseDataPrefix = "data:"
	doneSentinel  = "[DONE]"
)

// DoneFrame terminates every stream.
var DoneFrame = []byte("data: [DONE]\n\n")

// StreamResult summarizes a finished stream.
type StreamResult struct {
	Content string
	Usage   types.Usage
	Chunks  int
}

// StreamAdapter re-frames one provider stream as chat.completion.chunk
// events. It keeps the conversation-level values (id, created, model) so
// every chunk of a stream shares them. Not safe for concurrent use.
type StreamAdapter struct {
	adapter      *Adapter
	id           string
	created      int64
	model        string
	promptTokens int

	content    strings.Builder
	chunks     int
	firstChunk bool
	// rawText is set while the last non-blank line was unframed text.
	rawText bool
}

// NewStream starts a stream for model.
func (a *Adapter) NewStream(model string, promptTokens int) *StreamAdapter {
	return &StreamAdapter{
		adapter:      a,
		id:           a.newID(),
		created:      a.now().Unix(),
		model:        model,
		promptTokens: promptTokens,
		firstChunk:   true,
	}
}

// ID is the completion id shared by all chunks.
func (s *StreamAdapter) ID() string { return s.id }

// Run reads src line by line and calls emit with each SSE frame as soon as
// the fragment is available. On a clean end (EOF or a [DONE] line) it emits a
// usage chunk followed by DoneFrame. Cancelling ctx closes src, if it is an
// io.Closer, and Run returns ctx's error without a usage chunk.
func (s *StreamAdapter) Run(ctx context.Context, src io.Reader, emit func([]byte) error) (StreamResult, error) {
	if closer, ok := src.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = closer.Close() })
		defer stop()
	}

	reader := bufio.NewReader(src)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			fragment, done := s.parse(line)
			if done {
				break
			}
			if fragment != "" {
				if err := s.emitContent(fragment, emit); err != nil {
					return s.result(), err
				}
			}
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return s.result(), ctx.Err()
			}
			if errors.Is(readErr, io.EOF) {
				break
			}
			logger.ErrorCtx(ctx, "Provider stream broke off",
				"error", readErr.Error(),
				"chunks_sent", s.chunks,
				"stage", logger.LogStages.StreamFailed)
			return s.result(), fmt.Errorf("reading provider stream: %w", readErr)
		}
	}
	if ctx.Err() != nil {
		return s.result(), ctx.Err()
	}

	res := s.result()
	stop := finishReasonStop
	frame, err := s.frame(types.ChatCompletionChunk{
		Choices: []types.ChunkChoice{{Index: 0, Delta: types.Delta{}, FinishReason: &stop}},
		Usage:   &res.Usage,
	})
	if err != nil {
		return res, err
	}
	if err := emit(frame); err != nil {
		return res, err
	}
	if err := emit(DoneFrame); err != nil {
		return res, err
	}

	logger.DebugCtx(ctx, "Stream completed",
		"chunks", res.Chunks,
		"completion_tokens", res.Usage.CompletionTokens,
		"stage", logger.LogStages.StreamCompleted)
	return res, nil
}

// ParseLine extracts the content fragment of one provider line. Three
// framings are accepted: "data: "-prefixed lines, one JSON object per line
// (result or content field) and raw text, which is kept verbatim. done is
// true for a [DONE] line.
func ParseLine(line string) (fragment string, done bool) {
	body := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(body) == "" {
		return "", false
	}

	prefixed := strings.HasPrefix(body, sseDataPrefix)
	if prefixed {
		body = strings.TrimPrefix(strings.TrimPrefix(body, sseDataPrefix), " ")
	}
	probe := strings.TrimSpace(body)
	if probe == doneSentinel {
		return "", true
	}

	if strings.HasPrefix(probe, "{") && gjson.Valid(probe) {
		parsed := gjson.Parse(probe)
		for _, path := range []string{"result", "content", "choices.0.delta.content"} {
			if v := parsed.Get(path); v.Exists() && v.Type != gjson.Null {
				return v.String(), false
			}
		}
		return "", false
	}

	if prefixed {
		return body, false
	}
	return body + lineEnding(line), false
}

// parse is ParseLine plus paragraph breaks: a blank line inside raw-text
// framing is content, while between SSE events or JSON lines it is not.
func (s *StreamAdapter) parse(line string) (string, bool) {
	body := strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(body) == "" {
		if s.rawText && body == "" && strings.HasSuffix(line, "\n") {
			return "\n", false
		}
		return "", false
	}
	s.rawText = isRawText(body)
	return ParseLine(line)
}

// isRawText reports whether a non-blank line carries neither SSE nor JSON
// framing.
func isRawText(body string) bool {
	if strings.HasPrefix(body, sseDataPrefix) {
		return false
	}
	probe := strings.TrimSpace(body)
	if probe == doneSentinel {
		return false
	}
	return !(strings.HasPrefix(probe, "{") && gjson.Valid(probe))
}

func lineEnding(line string) string {
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}

func (s *StreamAdapter) emitContent(fragment string, emit func([]byte) error) error {
	delta := types.Delta{Content: fragment}
	if s.firstChunk {
		delta.Role = roleAssistant
		s.firstChunk = false
	}
	frame, err := s.frame(types.ChatCompletionChunk{
		Choices: []types.ChunkChoice{{Index: 0, Delta: delta}},
	})
	if err != nil {
		return err
	}
	s.content.WriteString(fragment)
	s.chunks++
	return emit(frame)
}

func (s *StreamAdapter) frame(chunk types.ChatCompletionChunk) ([]byte, error) {
	chunk.ID = s.id
	chunk.Object = objectChunk
	chunk.Created = s.created
	chunk.Model = s.model

	data, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("encoding stream chunk: %w", err)
	}
	frame := make([]byte, 0, len(data)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, data...)
	frame = append(frame, '\n', '\n')
	return frame, nil
}

func (s *StreamAdapter) result() StreamResult {
	content := s.content.String()
	return StreamResult{
		Content: content,
		Usage:   types.NewUsage(s.promptTokens, s.adapter.counter.Estimate(content, s.model)),
		Chunks:  s.chunks,
	}
}
