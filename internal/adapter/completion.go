// Package adapter turns provider answers into OpenAI-shaped responses.
package adapter

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/aashari/go-onemin-gateway/internal/logger"
	"github.com/aashari/go-onemin-gateway/internal/tokens"
	"github.com/aashari/go-onemin-gateway/internal/types"
	"github.com/aashari/go-onemin-gateway/internal/utils"
)

// NoContentPlaceholder replaces a missing or empty provider result.
const NoContentPlaceholder = "Error: No response content from provider."

const (
	resultPath           = "aiRecord.aiRecordDetail.resultObject"
	objectChatCompletion = "chat.completion"
	objectChunk          = "chat.completion.chunk"
	finishReasonStop     = "stop"
	roleAssistant        = "assistant"
)

// Adapter holds what the transformations share: the token counter, the clock
// and the id source.
type Adapter struct {
	counter tokens.Counter
	now     func() time.Time
	newID   func() string
}

// New returns an Adapter counting completion tokens with counter. A nil
// counter uses the package-level estimator.
func New(counter tokens.Counter) *Adapter {
	if counter == nil {
		counter = tokens.New()
	}
	return &Adapter{
		counter: counter,
		now:     time.Now,
		newID:   utils.GenerateChatCompletionID,
	}
}

// ExtractResult returns the first result string of a feature response, or ""
// when there is none. resultObject is usually an array but a bare string is
// accepted too.
func ExtractResult(body []byte) string {
	r := gjson.GetBytes(body, resultPath)
	if r.IsArray() {
		return r.Get("0").String()
	}
	if r.Type == gjson.String {
		return r.String()
	}
	return ""
}

// ToCompletion builds the non-streaming completion object.
func (a *Adapter) ToCompletion(ctx context.Context, body []byte, model string, promptTokens int) types.ChatCompletion {
	content := ExtractResult(body)
	if content == "" {
		logger.WarnCtx(ctx, "Provider response carried no result",
			"response_size", len(body),
			"stage", logger.LogStages.UpstreamResponse)
		content = NoContentPlaceholder
	}

	return types.ChatCompletion{
		ID:      a.newID(),
		Object:  objectChatCompletion,
		Created: a.now().Unix(),
		Model:   model,
		Choices: []types.Choice{{
			Index:        0,
			Message:      types.ResponseMessage{Role: roleAssistant, Content: content},
			FinishReason: finishReasonStop,
		}},
		Usage: types.NewUsage(promptTokens, a.counter.Estimate(content, model)),
	}
}

// ToImageResponse lists every URL found in resultObject. A response without
// images yields an empty data list.
func (a *Adapter) ToImageResponse(ctx context.Context, body []byte) types.ImageGenerationResponse {
	resp := types.ImageGenerationResponse{Created: a.now().Unix(), Data: []types.ImageData{}}

	r := gjson.GetBytes(body, resultPath)
	switch {
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			if url := v.String(); url != "" {
				resp.Data = append(resp.Data, types.ImageData{URL: url})
			}
			return true
		})
	case r.Type == gjson.String && r.String() != "":
		resp.Data = append(resp.Data, types.ImageData{URL: r.String()})
	}

	if len(resp.Data) == 0 {
		logger.WarnCtx(ctx, "Provider returned no images",
			"stage", logger.LogStages.UpstreamResponse)
	}
	return resp
}
