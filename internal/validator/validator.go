package validator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"

	apierrors "github.com/aashari/go-onemin-gateway/internal/errors"
	"github.com/aashari/go-onemin-gateway/internal/types"
)

// DefaultModel is used when a chat request names no model.
const DefaultModel = "gpt-4o"

var validate = newValidator()

func newValidator() *playground.Validate {
	v := playground.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateChatRequest checks a raw chat completion body and decodes it.
// Every failure is an *errors.APIError whose param points at the offending
// field.
func ValidateChatRequest(body []byte) (*types.ChatCompletionRequest, error) {
	if !gjson.ValidBytes(body) {
		return nil, apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrorTypeInvalidRequest,
			"We could not parse the JSON body of your request.", "", apierrors.CodeInvalidRequest)
	}

	messages := gjson.GetBytes(body, "messages")
	if !messages.IsArray() || len(messages.Array()) == 0 {
		return nil, apierrors.NewNoMessagesError()
	}
	if err := validateMessageContent(messages); err != nil {
		return nil, err
	}
	if stream := gjson.GetBytes(body, "stream"); stream.Exists() && stream.Type != gjson.True && stream.Type != gjson.False && stream.Type != gjson.Null {
		return nil, apierrors.NewValidationError("Invalid 'stream' field: must be boolean.", "stream")
	}
	if model := gjson.GetBytes(body, "model"); model.Exists() && model.Type != gjson.String && model.Type != gjson.Null {
		return nil, apierrors.NewValidationError("Invalid 'model' field: must be a string.", "model")
	}

	var req types.ChatCompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apierrors.NewValidationError(fmt.Sprintf("Invalid request body: %v.", err), "")
	}
	if err := validate.Struct(&req); err != nil {
		return nil, toAPIError(err)
	}

	if req.Messages[len(req.Messages)-1].Content.IsEmpty() {
		return nil, apierrors.NewEmptyPromptError()
	}
	if strings.TrimSpace(req.Model) == "" {
		req.Model = DefaultModel
	}
	return &req, nil
}

// ValidateImageRequest checks an images API body and decodes it.
func ValidateImageRequest(body []byte) (*types.ImageGenerationRequest, error) {
	var req types.ImageGenerationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apierrors.NewAPIError(http.StatusBadRequest, apierrors.ErrorTypeInvalidRequest,
			"We could not parse the JSON body of your request.", "", apierrors.CodeInvalidRequest)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, toAPIError(err)
	}
	return &req, nil
}

// validateMessageContent checks that each content is a string or an array
// of well-formed parts.
func validateMessageContent(messages gjson.Result) error {
	for i, msg := range messages.Array() {
		if !msg.IsObject() {
			return apierrors.NewValidationError(fmt.Sprintf("Invalid message at index %d: must be an object.", i),
				fmt.Sprintf("messages[%d]", i))
		}
		content := msg.Get("content")
		switch {
		case !content.Exists(), content.Type == gjson.Null, content.Type == gjson.String:
			continue
		case content.IsArray():
			if err := validateContentArray(i, content); err != nil {
				return err
			}
		default:
			return apierrors.NewValidationError(
				fmt.Sprintf("Invalid content type in message %d: must be string or array.", i),
				fmt.Sprintf("messages[%d].content", i))
		}
	}
	return nil
}

func validateContentArray(msgIndex int, content gjson.Result) error {
	for j, part := range content.Array() {
		param := fmt.Sprintf("messages[%d].content[%d]", msgIndex, j)
		if !part.IsObject() {
			return apierrors.NewValidationError("Content part must be an object.", param)
		}
		switch partType := part.Get("type").String(); partType {
		case types.ContentPartText:
			if part.Get("text").Type != gjson.String {
				return apierrors.NewValidationError("Text content part is missing 'text'.", param+".text")
			}
		case types.ContentPartImageURL:
			imageURL := part.Get("image_url")
			if imageURL.Type != gjson.String && imageURL.Get("url").Type != gjson.String {
				return apierrors.NewValidationError("Image content part is missing 'image_url.url'.", param+".image_url")
			}
		case types.ContentPartFile:
			if part.Get("file.file_id").Type != gjson.String && part.Get("file_id").Type != gjson.String {
				return apierrors.NewValidationError("File content part is missing 'file.file_id'.", param+".file")
			}
		case "":
			return apierrors.NewValidationError("Content part is missing 'type'.", param+".type")
		default:
			return apierrors.NewValidationError(fmt.Sprintf("Unknown content part type '%s'.", partType), param+".type")
		}
	}
	return nil
}

// toAPIError reports the first validator failure, using the JSON namespace
// minus the root struct as param.
func toAPIError(err error) error {
	verrs, ok := err.(playground.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return apierrors.NewValidationError(err.Error(), "")
	}
	fe := verrs[0]
	param := fe.Namespace()
	if i := strings.IndexByte(param, '.'); i >= 0 {
		param = param[i+1:]
	}
	msg := fmt.Sprintf("Invalid value for '%s': failed '%s' constraint", param, fe.Tag())
	if fe.Param() != "" {
		msg += " (" + fe.Param() + ")"
	}
	return apierrors.NewValidationError(msg+".", param)
}
