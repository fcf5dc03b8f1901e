package resolver

import (
	"reflect"
	"strings"
)

const (
	contentGeneratorPrefix = "CONTENT_GENERATOR_"
	leonardoPrefix         = "leonardo_"
	defaultImageSize       = "1024x1024"
	defaultDzineStyleCode  = "Style-7feccf2b-f2ad-43a6-89cb-354fb5d928d2"
	maxLeonardoImages      = 4
)

// Leonardo models are addressed by uuid upstream.
var leonardoModels = map[string]bool{
	"6b645e3a-d64f-4341-a6d8-7a3690fbf042": true,
	"b24e16ff-06e3-43eb-8d33-4416c2d75876": true,
	"e71a1c2f-4f80-4800-934f-2c68979d8cc8": true,
}

// toolConversationType maps a normalized content type onto the upstream
// feature type.
func toolConversationType(contentType string) string {
	switch contentType {
	case ContentSummarizer, ContentGrammarChecker, ContentTranslator, ContentImageGenerator:
		return contentType
	default:
		return contentGeneratorPrefix + contentType
	}
}

func toolPrompt(opts ToolOptions, prompt string) map[string]any {
	obj := map[string]any{
		"prompt":   prompt,
		"tone":     opts.Tone,
		"language": opts.Language,
	}
	switch opts.ContentType {
	case ContentSummarizer:
		obj["numberOfBullet"] = opts.Bullets
		obj["numberOfWord"] = opts.WordsPerBullet
	case ContentTranslator:
		obj["originalLanguage"] = opts.FromLang
		obj["targetLanguage"] = opts.ToLang
	case ContentBlogArticle:
		obj["numberOfWord"] = opts.Words
	}
	return obj
}

// imagePrompt builds the IMAGE_GENERATOR prompt object. The accepted keys and
// their defaults depend on the model family.
func imagePrompt(opts ImageOptions, model, prompt string, imagePaths []string) map[string]any {
	obj := map[string]any{
		"prompt":   prompt,
		"tone":     opts.Tone,
		"language": opts.Language,
	}
	lower := strings.ToLower(model)

	switch {
	case isLeonardo(model, opts):
		obj["size"] = or(opts.Size, defaultImageSize)
		obj["n"] = intOr(opts.N, 1)
		obj["negativePrompt"] = opts.NegativePrompt
		for k, v := range opts.Leonardo {
			obj[k] = v
		}
		if len(imagePaths) > 0 {
			obj["leonardo_image_prompts"] = head(imagePaths, maxLeonardoImages)
		}

	case strings.Contains(lower, "gpt-image-1"):
		obj["n"] = intOr(opts.N, 1)
		obj["size"] = or(opts.Size, defaultImageSize)
		obj["quality"] = or(opts.Quality, "medium")
		obj["style"] = or(opts.Style, "vivid")
		obj["output_format"] = or(opts.OutputFormat, "png")
		obj["output_compression"] = intOr(opts.OutputCompression, 85)
		obj["background"] = or(opts.Background, "opaque")

	case lower == "dzine":
		obj["style_code"] = or(opts.StyleCode, defaultDzineStyleCode)
		obj["style_base_model"] = or(opts.StyleBaseModel, "S")
		obj["quality"] = or(opts.Quality, "HIGH")
		obj["n"] = intOr(opts.N, 1)
		obj["output_format"] = or(opts.OutputFormat, "webp")
		obj["size"] = or(opts.Size, defaultImageSize)
		obj["style_intensity"] = floatOr(opts.StyleIntensity, 0.8)
		obj["face_match"] = opts.FaceMatch
		if opts.FaceMatch && len(imagePaths) > 0 {
			obj["face_match_image"] = imagePaths[0]
		}

	default:
		if strings.Contains(lower, "dall-e-3") {
			obj["n"] = 1
		} else {
			obj["n"] = intOr(opts.N, 4)
		}
		obj["size"] = or(opts.Size, defaultImageSize)
		obj["style"] = or(opts.Style, "vivid")
		obj["quality"] = or(opts.Quality, "standard")

		if strings.Contains(lower, "magic-art") {
			obj["mode"] = or(opts.Mode, "fast")
			obj["aspect_width"] = intOr(opts.AspectWidth, 1)
			obj["aspect_height"] = intOr(opts.AspectHeight, 1)
			obj["stylize"] = intOr(opts.Stylize, 100)
			if len(imagePaths) > 0 {
				ref := "character_reference"
				if strings.Contains(lower, "magic-art_7_0") {
					ref = "omni_reference"
				}
				obj[ref] = imagePaths[0]
			}
		}
	}
	return obj
}

func isLeonardo(model string, opts ImageOptions) bool {
	return len(opts.Leonardo) > 0 || leonardoModels[model] || strings.Contains(strings.ToLower(model), "leonardo")
}

// chatPrompt builds the prompt object for the chat conversation types.
// Uploaded images ride along whatever the type.
func chatPrompt(prompt string, opts ChatOptions, imagePaths []string) map[string]any {
	obj := map[string]any{"prompt": prompt}
	if len(imagePaths) > 0 {
		obj["imageList"] = imagePaths
	}
	if opts.WebSearch {
		obj["webSearch"] = true
		obj["numOfSite"] = opts.NumOfSite
		obj["maxWord"] = opts.MaxWord
	}
	if opts.IsMixed {
		obj["isMixed"] = true
	}
	return obj
}

// compact removes empty, false and zero optional values. The prompt itself
// is always kept.
func compact(obj map[string]any) map[string]any {
	for k, v := range obj {
		if k == "prompt" {
			continue
		}
		if isZero(v) {
			delete(obj, k)
		}
	}
	return obj
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return rv.IsZero()
	}
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func intOr(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func floatOr(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
