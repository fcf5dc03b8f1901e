package resolver

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// Content types accepted in the request's content_type field.
const (
	ContentImageGenerator  = "IMAGE_GENERATOR"
	ContentSummarizer      = "SUMMARIZER"
	ContentTranslator      = "CONTENT_TRANSLATOR"
	ContentBlogArticle     = "BLOG_ARTICLE"
	ContentGrammarChecker  = "GRAMMAR_CHECKER"
	ContentKeywordResearch = "KEYWORD_RESEARCH"
	ContentEmail           = "EMAIL"
	ContentGoogleAds       = "GOOGLE_ADS"
)

// Tool defaults.
const (
	DefaultTone           = "professional"
	DefaultLanguage       = "English"
	DefaultBullets        = 5
	DefaultWordsPerBullet = 20
	DefaultFromLang       = "en"
	DefaultToLang         = "fr"
	DefaultArticleWords   = 1000
	DefaultNumOfSite      = 1
	DefaultMaxWord        = 500
)

// Options is the parsed, validated set of request options. It is one of
// ChatOptions, ImageOptions or ToolOptions.
type Options interface {
	kind() string
}

// ChatOptions applies to plain, image, PDF and video chat.
type ChatOptions struct {
	WebSearch bool `json:"web_search"`
	NumOfSite int  `json:"num_of_site" validate:"min=1,max=20"`
	MaxWord   int  `json:"max_word" validate:"min=1,max=10000"`
	IsMixed   bool `json:"is_mixed"`
}

// ImageOptions drives IMAGE_GENERATOR. Nil pointers and empty strings mean
// "use the model's default".
type ImageOptions struct {
	Tone              string   `json:"tone"`
	Language          string   `json:"language"`
	N                 *int     `json:"n" validate:"omitempty,min=1,max=10"`
	Size              string   `json:"size" validate:"omitempty,max=32"`
	Quality           string   `json:"quality" validate:"omitempty,max=32"`
	Style             string   `json:"style" validate:"omitempty,max=64"`
	NegativePrompt    string   `json:"negative_prompt"`
	Mode              string   `json:"mode" validate:"omitempty,oneof=fast relax turbo"`
	AspectWidth       *int     `json:"aspect_width" validate:"omitempty,min=1,max=32"`
	AspectHeight      *int     `json:"aspect_height" validate:"omitempty,min=1,max=32"`
	Stylize           *int     `json:"stylize" validate:"omitempty,min=0,max=1000"`
	OutputFormat      string   `json:"output_format" validate:"omitempty,oneof=png jpeg webp"`
	OutputCompression *int     `json:"output_compression" validate:"omitempty,min=0,max=100"`
	Background        string   `json:"background" validate:"omitempty,oneof=opaque transparent auto"`
	StyleCode         string   `json:"style_code"`
	StyleBaseModel    string   `json:"style_base_model"`
	StyleIntensity    *float64 `json:"style_intensity" validate:"omitempty,gte=0,lte=1"`
	FaceMatch         bool     `json:"face_match"`
	// Leonardo carries every leonardo_* key verbatim.
	Leonardo map[string]any `json:"-"`
}

// ToolOptions drives the text tools (summarizer, translator, generators).
type ToolOptions struct {
	ContentType    string `json:"content_type"`
	Tone           string `json:"tone"`
	Language       string `json:"language"`
	Bullets        int    `json:"bullets" validate:"min=1,max=50"`
	WordsPerBullet int    `json:"words_per_bullet" validate:"min=1,max=200"`
	FromLang       string `json:"from_lang" validate:"min=2,max=16"`
	ToLang         string `json:"to_lang" validate:"min=2,max=16"`
	Words          int    `json:"words" validate:"min=1,max=10000"`
}

func (ChatOptions) kind() string  { return "chat" }
func (ImageOptions) kind() string { return ContentImageGenerator }
func (o ToolOptions) kind() string {
	return o.ContentType
}

// OptionError is an invalid option value, reported against its JSON key.
type OptionError struct {
	Param   string
	Message string
}

func (e *OptionError) Error() string { return e.Message }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseOptions reads the tool options out of a raw chat completion body.
func ParseOptions(body []byte) (Options, error) {
	p := optionParser{body: body}

	contentType := strings.ToUpper(strings.TrimSpace(p.str("content_type", "")))
	var opts Options
	switch contentType {
	case "":
		chat := ChatOptions{
			WebSearch: p.boolean("web_search"),
			NumOfSite: p.integer("num_of_site", DefaultNumOfSite),
			MaxWord:   p.integer("max_word", DefaultMaxWord),
			IsMixed:   p.boolean("is_mixed"),
		}
		opts = chat
	case ContentImageGenerator:
		opts = p.image()
	default:
		normalized, ok := normalizeContentType(contentType)
		if !ok {
			return nil, &OptionError{
				Param:   "content_type",
				Message: fmt.Sprintf("Unsupported content_type '%s'.", contentType),
			}
		}
		opts = ToolOptions{
			ContentType:    normalized,
			Tone:           p.str("tone", DefaultTone),
			Language:       p.str("language", DefaultLanguage),
			Bullets:        p.integer("bullets", DefaultBullets),
			WordsPerBullet: p.integer("words_per_bullet", DefaultWordsPerBullet),
			FromLang:       p.str("from_lang", DefaultFromLang),
			ToLang:         p.str("to_lang", DefaultToLang),
			Words:          p.integer("words", DefaultArticleWords),
		}
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := validate.Struct(opts); err != nil {
		return nil, toOptionError(err)
	}
	return opts, nil
}

// normalizeContentType maps the accepted spellings onto the content types
// the tool builder knows.
func normalizeContentType(contentType string) (string, bool) {
	contentType = strings.TrimPrefix(contentType, contentGeneratorPrefix)
	switch contentType {
	case ContentSummarizer, ContentBlogArticle, ContentGrammarChecker,
		ContentKeywordResearch, ContentEmail, ContentGoogleAds:
		return contentType, true
	case ContentTranslator, "TRANSLATOR":
		return ContentTranslator, true
	}
	return "", false
}

func toOptionError(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &OptionError{Message: err.Error()}
	}
	fe := verrs[0]
	msg := fmt.Sprintf("Invalid value for '%s': failed '%s' constraint", fe.Field(), fe.Tag())
	if fe.Param() != "" {
		msg += " (" + fe.Param() + ")"
	}
	return &OptionError{Param: fe.Field(), Message: msg + "."}
}

// optionParser pulls typed values with gjson, remembering the first type
// mismatch.
type optionParser struct {
	body []byte
	err  error
}

func (p *optionParser) get(key string) (gjson.Result, bool) {
	r := gjson.GetBytes(p.body, key)
	if !r.Exists() || r.Type == gjson.Null {
		return r, false
	}
	return r, true
}

func (p *optionParser) fail(key, want string) {
	if p.err == nil {
		p.err = &OptionError{Param: key, Message: fmt.Sprintf("Invalid type for '%s': expected %s.", key, want)}
	}
}

func (p *optionParser) str(key, def string) string {
	r, ok := p.get(key)
	if !ok {
		return def
	}
	if r.Type != gjson.String {
		p.fail(key, "string")
		return def
	}
	if s := strings.TrimSpace(r.String()); s != "" {
		return s
	}
	return def
}

func (p *optionParser) boolean(key string) bool {
	r, ok := p.get(key)
	if !ok {
		return false
	}
	if !r.IsBool() {
		p.fail(key, "boolean")
		return false
	}
	return r.Bool()
}

func (p *optionParser) integer(key string, def int) int {
	if v := p.optInt(key); v != nil {
		return *v
	}
	return def
}

func (p *optionParser) optInt(key string) *int {
	r, ok := p.get(key)
	if !ok {
		return nil
	}
	if r.Type != gjson.Number || r.Num != float64(int64(r.Num)) {
		p.fail(key, "integer")
		return nil
	}
	v := int(r.Int())
	return &v
}

func (p *optionParser) optFloat(key string) *float64 {
	r, ok := p.get(key)
	if !ok {
		return nil
	}
	if r.Type != gjson.Number {
		p.fail(key, "number")
		return nil
	}
	v := r.Float()
	return &v
}

func (p *optionParser) image() ImageOptions {
	opts := ImageOptions{
		Tone:              p.str("tone", DefaultTone),
		Language:          p.str("language", DefaultLanguage),
		N:                 p.optInt("n"),
		Size:              p.str("size", ""),
		Quality:           p.str("quality", ""),
		Style:             p.str("style", ""),
		NegativePrompt:    p.str("negative_prompt", ""),
		Mode:              p.str("mode", ""),
		AspectWidth:       p.optInt("aspect_width"),
		AspectHeight:      p.optInt("aspect_height"),
		Stylize:           p.optInt("stylize"),
		OutputFormat:      p.str("output_format", ""),
		OutputCompression: p.optInt("output_compression"),
		Background:        p.str("background", ""),
		StyleCode:         p.str("style_code", ""),
		StyleBaseModel:    p.str("style_base_model", ""),
		StyleIntensity:    p.optFloat("style_intensity"),
		FaceMatch:         p.boolean("face_match"),
	}

	gjson.ParseBytes(p.body).ForEach(func(key, value gjson.Result) bool {
		if strings.HasPrefix(key.String(), leonardoPrefix) {
			if opts.Leonardo == nil {
				opts.Leonardo = make(map[string]any)
			}
			opts.Leonardo[key.String()] = value.Value()
		}
		return true
	})
	return opts
}
