// Package tokens estimates prompt and completion token counts for usage
// reporting. Counts are estimates: the upstream provider does not return
// its own accounting.
package tokens

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// DefaultEncoding is used for unknown model families and as the fallback when
// a model has no registered encoding.
const DefaultEncoding = "cl100k_base"

// retryAfter bounds how often a failed encoding load is attempted again.
const retryAfter = 5 * time.Minute

// Family groups models that share a tokenizer.
type Family int

const (
	FamilyDefault Family = iota
	FamilyOpenAI
	FamilyMistral
)

// ClassifyModel picks the tokenizer family by substring match.
func ClassifyModel(model string) Family {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "mistral"), strings.Contains(m, "nemo"):
		return FamilyMistral
	case strings.Contains(m, "gpt"), strings.Contains(m, "claude"),
		strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return FamilyOpenAI
	default:
		return FamilyDefault
	}
}

// Counter is what the adapter and handlers depend on.
type Counter interface {
	Estimate(text, model string) int
}

// Loader resolves a tiktoken encoding. Replaced in tests.
type Loader interface {
	ForModel(model string) (*tiktoken.Tiktoken, error)
	ForEncoding(name string) (*tiktoken.Tiktoken, error)
}

type tiktokenLoader struct{}

func (tiktokenLoader) ForModel(model string) (*tiktoken.Tiktoken, error) {
	return tiktoken.EncodingForModel(model)
}

func (tiktokenLoader) ForEncoding(name string) (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding(name)
}

type cached struct {
	enc      *tiktoken.Tiktoken
	failedAt time.Time
}

// Estimator caches encodings by key. The zero value is not usable; use New.
type Estimator struct {
	loader Loader
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

// New returns an Estimator backed by tiktoken-go.
func New() *Estimator {
	return NewWithLoader(tiktokenLoader{})
}

// NewWithLoader returns an Estimator using loader for encodings.
func NewWithLoader(loader Loader) *Estimator {
	return &Estimator{
		loader: loader,
		now:    time.Now,
		cache:  make(map[string]cached),
	}
}

var defaultEstimator = New()

// Estimate counts tokens in text with the shared estimator.
func Estimate(text, model string) int {
	return defaultEstimator.Estimate(text, model)
}

// Approximate is the tokenizer-free estimate: a quarter of the character
// count, never below one for non-empty text.
func Approximate(text string) int {
	if text == "" {
		return 0
	}
	return max(1, utf8.RuneCountInString(text)/4)
}

// Estimate returns the token count of text for model. It never panics and
// never returns a negative number; any tokenizer problem falls back to
// Approximate.
func (e *Estimator) Estimate(text, model string) (count int) {
	if text == "" {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Tokenizer panicked, using approximation", "model", model, "panic", r)
			count = Approximate(text)
		}
	}()

	var enc *tiktoken.Tiktoken
	switch ClassifyModel(model) {
	case FamilyMistral:
		// No Mistral tokenizer exists for Go; count the instruction template
		// with the default BPE plus the BOS token.
		enc = e.encoding("encoding:"+DefaultEncoding, func() (*tiktoken.Tiktoken, error) {
			return e.loader.ForEncoding(DefaultEncoding)
		})
		if enc != nil {
			return len(enc.Encode("[INST] "+text+" [/INST]", nil, nil)) + 1
		}
	case FamilyOpenAI:
		enc = e.encoding("model:"+model, func() (*tiktoken.Tiktoken, error) {
			return e.loader.ForModel(model)
		})
		if enc == nil {
			enc = e.encoding("encoding:"+DefaultEncoding, func() (*tiktoken.Tiktoken, error) {
				return e.loader.ForEncoding(DefaultEncoding)
			})
		}
	default:
		enc = e.encoding("encoding:"+DefaultEncoding, func() (*tiktoken.Tiktoken, error) {
			return e.loader.ForEncoding(DefaultEncoding)
		})
	}

	if enc == nil {
		return Approximate(text)
	}
	if n := len(enc.Encode(text, nil, nil)); n > 0 {
		return n
	}
	return Approximate(text)
}

// encoding returns a cached encoding or loads it. Failures are remembered
// for retryAfter so a missing BPE file does not cost a network round trip on
// every request.
func (e *Estimator) encoding(key string, load func() (*tiktoken.Tiktoken, error)) *tiktoken.Tiktoken {
	e.mu.Lock()
	entry, ok := e.cache[key]
	e.mu.Unlock()
	if ok {
		if entry.enc != nil {
			return entry.enc
		}
		if e.now().Sub(entry.failedAt) < retryAfter {
			return nil
		}
	}

	enc, err := load()
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil || enc == nil {
		logger.Debug("Tokenizer encoding unavailable", "key", key, "error", err)
		e.cache[key] = cached{failedAt: e.now()}
		return nil
	}
	e.cache[key] = cached{enc: enc}
	return enc
}
