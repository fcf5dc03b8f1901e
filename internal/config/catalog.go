package config

import (
	"fmt"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// ModelCreated is the fixed creation timestamp reported for every model.
const ModelCreated int64 = 1727389042

// Default model lists of the provider.
var (
	DefaultChatModels = []string{
		"gpt-5-nano", "gpt-5", "gpt-5-mini", "o3-mini", "o1-preview", "o1-mini",
		"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo",
		"deepseek-chat", "deepseek-reasoner",
		"claude-3-7-sonnet-20250219", "claude-3-5-sonnet-20240620",
		"claude-3-opus-20240229", "claude-3-sonnet-20240229",
		"claude-3-haiku-20240307", "claude-2.1", "claude-instant-1.2",
		"gemini-1.0-pro", "gemini-1.5-pro", "gemini-1.5-flash",
		"mistral-large-latest", "mistral-small-latest", "mistral-nemo", "open-mistral-7b",
		"meta/llama-2-70b-chat", "meta/meta-llama-3-70b-instruct",
		"meta/meta-llama-3.1-405b-instruct",
		"command", "gpt-o1-pro", "gpt-o4-mini", "gpt-4.1-nano", "gpt-4.1-mini",
	}

	DefaultVisionModels = []string{
		"gpt-4o", "gpt-4o-mini", "gpt-4-turbo",
		"claude-3-5-sonnet-20240620", "gemini-1.5-pro", "gemini-1.5-flash",
	}

	DefaultImageModels = []string{
		"dall-e-3", "dall-e-2", "gpt-image-1", "dzine", "magic-art", "magic-art_7_0",
		"stable-image", "stable-diffusion-xl-1024-v1-0", "stable-diffusion-v1-6",
		"esrgan-v1-x2plus", "clipdrop", "midjourney", "midjourney_6_1",
		"6b645e3a-d64f-4341-a6d8-7a3690fbf042",
		"b24e16ff-06e3-43eb-8d33-4416c2d75876",
		"e71a1c2f-4f80-4800-934f-2c68979d8cc8",
		"1e60896f-3c26-4296-8ecc-53e2afecc132",
		"aa77f04e-3eec-4034-9c07-d0f619684628",
		"2067ae52-33fd-4a82-bb92-c2c55e7d2786",
		"black-forest-labs/flux-schnell",
	}
)

// CatalogFile is the YAML layout of MODEL_CATALOG_FILE. Empty lists keep
// the defaults.
type CatalogFile struct {
	ChatModels   []string `yaml:"chat_models"`
	VisionModels []string `yaml:"vision_models"`
	ImageModels  []string `yaml:"image_models"`
}

// CatalogSnapshot is an immutable view of the catalog.
type CatalogSnapshot struct {
	ChatModels   []string
	VisionModels []string
	ImageModels  []string
}

// Catalog answers model questions for the handlers. It can be swapped at
// runtime by Reload and is safe for concurrent use.
type Catalog struct {
	mu               sync.RWMutex
	snapshot         CatalogSnapshot
	permitSubsetOnly bool
	subset           []string
	file             string
}

// NewCatalog builds the catalog, reading the YAML file when one is set.
func NewCatalog(cfg CatalogConfig) (*Catalog, error) {
	c := &Catalog{
		permitSubsetOnly: cfg.PermitSubsetOnly,
		subset:           slices.Clone(cfg.Subset),
		file:             cfg.File,
		snapshot: CatalogSnapshot{
			ChatModels:   DefaultChatModels,
			VisionModels: DefaultVisionModels,
			ImageModels:  DefaultImageModels,
		},
	}
	if c.file != "" {
		if err := c.Reload(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// File is the YAML file backing the catalog, or "".
func (c *Catalog) File() string { return c.file }

// Reload re-reads the YAML file. On error the current lists stay in place.
func (c *Catalog) Reload() error {
	if c.file == "" {
		return nil
	}
	data, err := os.ReadFile(c.file)
	if err != nil {
		return fmt.Errorf("reading model catalog %s: %w", c.file, err)
	}
	snapshot, err := ParseCatalog(data)
	if err != nil {
		return fmt.Errorf("parsing model catalog %s: %w", c.file, err)
	}

	c.mu.Lock()
	c.snapshot = snapshot
	c.mu.Unlock()
	return nil
}

// ParseCatalog decodes a catalog file, filling empty lists with defaults.
func ParseCatalog(data []byte) (CatalogSnapshot, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return CatalogSnapshot{}, err
	}
	snapshot := CatalogSnapshot{
		ChatModels:   file.ChatModels,
		VisionModels: file.VisionModels,
		ImageModels:  file.ImageModels,
	}
	if len(snapshot.ChatModels) == 0 {
		snapshot.ChatModels = DefaultChatModels
	}
	if len(snapshot.VisionModels) == 0 {
		snapshot.VisionModels = DefaultVisionModels
	}
	if len(snapshot.ImageModels) == 0 {
		snapshot.ImageModels = DefaultImageModels
	}
	return snapshot, nil
}

// Snapshot returns the current lists.
func (c *Catalog) Snapshot() CatalogSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// SubsetOnly reports whether only the configured subset is permitted.
func (c *Catalog) SubsetOnly() bool { return c.permitSubsetOnly }

// Listed returns the ids served by /v1/models: the subset when restricted,
// every chat model otherwise.
func (c *Catalog) Listed() []string {
	if c.permitSubsetOnly {
		return slices.Clone(c.subset)
	}
	return slices.Clone(c.Snapshot().ChatModels)
}

// IsPermitted reports whether model may be used. Without the subset
// restriction every model passes through to the provider.
func (c *Catalog) IsPermitted(model string) bool {
	if !c.permitSubsetOnly {
		return true
	}
	return slices.Contains(c.subset, model)
}

// SupportsVision reports whether model accepts image input.
func (c *Catalog) SupportsVision(model string) bool {
	return slices.Contains(c.Snapshot().VisionModels, model)
}

// IsImageModel reports whether model generates images.
func (c *Catalog) IsImageModel(model string) bool {
	return slices.Contains(c.Snapshot().ImageModels, model)
}
