package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Epistemic-Technology/study-mcp/models"
)

const (
	TargetsTopLevel = "top-level"
	TargetsLeaves   = "leaves"
)

// Rates is a per-model price table in USD per million tokens
type Rates struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Models selects the model used for each kind of request
type Models struct {
	SimpleImage  string `yaml:"simple_image"`
	ComplexImage string `yaml:"complex_image"`
	Outline      string `yaml:"outline"`
	Section      string `yaml:"section"`
}

// ForTier returns the image description model for a tier
func (m Models) ForTier(tier models.Tier) string {
	if tier == models.TierComplex {
		return m.ComplexImage
	}
	return m.SimpleImage
}

func (m Models) all() []string {
	return []string{m.SimpleImage, m.ComplexImage, m.Outline, m.Section}
}

type Config struct {
	OpenAIAPIKey string `yaml:"-"`

	// Zotero source access
	ZoteroAPIKey    string `yaml:"-"`
	ZoteroLibraryID string `yaml:"zotero_library_id"`

	Models Models           `yaml:"models"`
	Rates  map[string]Rates `yaml:"rates"`

	// Image filtering and routing
	MinImageDimension     int `yaml:"min_image_dimension"`
	ComplexWidthThreshold int `yaml:"complex_width_threshold"`
	ComplexBytesThreshold int `yaml:"complex_bytes_threshold"`
	MaxImageWidth         int `yaml:"max_image_width"`

	// Description batching
	DescriptionBatchSize int `yaml:"description_batch_size"`
	PageContextChars     int `yaml:"page_context_chars"`

	// Output bounds per request kind
	DescriptionMaxTokens int     `yaml:"description_max_tokens"`
	OutlineMaxTokens     int     `yaml:"outline_max_tokens"`
	SectionMaxTokens     int     `yaml:"section_max_tokens"`
	Temperature          float64 `yaml:"temperature"`

	// Request control
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	TokensPerSecond int           `yaml:"tokens_per_second"`
	BurstTokens     int           `yaml:"burst_tokens"`
	MaxConcurrency  int           `yaml:"max_concurrency"`

	SynthesisTargets string `yaml:"synthesis_targets"`
	DiagramLanguage  string `yaml:"diagram_language"`

	DBPath string `yaml:"db_path"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Models: Models{
			SimpleImage:  "gpt-4.1-mini",
			ComplexImage: "gpt-4.1",
			Outline:      "gpt-4.1",
			Section:      "gpt-4.1",
		},
		Rates: map[string]Rates{
			"gpt-4.1-mini": {InputPerMillion: 0.40, OutputPerMillion: 1.60},
			"gpt-4.1":      {InputPerMillion: 2.00, OutputPerMillion: 8.00},
			"gpt-5-mini":   {InputPerMillion: 0.25, OutputPerMillion: 2.00},
			"gpt-5":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
		},
		MinImageDimension:     50,
		ComplexWidthThreshold: 1200,
		ComplexBytesThreshold: 300_000,
		MaxImageWidth:         1024,
		DescriptionBatchSize:  5,
		PageContextChars:      600,
		DescriptionMaxTokens:  4096,
		OutlineMaxTokens:      8192,
		SectionMaxTokens:      16384,
		Temperature:           0.2,
		RequestTimeout:        5 * time.Minute,
		// 1.8M tokens/min leaves a margin under a 2M tokens/min account limit
		TokensPerSecond:  30000,
		BurstTokens:      60000,
		MaxConcurrency:   0,
		SynthesisTargets: TargetsTopLevel,
		DiagramLanguage:  "mermaid",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// STUDY_CONFIG_FILE, and environment overrides, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("STUDY_CONFIG_FILE"); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.ZoteroAPIKey = os.Getenv("ZOTERO_API_KEY")
	cfg.ZoteroLibraryID = envOr("ZOTERO_LIBRARY_ID", cfg.ZoteroLibraryID)

	cfg.Models.SimpleImage = envOr("STUDY_MODEL_SIMPLE_IMAGE", cfg.Models.SimpleImage)
	cfg.Models.ComplexImage = envOr("STUDY_MODEL_COMPLEX_IMAGE", cfg.Models.ComplexImage)
	cfg.Models.Outline = envOr("STUDY_MODEL_OUTLINE", cfg.Models.Outline)
	cfg.Models.Section = envOr("STUDY_MODEL_SECTION", cfg.Models.Section)

	cfg.MinImageDimension = envInt("STUDY_MIN_IMAGE_DIMENSION", cfg.MinImageDimension)
	cfg.ComplexWidthThreshold = envInt("STUDY_COMPLEX_WIDTH", cfg.ComplexWidthThreshold)
	cfg.ComplexBytesThreshold = envInt("STUDY_COMPLEX_BYTES", cfg.ComplexBytesThreshold)
	cfg.MaxImageWidth = envInt("STUDY_MAX_IMAGE_WIDTH", cfg.MaxImageWidth)
	cfg.DescriptionBatchSize = envInt("STUDY_BATCH_SIZE", cfg.DescriptionBatchSize)
	cfg.PageContextChars = envInt("STUDY_PAGE_CONTEXT_CHARS", cfg.PageContextChars)
	cfg.DescriptionMaxTokens = envInt("STUDY_DESCRIPTION_MAX_TOKENS", cfg.DescriptionMaxTokens)
	cfg.OutlineMaxTokens = envInt("STUDY_OUTLINE_MAX_TOKENS", cfg.OutlineMaxTokens)
	cfg.SectionMaxTokens = envInt("STUDY_SECTION_MAX_TOKENS", cfg.SectionMaxTokens)
	cfg.Temperature = envFloat("STUDY_TEMPERATURE", cfg.Temperature)
	cfg.RequestTimeout = envDuration("STUDY_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.TokensPerSecond = envInt("STUDY_TOKENS_PER_SECOND", cfg.TokensPerSecond)
	cfg.BurstTokens = envInt("STUDY_BURST_TOKENS", cfg.BurstTokens)
	cfg.MaxConcurrency = envInt("STUDY_MAX_CONCURRENCY", cfg.MaxConcurrency)
	cfg.SynthesisTargets = envOr("STUDY_SYNTHESIS_TARGETS", cfg.SynthesisTargets)
	cfg.DiagramLanguage = envOr("STUDY_DIAGRAM_LANGUAGE", cfg.DiagramLanguage)
	cfg.DBPath = envOr("STUDY_MCP_DB_PATH", cfg.DBPath)

	return cfg, cfg.Validate()
}

// MergeFile overlays the values present in a YAML file onto cfg
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return c.MergeYAML(data)
}

// MergeYAML overlays the values present in a YAML document onto cfg.
// Rate entries are merged per model.
func (c *Config) MergeYAML(data []byte) error {
	rates := c.Rates
	c.Rates = nil
	if err := yaml.Unmarshal(data, c); err != nil {
		c.Rates = rates
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	merged := make(map[string]Rates, len(rates)+len(c.Rates))
	for model, r := range rates {
		merged[model] = r
	}
	for model, r := range c.Rates {
		merged[model] = r
	}
	c.Rates = merged
	return nil
}

// RatesFor returns the price table for a model. Models without an entry
// are reported by UnpricedModels.
func (c Config) RatesFor(model string) Rates {
	return c.Rates[model]
}

// UnpricedModels lists the configured models that have no rate entry, in
// field order without repeats
func (c Config) UnpricedModels() []string {
	var unpriced []string
	seen := make(map[string]bool)
	for _, model := range c.Models.all() {
		if model == "" || seen[model] {
			continue
		}
		seen[model] = true
		if _, ok := c.Rates[model]; !ok {
			unpriced = append(unpriced, model)
		}
	}
	return unpriced
}

func (c Config) Validate() error {
	if c.DescriptionBatchSize <= 0 {
		return fmt.Errorf("description batch size must be positive, got %d", c.DescriptionBatchSize)
	}
	if c.MinImageDimension < 0 {
		return fmt.Errorf("min image dimension must not be negative, got %d", c.MinImageDimension)
	}
	if c.TokensPerSecond <= 0 || c.BurstTokens <= 0 {
		return fmt.Errorf("rate limit must be positive (tokens_per_second=%d, burst_tokens=%d)", c.TokensPerSecond, c.BurstTokens)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max concurrency must not be negative, got %d", c.MaxConcurrency)
	}
	switch c.SynthesisTargets {
	case TargetsTopLevel, TargetsLeaves:
	default:
		return fmt.Errorf("invalid synthesis targets: %s (expected '%s' or '%s')", c.SynthesisTargets, TargetsTopLevel, TargetsLeaves)
	}
	for _, model := range c.Models.all() {
		if model == "" {
			return fmt.Errorf("all models must be set")
		}
	}
	if unpriced := c.UnpricedModels(); len(unpriced) > 0 {
		return fmt.Errorf("no rate entry for model(s) %s; add them under rates", strings.Join(unpriced, ", "))
	}
	return nil
}

// RequireAPIKey reports a missing OpenAI API key
func (c Config) RequireAPIKey() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
