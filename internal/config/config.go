package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/menta2k/design-extractor/pkg/analyzer"
	"github.com/menta2k/design-extractor/pkg/cropper"
	"github.com/menta2k/design-extractor/pkg/palette"
	"github.com/menta2k/design-extractor/pkg/pipeline"
)

// Config holds the application configuration
type Config struct {
	Decoder    DecoderConfig    `json:"decoder"`
	Palette    PaletteConfig    `json:"palette"`
	Vision     VisionConfig     `json:"vision"`
	Typography TypographyConfig `json:"typography"`
	Effects    EffectsConfig    `json:"effects"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Cropper    CropperConfig    `json:"cropper"`
	Output     OutputConfig     `json:"output"`
	Hints      HintsConfig      `json:"hints"`
}

// DecoderConfig holds the upload limits
type DecoderConfig struct {
	MaxBytes         int64    `json:"max_bytes"`
	MaxPixels        int      `json:"max_pixels"`
	SupportedFormats []string `json:"supported_formats"`
	MinImageSize     int      `json:"min_image_size"`
}

// PaletteConfig holds configuration for palette extraction
type PaletteConfig struct {
	K             int     `json:"k"`
	Method        string  `json:"method"`
	MaxSamples    int     `json:"max_samples"`
	MergeDistance float64 `json:"merge_distance"`
}

// VisionConfig holds configuration for shape segmentation
type VisionConfig struct {
	EdgeThreshold       float64 `json:"edge_threshold"`
	ForegroundThreshold float64 `json:"foreground_threshold"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	MinRegionRatio      float64 `json:"min_region_ratio"`
	OverlapTolerance    float64 `json:"overlap_tolerance"`
	MaxRegions          int     `json:"max_regions"`
}

// TypographyConfig holds configuration for text line detection
type TypographyConfig struct {
	ForegroundThreshold float64 `json:"foreground_threshold"`
	MinGlyphHeight      int     `json:"min_glyph_height"`
	LineGapFactor       float64 `json:"line_gap_factor"`
	BoldStrokeRatio     float64 `json:"bold_stroke_ratio"`
	OCR                 bool    `json:"ocr"`
	OCRLanguage         string  `json:"ocr_language"`
}

// EffectsConfig holds configuration for effect inference
type EffectsConfig struct {
	MaxRadius       int     `json:"max_radius"`
	SignalThreshold float64 `json:"signal_threshold"`
	MinGradientR2   float64 `json:"min_gradient_r2"`
}

// PipelineConfig holds configuration for the extraction coordinator
type PipelineConfig struct {
	Deadline       string `json:"deadline"`
	MaxAnalysisDim int    `json:"max_analysis_dim"`
	History        int    `json:"history"`
}

// CropperConfig holds configuration for asset crops
type CropperConfig struct {
	PaddingRatio   float64 `json:"padding_ratio"`
	IncludeEffects bool    `json:"include_effects"`
	MaxSize        int     `json:"max_size"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format"`
	OutputDir     string `json:"output_dir"`
	Quality       int    `json:"quality"`
	Lossless      bool   `json:"lossless"`
	Overlay       bool   `json:"overlay"`
	Assets        bool   `json:"assets"`
}

// HintsConfig holds configuration for vision model suggestions
type HintsConfig struct {
	Enabled bool   `json:"enabled"`
	Backend string `json:"backend"`
	URL     string `json:"url"`
	Model   string `json:"model"`
	MaxDim  int    `json:"max_dim"`
}

// Default returns a configuration with default values
func Default() *Config {
	opts := pipeline.DefaultOptions()
	crop := cropper.DefaultConfig()
	return &Config{
		Decoder: DecoderConfig{
			MaxBytes:         opts.Decoder.MaxBytes,
			MaxPixels:        opts.Decoder.MaxPixels,
			SupportedFormats: slices.Clone(opts.Decoder.SupportedFormats),
			MinImageSize:     opts.Decoder.MinImageSize,
		},
		Palette: PaletteConfig{
			K:             opts.Palette.K,
			Method:        string(opts.Palette.Method),
			MaxSamples:    opts.Palette.MaxSamples,
			MergeDistance: opts.Palette.MergeDistance,
		},
		Vision: VisionConfig{
			EdgeThreshold:       opts.Vision.EdgeThreshold,
			ForegroundThreshold: opts.Vision.ForegroundThreshold,
			ConfidenceThreshold: opts.Vision.ConfidenceThreshold,
			MinRegionRatio:      opts.Vision.MinRegionRatio,
			OverlapTolerance:    opts.Vision.OverlapTolerance,
			MaxRegions:          opts.Vision.MaxRegions,
		},
		Typography: TypographyConfig{
			ForegroundThreshold: opts.Typography.ForegroundThreshold,
			MinGlyphHeight:      opts.Typography.MinGlyphHeight,
			LineGapFactor:       opts.Typography.LineGapFactor,
			BoldStrokeRatio:     opts.Typography.BoldStrokeRatio,
			OCR:                 false,
			OCRLanguage:         "eng",
		},
		Effects: EffectsConfig{
			MaxRadius:       opts.Effects.MaxRadius,
			SignalThreshold: opts.Effects.SignalThreshold,
			MinGradientR2:   opts.Effects.MinGradientR2,
		},
		Pipeline: PipelineConfig{
			Deadline:       opts.Deadline.String(),
			MaxAnalysisDim: opts.MaxAnalysisDim,
			History:        opts.History,
		},
		Cropper: CropperConfig{
			PaddingRatio:   crop.PaddingRatio,
			IncludeEffects: crop.IncludeEffects,
			MaxSize:        crop.MaxSize,
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			OutputDir:     "./output",
			Quality:       90,
			Lossless:      false,
			Overlay:       false,
			Assets:        true,
		},
		Hints: HintsConfig{
			Enabled: false,
			Backend: "ollama",
			URL:     "",
			Model:   "llava:7b",
			MaxDim:  1024,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Decoder.MaxBytes < 1 {
		return fmt.Errorf("decoder.max_bytes must be positive")
	}
	if c.Decoder.MinImageSize < 1 {
		return fmt.Errorf("decoder.min_image_size must be positive")
	}
	if len(c.Decoder.SupportedFormats) == 0 {
		return fmt.Errorf("decoder.supported_formats cannot be empty")
	}
	for _, f := range c.Decoder.SupportedFormats {
		if analyzer.FormatFromMIME("image/"+f) == "" {
			return fmt.Errorf("decoder.supported_formats: unknown format %q", f)
		}
	}

	if c.Palette.K < palette.MinK || c.Palette.K > palette.MaxK {
		return fmt.Errorf("palette.k must be between %d and %d", palette.MinK, palette.MaxK)
	}
	switch palette.Method(c.Palette.Method) {
	case palette.MethodKMeans, palette.MethodDominant:
	default:
		return fmt.Errorf("palette.method must be %q or %q", palette.MethodKMeans, palette.MethodDominant)
	}

	if c.Vision.EdgeThreshold < 0 || c.Vision.EdgeThreshold > 1 {
		return fmt.Errorf("vision.edge_threshold must be between 0 and 1")
	}
	if c.Vision.ConfidenceThreshold < 0 || c.Vision.ConfidenceThreshold > 1 {
		return fmt.Errorf("vision.confidence_threshold must be between 0 and 1")
	}
	if c.Vision.MinRegionRatio < 0 || c.Vision.MinRegionRatio > 1 {
		return fmt.Errorf("vision.min_region_ratio must be between 0 and 1")
	}
	if c.Vision.OverlapTolerance < 0 || c.Vision.OverlapTolerance > 1 {
		return fmt.Errorf("vision.overlap_tolerance must be between 0 and 1")
	}

	if c.Typography.MinGlyphHeight < 1 {
		return fmt.Errorf("typography.min_glyph_height must be positive")
	}
	if c.Effects.MaxRadius < 1 {
		return fmt.Errorf("effects.max_radius must be positive")
	}

	if _, err := time.ParseDuration(c.Pipeline.Deadline); err != nil {
		return fmt.Errorf("pipeline.deadline: %w", err)
	}
	if c.Pipeline.MaxAnalysisDim < 0 {
		return fmt.Errorf("pipeline.max_analysis_dim cannot be negative")
	}

	if c.Cropper.PaddingRatio < 0 || c.Cropper.PaddingRatio > 1 {
		return fmt.Errorf("cropper.padding_ratio must be between 0 and 1")
	}

	switch c.Output.DefaultFormat {
	case "png", "jpg", "jpeg", "webp":
	default:
		return fmt.Errorf("output.default_format must be png, jpg or webp")
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if c.Hints.Enabled && c.Hints.Backend != "ollama" && c.Hints.Backend != "llamacpp" {
		return fmt.Errorf("hints.backend must be ollama or llamacpp")
	}
	return nil
}

// PipelineOptions returns coordinator options with the configured values
// applied over the defaults. Call Validate first.
func (c *Config) PipelineOptions() pipeline.Options {
	opts := pipeline.DefaultOptions()

	opts.Decoder.MaxBytes = c.Decoder.MaxBytes
	opts.Decoder.MaxPixels = c.Decoder.MaxPixels
	opts.Decoder.SupportedFormats = slices.Clone(c.Decoder.SupportedFormats)
	opts.Decoder.MinImageSize = c.Decoder.MinImageSize

	opts.PaletteK = c.Palette.K
	opts.Palette.K = c.Palette.K
	opts.Palette.Method = palette.Method(c.Palette.Method)
	opts.Palette.MaxSamples = c.Palette.MaxSamples
	opts.Palette.MergeDistance = c.Palette.MergeDistance

	opts.Vision.EdgeThreshold = c.Vision.EdgeThreshold
	opts.Vision.ForegroundThreshold = c.Vision.ForegroundThreshold
	opts.Vision.ConfidenceThreshold = c.Vision.ConfidenceThreshold
	opts.Vision.MinRegionRatio = c.Vision.MinRegionRatio
	opts.Vision.OverlapTolerance = c.Vision.OverlapTolerance
	opts.Vision.MaxRegions = c.Vision.MaxRegions

	opts.Typography.ForegroundThreshold = c.Typography.ForegroundThreshold
	opts.Typography.MinGlyphHeight = c.Typography.MinGlyphHeight
	opts.Typography.LineGapFactor = c.Typography.LineGapFactor
	opts.Typography.BoldStrokeRatio = c.Typography.BoldStrokeRatio

	opts.Effects.MaxRadius = c.Effects.MaxRadius
	opts.Effects.SignalThreshold = c.Effects.SignalThreshold
	opts.Effects.MinGradientR2 = c.Effects.MinGradientR2

	if d, err := time.ParseDuration(c.Pipeline.Deadline); err == nil {
		opts.Deadline = d
	}
	opts.MaxAnalysisDim = c.Pipeline.MaxAnalysisDim
	if c.Pipeline.History > 0 {
		opts.History = c.Pipeline.History
	}
	return opts
}

// CropConfig returns the asset cropper configuration
func (c *Config) CropConfig() cropper.CropConfig {
	crop := cropper.DefaultConfig()
	crop.PaddingRatio = c.Cropper.PaddingRatio
	crop.IncludeEffects = c.Cropper.IncludeEffects
	crop.MaxSize = c.Cropper.MaxSize
	return crop
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "design-extractor", "config.json")
}
