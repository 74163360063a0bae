// Package designextractor extracts design elements from images.
//
// Given an uploaded screenshot, mockup or poster it reports the fonts,
// colors, shapes, effects, palette and text lines it can derive from the
// pixels, in that order.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		designextractor "github.com/menta2k/design-extractor"
//	)
//
//	func main() {
//		extractor := designextractor.New()
//
//		run, err := extractor.ExtractFile(context.Background(), "mockup.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//		for _, e := range run.Elements {
//			fmt.Printf("%-8s %-20s %s\n", e.Kind, e.Name, e.Details)
//		}
//	}
//
// The package wires together these components:
//
// 1. Decoder (pkg/analyzer): size and format checks, decoding to a raster
// 2. Palette (pkg/palette): representative named swatches
// 3. Vision (pkg/vision): panels, bars, icons and other shapes
// 4. Typography (pkg/typography): text lines with size and weight estimates
// 5. Effects (pkg/effects): drop shadows, glows and gradient fills
// 6. Pipeline (pkg/pipeline): runs the stages under a deadline
//
// Every run has a deadline and a new submission supersedes the one in
// progress. A failed run carries no elements.
package designextractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/menta2k/design-extractor/internal/utils"
	"github.com/menta2k/design-extractor/pkg/cropper"
	"github.com/menta2k/design-extractor/pkg/export"
	"github.com/menta2k/design-extractor/pkg/pipeline"
	"github.com/menta2k/design-extractor/pkg/processing"
	"github.com/menta2k/design-extractor/pkg/types"
)

// Version of the design extractor library
const Version = "1.0.0"

// ErrNoImage is returned for runs that never decoded an image
var ErrNoImage = errors.New("run has no decoded image")

// DesignExtractor provides a high-level interface for design extraction
type DesignExtractor struct {
	coordinator *pipeline.Coordinator
	processor   *processing.Processor
	cropper     *cropper.AssetCropper
}

// New creates a new DesignExtractor with default configuration
func New() *DesignExtractor {
	return NewWithOptions(pipeline.DefaultOptions(), cropper.DefaultConfig())
}

// NewWithOptions creates a new DesignExtractor with custom configuration
func NewWithOptions(opts pipeline.Options, cropConfig cropper.CropConfig) *DesignExtractor {
	return &DesignExtractor{
		coordinator: pipeline.NewWithOptions(opts),
		processor:   processing.NewProcessor(opts.Decoder.MaxBytes),
		cropper:     cropper.NewWithConfig(cropConfig),
	}
}

// Extract runs a full extraction on encoded image data and waits for it
func (de *DesignExtractor) Extract(ctx context.Context, data []byte, mimeType string) (pipeline.Run, error) {
	return de.coordinator.Extract(ctx, data, mimeType)
}

// ExtractFile reads an image from a file path or http(s) URL and extracts it
func (de *DesignExtractor) ExtractFile(ctx context.Context, source string) (pipeline.Run, error) {
	data, mimeType, err := de.processor.ReadSource(ctx, source)
	if err != nil {
		return pipeline.Run{}, err
	}
	return de.Extract(ctx, data, mimeType)
}

// Submit starts an extraction in the background, superseding any run in
// progress
func (de *DesignExtractor) Submit(ctx context.Context, data []byte, mimeType string) pipeline.Run {
	return de.coordinator.Submit(ctx, data, mimeType)
}

// Wait blocks until the run with the given ID is done
func (de *DesignExtractor) Wait(ctx context.Context, id string) (pipeline.Run, error) {
	return de.coordinator.Wait(ctx, id)
}

// Current returns the most recently submitted run
func (de *DesignExtractor) Current() (pipeline.Run, bool) {
	return de.coordinator.Current()
}

// Export builds the template document of a completed run
func (de *DesignExtractor) Export(run pipeline.Run, source string) (*export.Template, error) {
	return export.NewTemplate(run, source)
}

// Assets crops the shape and text elements of a completed run
func (de *DesignExtractor) Assets(run pipeline.Run) ([]cropper.Asset, error) {
	if run.Raster.Empty() {
		return nil, ErrNoImage
	}
	return de.cropper.CropElements(run.Raster, run.Elements)
}

// Overlay draws the element boxes of a run over its image
func (de *DesignExtractor) Overlay(run pipeline.Run) (image.Image, error) {
	if run.Raster.Empty() {
		return nil, ErrNoImage
	}
	return de.processor.CreateDebugOverlay(run.Raster.Image(), run.Elements), nil
}

// OutputOptions selects what WriteResults writes besides template.json
type OutputOptions struct {
	Format   string
	Quality  int
	Lossless bool
	Overlay  bool
	Assets   bool
	Hints    *types.DesignHints
}

// WriteResults writes template.json, and optionally the overlay image and
// the element assets, into dir. It returns the written file paths.
func (de *DesignExtractor) WriteResults(run pipeline.Run, source, dir string, opts OutputOptions) ([]string, error) {
	tmpl, err := de.Export(run, source)
	if err != nil {
		return nil, err
	}
	if opts.Hints != nil {
		tmpl.WithHints(opts.Hints)
	}
	if opts.Format == "" {
		opts.Format = "png"
	}

	var written []string
	path := filepath.Join(dir, "template.json")
	if err := tmpl.WriteFile(path); err != nil {
		return nil, err
	}
	written = append(written, path)

	if opts.Overlay {
		overlay, err := de.Overlay(run)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, "overlay."+opts.Format)
		if err := de.processor.SaveImage(overlay, path, opts.Format, opts.Quality, opts.Lossless); err != nil {
			return written, fmt.Errorf("failed to save overlay: %w", err)
		}
		written = append(written, path)
	}

	if opts.Assets {
		assets, err := de.Assets(run)
		if err != nil {
			return written, err
		}
		assetDir := filepath.Join(dir, "assets")
		if len(assets) > 0 {
			if err := utils.EnsureDir(assetDir); err != nil {
				return written, fmt.Errorf("failed to create asset directory: %w", err)
			}
		}
		for i, a := range assets {
			path := filepath.Join(assetDir, a.Filename(i+1, opts.Format))
			if err := de.processor.SaveImage(a.Image, path, opts.Format, opts.Quality, opts.Lossless); err != nil {
				return written, fmt.Errorf("failed to save %s: %w", a.Name, err)
			}
			written = append(written, path)
		}
	}
	return written, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
