package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	designextractor "github.com/menta2k/design-extractor"
	"github.com/menta2k/design-extractor/internal/config"
	"github.com/menta2k/design-extractor/internal/utils"
	"github.com/menta2k/design-extractor/pkg/client"
	"github.com/menta2k/design-extractor/pkg/hints"
	"github.com/menta2k/design-extractor/pkg/llamacpp"
	"github.com/menta2k/design-extractor/pkg/ocr"
	"github.com/menta2k/design-extractor/pkg/ollama"
	"github.com/menta2k/design-extractor/pkg/processing"
)

func main() {
	var in, outDir, configPath, saveConfig string
	var k, maxDim int
	var deadline time.Duration
	var ext string
	var quality int
	var lossless, overlay, assets bool
	var useOCR bool
	var ocrLang string
	var useHints bool
	var backend, url, model string
	var sendFmt string
	var sendSize, sendQ int

	flag.StringVar(&in, "in", "", "input image path, directory or URL (png/jpg)")
	flag.StringVar(&outDir, "out", "", "output directory (default from config: ./output)")
	flag.StringVar(&configPath, "config", "", "config file (default "+config.GetConfigPath()+" if present)")
	flag.StringVar(&saveConfig, "saveconfig", "", "write the effective configuration to this file and exit")

	flag.IntVar(&k, "k", 0, "number of palette colors (1-16)")
	flag.DurationVar(&deadline, "deadline", 0, "extraction deadline per image, e.g. 10s")
	flag.IntVar(&maxDim, "maxdim", 0, "max long side used for analysis (px), 0=config")

	flag.StringVar(&ext, "ext", "", "output format for overlay and assets: png|jpg|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG/WebP output quality (1-100)")
	flag.BoolVar(&lossless, "lossless", false, "WebP output lossless mode")
	flag.BoolVar(&overlay, "overlay", false, "write an overlay image with the element boxes")
	flag.BoolVar(&assets, "assets", true, "crop shapes and text lines into separate files")

	flag.BoolVar(&useOCR, "ocr", false, "read detected text lines with Tesseract (needs -tags ocr build)")
	flag.StringVar(&ocrLang, "ocrlang", "", "Tesseract language(s), e.g. eng+deu")

	flag.BoolVar(&useHints, "hints", false, "ask a vision model for font families and style")
	flag.StringVar(&backend, "backend", "", "hints backend: ollama or llamacpp")
	flag.StringVar(&url, "url", "", fmt.Sprintf("hints server URL (defaults: ollama=%s, llamacpp=%s)", ollama.DefaultURL, llamacpp.DefaultURL))
	flag.StringVar(&model, "model", "", "hints model name")
	flag.StringVar(&sendFmt, "sendfmt", "jpg", "format sent to the model: jpg|png")
	flag.IntVar(&sendSize, "sendsize", 0, "max long side sent to the model (px), 0=config")
	flag.IntVar(&sendQ, "sendq", 85, "JPEG quality for image sent to the model (1-100)")

	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Explicitly set flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out":
			cfg.Output.OutputDir = outDir
		case "k":
			cfg.Palette.K = k
		case "deadline":
			cfg.Pipeline.Deadline = deadline.String()
		case "maxdim":
			cfg.Pipeline.MaxAnalysisDim = maxDim
		case "ext":
			cfg.Output.DefaultFormat = ext
		case "quality":
			cfg.Output.Quality = quality
		case "lossless":
			cfg.Output.Lossless = lossless
		case "overlay":
			cfg.Output.Overlay = overlay
		case "assets":
			cfg.Output.Assets = assets
		case "ocr":
			cfg.Typography.OCR = useOCR
		case "ocrlang":
			cfg.Typography.OCRLanguage = ocrLang
		case "hints":
			cfg.Hints.Enabled = useHints
		case "backend":
			cfg.Hints.Backend = backend
		case "url":
			cfg.Hints.URL = url
		case "model":
			cfg.Hints.Model = model
		case "sendsize":
			cfg.Hints.MaxDim = sendSize
		}
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if saveConfig != "" {
		if err := cfg.SaveToFile(saveConfig); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", saveConfig)
		return
	}

	if in == "" {
		log.Fatalf("usage: %s -in image.png|dir|URL [-out outdir] [-k 6] [-deadline 30s] [-ext png|jpg|webp] [-overlay] [-ocr] [-hints -backend ollama|llamacpp -model name]", filepath.Base(os.Args[0]))
	}

	inputs := []string{in}
	if utils.DirExists(in) {
		inputs, err = utils.ListImageFiles(in)
		if err != nil {
			log.Fatal(err)
		}
		if len(inputs) == 0 {
			log.Fatalf("no images found in %s", in)
		}
	}

	opts := cfg.PipelineOptions()
	opts.Logger = log.Default()

	if cfg.Typography.OCR {
		recognizer, err := ocr.New()
		if err != nil {
			log.Printf("OCR disabled: %v", err)
		} else {
			defer recognizer.Close()
			if err := recognizer.SetLanguage(cfg.Typography.OCRLanguage); err != nil {
				log.Fatalf("Failed to set OCR language: %v", err)
			}
			opts.Recognizer = recognizer
		}
	}

	var advisor *hints.Advisor
	if cfg.Hints.Enabled {
		visionClient, err := newVisionClient(cfg.Hints.Backend, cfg.Hints.URL)
		if err != nil {
			log.Fatal(err)
		}
		advisor = hints.NewAdvisor(visionClient, cfg.Hints.Model)
	}

	extractor := designextractor.NewWithOptions(opts, cfg.CropConfig())
	processor := processing.NewProcessor(0)
	output := designextractor.OutputOptions{
		Format:   cfg.Output.DefaultFormat,
		Quality:  cfg.Output.Quality,
		Lossless: cfg.Output.Lossless,
		Overlay:  cfg.Output.Overlay,
		Assets:   cfg.Output.Assets,
	}

	failed := 0
	for _, input := range inputs {
		dir := cfg.Output.OutputDir
		if len(inputs) > 1 {
			dir = utils.OutputDirFor(input, cfg.Output.OutputDir)
		}
		if err := processOne(extractor, processor, advisor, input, dir, output, cfg.Hints.MaxDim, sendFmt, sendQ); err != nil {
			log.Printf("%s: %v", input, err)
			failed++
		}
	}
	if failed > 0 {
		log.Fatalf("%d of %d images failed", failed, len(inputs))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch backend {
	case "ollama":
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown backend: %s (use 'ollama' or 'llamacpp')", backend)
}

func processOne(extractor *designextractor.DesignExtractor, processor *processing.Processor, advisor *hints.Advisor,
	input, dir string, output designextractor.OutputOptions, sendSize int, sendFmt string, sendQ int) error {
	ctx := context.Background()

	run, err := extractor.ExtractFile(ctx, input)
	if err != nil {
		return err
	}
	log.Printf("%s: %dx%d %s, %d elements", input, run.Info.Width, run.Info.Height, run.Info.Format, len(run.Elements))
	for _, s := range run.Stages {
		log.Printf("  stage %-10s items=%-3d %s", s.Stage, s.Items, s.Duration.Round(time.Millisecond))
	}
	for _, e := range run.Elements {
		log.Printf("  %-7s %-22s %s", e.Kind, e.Name, e.Details)
	}

	output.Hints = nil
	if advisor != nil {
		imgB64, err := processor.PrepareImageForModel(run.Raster.Image(), sendFmt, sendSize, sendQ)
		if err != nil {
			return err
		}
		h, err := advisor.Suggest(ctx, imgB64)
		if err != nil {
			log.Printf("hints unavailable: %v", err)
		} else {
			log.Printf("style: %s, fonts: %v", h.Style, h.FontFamilies)
			log.Printf("description: %s", h.Description)
			log.Printf("tags: %v", h.Tags)
			run.Elements = hints.Apply(run.Elements, h)
			output.Hints = h
		}
	}

	written, err := extractor.WriteResults(run, input, dir, output)
	for _, path := range written {
		log.Printf("wrote %s", path)
	}
	return err
}
