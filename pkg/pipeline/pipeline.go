// Package pipeline coordinates a single extraction run: it decodes the
// upload, schedules the palette, shape, typography and effect stages,
// enforces the run deadline and aggregates the stage output into the final
// element list.
//
// A Coordinator holds at most one active run. Submitting a new image
// supersedes the active run; its output is discarded and it ends Failed with
// types.ErrSuperseded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/design-extractor/pkg/analyzer"
	"github.com/menta2k/design-extractor/pkg/effects"
	"github.com/menta2k/design-extractor/pkg/palette"
	"github.com/menta2k/design-extractor/pkg/types"
	"github.com/menta2k/design-extractor/pkg/typography"
	"github.com/menta2k/design-extractor/pkg/vision"
)

// ErrUnknownRun is returned when a run ID is not (or no longer) tracked
var ErrUnknownRun = errors.New("unknown run")

// Status is the lifecycle state of a run
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Stage names used in reports and logs
const (
	StagePalette    = "palette"
	StageShapes     = "shapes"
	StageTypography = "typography"
	StageEffects    = "effects"
)

// StageReport records how one stage went. Err is set when the stage failed
// and its result was replaced by an empty one.
type StageReport struct {
	Stage    string        `json:"stage"`
	Items    int           `json:"items"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Run is a snapshot of one extraction. Elements are only set once the run
// has Completed.
type Run struct {
	ID         string             `json:"id"`
	Status     Status             `json:"status"`
	Err        error              `json:"-"`
	Info       analyzer.ImageInfo `json:"image"`
	Raster     *types.Raster      `json:"-"`
	Elements   []types.Element    `json:"elements"`
	Stages     []StageReport      `json:"stages"`
	CreatedAt  time.Time          `json:"created_at"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Done reports whether the run reached a terminal state
func (r Run) Done() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

func (r Run) clone() Run {
	r.Elements = slices.Clone(r.Elements)
	r.Stages = slices.Clone(r.Stages)
	return r
}

// Options configures a Coordinator
type Options struct {
	Logger         *log.Logger
	Deadline       time.Duration
	MaxAnalysisDim int
	PaletteK       int
	History        int

	Decoder    analyzer.Config
	Palette    palette.Config
	Vision     vision.DetectionConfig
	Typography typography.Config
	Effects    effects.Config

	// Recognizer optionally reads the text of detected lines
	Recognizer typography.Recognizer
}

// DefaultOptions returns the default coordinator options
func DefaultOptions() Options {
	return Options{
		Logger:         log.Default(),
		Deadline:       30 * time.Second,
		MaxAnalysisDim: 1024,
		PaletteK:       palette.DefaultK,
		History:        8,
		Decoder:        analyzer.DefaultConfig(),
		Palette:        palette.DefaultConfig(),
		Vision:         vision.DefaultConfig(),
		Typography:     typography.DefaultConfig(),
		Effects:        effects.DefaultConfig(),
	}
}

type record struct {
	run    Run
	cancel context.CancelFunc
	done   chan struct{}
}

// Coordinator owns the run records and is their only writer
type Coordinator struct {
	opts    Options
	logger  *log.Logger
	decoder *analyzer.Decoder
	palette *palette.Extractor
	shapes  *vision.ShapeDetector
	text    *typography.Detector
	effects *effects.Inferencer

	mu      sync.Mutex
	runs    map[string]*record
	order   []string
	current string
}

// New creates a Coordinator with default options
func New() *Coordinator {
	return NewWithOptions(DefaultOptions())
}

// NewWithOptions creates a Coordinator with custom options
func NewWithOptions(opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.History <= 0 {
		opts.History = 1
	}
	text := typography.NewWithConfig(opts.Typography)
	if opts.Recognizer != nil {
		text = text.WithRecognizer(opts.Recognizer)
	}
	return &Coordinator{
		opts:    opts,
		logger:  opts.Logger,
		decoder: analyzer.NewWithConfig(opts.Decoder),
		palette: palette.NewWithConfig(opts.Palette),
		shapes:  vision.NewWithConfig(opts.Vision),
		text:    text,
		effects: effects.NewWithConfig(opts.Effects),
		runs:    make(map[string]*record),
	}
}

// Submit starts extracting data in the background and returns the pending
// run. Any run still in progress is superseded. Cancelling ctx cancels the
// new run.
func (c *Coordinator) Submit(ctx context.Context, data []byte, mimeType string) Run {
	var runCtx context.Context
	var cancel context.CancelFunc
	if c.opts.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.opts.Deadline)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	rec := &record{
		run: Run{
			ID:        uuid.New().String(),
			Status:    StatusPending,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	if prev, ok := c.runs[c.current]; ok && !prev.run.Done() {
		c.logger.Printf("run %s: superseded by %s", prev.run.ID, rec.run.ID)
		c.finalize(prev, nil, types.ErrSuperseded)
	}
	c.runs[rec.run.ID] = rec
	c.order = append(c.order, rec.run.ID)
	c.current = rec.run.ID
	c.prune()
	snapshot := rec.run.clone()
	c.mu.Unlock()

	go c.execute(runCtx, rec, data, mimeType)
	return snapshot
}

// Extract runs a full extraction and waits for it. A failed run is returned
// together with its error.
func (c *Coordinator) Extract(ctx context.Context, data []byte, mimeType string) (Run, error) {
	run := c.Submit(ctx, data, mimeType)
	run, err := c.Wait(ctx, run.ID)
	if err != nil {
		return run, err
	}
	if run.Status == StatusFailed {
		return run, run.Err
	}
	return run, nil
}

// Current returns the most recently submitted run
func (c *Coordinator) Current() (Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.runs[c.current]
	if !ok {
		return Run{}, false
	}
	return rec.run.clone(), true
}

// Get returns the run with the given ID
func (c *Coordinator) Get(id string) (Run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.runs[id]
	if !ok {
		return Run{}, false
	}
	return rec.run.clone(), true
}

// Wait blocks until the run is done or ctx ends
func (c *Coordinator) Wait(ctx context.Context, id string) (Run, error) {
	c.mu.Lock()
	rec, ok := c.runs[id]
	c.mu.Unlock()
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}

	select {
	case <-rec.done:
	case <-ctx.Done():
		return Run{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return rec.run.clone(), nil
}

// prune drops the oldest finished runs beyond the history limit
func (c *Coordinator) prune() {
	for len(c.order) > c.opts.History {
		id := c.order[0]
		if rec, ok := c.runs[id]; ok && !rec.run.Done() {
			break
		}
		delete(c.runs, id)
		c.order = c.order[1:]
	}
}

// finalize moves rec to its terminal state. Callers hold c.mu.
func (c *Coordinator) finalize(rec *record, out *outcome, err error) {
	if rec.run.Done() {
		return
	}
	rec.run.FinishedAt = time.Now()
	if err != nil {
		rec.run.Status = StatusFailed
		rec.run.Err = err
		rec.run.Elements = nil
	} else {
		rec.run.Status = StatusCompleted
		rec.run.Elements = out.elements
	}
	if out != nil {
		rec.run.Info = out.info
		rec.run.Raster = out.raster
		rec.run.Stages = out.stages
	}
	rec.cancel()
	close(rec.done)
}

type outcome struct {
	info     analyzer.ImageInfo
	raster   *types.Raster
	elements []types.Element
	stages   []StageReport
	err      error
}

func (c *Coordinator) execute(ctx context.Context, rec *record, data []byte, mimeType string) {
	c.mu.Lock()
	if rec.run.Done() {
		c.mu.Unlock()
		return
	}
	start := time.Now()
	rec.run.Status = StatusRunning
	rec.run.StartedAt = start
	id := rec.run.ID
	c.mu.Unlock()

	results := make(chan outcome, 1)
	go func() {
		results <- c.guard(id, func() outcome {
			return c.process(ctx, id, data, mimeType)
		})
	}()

	var out outcome
	select {
	case out = <-results:
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}

	err := out.err
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s", types.ErrTimeout, time.Since(start).Round(time.Millisecond))
		c.logger.Printf("run %s: %v", id, err)
		out = outcome{}
	case err != nil:
		c.logger.Printf("run %s: failed: %v", id, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rec.run.Done() {
		c.logger.Printf("run %s: discarding output of superseded run", id)
		return
	}
	if err != nil {
		c.finalize(rec, &outcome{info: out.info, raster: out.raster, stages: out.stages}, err)
		return
	}
	c.finalize(rec, &out, nil)
}

// guard runs fn and turns a panic outside the stages into a failed outcome
func (c *Coordinator) guard(id string, fn func() outcome) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: &types.StageError{Stage: "process", Err: fmt.Errorf("panic: %v", r)}}
			c.logger.Printf("run %s: %v", id, out.err)
		}
	}()
	return fn()
}

// process decodes the upload and runs the analysis stages. Palette and
// shapes start together; typography and effects wait for the shapes.
func (c *Coordinator) process(ctx context.Context, id string, data []byte, mimeType string) outcome {
	raster, err := c.decoder.Decode(data, mimeType)
	if err != nil {
		return outcome{err: err}
	}
	out := outcome{info: c.decoder.GetImageInfo(raster), raster: raster}
	if err := ctx.Err(); err != nil {
		out.err = err
		return out
	}

	work, scale := raster.Fit(c.opts.MaxAnalysisDim)
	bg := vision.EstimateBackground(work)

	var (
		swatches []types.Swatch
		shapes   []types.Region
		lines    []types.TextRegion
		found    []types.Effect
		reports  [4]StageReport
	)
	shapesReady := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.stage(gctx, id, StagePalette, &reports[0], func() (int, error) {
			s, err := c.palette.Extract(work, c.opts.PaletteK)
			swatches = s
			return len(s), err
		})
	})
	g.Go(func() error {
		defer close(shapesReady)
		return c.stage(gctx, id, StageShapes, &reports[1], func() (int, error) {
			shapes = c.shapes.DetectShapes(work)
			return len(shapes), nil
		})
	})
	g.Go(func() error {
		if err := awaitShapes(gctx, shapesReady); err != nil {
			return err
		}
		return c.stage(gctx, id, StageTypography, &reports[2], func() (int, error) {
			lines = c.text.Detect(gctx, work, shapes)
			return len(lines), nil
		})
	})
	g.Go(func() error {
		if err := awaitShapes(gctx, shapesReady); err != nil {
			return err
		}
		return c.stage(gctx, id, StageEffects, &reports[3], func() (int, error) {
			found = c.inferEffects(gctx, work, shapes, bg)
			return len(found), gctx.Err()
		})
	})

	if err := g.Wait(); err != nil {
		out.err = err
		out.stages = reports[:]
		return out
	}

	out.stages = reports[:]
	out.elements = Synthesize(Result{
		Width:      raster.Width,
		Height:     raster.Height,
		Background: bg,
		Swatches:   swatches,
		Shapes:     scaleRegions(shapes, scale),
		Lines:      scaleLines(lines, scale),
		Effects:    scaleEffects(found, scale),
	})
	return out
}

func awaitShapes(ctx context.Context, ready <-chan struct{}) error {
	select {
	case <-ready:
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stage runs fn and converts its errors and panics into an empty result.
// Only cancellation of ctx is returned to the caller.
func (c *Coordinator) stage(ctx context.Context, id, name string, report *StageReport, fn func() (int, error)) (err error) {
	report.Stage = name
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		if r := recover(); r != nil {
			report.Items = 0
			report.Err = &types.StageError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
			c.logger.Printf("run %s: %v", id, report.Err)
		}
		if err == nil {
			err = ctx.Err()
		}
	}()

	items, ferr := fn()
	if ferr != nil && ctx.Err() == nil {
		report.Err = &types.StageError{Stage: name, Err: ferr}
		c.logger.Printf("run %s: %v", id, report.Err)
		return nil
	}
	report.Items = items
	return nil
}

// inferEffects classifies every shape, stopping early when ctx ends
func (c *Coordinator) inferEffects(ctx context.Context, r *types.Raster, shapes []types.Region, bg color.NRGBA) []types.Effect {
	var found []types.Effect
	for _, s := range shapes {
		if ctx.Err() != nil {
			return nil
		}
		if e := c.effects.Infer(r, s, bg); e.Kind != types.EffectNone {
			found = append(found, e)
		}
	}
	return found
}

func scaleRegions(regions []types.Region, f float64) []types.Region {
	out := make([]types.Region, len(regions))
	for i, r := range regions {
		out[i] = r.Scale(f)
	}
	return out
}

func scaleLines(lines []types.TextRegion, f float64) []types.TextRegion {
	out := make([]types.TextRegion, len(lines))
	for i, l := range lines {
		l.Box = l.Box.Scale(f)
		l.FontSizePx = round1(l.FontSizePx * f)
		l.StrokeWidthPx = round1(l.StrokeWidthPx * f)
		out[i] = l
	}
	return out
}

func scaleEffects(found []types.Effect, f float64) []types.Effect {
	out := make([]types.Effect, len(found))
	for i, e := range found {
		e.Region = e.Region.Scale(f)
		e.BlurRadiusPx = round1(e.BlurRadiusPx * f)
		e.OffsetX = round1(e.OffsetX * f)
		e.OffsetY = round1(e.OffsetY * f)
		out[i] = e
	}
	return out
}
