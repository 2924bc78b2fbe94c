// Package pipeline sequences the content transformation stages for one
// document version: template expansion, component scanning, placeholder
// rewriting, image reference resolution and rendering.
//
// Every run is stamped with a generation number. Nothing a stage reports
// escapes Run as an error: problems become diagnostics on the Result and the
// output degrades to the best text available.
package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/placeholder"
	"github.com/conneroisu/folio/internal/renderer"
	"github.com/conneroisu/folio/internal/scanner"
	"github.com/conneroisu/folio/internal/templating"
	"github.com/conneroisu/folio/internal/variables"
)

// Input is one document version with its bindings.
type Input struct {
	Text      string
	Variables *variables.Set
	Images    *images.Index
}

// Result holds every intermediate stage so callers can inspect or export
// any of them.
type Result struct {
	Generation uint64
	// Expanded is the text after template expansion.
	Expanded string
	// Rewritten has component spans replaced by markers.
	Rewritten string
	// Resolved is Rewritten with local image references embedded.
	Resolved string
	// Output is the renderer's output, or the fallback text when rendering
	// failed or no renderer is configured.
	Output      string
	Components  *placeholder.ComponentMap
	Images      images.MatchStatus
	Diagnostics []*errors.Diagnostic
	Duration    time.Duration
}

// HasDiagnostics reports whether any stage reported a problem.
func (r *Result) HasDiagnostics() bool {
	return r != nil && len(r.Diagnostics) > 0
}

// Pipeline runs the stages. It is safe for concurrent use.
type Pipeline struct {
	engine     *templating.Engine
	scanner    *scanner.ComponentScanner
	renderer   renderer.Renderer
	logger     logging.Logger
	generation atomic.Uint64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(logger) }
}

// WithRenderer sets the final stage. Without one, Output is the resolved
// markdown with components restored to their source text.
func WithRenderer(r renderer.Renderer) Option {
	return func(p *Pipeline) { p.renderer = r }
}

// WithScanner replaces the default component scanner.
func WithScanner(s *scanner.ComponentScanner) Option {
	return func(p *Pipeline) { p.scanner = s }
}

// New creates a pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: logging.NopLogger{}}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("pipeline")
	if p.engine == nil {
		p.engine = templating.NewEngine(p.logger)
	}
	if p.scanner == nil {
		p.scanner = scanner.NewComponentScanner(scanner.WithLogger(p.logger))
	}
	return p
}

// Renderer returns the configured renderer, which may be nil.
func (p *Pipeline) Renderer() renderer.Renderer {
	return p.renderer
}

// NextGeneration reserves the next generation number.
func (p *Pipeline) NextGeneration() uint64 {
	return p.generation.Add(1)
}

// Generation returns the most recently reserved generation.
func (p *Pipeline) Generation() uint64 {
	return p.generation.Load()
}

// Run processes in under a fresh generation.
func (p *Pipeline) Run(ctx context.Context, in Input) *Result {
	return p.RunGeneration(ctx, p.NextGeneration(), in)
}

// RunGeneration processes in under a generation reserved earlier with
// NextGeneration.
func (p *Pipeline) RunGeneration(ctx context.Context, gen uint64, in Input) (result *Result) {
	start := time.Now()
	result = &Result{Generation: gen, Expanded: in.Text, Rewritten: in.Text, Resolved: in.Text, Output: in.Text}
	diags := errors.NewCollector()

	defer func() {
		if r := recover(); r != nil {
			diags.Add(errors.New(errors.KindRenderFailed, errors.CodeRenderFailed, fmt.Sprintf("pipeline stage panicked: %v", r)))
			result.Output = renderer.Fallback(result.Resolved, result.Components)
		}
		result.Diagnostics = diags.All()
		result.Duration = time.Since(start)
		p.logDiagnostics(ctx, result, diags)
	}()

	expanded := p.engine.Expand(in.Text, in.Variables)
	result.Expanded = expanded.Text
	diags.Add(expanded.Diagnostics...)

	scan := p.scanner.Scan(result.Expanded)
	diags.Add(scan.Diagnostics...)

	rewritten, cm, rewriteDiags := placeholder.Rewrite(result.Expanded, scan.Descriptors, placeholder.WithGeneration(gen))
	result.Rewritten = rewritten
	result.Components = cm
	diags.Add(rewriteDiags...)

	result.Resolved = result.Rewritten
	if in.Images != nil {
		result.Resolved, result.Images = images.ResolveReferences(result.Rewritten, in.Images)
	}

	result.Output = renderer.Fallback(result.Resolved, cm)
	if p.renderer == nil {
		return result
	}

	out, err := p.renderer.Render(ctx, result.Resolved, cm)
	if err != nil {
		diags.AddError(fmt.Errorf("%s renderer failed: %w", p.renderer.Format(), err),
			errors.KindRenderFailed, errors.CodeRenderFailed)
		return result
	}
	result.Output = out
	return result
}

func (p *Pipeline) logDiagnostics(ctx context.Context, result *Result, diags *errors.Collector) {
	for _, d := range result.Diagnostics {
		p.logger.Warn(ctx, d.Cause, d.Message, "kind", d.Kind, "code", d.Code, "generation", result.Generation)
	}
	p.logger.Debug(ctx, "pipeline run",
		"generation", result.Generation,
		"diagnostic_kinds", diags.Kinds(),
		"components", result.Components.Len(),
		"images_matched", result.Images.Matched,
		"images_unmatched", result.Images.Unmatched,
		"duration", result.Duration)
}
