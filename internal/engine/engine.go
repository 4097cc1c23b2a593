// Package engine is the compilation front door shared by the CLI, the
// language server, the MCP tools and the HTTP server. It adds caching,
// telemetry and run recording around portlang.CompileWith.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/victortavares4/dsl-investments/internal/cache"
	"github.com/victortavares4/dsl-investments/internal/store"
	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/observability"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/validator"
)

// ErrSourceTooLarge is returned for documents above Options.MaxSourceBytes.
var ErrSourceTooLarge = errors.New("document exceeds maximum size")

// Outcome labels shared by metrics, the run store and every front end.
const (
	OutcomeValid    = observability.OutcomeValid
	OutcomeWarnings = observability.OutcomeWarnings
	OutcomeInvalid  = observability.OutcomeInvalid
	OutcomeFatal    = observability.OutcomeFatal
)

const spanCompile = "portlang.compile"

// Options configure a Runner. Zero-value fields disable the matching feature.
type Options struct {
	Thresholds validator.Thresholds

	// CacheSize bounds the number of cached compilations. Zero disables caching.
	CacheSize int

	// MaxSourceBytes rejects larger documents. Zero means unlimited.
	MaxSourceBytes int

	Store   store.Store
	Tracer  trace.Tracer
	Metrics *observability.CompileMetrics
	Logger  *slog.Logger
}

// Outcome is the result of one compilation.
type Outcome struct {
	RunID  string
	Name   string
	Hash   string
	Bytes  int
	Result *portlang.Result

	// Err is the fatal lexical or syntax error, if any.
	Err         error
	Diagnostics []portlang.Diagnostic
	CacheHit    bool
	Duration    time.Duration
}

// Status returns one of the Outcome* labels.
func (o *Outcome) Status() string {
	switch {
	case o.Err != nil:
		return OutcomeFatal
	case !o.Result.Valid():
		return OutcomeInvalid
	case len(o.Result.Report.Warnings) > 0:
		return OutcomeWarnings
	default:
		return OutcomeValid
	}
}

// Blocked reports whether generators must refuse this outcome.
func (o *Outcome) Blocked() bool {
	status := o.Status()

	return status == OutcomeFatal || status == OutcomeInvalid
}

// Counts returns the number of error and warning diagnostics.
func (o *Outcome) Counts() (errs, warnings int) {
	for _, d := range o.Diagnostics {
		if d.IsError() {
			errs++
		} else {
			warnings++
		}
	}

	return errs, warnings
}

// Document builds the export document for a generatable outcome.
func (o *Outcome) Document(meta export.Meta) (*export.Document, error) {
	if o.Err != nil {
		return nil, fmt.Errorf("%w: %w", portlang.ErrBlocked, o.Err)
	}

	if meta.ID == "" {
		meta.ID = o.RunID
	}

	doc, err := export.NewDocument(o.Result, meta)
	if err != nil {
		return nil, fmt.Errorf("build document: %w", err)
	}

	return doc, nil
}

type compiled struct {
	result *portlang.Result
	err    error
}

// Runner compiles documents. It is safe for concurrent use.
type Runner struct {
	opts   Options
	cache  *cache.LRU[string, compiled]
	tracer trace.Tracer
	logger *slog.Logger
}

// New builds a Runner.
func New(opts Options) (*Runner, error) {
	r := &Runner{
		opts:   opts,
		tracer: opts.Tracer,
		logger: opts.Logger,
	}

	if r.tracer == nil {
		r.tracer = nooptrace.NewTracerProvider().Tracer("")
	}

	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	if opts.CacheSize > 0 {
		lru, err := cache.New(cache.WithMaxEntries[string, compiled](opts.CacheSize))
		if err != nil {
			return nil, fmt.Errorf("create compile cache: %w", err)
		}

		r.cache = lru
	}

	return r, nil
}

// Thresholds returns the validation thresholds in use.
func (r *Runner) Thresholds() validator.Thresholds {
	return r.opts.Thresholds
}

// Store returns the run store, or nil when recording is disabled.
func (r *Runner) Store() store.Store {
	return r.opts.Store
}

// CacheStats reports compile cache usage. Zero when caching is disabled.
func (r *Runner) CacheStats() cache.Stats {
	if r.cache == nil {
		return cache.Stats{}
	}

	return r.cache.Stats()
}

// Compile runs the pipeline on source. Lexical, syntax and validation problems
// are reported in the Outcome; the returned error covers oversized input and
// run recording failures.
func (r *Runner) Compile(ctx context.Context, name, source string) (*Outcome, error) {
	if r.opts.MaxSourceBytes > 0 && len(source) > r.opts.MaxSourceBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrSourceTooLarge, len(source), r.opts.MaxSourceBytes)
	}

	start := time.Now()
	out := &Outcome{
		RunID: uuid.NewString(),
		Name:  name,
		Hash:  r.hash(source),
		Bytes: len(source),
	}

	ctx = observability.WithRun(ctx, out.RunID, name)

	ctx, span := r.tracer.Start(ctx, spanCompile,
		trace.WithAttributes(
			attribute.String("portlang.document", name),
			attribute.Int("portlang.bytes", out.Bytes),
		),
	)
	defer span.End()

	entry, hit := r.lookup(out.Hash)
	if !hit {
		entry.result, entry.err = portlang.CompileWith(source, portlang.Options{Thresholds: r.opts.Thresholds})
		r.remember(out.Hash, entry)
	}

	out.Result = entry.result
	out.Err = entry.err
	out.CacheHit = hit
	out.Diagnostics = portlang.Diagnostics(entry.result, entry.err)
	out.Duration = time.Since(start)

	errs, warnings := out.Counts()
	status := out.Status()

	span.SetAttributes(
		attribute.String("portlang.outcome", status),
		attribute.Bool("portlang.cache_hit", hit),
		attribute.Int("portlang.errors", errs),
		attribute.Int("portlang.warnings", warnings),
	)

	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "fatal")
	}

	var stage string
	if out.Err != nil {
		stage = string(out.Diagnostics[0].Stage)
	}

	r.opts.Metrics.RecordCompile(ctx, observability.CompileStats{
		Outcome:  status,
		Stage:    stage,
		Errors:   errs,
		Warnings: warnings,
		Bytes:    out.Bytes,
		CacheHit: hit,
	})

	r.logger.DebugContext(ctx, "compiled document",
		"outcome", status,
		"errors", errs,
		"warnings", warnings,
		"cache_hit", hit,
		"duration", out.Duration,
	)

	err := r.record(ctx, out)
	if err != nil {
		span.RecordError(err)

		return out, err
	}

	return out, nil
}

func (r *Runner) lookup(key string) (compiled, bool) {
	if r.cache == nil {
		return compiled{}, false
	}

	return r.cache.Get(key)
}

func (r *Runner) remember(key string, entry compiled) {
	if r.cache != nil {
		r.cache.Put(key, entry)
	}
}

func (r *Runner) record(ctx context.Context, out *Outcome) error {
	if r.opts.Store == nil {
		return nil
	}

	errs, warnings := out.Counts()

	run := &store.Run{
		ID:          out.RunID,
		Document:    out.Name,
		Outcome:     out.Status(),
		Errors:      errs,
		Warnings:    warnings,
		Bytes:       out.Bytes,
		SourceHash:  out.Hash,
		Duration:    out.Duration,
		Diagnostics: out.Diagnostics,
	}

	if out.Result != nil && out.Result.Portfolio != nil {
		run.Portfolio = out.Result.Portfolio.Name
	}

	err := r.opts.Store.Record(ctx, run)
	if err != nil {
		r.logger.WarnContext(ctx, "record run failed", "error", err)

		return fmt.Errorf("record run: %w", err)
	}

	return nil
}

// hash keys the cache on the source and the thresholds it was validated with.
func (r *Runner) hash(source string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%+v\x00", r.opts.Thresholds)
	h.Write([]byte(source))

	return hex.EncodeToString(h.Sum(nil))
}
