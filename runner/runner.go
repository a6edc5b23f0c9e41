// Copyright 2026 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package runner instruments Starlark programs and executes them,
// collecting the types of the values bound to their variables.
//
// A run has two phases. Prepare parses the entry file, rewrites its
// assignments to report to a registry, and writes the regenerated
// source beside the entry. Run then executes the regenerated file on a
// fresh Starlark thread whose predeclared environment holds the
// recording function.
//
// A program that fails at run time still produces a Result: its error
// is Result.Err, and the observations made before the failure are kept.
// Only failures to prepare the program are returned as errors.
package runner // import "github.com/typetrace/typetrace/runner"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"golang.org/x/sync/errgroup"

	"github.com/typetrace/typetrace/instrument"
	"github.com/typetrace/typetrace/internal/config"
	"github.com/typetrace/typetrace/internal/typestore"
	"github.com/typetrace/typetrace/printer"
	"github.com/typetrace/typetrace/registry"
)

const tracerName = "github.com/typetrace/typetrace/runner"

// A ParseError reports an entry file that is not valid Starlark.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parsing %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// A Program is an entry file in instrumented form.
type Program struct {
	Entry  string // path of the original file
	Output string // path of the regenerated file
	Module string // module name used in qualified names
	Source []byte // regenerated text
	Report *instrument.Report
}

// A Result is the outcome of one run.
type Result struct {
	ID       string
	Program  *Program
	Globals  starlark.StringDict
	Types    registry.Snapshot // observations of this run only
	Err      error             // failure of the program itself
	Steps    uint64
	Duration time.Duration
}

// Failed reports whether the program raised an error or was cancelled.
func (r *Result) Failed() bool { return r.Err != nil }

// A Driver runs programs. Its fields must not change once it is in use;
// a Driver is otherwise safe for concurrent use.
type Driver struct {
	Registry *registry.Registry
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Config   config.Config
	Stdout   io.Writer        // destination of print; os.Stdout if nil
	Store    *typestore.Store // optional; receives every run's observations

	printMu sync.Mutex
}

// An Option configures a Driver.
type Option func(*Driver)

// WithRegistry sets the registry that receives observations.
func WithRegistry(r *registry.Registry) Option { return func(d *Driver) { d.Registry = r } }
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.Logger = l } }
func WithTracer(t trace.Tracer) Option { return func(d *Driver) { d.Tracer = t } }
func WithConfig(c config.Config) Option { return func(d *Driver) { d.Config = c } }
func WithStdout(w io.Writer) Option { return func(d *Driver) { d.Stdout = w } }
func WithStore(s *typestore.Store) Option { return func(d *Driver) { d.Store = s } }

// New returns a driver recording into the default registry, with the
// default configuration, unless options say otherwise. It installs the
// configured dialect in the resolver.
//
// The resolver's dialect flags are process-wide. New must not be called
// while another Driver is preparing or running a program; create every
// driver first, or give them all the same dialect.
func New(opts ...Option) *Driver {
	d := &Driver{
		Registry: registry.Default(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tracer:   otel.Tracer(tracerName),
		Config:   config.Default(),
		Stdout:   os.Stdout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Config.Dialect.Apply()
	return d
}

// Prepare instruments the entry file at path and writes the result
// beside it.
func (d *Driver) Prepare(ctx context.Context, path string) (*Program, error) {
	_, span := d.Tracer.Start(ctx, "runner.Prepare", trace.WithAttributes(attribute.String("entry", path)))
	defer span.End()

	prog, err := d.prepare(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("sites", len(prog.Report.Sites)))
	return prog, nil
}

func (d *Driver) prepare(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entry: %w", err)
	}
	f, err := syntax.Parse(path, src, 0)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	module := d.Config.ModuleName(path)
	out, report := instrument.File(f, instrument.Options{
		Module: module,
		Sep:    d.Config.Separator,
		Func:   d.Config.RecordFunc,
	})
	pc := printer.Config{AlignLines: d.Config.AlignLines}
	text := []byte(pc.String(out))

	output := d.Config.OutputPath(path)
	if err := os.WriteFile(output, text, 0o644); err != nil {
		return nil, fmt.Errorf("writing instrumented program: %w", err)
	}
	sitesTotal.Add(float64(len(report.Sites)))
	d.Logger.Debug("program instrumented",
		slog.String("entry", path),
		slog.String("output", output),
		slog.Int("sites", len(report.Sites)),
		slog.Int("skipped", len(report.Skipped)))

	return &Program{
		Entry:  path,
		Output: output,
		Module: module,
		Source: text,
		Report: report,
	}, nil
}

// Run prepares the entry file at path and executes it.
//
// Cancelling ctx, or exceeding the configured timeout or step limit,
// stops the program; the run's Result.Err then reports the cancellation.
func (d *Driver) Run(ctx context.Context, path string) (*Result, error) {
	id := uuid.NewString()
	ctx, span := d.Tracer.Start(ctx, "runner.Run", trace.WithAttributes(
		attribute.String("entry", path),
		attribute.String("run.id", id)))
	defer span.End()
	start := time.Now()
	logger := d.Logger.With(slog.String("run", id), slog.String("entry", path))

	prog, err := d.Prepare(ctx, path)
	if err != nil {
		runsTotal.WithLabelValues(outcomeInvalid).Inc()
		span.SetStatus(codes.Error, "invalid program")
		logger.Warn("cannot prepare program", slog.Any("error", err))
		return nil, err
	}

	res := d.execute(ctx, id, prog)
	res.Duration = time.Since(start)
	runDuration.Observe(res.Duration.Seconds())

	outcome := outcomeOK
	switch {
	case res.Err == nil:
	case errors.Is(res.Err, ErrCancelled):
		outcome = outcomeCancelled
	default:
		outcome = outcomeFailed
	}
	runsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("bindings", len(res.Types)),
		attribute.Int64("steps", int64(res.Steps)))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, outcome)
		logger.Info("program failed", slog.String("outcome", outcome), slog.Any("error", res.Err))
	} else {
		logger.Info("program finished", slog.Int("bindings", len(res.Types)), slog.Duration("duration", res.Duration))
	}

	if d.Store != nil {
		if err := d.persist(ctx, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ErrCancelled matches the Result.Err of a program stopped by
// cancellation, timeout or step limit rather than by an error of its own.
var ErrCancelled = errors.New("program cancelled")

type cancelledError struct {
	cause error
}

func (e *cancelledError) Error() string { return fmt.Sprintf("%v: %v", ErrCancelled, e.cause) }
func (e *cancelledError) Is(target error) bool { return target == ErrCancelled }
func (e *cancelledError) Unwrap() error { return e.cause }

func (d *Driver) execute(ctx context.Context, id string, prog *Program) *Result {
	ctx, span := d.Tracer.Start(ctx, "runner.execute")
	defer span.End()

	if d.Config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Config.Timeout)
		defer cancel()
	}

	// Observations always go to a registry private to the run, so that
	// the result reports only this run. Unless the configuration asks
	// for a fresh registry, they also go to the shared one as they
	// happen, for concurrent readers.
	own := registry.New()
	sinks := []instrument.Sink{own}
	if !d.Config.FreshRegistry {
		sinks = append(sinks, d.Registry)
	}

	thread := &starlark.Thread{
		Name:  "typetrace " + id,
		Print: d.print,
		Load:  MakeLoad(filepath.Dir(prog.Output)),
	}
	thread.SetLocal("context", ctx)
	if d.Config.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(d.Config.MaxSteps)
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	predeclared := Predeclared()
	fn := d.Config.RecordFunc
	if fn == "" {
		fn = instrument.DefaultFunc
	}
	predeclared[fn] = instrument.Recorder(tee(sinks), fn)

	globals, err := starlark.ExecFile(thread, prog.Output, prog.Source, predeclared)
	steps := thread.ExecutionSteps()
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = &cancelledError{cause: context.Cause(ctx)}
		case d.Config.MaxSteps > 0 && steps >= d.Config.MaxSteps:
			err = &cancelledError{cause: fmt.Errorf("exceeded %d steps", d.Config.MaxSteps)}
		}
	}

	snap := own.Types()
	if d.Config.FreshRegistry {
		d.Registry.Merge(snap)
	}
	return &Result{
		ID:      id,
		Program: prog,
		Globals: globals,
		Types:   snap,
		Err:     err,
		Steps:   steps,
	}
}

func (d *Driver) print(_ *starlark.Thread, msg string) {
	w := d.Stdout
	if w == nil {
		w = os.Stdout
	}
	d.printMu.Lock()
	defer d.printMu.Unlock()
	fmt.Fprintln(w, msg)
}

func (d *Driver) persist(ctx context.Context, res *Result) error {
	if err := d.Store.Save(ctx, res.Types); err != nil {
		return fmt.Errorf("persisting run %s: %w", res.ID, err)
	}
	rec := typestore.RunRecord{
		ID:       res.ID,
		Entry:    res.Program.Entry,
		Started:  time.Now().Add(-res.Duration),
		Duration: res.Duration,
		Failed:   res.Failed(),
		Bindings: len(res.Types),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := d.Store.Record(ctx, rec); err != nil {
		return fmt.Errorf("recording run %s: %w", res.ID, err)
	}
	return nil
}

// tee fans observations out to several sinks and counts them.
type tee []instrument.Sink

func (t tee) AddType(name string, k registry.Kind) {
	observationsTotal.Inc()
	for _, s := range t {
		s.AddType(name, k)
	}
}

// A Job is a run in progress.
type Job struct {
	done chan struct{}
	res  *Result
	err  error
}

// Start begins running the entry file at path on its own goroutine.
func (d *Driver) Start(ctx context.Context, path string) *Job {
	j := &Job{done: make(chan struct{})}
	go func() {
		defer close(j.done)
		j.res, j.err = d.Run(ctx, path)
	}()
	return j
}

// Done is closed when the run is over.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait waits for the run to end and returns what Run returned.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	return j.res, j.err
}

// RunAll runs the entry files at paths concurrently, at most
// Config.Parallel at a time, all recording into the driver's registry.
// Results are in the order of paths; the result of an entry that could
// not be prepared is nil, and its error is part of the returned error.
func (d *Driver) RunAll(ctx context.Context, paths []string) ([]*Result, error) {
	results := make([]*Result, len(paths))
	errs := make([]error, len(paths))
	var g errgroup.Group
	if d.Config.Parallel > 0 {
		g.SetLimit(d.Config.Parallel)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			results[i], errs[i] = d.Run(ctx, path)
			return nil
		})
	}
	g.Wait() // goroutines report through errs
	return results, errors.Join(errs...)
}
