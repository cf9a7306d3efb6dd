package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pders01/texmath/internal/cache"
	"github.com/pders01/texmath/internal/latex"
	"github.com/pders01/texmath/internal/logging"
	"github.com/pders01/texmath/internal/metrics"
	"github.com/pders01/texmath/internal/models"
	"github.com/pders01/texmath/internal/runner"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config controls how the renderer drives the tools and names its output
type Config struct {
	Tools  latex.Tools
	DPI    int
	Suffix string
	Hash   models.HashAlgorithm
	// ReportBaseline asks dvipng for the depth and names cached files by
	// it. Without it nothing is looked up and images are named {id}.png.
	ReportBaseline bool
	// UseCache enables the lookup before rendering into a directory
	UseCache bool
	// TempDir holds the latex sources and scratch images, OS default when empty
	TempDir string
	// Timeout bounds a single render, zero means no limit
	Timeout time.Duration
}

// DefaultConfig renders at 120 dpi with latex and dvipng from PATH
func DefaultConfig() Config {
	return Config{
		Tools:          latex.DefaultTools(),
		DPI:            models.DefaultDPI,
		Suffix:         models.DefaultSuffix,
		Hash:           models.HashMD5,
		ReportBaseline: true,
		UseCache:       true,
	}
}

// StoreFunc returns the cache store for a target directory
type StoreFunc func(dir string) cache.Store

// Request is one render call
type Request struct {
	Expression string
	// Output is either an existing directory, in which case the image is
	// cached there under a generated name, or the path of the image file
	Output  string
	DPI     int
	Display bool
}

// Result describes the rendered image
type Result struct {
	Identity string `json:"identity"`
	Path     string `json:"path"`
	Baseline int    `json:"baseline"`
	// BaselineKnown is false when the baseline was not reported
	BaselineKnown bool `json:"baseline_known"`
	Cached        bool `json:"cached"`
}

// Renderer turns math sources into images
type Renderer struct {
	cfg    Config
	runner runner.Runner
	stores StoreFunc

	inflight singleflight.Group
}

// New creates a renderer. A nil stores uses plain directory stores.
func New(cfg Config, r runner.Runner, stores StoreFunc) *Renderer {
	if cfg.DPI <= 0 {
		cfg.DPI = models.DefaultDPI
	}
	if cfg.Suffix == "" {
		cfg.Suffix = models.DefaultSuffix
	}
	if cfg.Tools.Latex == "" || cfg.Tools.Dvipng == "" {
		defaults := latex.DefaultTools()
		if cfg.Tools.Latex == "" {
			cfg.Tools.Latex = defaults.Latex
		}
		if cfg.Tools.Dvipng == "" {
			cfg.Tools.Dvipng = defaults.Dvipng
		}
	}
	if stores == nil {
		suffix := cfg.Suffix
		stores = func(dir string) cache.Store {
			return cache.NewLoggingStore(cache.NewDirStore(afero.NewOsFs(), dir, suffix), "dir")
		}
	}
	return &Renderer{cfg: cfg, runner: r, stores: stores}
}

// Source builds the math source a request describes
func (r *Renderer) Source(req Request) *models.MathSource {
	dpi := req.DPI
	if dpi == 0 {
		dpi = r.cfg.DPI
	}
	return models.NewMathSource(req.Expression, dpi, req.Display).WithHash(r.cfg.Hash)
}

// Render produces the image for req and returns where it is and its
// baseline. Rendering into a directory returns a cached image when one
// exists for the same source; concurrent calls for the same source and
// directory share one render.
func (r *Renderer) Render(ctx context.Context, req Request) (Result, error) {
	src := r.Source(req)
	if err := src.Validate(); err != nil {
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	id := src.Identity()
	ctx = logging.WithFields(ctx,
		zap.String("render_id", uuid.NewString()),
		zap.String("identity", id),
	)

	var (
		res Result
		err error
	)
	if isDir(req.Output) {
		res, err = r.sharedRenderToDir(ctx, src, req.Output)
	} else {
		fileCtx, cancel := r.withTimeout(ctx)
		res, err = r.renderToFile(fileCtx, src, req.Output)
		cancel()
	}

	switch {
	case err != nil:
		metrics.RendersTotal.WithLabelValues("error").Inc()
		logging.L(ctx).Warn("render failed", zap.Error(err))
	case res.Cached:
		metrics.RendersTotal.WithLabelValues("cached").Inc()
	default:
		metrics.RendersTotal.WithLabelValues("rendered").Inc()
	}
	return res, err
}

// Lookup reports the cached image for req without rendering. req.Output
// must be a directory.
func (r *Renderer) Lookup(ctx context.Context, req Request) (Result, bool, error) {
	src := r.Source(req)
	if err := src.Validate(); err != nil {
		return Result{}, false, err
	}
	if !isDir(req.Output) {
		return Result{}, false, fmt.Errorf("not a directory: %s", req.Output)
	}

	id := src.Identity()
	e, ok, err := r.stores(req.Output).Lookup(ctx, id)
	if err != nil || !ok {
		return Result{}, false, err
	}
	return Result{Identity: id, Path: e.Path, Baseline: e.Baseline, BaselineKnown: true, Cached: true}, true, nil
}

// sharedRenderToDir joins the in-flight render of the same source into the
// same directory, or starts one. The shared render is detached from any
// single caller's cancellation and bounded by the configured timeout only;
// each caller stops waiting when its own ctx is done.
func (r *Renderer) sharedRenderToDir(ctx context.Context, src *models.MathSource, dir string) (Result, error) {
	ch := r.inflight.DoChan(dir+"\x00"+src.Identity(), func() (interface{}, error) {
		shared, cancel := r.withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		return r.renderToDir(shared, src, dir)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return Result{}, out.Err
		}
		return out.Val.(Result), nil
	}
}

func (r *Renderer) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Renderer) renderToDir(ctx context.Context, src *models.MathSource, dir string) (Result, error) {
	id := src.Identity()
	logger := logging.L(ctx)
	store := r.stores(dir)

	if r.cfg.ReportBaseline && r.cfg.UseCache {
		e, ok, err := store.Lookup(ctx, id)
		if err != nil {
			// best-effort, render anyway
			logger.Warn("cache lookup failed", zap.Error(err))
		}
		if ok {
			src.SetBaseline(e.Baseline)
			return Result{Identity: id, Path: e.Path, Baseline: e.Baseline, BaselineKnown: true, Cached: true}, nil
		}
	}

	scratch, err := os.CreateTemp(r.cfg.TempDir, "texmath-*"+r.cfg.Suffix)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create scratch image: %w", err)
	}
	scratchPath := scratch.Name()
	scratch.Close()
	defer removeIfExists(scratchPath)

	if err := r.typeset(ctx, src, scratchPath); err != nil {
		return Result{}, err
	}

	if !r.cfg.ReportBaseline {
		path := filepath.Join(dir, id+r.cfg.Suffix)
		if err := copyFile(scratchPath, path); err != nil {
			return Result{}, err
		}
		return Result{Identity: id, Path: path}, nil
	}

	return r.persist(ctx, store, src, scratchPath)
}

// persist stores the scratch image under the generated name of src. It
// fails with models.ErrBaselineNotSet when src has no baseline yet.
func (r *Renderer) persist(ctx context.Context, store cache.Store, src *models.MathSource, scratchPath string) (Result, error) {
	name, err := src.GeneratedFilename(r.cfg.Suffix)
	if err != nil {
		return Result{}, fmt.Errorf("failed to name cached image: %w", err)
	}
	baseline, ok := src.Baseline()
	if !ok {
		return Result{}, models.ErrBaselineNotSet
	}

	f, err := os.Open(scratchPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open scratch image: %w", err)
	}
	defer f.Close()

	id := src.Identity()
	e, err := store.Put(ctx, id, baseline, f)
	if err != nil {
		return Result{}, err
	}

	logging.L(ctx).Info("rendered", zap.String("name", name), zap.String("path", e.Path), zap.Int("baseline", baseline))
	return Result{Identity: id, Path: e.Path, Baseline: baseline, BaselineKnown: true}, nil
}

func (r *Renderer) renderToFile(ctx context.Context, src *models.MathSource, path string) (Result, error) {
	if err := r.typeset(ctx, src, path); err != nil {
		return Result{}, err
	}

	res := Result{Identity: src.Identity(), Path: path}
	if baseline, ok := src.Baseline(); ok {
		res.Baseline = baseline
		res.BaselineKnown = true
	}

	logging.L(ctx).Info("rendered", zap.String("path", path), zap.Int("baseline", res.Baseline))
	return res, nil
}

// typeset runs latex then dvipng, writing the image to outPath and
// recording the baseline on src when it is reported
func (r *Renderer) typeset(ctx context.Context, src *models.MathSource, outPath string) error {
	logger := logging.L(ctx)
	start := time.Now()

	absOut, err := filepath.Abs(outPath)
	if err != nil {
		return fmt.Errorf("failed to resolve output path: %w", err)
	}

	set, err := latex.CreateSource(r.cfg.TempDir, latex.Document(src))
	if err != nil {
		return err
	}
	defer func() {
		if err := set.Remove(); err != nil {
			logger.Debug("failed to remove latex artifacts", zap.Error(err))
		}
	}()

	out, err := r.run(ctx, "latex", r.cfg.Tools.LatexCommand(set))
	if err != nil {
		return err
	}
	if len(out.Stderr) > 0 || !fileExists(set.DVI()) {
		return &TypesetError{Stderr: string(out.Stderr), Diagnostics: diagnostics(out.Stdout)}
	}

	out, err = r.run(ctx, "dvipng", r.cfg.Tools.DvipngCommand(set, src.DPI, absOut, r.cfg.ReportBaseline))
	if err != nil {
		return err
	}

	if r.cfg.ReportBaseline {
		baseline, err := latex.ParseDepth(out.Stdout)
		if err != nil {
			return fmt.Errorf("failed to read baseline: %w", err)
		}
		src.SetBaseline(baseline)
	} else if !fileExists(absOut) {
		return fmt.Errorf("dvipng produced no image: %s", out.Stderr)
	}

	metrics.RenderDurationSeconds.Observe(time.Since(start).Seconds())
	return nil
}

func (r *Renderer) run(ctx context.Context, tool string, c runner.Command) (runner.Output, error) {
	out, err := r.runner.Run(ctx, c)
	metrics.ToolDurationSeconds.WithLabelValues(tool).Observe(out.Duration.Seconds())

	logging.L(ctx).Debug("tool finished",
		zap.String("tool", tool),
		zap.String("command", c.String()),
		zap.Int("exit_code", out.ExitCode),
		zap.Duration("duration", out.Duration),
		zap.Error(err),
	)
	if err != nil {
		return out, fmt.Errorf("failed to run %s: %w", tool, err)
	}
	return out, nil
}

// Render renders expression with the default configuration
func Render(ctx context.Context, expression, output string, dpi int, display bool) (string, int, error) {
	res, err := New(DefaultConfig(), runner.Exec{}, nil).Render(ctx, Request{
		Expression: expression,
		Output:     output,
		DPI:        dpi,
		Display:    display,
	})
	if err != nil {
		return "", 0, err
	}
	return res.Path, res.Baseline, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.DefaultLogger().Debug("failed to remove scratch file", zap.String("path", path), zap.Error(err))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy to %s: %w", dst, err)
	}
	return out.Close()
}
