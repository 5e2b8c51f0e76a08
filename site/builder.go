// Package site turns directory of page descriptions and assets into static
// site, regenerating only what changed since the previous build.
package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mksite/config"
	"mksite/media"
	"mksite/page"
	"mksite/row"
)

// Stats counts what the last build did with every input file.
type Stats struct {
	Rendered int
	Copied   int
	Scaled   int
	Skipped  int
	Failed   int
}

// Builder performs builds. It may be reused, but not concurrently.
type Builder struct {
	cfg        *config.SiteConfig
	log        *zap.Logger
	rpt        *config.Report
	classifier row.Classifier
	// per build, see Build
	cache      *classifierCache
	scaler     *media.Scaler
	renderer   *row.Renderer

	rendered, copied, scaled, skipped atomic.Int64
	failed                            int
}

type Option func(*Builder)

// WithReport stores copies of failed inputs and dumps of parsed pages in
// debug report.
func WithReport(rpt *config.Report) Option {
	return func(b *Builder) { b.rpt = rpt }
}

// WithClassifier replaces media classifier, normally the one using imaging
// and ffprobe.
func WithClassifier(c row.Classifier) Option {
	return func(b *Builder) { b.classifier = c }
}

// New prepares builder for site configuration.
func New(cfg *config.SiteConfig, log *zap.Logger, options ...Option) (*Builder, error) {
	renderer, err := row.NewRenderer(row.NewTextRenderer(cfg.Markdown, cfg.Sanitize), cfg.Video.EmbedURL)
	if err != nil {
		return nil, err
	}
	log = log.Named("build")
	b := &Builder{
		cfg:        cfg,
		log:        log,
		classifier: media.NewClassifier(cfg.Video.FFProbe),
		scaler:     &media.Scaler{JPEGQuality: cfg.Images.JPEGQuality, FFMpeg: cfg.Video.FFMpeg, Log: log},
		renderer:   renderer,
	}
	for _, o := range options {
		o(b)
	}
	return b, nil
}

// Stats returns counters of the last build.
func (b *Builder) Stats() Stats {
	return Stats{
		Rendered: int(b.rendered.Load()),
		Copied:   int(b.copied.Load()),
		Scaled:   int(b.scaled.Load()),
		Skipped:  int(b.skipped.Load()),
		Failed:   b.failed,
	}
}

func (b *Builder) workers() int {
	if b.cfg.Workers > 0 {
		return b.cfg.Workers
	}
	return runtime.NumCPU()
}

type kind int

const (
	kindAsset kind = iota
	kindMedia
	kindPage
	kindIndex
)

// task is single input file with everything needed to process it.
type task struct {
	src  string
	rel  string
	kind kind
	out  string
	// relative path from output to site root
	root    string
	modTime time.Time
}

// outputs lists every path task writes to.
func (t *task) outputs() []string {
	if t.kind != kindMedia {
		return []string{t.out}
	}
	out := []string{t.out}
	for _, v := range media.Variants {
		out = append(out, media.VariantPath(t.out, v))
	}
	return out
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return true
	}
	return false
}

func plan(src, rel, dst string, info fs.FileInfo) *task {
	t := &task{src: src, rel: rel, out: filepath.Join(dst, rel), modTime: info.ModTime()}
	if dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." {
		t.root = strings.Repeat("../", strings.Count(dir, "/")+1)
	}
	switch {
	case isYAML(rel):
		name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		t.out = filepath.Join(dst, filepath.Dir(rel), name+".html")
		t.kind = kindPage
		if name == "index" {
			t.kind = kindIndex
		}
	case media.IsTranscodable(rel):
		t.kind = kindMedia
	}
	return t
}

type failure struct {
	file string
	err  error
}

// Build mirrors src into dst. Failures of individual files are logged and
// reported together at the end, path conflicts stop the build immediately.
func (b *Builder) Build(ctx context.Context, src, dst string) (err error) {
	if src, err = filepath.Abs(src); err != nil {
		return err
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input directory is not accessible: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("input is not a directory: %s", src)
	}
	if src == dst {
		return errors.New("input and output directories must differ")
	}
	if err := ensureDir(dst); err != nil {
		return err
	}

	b.rendered.Store(0)
	b.copied.Store(0)
	b.scaled.Store(0)
	b.skipped.Store(0)
	b.failed = 0
	b.cache = newClassifierCache(b.classifier)

	log := b.log.With(zap.String("run", uuid.NewString()))
	log.Info("Build starting", zap.String("source", src), zap.String("destination", dst), zap.Int("workers", b.workers()))
	defer func(start time.Time) {
		s := b.Stats()
		log.Info("Build completed", zap.Duration("elapsed", time.Since(start)),
			zap.Int("rendered", s.Rendered), zap.Int("copied", s.Copied), zap.Int("scaled", s.Scaled),
			zap.Int("skipped", s.Skipped), zap.Int("failed", s.Failed))
	}(time.Now())

	var (
		mu       sync.Mutex
		failures []failure
	)
	fail := func(t *task, err error) {
		log.Error("Unable to process file", zap.String("file", t.src), zap.Error(err))
		if er := b.rpt.StoreCopy(filepath.ToSlash(filepath.Join("failed", t.rel)), t.src); er != nil {
			log.Debug("Unable to store failed file in report", zap.String("file", t.src), zap.Error(er))
		}
		mu.Lock()
		failures = append(failures, failure{file: t.rel, err: fmt.Errorf("%s: %w", t.rel, err)})
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())

	// walker is the only writer, workers never see the map
	claims := make(map[string]string)

	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		rel, er := filepath.Rel(src, path)
		if er != nil {
			return er
		}
		if err != nil {
			if path == src {
				return err
			}
			fail(&task{src: path, rel: rel}, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == dst {
				log.Debug("Skipping output directory inside input", zap.String("dir", path))
				return fs.SkipDir
			}
			// created before any file inside it is queued
			return ensureDir(filepath.Join(dst, rel))
		}
		if !d.Type().IsRegular() {
			log.Debug("Skipping path, not a regular file", zap.String("path", path))
			return nil
		}

		info, err := d.Info()
		if err != nil {
			fail(&task{src: path, rel: rel}, err)
			return nil
		}
		t := plan(path, rel, dst, info)
		outs := t.outputs()
		for _, o := range outs {
			if other, exists := claims[o]; exists {
				fail(t, fmt.Errorf("output %s is already produced from %s", o, other))
				return nil
			}
		}
		for _, o := range outs {
			claims[o] = rel
		}

		g.Go(func() error {
			err := b.process(gctx, t, log)
			var pce *PathConflictError
			if errors.As(err, &pce) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if err != nil {
				fail(t, err)
			}
			return nil
		})
		return nil
	})

	// conflict reported by a worker cancels the walk, report conflict itself
	werr := g.Wait()
	if err := ctx.Err(); err != nil {
		log.Warn("Build interrupted", zap.Int("failed", len(failures)))
		return err
	}
	if werr != nil {
		return fmt.Errorf("build aborted: %w", werr)
	}
	if walkErr != nil {
		return fmt.Errorf("build aborted: %w", walkErr)
	}

	if err := WriteResources(dst, &b.cfg.Resources); err != nil {
		return fmt.Errorf("unable to write site resources: %w", err)
	}

	if len(failures) == 0 {
		return nil
	}
	b.failed = len(failures)
	sort.Slice(failures, func(i, j int) bool {
		return natural.Less(failures[i].file, failures[j].file)
	})
	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		errs = append(errs, f.err)
	}
	return &BuildError{Failed: len(failures), Err: multierr.Combine(errs...)}
}

func (b *Builder) process(ctx context.Context, t *task, log *zap.Logger) (rerr error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		// decoders may panic on malformed content, other files still
		// have to be processed
		if r := recover(); r != nil {
			log.Error("Processing ended with panic", zap.String("file", t.src), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("processing panic: %v", r)
		}
	}()

	switch t.kind {
	case kindPage, kindIndex:
		return b.render(t, log)
	case kindMedia:
		return b.transcode(ctx, t, log)
	default:
		return b.copy(t, log)
	}
}

func (b *Builder) copy(t *task, log *zap.Logger) error {
	stale, err := stale(t.out, t.modTime)
	if err != nil {
		return err
	}
	if !stale {
		b.skipped.Add(1)
		return nil
	}
	if err := copyFile(t.src, t.out, t.modTime); err != nil {
		return fmt.Errorf("unable to copy: %w", err)
	}
	b.copied.Add(1)
	log.Debug("Copied", zap.String("file", t.rel))
	return nil
}

// transcode keeps original copy and every scaled variant fresh, each one is
// checked on its own.
func (b *Builder) transcode(ctx context.Context, t *task, log *zap.Logger) error {
	var targets []media.Target
	for _, v := range media.Variants {
		p := media.VariantPath(t.out, v)
		stale, err := stale(p, t.modTime)
		if err != nil {
			return err
		}
		if stale {
			targets = append(targets, media.Target{Path: p, Height: v.Height})
		}
	}
	original, err := stale(t.out, t.modTime)
	if err != nil {
		return err
	}
	if !original && len(targets) == 0 {
		b.skipped.Add(1)
		return nil
	}

	if original {
		if err := copyFile(t.src, t.out, t.modTime); err != nil {
			return fmt.Errorf("unable to copy: %w", err)
		}
	}
	if len(targets) > 0 {
		if err := b.scaler.Scale(ctx, t.src, targets...); err != nil {
			return err
		}
	}
	b.scaled.Add(1)
	log.Debug("Transcoded", zap.String("file", t.rel), zap.Bool("original", original), zap.Int("variants", len(targets)))
	return nil
}

func (b *Builder) render(t *task, log *zap.Logger) error {
	if fi, err := os.Stat(t.out); err == nil && fi.IsDir() {
		return &PathConflictError{Path: t.out}
	}
	fresh, err := page.Fresh(t.out, t.modTime)
	if err != nil {
		return err
	}
	if fresh {
		b.skipped.Add(1)
		log.Debug("Up to date", zap.String("file", t.rel))
		return nil
	}

	data, err := os.ReadFile(t.src)
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(t.rel), filepath.Ext(t.rel))
	opts := &page.Options{Renderer: b.renderer, Root: t.root, Title: row.Title(name)}

	var buf bytes.Buffer
	if t.kind == kindIndex {
		idx, err := page.ParseIndex(data)
		if err != nil {
			return err
		}
		if err := page.RenderIndex(&buf, idx, t.modTime, opts); err != nil {
			return err
		}
	} else {
		rows, err := page.ParsePage(data, &row.Env{BaseDir: filepath.Dir(t.src), Classifier: b.cache})
		if err != nil {
			return err
		}
		if err := page.RenderPage(&buf, rows, t.modTime, opts); err != nil {
			return err
		}
		if b.rpt != nil {
			b.rpt.StoreData(filepath.ToSlash(filepath.Join("pages", t.rel+".txt")), []byte(page.Dump(rows)))
		}
	}

	if err := writeFile(t.out, buf.Bytes()); err != nil {
		return err
	}
	b.rendered.Add(1)
	log.Debug("Rendered", zap.String("file", t.rel), zap.String("to", t.out))
	return nil
}
