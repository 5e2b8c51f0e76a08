package site

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap/zaptest"

	"mksite/config"
	"mksite/media"
	"mksite/page"
)

func testConfig() *config.SiteConfig {
	return &config.SiteConfig{
		Workers: 4,
		Video: config.VideoConfig{
			EmbedURL: "https://www.youtube-nocookie.com/embed/%s",
			FFProbe:  "ffprobe",
			FFMpeg:   "ffmpeg",
		},
		Images: config.ImagesConfig{JPEGQuality: 85},
	}
}

func newBuilder(t *testing.T, cfg *config.SiteConfig) *Builder {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	b, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return b
}

// writeTree creates files under dir, names use forward slashes.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func modTime(t *testing.T, path string) time.Time {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return fi.ModTime()
}

func TestBuild_EndToEnd(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{
		"index.yml":    "prelude: Welcome\ntable_of_contents:\n  - trip_one\n  - trip_two\n",
		"trip_one.yml": "- heading: Day One\n  subheading: Arrival\n",
		"notes.txt":    "kept as is",
	})

	b := newBuilder(t, nil)
	if err := b.Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	index := readFile(t, filepath.Join(dst, "index.html"))
	one := strings.Index(index, `<li><a href="trip_one.html">Trip One</a></li>`)
	two := strings.Index(index, `<li><a href="trip_two.html">Trip Two</a></li>`)
	if one < 0 || two < 0 || one > two {
		t.Errorf("index entries missing or out of order:\n%s", index)
	}
	if !strings.Contains(index, "Welcome") {
		t.Error("index lacks prelude")
	}

	trip := readFile(t, filepath.Join(dst, "trip_one.html"))
	if !strings.Contains(trip, `id="Day One"`) || !strings.Contains(trip, "Arrival") {
		t.Errorf("trip page lacks header:\n%s", trip)
	}
	if got := readFile(t, filepath.Join(dst, "notes.txt")); got != "kept as is" {
		t.Errorf("notes.txt = %q", got)
	}
	for _, name := range []string{"styles.css", "scripts.js"} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Errorf("resource %s was not written: %v", name, err)
		}
	}

	s := b.Stats()
	if s.Rendered != 2 || s.Copied != 1 || s.Failed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{
		"index.yml":        "table_of_contents: [trip_one]\n",
		"trip_one.yml":     "- heading: Day One\n  subheading: Arrival\n- image: photo.jpg\n",
		"assets/map.txt":   "map",
		"days/day_two.yml": "- caption: nothing happened\n",
	})
	writeJPEG(t, filepath.Join(src, "photo.jpg"), 30, 20)

	b := newBuilder(t, nil)
	if err := b.Build(context.Background(), src, dst); err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	outputs := []string{"index.html", "trip_one.html", "days/day_two.html", "assets/map.txt", "photo.jpg", "photo.1080.jpg", "photo.4k.jpg"}
	before := make(map[string][]byte)
	for _, o := range outputs {
		data, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(o)))
		if err != nil {
			t.Fatalf("first build did not produce %s: %v", o, err)
		}
		before[o] = data
	}

	if err := b.Build(context.Background(), src, dst); err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if s := b.Stats(); s.Rendered != 0 || s.Copied != 0 || s.Scaled != 0 || s.Skipped != 5 {
		t.Errorf("second build Stats() = %+v, want only skips", s)
	}
	for _, o := range outputs {
		if got := readFile(t, filepath.Join(dst, filepath.FromSlash(o))); !bytes.Equal([]byte(got), before[o]) {
			t.Errorf("%s changed on second build", o)
		}
	}
}

func TestBuild_TouchRebuildsOnlyChanged(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{
		"trip_one.yml": "- caption: one\n",
		"trip_two.yml": "- caption: two\n",
	})

	b := newBuilder(t, nil)
	if err := b.Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	sibling := filepath.Join(dst, "trip_two.html")
	siblingTime, siblingData := modTime(t, sibling), readFile(t, sibling)
	oldOne := readFile(t, filepath.Join(dst, "trip_one.html"))

	touched := time.Now().Add(time.Minute)
	if err := os.Chtimes(filepath.Join(src, "trip_one.yml"), touched, touched); err != nil {
		t.Fatal(err)
	}
	if err := b.Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if s := b.Stats(); s.Rendered != 1 || s.Skipped != 1 {
		t.Errorf("Stats() = %+v, want one render and one skip", s)
	}
	if !modTime(t, sibling).Equal(siblingTime) || readFile(t, sibling) != siblingData {
		t.Error("untouched sibling was rewritten")
	}
	newOne := readFile(t, filepath.Join(dst, "trip_one.html"))
	if newOne == oldOne {
		t.Error("touched page was not regenerated")
	}
	if first, _, _ := strings.Cut(newOne, "\n"); first != page.Marker(touched) {
		t.Errorf("marker = %q, want %q", first, page.Marker(touched))
	}
}

func TestBuild_ScaledVariants(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeJPEG(t, filepath.Join(src, "photo.jpg"), 30, 20)
	if err := os.MkdirAll(filepath.Join(src, "album"), 0755); err != nil {
		t.Fatal(err)
	}
	writeJPEG(t, filepath.Join(src, "album", "tall.jpg"), 21, 40)

	b := newBuilder(t, nil)
	if err := b.Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	tests := []struct {
		name          string
		width, height int
	}{
		{"photo.jpg", 30, 20},
		{"album/tall.jpg", 21, 40},
	}
	for _, tt := range tests {
		out := filepath.Join(dst, filepath.FromSlash(tt.name))
		if !modTime(t, out).Equal(modTime(t, filepath.Join(src, filepath.FromSlash(tt.name)))) {
			t.Errorf("%s copy does not keep source modification time", tt.name)
		}
		for tag, height := range map[string]int{"1080": 1080, "4k": 2160} {
			p := strings.TrimSuffix(out, ".jpg") + "." + tag + ".jpg"
			img, err := imaging.Open(p)
			if err != nil {
				t.Fatalf("unable to open %s variant of %s: %v", tag, tt.name, err)
			}
			wantW := int(math.Round(float64(tt.width) * float64(height) / float64(tt.height)))
			if bnd := img.Bounds(); bnd.Dx() != wantW || bnd.Dy() != height {
				t.Errorf("%s %s variant is %dx%d, want %dx%d", tt.name, tag, bnd.Dx(), bnd.Dy(), wantW, height)
			}
		}
	}

	// each derived file is checked on its own
	hd := filepath.Join(dst, "photo.1080.jpg")
	hdTime := modTime(t, hd)
	if err := os.Remove(filepath.Join(dst, "photo.4k.jpg")); err != nil {
		t.Fatal(err)
	}
	if err := b.Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dst, "photo.4k.jpg")); err != nil {
		t.Errorf("missing variant was not regenerated: %v", err)
	}
	if !modTime(t, hd).Equal(hdTime) {
		t.Error("fresh variant was regenerated")
	}
	if s := b.Stats(); s.Scaled != 1 || s.Skipped != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBuild_FailuresDoNotStopSiblings(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{
		"bad.yml":    "- colour: red\n",
		"broken.jpg": "definitely not a jpeg",
		"good.yml":   "- caption: fine\n",
		"zebra.txt":  "z",
	})

	b := newBuilder(t, nil)
	err := b.Build(context.Background(), src, dst)
	var be *BuildError
	if !errors.As(err, &be) {
		t.Fatalf("Build() error = %v, want BuildError", err)
	}
	if be.Failed != 2 || b.Stats().Failed != 2 {
		t.Errorf("Failed = %d, stats %+v", be.Failed, b.Stats())
	}
	msg := err.Error()
	if i, j := strings.Index(msg, "bad.yml"), strings.Index(msg, "broken.jpg"); i < 0 || j < 0 || i > j {
		t.Errorf("failures are not reported in file order: %s", msg)
	}
	for _, name := range []string{"good.html", "zebra.txt", "styles.css"} {
		if _, err := os.Stat(filepath.Join(dst, name)); err != nil {
			t.Errorf("%s was not produced: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "bad.html")); err == nil {
		t.Error("failed page left output behind")
	}
}

func TestBuild_DuplicateOutput(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{
		"about.html": "<p>hand written</p>",
		"about.yml":  "- caption: generated\n",
	})

	b := newBuilder(t, nil)
	err := b.Build(context.Background(), src, dst)
	var be *BuildError
	if !errors.As(err, &be) || be.Failed != 1 || !strings.Contains(err.Error(), "already produced") {
		t.Fatalf("Build() error = %v, want single duplicate output failure", err)
	}
	if got := readFile(t, filepath.Join(dst, "about.html")); got != "<p>hand written</p>" {
		t.Errorf("about.html = %q", got)
	}
}

func TestBuild_PathConflict(t *testing.T) {
	t.Run("directory in place of page", func(t *testing.T) {
		src, dst := t.TempDir(), t.TempDir()
		writeTree(t, src, map[string]string{"trip.yml": "- caption: x\n"})
		if err := os.MkdirAll(filepath.Join(dst, "trip.html", "keep"), 0755); err != nil {
			t.Fatal(err)
		}
		err := newBuilder(t, nil).Build(context.Background(), src, dst)
		var pce *PathConflictError
		if !errors.As(err, &pce) {
			t.Fatalf("Build() error = %v, want PathConflictError", err)
		}
		var be *BuildError
		if errors.As(err, &be) {
			t.Error("conflict must not be reported as per-file failure")
		}
		if _, err := os.Stat(filepath.Join(dst, "trip.html", "keep")); err != nil {
			t.Error("conflicting directory was touched")
		}
	})

	t.Run("file in place of directory", func(t *testing.T) {
		src, dst := t.TempDir(), t.TempDir()
		writeTree(t, src, map[string]string{"album/a.txt": "a"})
		writeTree(t, dst, map[string]string{"album": "i am a file"})
		err := newBuilder(t, nil).Build(context.Background(), src, dst)
		var pce *PathConflictError
		if !errors.As(err, &pce) || !pce.WantDir {
			t.Fatalf("Build() error = %v, want PathConflictError for directory", err)
		}
		if got := readFile(t, filepath.Join(dst, "album")); got != "i am a file" {
			t.Error("conflicting file was replaced")
		}
	})
}

func TestBuild_BadInput(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"file.txt": "x"})
	b := newBuilder(t, nil)

	tests := []struct {
		name     string
		src, dst string
	}{
		{"missing input", filepath.Join(dir, "nope"), filepath.Join(dir, "out")},
		{"input is a file", filepath.Join(dir, "file.txt"), filepath.Join(dir, "out")},
		{"same directories", dir, dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.Build(context.Background(), tt.src, tt.dst)
			if err == nil {
				t.Fatal("Build() expected error")
			}
			var be *BuildError
			if errors.As(err, &be) {
				t.Errorf("Build() error = %v, want structural error", err)
			}
		})
	}
}

func TestBuild_Cancelled(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{"a.yml": "- caption: a\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := newBuilder(t, nil).Build(ctx, src, dst); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

// fakeFFMpeg writes shell script replacing ffmpeg, output is its last
// argument.
func fakeFFMpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\nfor last; do :; done\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuild_CancelledDuringTranscoding(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{"clip.mp4": "video", "page.yml": "- caption: x\n"})

	cfg := testConfig()
	cfg.Workers = 1
	cfg.Video.FFMpeg = fakeFFMpeg(t, `printf partial > "$last"; sleep 5`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(300*time.Millisecond, cancel)

	start := time.Now()
	err := newBuilder(t, cfg).Build(ctx, src, dst)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Build() error = %v, want context.Canceled", err)
	}
	var be *BuildError
	if errors.As(err, &be) {
		t.Error("interrupted build reported as per-file failure")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("cancelled build returned after %v", elapsed)
	}
	if _, err := os.Stat(filepath.Join(dst, "styles.css")); err == nil {
		t.Error("resources written by interrupted build")
	}
	for _, variant := range []string{"clip.1080.mp4", "clip.4k.mp4"} {
		if _, err := os.Stat(filepath.Join(dst, variant)); err == nil {
			t.Errorf("%s left behind by interrupted build", variant)
		}
	}

	cfg.Video.FFMpeg = fakeFFMpeg(t, `printf complete > "$last"`)
	if err := newBuilder(t, cfg).Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for _, variant := range []string{"clip.1080.mp4", "clip.4k.mp4"} {
		if got := readFile(t, filepath.Join(dst, variant)); got != "complete" {
			t.Errorf("%s = %q after rebuild", variant, got)
		}
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("temporary file %s left in output", e.Name())
		}
	}
}

type countingClassifier struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingClassifier) Classify(path string) (media.Orientation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[filepath.Base(path)]++
	return media.OrientationHorizontal, nil
}

func TestBuild_ClassifiesSharedMediaOnce(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"one.yml":         "- image: shared.jpg\n- image: {image: shared.jpg, caption: again}\n",
		"two.yml":         "- image: shared.jpg\n",
		"album/three.yml": "- image: ../shared.jpg\n",
	})
	writeJPEG(t, filepath.Join(src, "shared.jpg"), 30, 20)

	c := &countingClassifier{calls: make(map[string]int)}
	b, err := New(testConfig(), zaptest.NewLogger(t), WithClassifier(c))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Build(context.Background(), src, filepath.Join(t.TempDir(), "site")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if c.calls["shared.jpg"] != 1 {
		t.Errorf("shared.jpg classified %d times in one build", c.calls["shared.jpg"])
	}

	// nothing is remembered between builds
	if err := b.Build(context.Background(), src, filepath.Join(t.TempDir(), "site")); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if c.calls["shared.jpg"] != 2 {
		t.Errorf("shared.jpg classified %d times in two builds", c.calls["shared.jpg"])
	}
}

func TestBuild_OutputInsideInput(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(src, "public")
	writeTree(t, src, map[string]string{"trip.yml": "- caption: x\n", "notes.txt": "n"})

	b := newBuilder(t, nil)
	for range 2 {
		if err := b.Build(context.Background(), src, dst); err != nil {
			t.Fatalf("Build() error = %v", err)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "public")); err == nil {
		t.Error("output directory was mirrored into itself")
	}
	if s := b.Stats(); s.Rendered != 0 || s.Copied != 0 || s.Skipped != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBuild_NestedPagesUseRelativeRoot(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{
		"index.yml":              "table_of_contents: []\n",
		"trips/2023/holiday.yml": "- caption: sun\n",
	})

	if err := newBuilder(t, nil).Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out := readFile(t, filepath.Join(dst, "index.html")); !strings.Contains(out, `href="styles.css"`) {
		t.Error("top level page does not reference styles.css directly")
	}
	out := readFile(t, filepath.Join(dst, "trips", "2023", "holiday.html"))
	if !strings.Contains(out, `href="../../styles.css"`) || !strings.Contains(out, `src="../../scripts.js"`) {
		t.Errorf("nested page does not reference resources through root:\n%s", out)
	}
	if !strings.Contains(out, "<title>Holiday</title>") {
		t.Error("title is not derived from file name")
	}
}

func TestBuild_Markdown(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "site")
	writeTree(t, src, map[string]string{"notes.yml": "- text: \"**bold** <script>alert(1)</script>\"\n"})

	cfg := testConfig()
	cfg.Markdown, cfg.Sanitize = true, true
	if err := newBuilder(t, cfg).Build(context.Background(), src, dst); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	out := readFile(t, filepath.Join(dst, "notes.html"))
	if !strings.Contains(out, "<strong>bold</strong>") || strings.Contains(out, "<script>alert") {
		t.Errorf("markdown was not rendered and sanitized:\n%s", out)
	}
}
