package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// waitDelay bounds how long a killed tool may keep its output pipes open.
const waitDelay = time.Second

// Target is single scaled output requested from Scaler.
type Target struct {
	Path   string
	Height int
}

// Scaler produces height-bound copies of images and videos keeping aspect
// ratio.
type Scaler struct {
	JPEGQuality int
	FFMpeg      string
	Log         *zap.Logger
}

// Scale decodes src once and writes every target.
func (s *Scaler) Scale(ctx context.Context, src string, targets ...Target) error {
	if len(targets) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if IsVideo(src) {
		for _, t := range targets {
			if err := s.scaleVideo(ctx, src, t); err != nil {
				return err
			}
		}
		return nil
	}
	return s.scaleImage(ctx, src, targets)
}

func (s *Scaler) scaleImage(ctx context.Context, src string, targets []Target) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("unable to decode image: %w", err)
	}
	if img.Bounds().Dy() == 0 {
		return errors.New("image has zero height")
	}

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		scaled := imaging.Resize(img, 0, t.Height, imaging.Lanczos)
		if err := s.save(scaled, t.Path); err != nil {
			return fmt.Errorf("unable to save scaled image (%s): %w", t.Path, err)
		}
		if s.Log != nil {
			s.Log.Debug("Scaled image", zap.String("to", t.Path),
				zap.Int("width", scaled.Bounds().Dx()), zap.Int("height", scaled.Bounds().Dy()))
		}
	}
	return nil
}

func (s *Scaler) save(img image.Image, path string) error {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return err
	}
	opts := []imaging.EncodeOption{}
	if s.JPEGQuality > 0 {
		opts = append(opts, imaging.JPEGQuality(s.JPEGQuality))
	}
	return replaceFile(path, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		if err := imaging.Encode(f, img, format, opts...); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// replaceFile lets produce write into temporary file next to path and moves
// result in place only when produce succeeds. Temporary name keeps the
// extension, external tools pick container format from it.
func replaceFile(path string, produce func(tmp string) error) error {
	ext := filepath.Ext(path)
	f, err := os.CreateTemp(filepath.Dir(path), "."+strings.TrimSuffix(filepath.Base(path), ext)+".*"+ext)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)
	if err := f.Close(); err != nil {
		return err
	}

	if err := produce(tmp); err != nil {
		return err
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *Scaler) scaleVideo(ctx context.Context, src string, t Target) error {
	bin := s.FFMpeg
	if bin == "" {
		bin = "ffmpeg"
	}
	err := replaceFile(t.Path, func(tmp string) error {
		var stderr bytes.Buffer
		// -2 keeps width even which most codecs require
		cmd := exec.CommandContext(ctx, bin,
			"-y", "-loglevel", "error",
			"-i", src,
			"-vf", fmt.Sprintf("scale=-2:%d:flags=lanczos", t.Height),
			"-c:a", "copy",
			tmp)
		cmd.Stderr = &stderr
		cmd.WaitDelay = waitDelay
		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("%w: %s", err, msg)
			}
			return err
		}
		return nil
	})
	if err != nil {
		// tool killed on cancellation reports only the signal
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("unable to scale video (%s): %w", t.Path, err)
	}
	if s.Log != nil {
		s.Log.Debug("Scaled video", zap.String("to", t.Path), zap.Int("height", t.Height))
	}
	return nil
}
