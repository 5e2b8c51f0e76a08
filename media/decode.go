package media

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotStill is returned by StillDecoder when content is not a still image.
var ErrNotStill = errors.New("content is not a still image")

// ErrNotVideo is returned by FrameDecoder when content is not a video.
var ErrNotVideo = errors.New("content is not a video")

// StillDecoder returns pixel dimensions of a still image with stored
// rotation already applied.
type StillDecoder interface {
	Dimensions(path string) (width, height int, err error)
}

// FrameDecoder returns display dimensions of video frames.
type FrameDecoder interface {
	FrameDimensions(path string) (width, height int, err error)
}

// ImageDecoder reads still image dimensions, honouring EXIF orientation.
type ImageDecoder struct{}

// Dimensions reads only image header unless content is JPEG, which may
// carry EXIF orientation and is decoded by imaging to apply it.
func (ImageDecoder) Dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	cfg, format, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return 0, 0, ErrNotStill
		}
		return 0, 0, err
	}
	if format != "jpeg" {
		return cfg.Width, cfg.Height, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return 0, 0, err
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// Prober runs external tool returning raw stream description.
type Prober interface {
	Probe(path string) ([]byte, error)
}

// FFProbe runs ffprobe binary asking for first video stream only.
type FFProbe struct {
	Binary string
}

func (p FFProbe) Probe(path string) ([]byte, error) {
	bin := p.Binary
	if bin == "" {
		bin = "ffprobe"
	}
	var stderr bytes.Buffer
	cmd := exec.Command(bin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:stream_tags=rotate:stream_side_data=rotation",
		"-of", "json",
		path)
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", bin, err)
	}
	return out, nil
}

// VideoDecoder checks that content looks like a video and asks Prober for
// frame size.
type VideoDecoder struct {
	Prober Prober
}

type probeOutput struct {
	Streams []struct {
		Width    int `json:"width"`
		Height   int `json:"height"`
		SideData []struct {
			Rotation float64 `json:"rotation"`
		} `json:"side_data_list"`
		Tags struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
	} `json:"streams"`
}

func (d VideoDecoder) FrameDimensions(path string) (int, int, error) {
	kind, err := filetype.MatchFile(path)
	if err != nil {
		return 0, 0, err
	}
	if kind.MIME.Type != "video" {
		return 0, 0, ErrNotVideo
	}

	data, err := d.Prober.Probe(path)
	if err != nil {
		return 0, 0, err
	}
	return parseProbe(data)
}

func parseProbe(data []byte) (int, int, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, 0, fmt.Errorf("unable to parse stream description: %w", err)
	}
	if len(out.Streams) == 0 {
		return 0, 0, errors.New("no video stream found")
	}
	s := out.Streams[0]
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("bad frame size %dx%d", s.Width, s.Height)
	}

	rotation := 0
	for _, sd := range s.SideData {
		if sd.Rotation != 0 {
			rotation = int(sd.Rotation)
			break
		}
	}
	if rotation == 0 && s.Tags.Rotate != "" {
		rotation, _ = strconv.Atoi(s.Tags.Rotate)
	}
	// portrait phone videos are stored landscape with rotation metadata
	if r := ((rotation % 360) + 360) % 360; r == 90 || r == 270 {
		return s.Height, s.Width, nil
	}
	return s.Width, s.Height, nil
}
