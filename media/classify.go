package media

import (
	"errors"
	"fmt"
)

// UnreadableMediaError means no decoder was able to determine dimensions of
// the asset.
type UnreadableMediaError struct {
	Path string
	Err  error
}

func (e *UnreadableMediaError) Error() string {
	return fmt.Sprintf("unable to read media dimensions (%s): %v", e.Path, e.Err)
}

func (e *UnreadableMediaError) Unwrap() error {
	return e.Err
}

// Classifier determines orientation of media files. Nothing is cached, every
// call looks at the file content.
type Classifier struct {
	Still  StillDecoder
	Frames FrameDecoder
}

// NewClassifier returns classifier using imaging for stills and ffprobe
// binary for video frames.
func NewClassifier(ffprobe string) *Classifier {
	return &Classifier{
		Still:  ImageDecoder{},
		Frames: VideoDecoder{Prober: FFProbe{Binary: ffprobe}},
	}
}

// Classify falls back to video decoder only when still decoder reports the
// content is not an image.
func (c *Classifier) Classify(path string) (Orientation, error) {
	w, h, err := c.Still.Dimensions(path)
	if errors.Is(err, ErrNotStill) && c.Frames != nil {
		w, h, err = c.Frames.FrameDimensions(path)
	}
	if err != nil {
		return OrientationUnknown, &UnreadableMediaError{Path: path, Err: err}
	}
	o := Orient(w, h)
	if o == OrientationUnknown {
		return o, &UnreadableMediaError{Path: path, Err: fmt.Errorf("bad dimensions %dx%d", w, h)}
	}
	return o, nil
}
