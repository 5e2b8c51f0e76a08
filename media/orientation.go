// Package media classifies and scales image and video assets.
package media

import (
	"fmt"
	"strings"
)

// Orientation is discrete classification of media aspect ratio.
type Orientation int

const (
	OrientationUnknown Orientation = iota
	OrientationWideHorizontal
	OrientationHorizontal
	OrientationVertical
)

var orientationNames = map[Orientation]string{
	OrientationUnknown:        "UNKNOWN",
	OrientationWideHorizontal: "WIDE_HORIZONTAL",
	OrientationHorizontal:     "HORIZONTAL",
	OrientationVertical:       "VERTICAL",
}

func (o Orientation) String() string {
	if name, ok := orientationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// ParseOrientation is case insensitive.
func ParseOrientation(name string) (Orientation, error) {
	for o, n := range orientationNames {
		if o != OrientationUnknown && strings.EqualFold(n, name) {
			return o, nil
		}
	}
	return OrientationUnknown, fmt.Errorf("%q is not a valid orientation", name)
}

// Orient classifies already orientation-corrected dimensions: ratio above 2
// is wide, above 1 is horizontal, everything else is vertical.
func Orient(width, height int) Orientation {
	if width <= 0 || height <= 0 {
		return OrientationUnknown
	}
	ratio := float64(width) / float64(height)
	switch {
	case ratio > 2:
		return OrientationWideHorizontal
	case ratio > 1:
		return OrientationHorizontal
	default:
		return OrientationVertical
	}
}
