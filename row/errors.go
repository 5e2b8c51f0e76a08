package row

import (
	"fmt"
	"strings"

	"mksite/media"
)

// UnknownRowShapeError is returned when set of field names does not match
// any row type.
type UnknownRowShapeError struct {
	Keys []string
}

func (e *UnknownRowShapeError) Error() string {
	return fmt.Sprintf("no row type accepts fields [%s]", strings.Join(e.Keys, ", "))
}

// InvalidOrientationError is returned when media used by a row has
// orientation the row cannot lay out.
type InvalidOrientationError struct {
	Variant  string
	Field    string
	Path     string
	Accepted []media.Orientation
	Actual   media.Orientation
}

func (e *InvalidOrientationError) Error() string {
	accepted := make([]string, 0, len(e.Accepted))
	for _, o := range e.Accepted {
		accepted = append(accepted, o.String())
	}
	return fmt.Sprintf("%s only supports [%s], %q (%s) is %s",
		e.Variant, strings.Join(accepted, ", "), e.Field, e.Path, e.Actual)
}
