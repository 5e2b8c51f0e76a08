package site

import (
	"fmt"
)

// PathConflictError is returned when output path exists with a type (file
// or directory) different from what has to be written there. It is never
// resolved automatically.
type PathConflictError struct {
	Path    string
	WantDir bool
}

func (e *PathConflictError) Error() string {
	if e.WantDir {
		return fmt.Sprintf("refusing to replace file with directory: %s", e.Path)
	}
	return fmt.Sprintf("refusing to replace directory with file: %s", e.Path)
}

// OutputExistsError is returned when destination exists and overwriting it
// was not confirmed.
type OutputExistsError struct {
	Path string
}

func (e *OutputExistsError) Error() string {
	return fmt.Sprintf("destination already exists, overwrite was not confirmed: %s", e.Path)
}

// BuildError summarizes per-file failures of a finished build.
type BuildError struct {
	Failed int
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("unable to process %d file(s): %v", e.Failed, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
