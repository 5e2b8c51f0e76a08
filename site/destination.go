package site

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// CheckDestination decides whether build may write into dst. Missing
// destination is always fine, existing one needs either overwrite or
// positive answer from confirm (nil confirm means nobody to ask).
func CheckDestination(dst string, overwrite bool, confirm func(path string) bool) error {
	fi, err := os.Stat(dst)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to access destination: %w", err)
	}
	if !fi.IsDir() {
		return &PathConflictError{Path: dst, WantDir: true}
	}
	if overwrite || (confirm != nil && confirm(dst)) {
		return nil
	}
	return &OutputExistsError{Path: dst}
}

// Prompter returns confirm function asking user on out and reading answer
// from in. Anything but "y" or "yes" is refusal.
func Prompter(in io.Reader, out io.Writer) func(string) bool {
	return func(path string) bool {
		fmt.Fprintf(out, "Destination %s already exists. Overwrite existing files? [y/N] ", path)
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		}
		return false
	}
}
