package page

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Stamp is the value recorded in the marker for a source modification
// time, nanoseconds since epoch.
func Stamp(t time.Time) int64 {
	return t.UnixNano()
}

// Marker returns first line of generated document, it records modification
// time of the source as seconds since epoch with nanosecond fraction.
func Marker(t time.Time) string {
	ns := Stamp(t)
	sign := ""
	if ns < 0 {
		sign, ns = "-", -ns
	}
	sec, frac := ns/1e9, ns%1e9
	if frac == 0 {
		return fmt.Sprintf("<!--%s%d-->", sign, sec)
	}
	return fmt.Sprintf("<!--%s%d.%s-->", sign, sec, strings.TrimRight(fmt.Sprintf("%09d", frac), "0"))
}

var reMarker = regexp.MustCompile(`^<!--\s*(-?)([0-9]+)(?:\.([0-9]+))?\s*-->$`)

// ParseMarker extracts stamp from the first line of a document. Fraction
// digits past nanoseconds are ignored.
func ParseMarker(line string) (int64, error) {
	m := reMarker.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
	if m == nil {
		return 0, errors.New("no staleness marker")
	}
	sec, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil || sec > math.MaxInt64/1_000_000_000-1 {
		return 0, fmt.Errorf("malformed staleness marker: %q", m[2])
	}
	frac := m[3]
	if len(frac) > 9 {
		frac = frac[:9]
	}
	var ns int64
	if frac != "" {
		if ns, err = strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64); err != nil {
			return 0, fmt.Errorf("malformed staleness marker: %w", err)
		}
	}
	stamp := sec*1e9 + ns
	if m[1] == "-" {
		stamp = -stamp
	}
	return stamp, nil
}

// ReadMarker reads stamp of previously generated document. ok is false when
// document does not exist or does not start with a marker.
func ReadMarker(path string) (stamp int64, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, err
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		// empty file
		return 0, false, nil
	}
	if stamp, err = ParseMarker(line); err != nil {
		return 0, false, nil
	}
	return stamp, true, nil
}

// Fresh reports whether document at path was produced from source with
// exactly this modification time.
func Fresh(path string, modTime time.Time) (bool, error) {
	stamp, ok, err := ReadMarker(path)
	if err != nil || !ok {
		return false, err
	}
	return stamp == Stamp(modTime), nil
}
