package site

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckDestination(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"existing/old.html": "old", "file": "x"})

	yes := func(string) bool { return true }
	no := func(string) bool { return false }

	tests := []struct {
		name      string
		dst       string
		overwrite bool
		confirm   func(string) bool
		wantErr   any
	}{
		{"missing", filepath.Join(dir, "new"), false, nil, nil},
		{"existing with overwrite", filepath.Join(dir, "existing"), true, nil, nil},
		{"existing confirmed", filepath.Join(dir, "existing"), false, yes, nil},
		{"existing refused", filepath.Join(dir, "existing"), false, no, &OutputExistsError{}},
		{"existing nobody to ask", filepath.Join(dir, "existing"), false, nil, &OutputExistsError{}},
		{"file", filepath.Join(dir, "file"), true, nil, &PathConflictError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckDestination(tt.dst, tt.overwrite, tt.confirm)
			switch tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Errorf("CheckDestination() error = %v", err)
				}
			case *OutputExistsError:
				var oee *OutputExistsError
				if !errors.As(err, &oee) || oee.Path != tt.dst {
					t.Errorf("CheckDestination() error = %v, want OutputExistsError", err)
				}
			case *PathConflictError:
				var pce *PathConflictError
				if !errors.As(err, &pce) {
					t.Errorf("CheckDestination() error = %v, want PathConflictError", err)
				}
			}
		})
	}
}

func TestPrompter(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  y  \n", true},
		{"\n", false},
		{"n\n", false},
		{"yep\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := Prompter(strings.NewReader(tt.answer), &out)("/tmp/site")
		if got != tt.want {
			t.Errorf("answer %q = %v, want %v", tt.answer, got, tt.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Errorf("prompt = %q", out.String())
		}
	}
}
