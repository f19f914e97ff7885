package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/tiff"
)

// runCLI runs the strew CLI with args and captures its output.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newCLI(context.Background())
	app.Writer = &out
	app.ErrWriter = &errOut
	err = app.Run(append([]string{"strew"}, args...))
	return out.String(), errOut.String(), err
}

func TestCLIRunScript(t *testing.T) {
	stdout, _, err := runCLI(t, "run", "../../examples/garden.strew")
	if err != nil {
		t.Fatal(err)
	}
	var res Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(res.Sets) != 4 {
		t.Errorf("got %d sets, want 4", len(res.Sets))
	}
}

func TestCLIRunMissingArgument(t *testing.T) {
	if _, _, err := runCLI(t, "run"); err == nil {
		t.Error("expected an error without a script")
	}
}

func TestCLISampleToFileWithStats(t *testing.T) {
	out := filepath.Join(t.TempDir(), "garden.json")
	stdout, stderr, err := runCLI(t, "sample", "--config", "../../examples/garden.toml", "-o", out, "--stats")
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" {
		t.Errorf("stdout should be empty when -o is set, got %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatal(err)
	}
	if res.Sets[2].Job != "posts" || len(res.Sets[2].Positions) != 11 {
		t.Errorf("posts set = %+v", res.Sets[2])
	}
	for _, want := range []string{"Job", "posts", "TOTAL"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stats table missing %q:\n%s", want, stderr)
		}
	}
}

// failingFile buffers writes and fails on Close, like a full disk.
type failingFile struct {
	bytes.Buffer
	closed bool
}

var errDiskFull = errors.New("disk full")

func (f *failingFile) Close() error {
	f.closed = true
	return errDiskFull
}

func TestWriteAndCloseReportsCloseError(t *testing.T) {
	f := &failingFile{}
	err := writeAndClose(f, Result{})
	if !errors.Is(err, errDiskFull) {
		t.Errorf("err = %v, want the close error", err)
	}
	if !f.closed || f.Len() == 0 {
		t.Errorf("closed=%v wrote=%d, want the JSON written then closed", f.closed, f.Len())
	}
}

func TestCLISampleUnwritableOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "garden.json")
	if _, _, err := runCLI(t, "sample", "--config", "../../examples/garden.toml", "-o", out); err == nil {
		t.Error("expected an error for an output path in a missing directory")
	}
}

func TestCLISampleErrors(t *testing.T) {
	if _, _, err := runCLI(t, "sample"); err == nil {
		t.Error("expected an error without --config")
	}

	bad := filepath.Join(t.TempDir(), "bad.toml")
	src := "[[curve]]\nname = \"c\"\npoints = [[0, 0], [1, 0], [1, 1]]\n\n[[job]]\nname = \"j\"\ncurve = \"missing\"\nfootprint = [1, 1]\n"
	if err := os.WriteFile(bad, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout, _, err := runCLI(t, "sample", "-c", bad)
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var res Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("errors should still be written as JSON: %v", err)
	}
	if len(res.Errors) == 0 || res.Errors[0].Subject != "job j" {
		t.Errorf("errors = %+v", res.Errors)
	}
}

func TestCLIGrid(t *testing.T) {
	out := filepath.Join(t.TempDir(), "beds.tiff")
	if _, _, err := runCLI(t, "grid", "--config", "../../examples/garden.toml", "--job", "beds", "--out", out); err != nil {
		t.Fatal(err)
	}
	fp, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer fp.Close()
	img, err := tiff.Decode(fp)
	if err != nil {
		t.Fatal(err)
	}
	// 10x8 box at spacing 2.
	if b := img.Bounds(); b.Dx() != 5 || b.Dy() != 4 {
		t.Errorf("image is %dx%d, want 5x4", b.Dx(), b.Dy())
	}
}

func TestCLIGridFromScript(t *testing.T) {
	out := filepath.Join(t.TempDir(), "trees.tiff")
	if _, _, err := runCLI(t, "grid", "-s", "../../examples/garden.strew", "-j", "trees", "-o", out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Error(err)
	}
}

func TestCLIGridErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no source", []string{"grid", "--job", "beds"}, "missing --config or --script"},
		{"both sources", []string{"grid", "-c", "a.toml", "-s", "a.strew"}, "either"},
		{"unknown job", []string{"grid", "-c", "../../examples/garden.toml", "-j", "shrubs"}, "no job named"},
		{"path job", []string{"grid", "-c", "../../examples/garden.toml", "-j", "posts", "-o", filepath.Join(t.TempDir(), "x.tiff")}, "no grid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestCLIVerboseLogging(t *testing.T) {
	_, stderr, err := runCLI(t, "-v", "run", "../../examples/garden.strew")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "job done") {
		t.Errorf("expected progress logs with -v, got:\n%s", stderr)
	}
}
