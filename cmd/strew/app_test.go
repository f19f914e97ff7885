package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/chazu/strew/pkg/config"
)

// TestE2EGardenScript exercises the full pipeline: script -> engine -> plan
// -> populate -> instance sets.
func TestE2EGardenScript(t *testing.T) {
	source, err := os.ReadFile("../../examples/garden.strew")
	if err != nil {
		t.Fatalf("failed to read garden.strew: %v", err)
	}

	result := NewApp().Evaluate(context.Background(), string(source))
	if !result.OK() {
		for _, e := range result.Errors {
			t.Errorf("error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	want := []string{"trees", "beds", "posts", "stones"}
	if len(result.Sets) != len(want) {
		t.Fatalf("expected %d sets, got %d", len(want), len(result.Sets))
	}
	for i, s := range result.Sets {
		if s.Job != want[i] {
			t.Errorf("set %d is %q, want %q", i, s.Job, want[i])
		}
		if s.Count() == 0 {
			t.Errorf("set %q has no positions", s.Job)
		}
	}

	trees := result.Sets[0]
	for _, q := range trees.Positions {
		d := v3.Vec{X: q.X - 12, Y: q.Y - 8}.Length()
		if d < 3 {
			t.Errorf("tree at %v inside the pond", q)
		}
	}
	if posts := result.Sets[2]; posts.Count() != 11 || posts.Mode != "path" {
		t.Errorf("posts: %d positions, mode %s", posts.Count(), posts.Mode)
	}
	for _, q := range result.Sets[1].Positions {
		if q.X < 8 || q.X > 18 || q.Y < 12 || q.Y > 20 {
			t.Errorf("bed at %v outside its box", q)
		}
	}
}

// TestE2EScriptMatchesConfig checks that the script and the TOML job file of
// the garden describe the same scene.
func TestE2EScriptMatchesConfig(t *testing.T) {
	source, err := os.ReadFile("../../examples/garden.strew")
	if err != nil {
		t.Fatal(err)
	}
	f, err := config.LoadFile("../../examples/garden.toml")
	if err != nil {
		t.Fatal(err)
	}
	p, err := f.Plan()
	if err != nil {
		t.Fatal(err)
	}

	app := NewApp()
	fromScript := app.Evaluate(context.Background(), string(source))
	fromConfig := app.Populate(context.Background(), p)
	if !fromScript.OK() || !fromConfig.OK() {
		t.Fatalf("errors: script %v, config %v", fromScript.Errors, fromConfig.Errors)
	}
	if len(fromScript.Sets) != len(fromConfig.Sets) {
		t.Fatalf("script has %d sets, config %d", len(fromScript.Sets), len(fromConfig.Sets))
	}
	for i := range fromScript.Sets {
		a, b := fromScript.Sets[i], fromConfig.Sets[i]
		if a.Job != b.Job || a.Count() != b.Count() {
			t.Errorf("set %d: script %s/%d, config %s/%d", i, a.Job, a.Count(), b.Job, b.Count())
		}
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully and
// still serializes empty lists.
func TestE2EEmptySource(t *testing.T) {
	result := NewApp().Evaluate(context.Background(), "")

	if len(result.Errors) != 0 || len(result.Warnings) != 0 || len(result.Sets) != 0 {
		t.Errorf("expected an empty result, got %+v", result)
	}
	if result.Sets == nil || result.Errors == nil || result.Warnings == nil {
		t.Error("result slices should be non-nil so JSON has [] not null")
	}
}

// TestE2ECommentsOnly checks that a script of comments is an empty plan.
func TestE2ECommentsOnly(t *testing.T) {
	result := NewApp().Evaluate(context.Background(), ";; nothing here\n; or here\n")
	if !result.OK() || len(result.Sets) != 0 {
		t.Errorf("expected an empty result, got %+v", result)
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	result := NewApp().Evaluate(context.Background(), "(+ 1 2)\n(defcurve \"lawn\"")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if result.Errors[0].Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	if len(result.Sets) != 0 {
		t.Errorf("expected 0 sets on error, got %d", len(result.Sets))
	}
}

// TestE2EUnknownCurve checks that validation errors stop the pipeline.
func TestE2EUnknownCurve(t *testing.T) {
	result := NewApp().Evaluate(context.Background(), `(scatter "trees" :curve "lawn" :footprint (vec2 1 1))`)
	if result.OK() {
		t.Fatal("expected a validation error")
	}
	if !strings.Contains(result.Errors[0].Message, "unknown curve") {
		t.Errorf("error = %q", result.Errors[0].Message)
	}
}

// TestE2EWarningsKeepSets checks that warnings do not block sampling.
func TestE2EWarningsKeepSets(t *testing.T) {
	source := `
(defcurve "bed" :points (list (vec2 0 0) (vec2 6 0) (vec2 6 6)) :closed false)
(scatter "bulbs" :curve "bed" :footprint (vec2 1 1) :no-overlap true)
`
	result := NewApp().Evaluate(context.Background(), source)
	if !result.OK() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", result.Warnings)
	}
	if len(result.Sets) != 1 {
		t.Errorf("expected 1 set, got %d", len(result.Sets))
	}
}

// TestE2ECancelled checks that a cancelled context surfaces as an error.
func TestE2ECancelled(t *testing.T) {
	source := `
(defcurve "lawn" :points (list (vec2 0 0) (vec2 4 0) (vec2 4 4) (vec2 0 4)))
(scatter "trees" :curve "lawn" :footprint (vec2 1 1))
`
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := NewApp().Evaluate(ctx, source)
	if result.OK() {
		t.Fatal("expected an error for a cancelled run")
	}
}

// TestE2EConcurrentEvaluation runs independent apps side by side; each must
// see its own plan.
func TestE2EConcurrentEvaluation(t *testing.T) {
	const n = 8
	var wg sync.WaitGroup
	counts := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			source := fmt.Sprintf(`
(defcurve "edge" :points (list (vec2 0 0) (vec2 10 0)) :closed false)
(scatter "posts" :curve "edge" :mode :path :count %d)
`, 10+i)
			result := NewApp().Evaluate(context.Background(), source)
			if !result.OK() || len(result.Sets) != 1 {
				t.Errorf("run %d: %+v", i, result.Errors)
				return
			}
			counts[i] = result.Sets[0].Count()
		}()
	}
	wg.Wait()
	for i, c := range counts {
		if c != 10+i {
			t.Errorf("run %d placed %d posts, want %d", i, c, 10+i)
		}
	}
}
