package main

import (
	"context"

	"github.com/chazu/strew/pkg/engine"
	"github.com/chazu/strew/pkg/logging"
	"github.com/chazu/strew/pkg/plan"
	"github.com/chazu/strew/pkg/populate"
)

// App runs the strew pipeline: source or plan in, instance sets out.
type App struct {
	engine *engine.Engine
}

// ErrorData is a JSON-serializable error or warning.
type ErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Result is the full output of one run.
type Result struct {
	Sets     []*populate.InstanceSet `json:"sets"`
	Errors   []ErrorData             `json:"errors"`
	Warnings []ErrorData             `json:"warnings"`
}

// OK reports whether the run produced no errors.
func (r Result) OK() bool { return len(r.Errors) == 0 }

func newResult() Result {
	return Result{
		Sets:     []*populate.InstanceSet{},
		Errors:   []ErrorData{},
		Warnings: []ErrorData{},
	}
}

// NewApp creates a new App with its own script engine.
func NewApp() *App {
	return &App{engine: engine.NewEngine()}
}

// Evaluate runs a strew script and populates the resulting plan.
func (a *App) Evaluate(ctx context.Context, source string) Result {
	result := newResult()

	// Step 1: Evaluate the script into a validated plan.
	res := a.engine.EvaluateAndValidate(ctx, source)
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, ErrorData{Line: w.Line, Subject: w.Subject, Message: w.Message})
	}
	if !res.OK() {
		for _, e := range res.Errors {
			result.Errors = append(result.Errors, ErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	// Step 2: Run every job.
	return a.populate(ctx, res.Plan, result)
}

// Populate validates and runs a plan built outside the script engine.
func (a *App) Populate(ctx context.Context, p *plan.Plan) Result {
	result := newResult()

	v := plan.ValidateAll(p)
	for _, w := range v.Warnings {
		result.Warnings = append(result.Warnings, fromFinding(w))
	}
	if !v.OK() {
		for _, e := range v.Errors {
			result.Errors = append(result.Errors, fromFinding(e))
		}
		return result
	}
	return a.populate(ctx, p, result)
}

func (a *App) populate(ctx context.Context, p *plan.Plan, result Result) Result {
	sets, err := populate.Populate(ctx, p)
	if err != nil {
		logging.Logger().Error("populate failed", "err", err)
		result.Errors = append(result.Errors, ErrorData{Message: "populate failed: " + err.Error()})
		return result
	}
	result.Sets = sets
	return result
}

func fromFinding(f plan.ValidationError) ErrorData {
	return ErrorData{Line: f.Line, Subject: f.Subject, Message: f.Message}
}
