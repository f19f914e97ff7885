// Package engine provides the Lisp evaluation engine for strew scripts.
// It wraps zygomys in a sandboxed environment and produces a population
// plan from user source code.
package engine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/strew/pkg/logging"
	"github.com/chazu/strew/pkg/plan"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal advisory finding about the plan.
type EvalWarning struct {
	Line    int
	Subject string
	Message string
}

// EvalResult bundles the full output of an evaluation: the plan, blocking
// errors (evaluation or validation) and warnings.
type EvalResult struct {
	Plan     *plan.Plan
	Errors   []EvalError
	Warnings []EvalWarning
}

// OK reports whether the result carries a plan and no errors.
func (r EvalResult) OK() bool { return r.Plan != nil && len(r.Errors) == 0 }

// Engine wraps the zygomys interpreter for strew evaluation.
// It is safe for concurrent use; each call to Evaluate creates a fresh
// sandboxed environment for determinism.
type Engine struct {
	gens    generation
	timeout time.Duration
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: EvalTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate takes Lisp source code and produces a new Plan.
// Each call creates a fresh zygomys sandbox for deterministic evaluation.
//
// Return semantics:
//   - On success: returns plan + nil errors + nil error
//   - On parse/eval failure: returns nil plan + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*plan.Plan, []EvalError, error) {
	return e.EvaluateContext(context.Background(), source)
}

// EvaluateContext is Evaluate with a caller context. When ctx is done first
// the call returns ctx.Err(); the interpreter goroutine is left to finish and
// its result is dropped.
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*plan.Plan, []EvalError, error) {
	gen := e.gens.next()
	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		p, evalErrs, err := e.evaluate(source)
		ch <- evalResult{plan: p, errors: evalErrs, err: err}
	}()

	return awaitResult(ctx, ch, &e.gens, gen, e.timeout)
}

// EvaluateAndValidate evaluates source and runs every plan validation tier.
// The plan is kept only when no tier reports an error. Fatal failures are
// reported as an error without line information.
func (e *Engine) EvaluateAndValidate(ctx context.Context, source string) EvalResult {
	var res EvalResult

	p, evalErrs, err := e.EvaluateContext(ctx, source)
	if err != nil {
		logging.Logger().Warn("evaluation failed", "err", err)
		res.Errors = append(res.Errors, EvalError{Message: err.Error()})
		return res
	}
	if len(evalErrs) > 0 {
		res.Errors = evalErrs
		return res
	}

	v := plan.ValidateAll(p)
	for _, f := range v.Errors {
		res.Errors = append(res.Errors, EvalError{Line: f.Line, Message: withSubject(f)})
	}
	for _, f := range v.Warnings {
		res.Warnings = append(res.Warnings, EvalWarning{Line: f.Line, Subject: f.Subject, Message: f.Message})
	}
	if len(res.Errors) == 0 {
		res.Plan = p
	}
	return res
}

func withSubject(f plan.ValidationError) string {
	if f.Subject == "" {
		return f.Message
	}
	return f.Subject + ": " + f.Message
}

// evaluate performs the actual zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(source string) (*plan.Plan, []EvalError, error) {
	// Empty source is a valid program that produces an empty plan.
	if strings.TrimSpace(source) == "" {
		return plan.New(), nil, nil
	}

	// Sandbox mode prevents user code from accessing the filesystem or syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()

	p := plan.New()
	registerBuiltins(env, p)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}

	logging.Logger().Debug("script evaluated", "curves", len(p.Curves), "jobs", len(p.Jobs))
	return p, nil, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into one or more EvalError values.
// It attempts to extract line number information from the error message.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}

	// Fallback: no line info available.
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
