package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/strew/pkg/plan"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

var (
	ErrTimeout    = errors.New("evaluation timed out")
	ErrSuperseded = errors.New("evaluation superseded by newer request")
)

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout replaces EvalTimeout. Non-positive durations are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// evalResult passes evaluation results through channels.
type evalResult struct {
	plan   *plan.Plan
	errors []EvalError
	err    error
}

// generation tracks the most recent evaluation request.
type generation struct {
	mu      sync.Mutex
	current uint64
}

func (g *generation) next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.current++
	return g.current
}

func (g *generation) isCurrent(gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current == gen
}

// awaitResult waits for the evaluation of generation gen. It gives up with
// ErrTimeout after timeout and with the context error when ctx is done.
// Results of generations a newer request has replaced are dropped with
// ErrSuperseded.
//
// On timeout the goroutine may still be running; the generation check drops
// its result when it eventually completes.
func awaitResult(ctx context.Context, ch <-chan evalResult, gens *generation, gen uint64, timeout time.Duration) (*plan.Plan, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if !gens.isCurrent(gen) {
			return nil, nil, ErrSuperseded
		}
		return res.plan, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)

	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}
