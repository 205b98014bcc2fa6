package script

import (
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default limit for one evaluation, including the
// dogbone runs it requests.
const EvalTimeout = 5 * time.Second

var (
	// ErrTimeout is returned when a script runs past the engine's limit.
	ErrTimeout = errors.New("script: evaluation timed out")
	// ErrSuperseded is returned to a caller whose evaluation finished after
	// a newer one started.
	ErrSuperseded = errors.New("script: evaluation superseded by newer request")
)

type evalResult struct {
	result *Result
	errors []EvalError
	err    error
}

// SetTimeout changes the evaluation limit. d <= 0 restores EvalTimeout.
func (e *Engine) SetTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d <= 0 {
		d = EvalTimeout
	}
	e.timeout = d
}

// wait blocks until ch delivers the outcome of evaluation gen or the limit
// passes. A goroutine left running after a timeout is not stopped; its
// result is dropped since nobody receives from ch any more.
func (e *Engine) wait(ch <-chan evalResult, gen uint64) (*Result, []EvalError, error) {
	e.mu.Lock()
	limit := e.timeout
	e.mu.Unlock()
	if limit <= 0 {
		limit = EvalTimeout
	}

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case res := <-ch:
		e.mu.Lock()
		stale := gen != e.generation
		e.mu.Unlock()
		if stale {
			return nil, nil, ErrSuperseded
		}
		return res.result, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, limit)
	}
}
