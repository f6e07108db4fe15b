package health

import (
	"context"
	"sync"
	"time"
)

const defaultCheckTimeout = 10 * time.Second

// Aggregator runs a set of named checkers and folds their results into
// an overall status. Checks run in parallel under a shared timeout.
type Aggregator struct {
	timeout  time.Duration
	mu       sync.RWMutex
	checkers map[string]Checker
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithTimeout sets the shared deadline for a CheckAll pass.
// Non-positive values fall back to the 10 second default.
func WithTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAggregator creates an empty Aggregator.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		timeout:  defaultCheckTimeout,
		checkers: make(map[string]Checker),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register adds a checker, replacing any previous checker with the same name.
func (a *Aggregator) Register(c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.checkers[c.Name()] = c
}

// Unregister removes the named checker. Unknown names are a no-op.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.checkers, name)
}

// Check runs a single named check.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, ErrCheckerNotFound
	}
	return a.runCheck(ctx, c), nil
}

// CheckAll runs every registered check in parallel and returns the
// results keyed by checker name.
func (a *Aggregator) CheckAll(ctx context.Context) map[string]Result {
	a.mu.RLock()
	checkers := make([]Checker, 0, len(a.checkers))
	for _, c := range a.checkers {
		checkers = append(checkers, c)
	}
	a.mu.RUnlock()

	results := make(map[string]Result, len(checkers))
	if len(checkers) == 0 {
		return results
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	var wg sync.WaitGroup
	var resMu sync.Mutex
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			r := a.runCheck(ctx, c)
			resMu.Lock()
			results[c.Name()] = r
			resMu.Unlock()
		}(c)
	}
	wg.Wait()

	return results
}

// OverallStatus folds a result set into one status. Any unhealthy check
// makes the whole set unhealthy; otherwise any degraded check makes it
// degraded. An empty set is healthy.
func OverallStatus(results map[string]Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}

// runCheck runs one check in its own goroutine so a stuck checker
// cannot outlive the context deadline.
func (a *Aggregator) runCheck(ctx context.Context, c Checker) Result {
	start := time.Now()
	done := make(chan Result, 1)

	go func() {
		r := c.Check(ctx)
		r.Duration = time.Since(start)
		if r.Timestamp.IsZero() {
			r.Timestamp = start
		}
		done <- r
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return Result{
			Status:    StatusUnhealthy,
			Message:   "check timed out",
			Error:     ErrCheckTimeout,
			Duration:  time.Since(start),
			Timestamp: start,
		}
	}
}
