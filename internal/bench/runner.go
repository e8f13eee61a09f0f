package bench

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xssbench/xssbench/internal/harness"
	"github.com/xssbench/xssbench/internal/sanitize"
	"github.com/xssbench/xssbench/internal/vector"
)

// Options configures a benchmark run.
type Options struct {
	// Browsers are the engine names the matrix iterates. Empty means
	// the default engine.
	Browsers []string

	// Timeout is the per-case observation window. Zero selects an
	// adaptive window from the payload and the sanitizer output.
	Timeout time.Duration

	// Workers > 1 enables the parallel runner with one session per worker.
	Workers int

	// FailFast stops the run at the first executed case.
	FailFast bool

	// WatchdogStall is how long the parallel runner tolerates zero
	// progress before declaring the remaining cases stalled.
	WatchdogStall time.Duration

	// Progress, when set, is called after every finished case.
	Progress func(done, total int)

	Logger *zap.Logger
}

const defaultWatchdogStall = 60 * time.Second

// Runner drives the sanitizer x browser x vector matrix.
type Runner struct {
	opts       Options
	sanitizers []sanitize.Sanitizer
	vectors    []vector.Vector
	log        *zap.Logger
}

func NewRunner(sanitizers []sanitize.Sanitizer, vectors []vector.Vector, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WatchdogStall <= 0 {
		opts.WatchdogStall = defaultWatchdogStall
	}
	if len(opts.Browsers) == 0 {
		opts.Browsers = []string{"goja"}
	}
	return &Runner{opts: opts, sanitizers: sanitizers, vectors: vectors, log: opts.Logger}
}

// caseFailed reports whether a result should trip fail-fast.
func caseFailed(res CaseResult) bool {
	return res.Executed || res.Outcome == OutcomeXSS || res.Outcome == OutcomeHTTPLeak
}

type task struct {
	idx     int
	browser string
	san     sanitize.Sanitizer
	vec     vector.Vector
}

// tasks flattens the matrix browser-first so a sequential run reuses
// one session per engine.
func (r *Runner) tasks() []task {
	out := make([]task, 0, len(r.opts.Browsers)*len(r.sanitizers)*len(r.vectors))
	for _, b := range r.opts.Browsers {
		for _, s := range r.sanitizers {
			for _, v := range r.vectors {
				out = append(out, task{idx: len(out), browser: b, san: s, vec: v})
			}
		}
	}
	return out
}

// errorResult is the synthetic record for a case that never produced a
// real judgment.
func errorResult(t task, details string) CaseResult {
	return CaseResult{
		Sanitizer:         t.san.Name,
		Browser:           t.browser,
		VectorID:          t.vec.ID,
		PayloadContext:    string(t.vec.PayloadContext),
		RunPayloadContext: string(t.vec.PayloadContext),
		Outcome:           OutcomeError,
		Details:           details,
	}
}

// Run executes the matrix and returns results in matrix order. With
// FailFast the result set is a prefix of the full matrix plus whatever
// in-flight cases finished.
func (r *Runner) Run(ctx context.Context) ([]CaseResult, error) {
	if r.opts.Workers > 1 {
		return r.runParallel(ctx)
	}
	return r.runSequential(ctx)
}

func (r *Runner) runSequential(ctx context.Context) ([]CaseResult, error) {
	var (
		sess     *harness.Session
		sessName string
	)
	defer func() {
		if sess != nil {
			_ = sess.Close()
		}
	}()

	all := r.tasks()
	results := make([]CaseResult, 0, len(all))
	for _, t := range all {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if sess == nil || sessName != t.browser {
			if sess != nil {
				_ = sess.Close()
			}
			var err error
			sess, err = harness.NewSession(t.browser, r.log)
			if err != nil {
				return results, fmt.Errorf("start session: %w", err)
			}
			sessName = t.browser
		}
		res := r.safeRunCase(ctx, sess, t)
		results = append(results, res)
		if r.opts.Progress != nil {
			r.opts.Progress(len(results), len(all))
		}
		if r.opts.FailFast && caseFailed(res) {
			r.log.Info("stopping after first executed case",
				zap.String("sanitizer", res.Sanitizer),
				zap.String("vector", res.VectorID))
			break
		}
	}
	return results, nil
}

// safeRunCase converts a panicking case into an error result so one bad
// payload cannot take down the run.
func (r *Runner) safeRunCase(ctx context.Context, sess *harness.Session, t task) (res CaseResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = errorResult(t, fmt.Sprintf("case panicked: %v", rec))
			r.log.Error("case panicked",
				zap.String("sanitizer", t.san.Name),
				zap.String("vector", t.vec.ID),
				zap.Any("panic", rec))
		}
	}()
	return runCase(ctx, sess, t.san, t.vec, r.opts.Timeout)
}

func (r *Runner) runParallel(ctx context.Context) ([]CaseResult, error) {
	all := r.tasks()
	total := len(all)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	taskCh := make(chan task)
	type indexed struct {
		idx int
		res CaseResult
	}
	resultCh := make(chan indexed, r.opts.Workers)

	var lastProgress atomic.Int64
	lastProgress.Store(time.Now().UnixNano())
	var stalled atomic.Bool

	for i := 0; i < r.opts.Workers; i++ {
		g.Go(func() error {
			// One session per engine, kept open for the worker's
			// lifetime. A failed launch degrades that engine's share of
			// the queue to error results instead of killing the run.
			sessions := map[string]*harness.Session{}
			failed := map[string]string{}
			defer func() {
				for _, s := range sessions {
					_ = s.Close()
				}
			}()
			for t := range taskCh {
				var res CaseResult
				switch {
				case failed[t.browser] != "":
					res = errorResult(t, "start worker session: "+failed[t.browser])
				default:
					sess, ok := sessions[t.browser]
					if !ok {
						var err error
						sess, err = harness.NewSession(t.browser, r.log)
						if err != nil {
							failed[t.browser] = err.Error()
							r.log.Error("worker session launch failed",
								zap.String("browser", t.browser), zap.Error(err))
							res = errorResult(t, "start worker session: "+err.Error())
							break
						}
						sessions[t.browser] = sess
					}
					res = r.safeRunCase(gctx, sess, t)
				}
				lastProgress.Store(time.Now().UnixNano())
				select {
				case resultCh <- indexed{idx: t.idx, res: res}:
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	// Feeder is non-blocking against cancellation so fail-fast and the
	// watchdog can always drain it.
	g.Go(func() error {
		defer close(taskCh)
		for _, t := range all {
			select {
			case taskCh <- t:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	watchdogDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-watchdogDone:
				return
			case <-gctx.Done():
				return
			case <-ticker.C:
				idle := time.Since(time.Unix(0, lastProgress.Load()))
				if idle > r.opts.WatchdogStall {
					r.log.Warn("no progress from workers, aborting remaining cases",
						zap.Duration("idle", idle))
					stalled.Store(true)
					cancel()
					return
				}
			}
		}
	}()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- g.Wait()
		close(resultCh)
	}()

	byIdx := make(map[int]CaseResult, total)
	done := 0
	for item := range resultCh {
		byIdx[item.idx] = item.res
		done++
		if r.opts.Progress != nil {
			r.opts.Progress(done, total)
		}
		if r.opts.FailFast && caseFailed(item.res) {
			cancel()
		}
	}
	close(watchdogDone)
	err := <-waitErr

	if stalled.Load() {
		for _, t := range all {
			if _, ok := byIdx[t.idx]; !ok {
				byIdx[t.idx] = errorResult(t, "benchmark watchdog: worker made no progress")
			}
		}
	}

	idxs := make([]int, 0, len(byIdx))
	for idx := range byIdx {
		idxs = append(idxs, idx)
	}
	sort.Ints(idxs)
	results := make([]CaseResult, 0, len(idxs))
	for _, idx := range idxs {
		results = append(results, byIdx[idx])
	}

	if err != nil && ctx.Err() == nil && !stalled.Load() {
		return results, err
	}
	return results, nil
}
