package biz

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/kart-io/logger"
	"golang.org/x/sync/semaphore"

	"github.com/kart-io/codequery/internal/chat/metrics"
	"github.com/kart-io/codequery/pkg/errors"
	chatopts "github.com/kart-io/codequery/pkg/options/chat"
)

// AdmissionController bounds concurrent pipeline work per repository and
// attaches the wall-clock deadline to admitted requests. Semaphores are
// created lazily on first use and live for the process lifetime.
type AdmissionController struct {
	mu      sync.Mutex
	sems    map[string]*semaphore.Weighted
	opts    *chatopts.AdmissionOptions
	metrics *metrics.ChatMetrics
}

// NewAdmissionController creates the per-repository admission registry.
func NewAdmissionController(opts *chatopts.AdmissionOptions) *AdmissionController {
	if opts == nil {
		opts = chatopts.NewAdmissionOptions()
	}
	return &AdmissionController{
		sems:    make(map[string]*semaphore.Weighted),
		opts:    opts,
		metrics: metrics.GetChatMetrics(),
	}
}

// Permit is one admitted request. Context carries the request deadline;
// Release is idempotent and must be called on every exit path.
type Permit struct {
	ctx     context.Context
	cancel  context.CancelFunc
	sem     *semaphore.Weighted
	release sync.Once
}

// Context returns the deadline-bounded context for the admitted request.
func (p *Permit) Context() context.Context {
	return p.ctx
}

// Release returns the permit and cancels the request context. Safe to call
// more than once.
func (p *Permit) Release() {
	p.release.Do(func() {
		p.cancel()
		p.sem.Release(1)
	})
}

// Acquire waits up to the configured acquire timeout for a repository
// permit. On success the returned permit's context carries the request
// deadline; on a full repository it returns ErrRepoBusy without ever
// holding a permit.
func (a *AdmissionController) Acquire(ctx context.Context, repo string) (*Permit, error) {
	sem := a.semFor(repo)

	acquireCtx, cancel := context.WithTimeout(ctx, a.opts.AcquireTimeout)
	defer cancel()

	if err := sem.Acquire(acquireCtx, 1); err != nil {
		a.metrics.RecordAdmissionRejection()
		logger.Warnw("admission rejected", "repo", repo, "error", err.Error())
		if ctx.Err() != nil {
			return nil, errors.ErrRequestTimeout.WithCause(ctx.Err())
		}
		return nil, errors.ErrRepoBusy.WithCause(err)
	}

	reqCtx, reqCancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	return &Permit{
		ctx:    reqCtx,
		cancel: reqCancel,
		sem:    sem,
	}, nil
}

// semFor returns the repository's semaphore, creating it under the registry
// mutex on first use.
func (a *AdmissionController) semFor(repo string) *semaphore.Weighted {
	a.mu.Lock()
	defer a.mu.Unlock()

	sem, ok := a.sems[repo]
	if !ok {
		sem = semaphore.NewWeighted(int64(a.opts.MaxConcurrent))
		a.sems[repo] = sem
	}
	return sem
}

// WrapTimeout converts a deadline expiry observed downstream into the
// stable timeout error.
func (a *AdmissionController) WrapTimeout(err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.DeadlineExceeded) || errors.GetCode(err) == errors.ErrRequestTimeout.Code {
		a.metrics.RecordAdmissionTimeout()
		return errors.ErrRequestTimeout.WithCause(err)
	}
	return err
}
