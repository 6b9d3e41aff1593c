package ballot

import (
	"context"
	"sync"
	"time"

	dErrors "ballot/pkg/domain-errors"
)

// defaultGateTxTimeout bounds the pre-commit part of a cast.
const defaultGateTxTimeout = 5 * time.Second

// gateTx is the ledger-wide critical section. Every cast serialises here,
// not per voter, so the duplicate check and the append cannot interleave
// with another cast for the same voter under a different lock.
type gateTx struct {
	mu      sync.Mutex
	timeout time.Duration
}

// RunInTx runs fn holding the lock. A context cancelled before the lock is
// held aborts with no effect; once fn has appended a block it must ignore
// cancellation.
func (t *gateTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeTimeout, "vote aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultGateTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	waited := time.Since(start)

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return waited, dErrors.Wrap(err, dErrors.CodeTimeout, "vote aborted: context cancelled")
	}

	return waited, fn(ctx)
}
