package ballot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ballot/pkg/domain-errors"
)

func TestGateTxDeadlinePassedWhileWaiting(t *testing.T) {
	tx := &gateTx{timeout: 20 * time.Millisecond}
	tx.mu.Lock()

	type result struct {
		waited time.Duration
		err    error
		ran    bool
	}
	done := make(chan result, 1)
	go func() {
		var ran bool
		waited, err := tx.RunInTx(context.Background(), func(context.Context) error {
			ran = true
			return nil
		})
		done <- result{waited: waited, err: err, ran: ran}
	}()

	// The waiter is not woken by its deadline; it blocks until the lock frees.
	time.Sleep(80 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("RunInTx returned while the lock was still held")
	default:
	}
	tx.mu.Unlock()

	res := <-done
	require.Error(t, res.err)
	assert.True(t, dErrors.HasCode(res.err, dErrors.CodeTimeout))
	assert.False(t, res.ran, "fn must not run after the deadline passed")
	assert.GreaterOrEqual(t, res.waited, 60*time.Millisecond)
}

func TestGateTxRunsWithinDeadline(t *testing.T) {
	tx := &gateTx{timeout: time.Second}
	ran := false
	_, err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
