package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvErr(t *testing.T, ch <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}

func TestPool_CloseUnblocksWaitingSubmit(t *testing.T) {
	p := NewPool(1, 1)

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.Submit(context.Background(), func() {}))

	blocked := make(chan error, 1)
	go func() { blocked <- p.Submit(context.Background(), func() {}) }()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()

	assert.ErrorIs(t, recvErr(t, blocked, "blocked Submit"), ErrPoolClosed)

	// TrySubmit must not queue behind Close while the worker is still busy.
	try := make(chan error, 1)
	go func() { try <- p.TrySubmit(func() {}) }()
	assert.ErrorIs(t, recvErr(t, try, "TrySubmit"), ErrPoolClosed)

	close(release)
	require.NoError(t, recvErr(t, closed, "Close"))
	assert.ErrorIs(t, p.Close(), ErrPoolClosed)
}

func TestPool_TrySubmitFailsFastWhileSubmitWaits(t *testing.T) {
	p := NewPool(1, 1)
	release := make(chan struct{})
	t.Cleanup(func() {
		close(release)
		_ = p.Close()
	})

	started := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithCancel(context.Background())
	blocked := make(chan error, 1)
	go func() { blocked <- p.Submit(ctx, func() {}) }()
	time.Sleep(20 * time.Millisecond)

	try := make(chan error, 1)
	go func() { try <- p.TrySubmit(func() {}) }()
	assert.ErrorIs(t, recvErr(t, try, "TrySubmit"), ErrPoolFull)

	cancel()
	assert.ErrorIs(t, recvErr(t, blocked, "blocked Submit"), context.Canceled)
}
