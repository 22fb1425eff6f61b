package workerpool_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/ferremas/pkg/workerpool"
)

func TestShutdownDrainsQueue(t *testing.T) {
	pool := workerpool.New(3)
	var count atomic.Int64
	for i := 0; i < 40; i++ {
		require.NoError(t, pool.SubmitWait(func() {
			time.Sleep(time.Millisecond)
			count.Add(1)
		}))
	}
	pool.Shutdown()
	assert.EqualValues(t, 40, count.Load())
}

func TestSubmitReportsFullQueue(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.SubmitWait(func() {
		close(started)
		<-block
	}))
	<-started

	// queue holds 2 for a single worker
	require.NoError(t, pool.Submit(func() {}))
	require.NoError(t, pool.Submit(func() {}))
	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolFull)
	close(block)
}

func TestClosedPoolRejects(t *testing.T) {
	pool := workerpool.New(2)
	pool.Shutdown()
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.SubmitWait(func() {}), workerpool.ErrPoolClosed)
}

func TestPanickingTaskKeepsWorkerAlive(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.SubmitWait(func() {
		defer wg.Done()
		panic("boom")
	}))
	wg.Wait()

	done := make(chan struct{})
	require.NoError(t, pool.SubmitWait(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive the panic")
	}
}
