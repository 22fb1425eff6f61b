// Package workerpool runs tasks on a fixed number of goroutines.
//
//	pool := workerpool.New(4)
//	for _, id := range ids {
//		pool.SubmitWait(func() { restore(id) })
//	}
//	pool.Shutdown() // waits for queued tasks
package workerpool

import (
	"errors"
	"sync"

	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

var (
	ErrPoolFull   = errors.New("workerpool: pool is full")
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	closing sync.Once
}

// New starts size workers. The queue holds twice as many pending tasks.
func New(size int) *Pool {
	size = max(size, 1)
	p := &Pool{tasks: make(chan func(), size*2)}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Submit queues task without blocking. It returns ErrPoolFull when the
// queue is at capacity.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait queues task, blocking while the queue is full.
func (p *Pool) SubmitWait(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	p.tasks <- task
	return nil
}

// Shutdown stops intake and returns once every queued task has run.
func (p *Pool) Shutdown() {
	p.closing.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.tasks)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		run(task)
	}
}

func run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "panic", r)
		}
	}()
	task()
}
