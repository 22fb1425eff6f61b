package queue

import (
	"context"
	"errors"
)

// ErrQueueFull is returned by MemoryDriver.Push when the buffer is full.
var ErrQueueFull = errors.New("queue: memory buffer full")

// MemoryDriver is an in-process, channel-backed driver. Not durable.
type MemoryDriver struct {
	ch chan []byte
}

// NewMemoryDriver buffers up to 1000 jobs.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{ch: make(chan []byte, 1000)}
}

func (d *MemoryDriver) Push(ctx context.Context, payload []byte) error {
	select {
	case d.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

// SyncDriver runs each job inline on Push. Used with QUEUE_DRIVER=sync and
// in tests that need the job's effect before asserting.
type SyncDriver struct {
	m *Manager
}

// NewSyncDriver binds a sync driver to m.
func NewSyncDriver(m *Manager) *SyncDriver { return &SyncDriver{m: m} }

func (d *SyncDriver) Push(ctx context.Context, payload []byte) error {
	d.m.Process(context.WithoutCancel(ctx), payload)
	return nil
}

// Pop blocks; nothing is ever queued.
func (d *SyncDriver) Pop(ctx context.Context) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
