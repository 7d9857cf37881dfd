// Package refresh coordinates background work that may be superseded:
// catalog refreshes per connection and queries per editor buffer.
package refresh

import (
	"context"
	"sync"
)

// Token identifies one task started with Begin.
type Token struct {
	Key string
	gen uint64
}

type task struct {
	gen    uint64
	cancel context.CancelFunc
}

// Coordinator allows at most one live task per key. Beginning a task
// cancels the previous one for the same key, and only the newest task's
// results may be applied.
type Coordinator struct {
	mu    sync.Mutex
	next  uint64
	tasks map[string]task
}

func NewCoordinator() *Coordinator {
	return &Coordinator{tasks: make(map[string]task)}
}

// Begin starts a task for key, cancelling any task already running for it.
func (c *Coordinator) Begin(parent context.Context, key string) (context.Context, Token) {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.tasks[key]; ok {
		prev.cancel()
	}
	c.next++
	c.tasks[key] = task{gen: c.next, cancel: cancel}
	return ctx, Token{Key: key, gen: c.next}
}

// Current reports whether t is still the newest task for its key.
func (c *Coordinator) Current(t Token) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.tasks[t.Key]
	return ok && cur.gen == t.gen
}

// Finish releases t. It is a no-op for superseded tokens.
func (c *Coordinator) Finish(t Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.tasks[t.Key]; ok && cur.gen == t.gen {
		cur.cancel()
		delete(c.tasks, t.Key)
	}
}

// Cancel cancels the running task for key and reports whether there was one.
// The task's token is no longer current afterwards.
func (c *Coordinator) Cancel(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.tasks[key]
	if ok {
		cur.cancel()
		delete(c.tasks, key)
	}
	return ok
}

// Running reports whether a task is live for key.
func (c *Coordinator) Running(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[key]
	return ok
}

// CancelAll cancels every live task.
func (c *Coordinator) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, t := range c.tasks {
		t.cancel()
		delete(c.tasks, key)
	}
}
