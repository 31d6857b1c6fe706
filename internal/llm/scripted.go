package llm

import (
	"context"
	"sync"
)

// ScriptedClient replays a fixed sequence of completions. It backs offline
// runs and tests: queue the completions the "model" should produce, then
// drive the engine and inspect the recorded requests.
type ScriptedClient struct {
	mu        sync.Mutex
	queue     []*Completion
	requests  []Request
	onRequest func(ctx context.Context, req Request) (*Completion, error)
}

// NewScriptedClient creates an empty scripted client. With no queued
// completions and no handler it answers every request with empty text.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// Enqueue appends completions to the replay queue.
func (c *ScriptedClient) Enqueue(completions ...*Completion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, completions...)
}

// SetHandler installs a function consulted when the queue is empty.
// Useful for tests that need request-dependent answers or blocking on the
// caller's context.
func (c *ScriptedClient) SetHandler(fn func(ctx context.Context, req Request) (*Completion, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRequest = fn
}

// Requests returns a copy of every request seen so far.
func (c *ScriptedClient) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Request, len(c.requests))
	copy(out, c.requests)
	return out
}

// Complete implements Client.
func (c *ScriptedClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.requests = append(c.requests, req)
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()
		return next, nil
	}
	handler := c.onRequest
	c.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}
	return &Completion{}, nil
}
