package embedder

import (
	"context"
	"sync"
)

// Gate serializes access to an Embedder that must not be called concurrently.
//
// Two locks are involved. model guards the embedder itself. queue is taken
// first by background callers, so at most one background call waits on model
// at a time. A priority caller skips queue and competes for model directly,
// which bounds its wait to the one background call already in flight.
type Gate struct {
	embedder Embedder
	model    sync.Mutex
	queue    sync.Mutex
}

// NewGate wraps e.
func NewGate(e Embedder) *Gate {
	return &Gate{embedder: e}
}

// Embed runs a background embedding call behind the fairness lock.
func (g *Gate) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	g.queue.Lock()
	defer g.queue.Unlock()
	return g.run(ctx, texts)
}

// EmbedPriority runs an interactive embedding call, bypassing queued background work.
func (g *Gate) EmbedPriority(ctx context.Context, texts []string) ([][]float32, error) {
	return g.run(ctx, texts)
}

func (g *Gate) run(ctx context.Context, texts []string) ([][]float32, error) {
	g.model.Lock()
	defer g.model.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.embedder.Embed(ctx, texts)
}

// Embedder returns the wrapped embedder.
func (g *Gate) Embedder() Embedder {
	return g.embedder
}
