package llm

import "context"

// LimitedProvider bounds the number of in-flight completion calls.
// Excess requests queue until a slot frees up or their context is
// cancelled; cancelling one waiter never affects another.
type LimitedProvider struct {
	provider Provider
	slots    chan struct{}
}

// NewLimitedProvider wraps the given provider with a concurrency limit
// sized to the upstream API's rate limit.
func NewLimitedProvider(provider Provider, maxConcurrent int) *LimitedProvider {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &LimitedProvider{
		provider: provider,
		slots:    make(chan struct{}, maxConcurrent),
	}
}

func (l *LimitedProvider) Name() string { return l.provider.Name() }

func (l *LimitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-l.slots }()

	return l.provider.Complete(ctx, req)
}
