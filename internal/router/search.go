package router

import (
	"context"

	"github.com/XiaoConstantine/reposcout/internal/types"
)

// Outcome is the terminal value of one search session.
type Outcome struct {
	Result *types.Result
	Err    error
}

// SearchService presents the router behind a synchronous call contract: each
// call hands the session to its own worker goroutine and blocks until the
// worker delivers an outcome or the context is canceled. Callers get plain
// request/response semantics even though sessions run concurrently.
type SearchService struct {
	router *Router
}

// NewSearchService wraps a router.
func NewSearchService(r *Router) *SearchService {
	return &SearchService{router: r}
}

// Search runs one query to completion. On context cancellation the worker is
// abandoned; its session observes the same cancellation through ctx.
func (s *SearchService) Search(ctx context.Context, query string, opts ...ExecuteOption) (*types.Result, error) {
	select {
	case outcome := <-s.SearchAsync(ctx, query, opts...):
		return outcome.Result, outcome.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// SearchAsync starts a session worker and returns the channel its outcome
// will be delivered on. The channel is buffered, so an abandoned worker can
// always complete its send.
func (s *SearchService) SearchAsync(ctx context.Context, query string, opts ...ExecuteOption) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		result, err := s.router.Execute(ctx, query, opts...)
		ch <- Outcome{Result: result, Err: err}
	}()
	return ch
}
