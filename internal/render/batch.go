package render

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// BatchItem is the outcome of one request of a batch
type BatchItem struct {
	Request Request
	Result  Result
	Err     error
}

// RenderAll renders reqs with at most workers renders running at once.
// Items are returned in request order; a failed request doesn't stop the
// others.
func (r *Renderer) RenderAll(ctx context.Context, reqs []Request, workers int) []BatchItem {
	if workers < 1 {
		workers = 1
	}

	items := make([]BatchItem, len(reqs))
	p := pool.New().WithMaxGoroutines(workers)
	for i, req := range reqs {
		p.Go(func() {
			res, err := r.Render(ctx, req)
			items[i] = BatchItem{Request: req, Result: res, Err: err}
		})
	}
	p.Wait()

	return items
}
