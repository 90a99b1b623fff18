// Package fanout splits per-app work into chunks processed in parallel and
// gathers the results.
package fanout

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	minChunkSize = 3
	maxChunkSize = 10
)

// OptimalChunkSize picks a chunk size for n items so that every CPU gets
// work, clamped to [3, 10].
func OptimalChunkSize(n int) int {
	return chunkSizeFor(n, runtime.NumCPU())
}

func chunkSizeFor(n, cpus int) int {
	if cpus < 1 {
		cpus = 1
	}
	size := (n + cpus - 1) / cpus
	if size < minChunkSize {
		return minChunkSize
	}
	if size > maxChunkSize {
		return maxChunkSize
	}
	return size
}

// Chunks splits items into consecutive slices of at most size elements.
func Chunks[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}

// Gather runs fn over every item, one goroutine per chunk, and collects the
// non-nil results. fn reports "no result" by returning false; it must not
// fail the whole gather, so errors are its own to log. Result order is
// unspecified.
func Gather[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, bool)) []R {
	chunks := Chunks(items, OptimalChunkSize(len(items)))
	results := make([][]R, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			for _, item := range chunk {
				if gctx.Err() != nil {
					return nil
				}
				if r, ok := fn(gctx, item); ok {
					results[i] = append(results[i], r)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []R
	for _, rs := range results {
		out = append(out, rs...)
	}
	return out
}
