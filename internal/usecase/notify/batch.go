package notify

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// BatchConfig bounds how a channel submits work to its provider.
type BatchConfig struct {
	// Size is the number of items per batch (per request for chunked sends).
	Size int

	// Concurrency caps the number of items (or chunks) in flight within a batch.
	Concurrency int

	// Delay is waited between consecutive batches. It blocks only the
	// calling channel.
	Delay time.Duration

	// OnBatch, if set, is called before each batch starts with its index and size.
	OnBatch func(index, size int)
}

func (c BatchConfig) normalized() BatchConfig {
	if c.Size < 1 {
		c.Size = 1
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	return c
}

// RunBatched calls fn once per item, splitting items into batches of cfg.Size.
// Batches run one after another with cfg.Delay between them; items within a
// batch run concurrently, at most cfg.Concurrency at a time.
//
// The returned slice has one result per item at the item's index. Items that
// are never started because ctx ended, and items whose fn panicked, get the
// result of abort.
func RunBatched[T, R any](ctx context.Context, items []T, cfg BatchConfig, fn func(context.Context, T) R, abort func(T, error) R) []R {
	cfg = cfg.normalized()
	return runWaves(ctx, items, cfg.Size, cfg, abort, func(ctx context.Context, batch []T, out []R) {
		var g errgroup.Group
		g.SetLimit(cfg.Concurrency)
		for i := range batch {
			g.Go(func() error {
				defer recoverInto(func(err error) { out[i] = abort(batch[i], err) })
				out[i] = fn(ctx, batch[i])
				return nil
			})
		}
		_ = g.Wait()
	})
}

// RunChunked calls fn once per chunk of cfg.Size items, for providers with a
// bulk endpoint. Up to cfg.Concurrency chunks form one batch and run
// concurrently; cfg.Delay is waited between batches.
//
// fn must return one result per chunk item, positionally aligned. Short or
// long returns are padded with abort results or truncated.
func RunChunked[T, R any](ctx context.Context, items []T, cfg BatchConfig, fn func(context.Context, []T) []R, abort func(T, error) R) []R {
	cfg = cfg.normalized()
	return runWaves(ctx, items, cfg.Size*cfg.Concurrency, cfg, abort, func(ctx context.Context, wave []T, out []R) {
		var g errgroup.Group
		for start := 0; start < len(wave); start += cfg.Size {
			end := min(start+cfg.Size, len(wave))
			chunk := wave[start:end]
			dst := out[start:end]
			g.Go(func() error {
				defer recoverInto(func(err error) {
					for i := range chunk {
						dst[i] = abort(chunk[i], err)
					}
				})
				got := fn(ctx, chunk)
				for i := range chunk {
					if i < len(got) {
						dst[i] = got[i]
					} else {
						dst[i] = abort(chunk[i], fmt.Errorf("missing result for item %d of chunk", i))
					}
				}
				return nil
			})
		}
		_ = g.Wait()
	})
}

// runWaves splits items into consecutive waves of waveSize and calls process
// for each, sleeping cfg.Delay between waves. Once ctx ends, the remaining
// items are filled with abort results.
func runWaves[T, R any](ctx context.Context, items []T, waveSize int, cfg BatchConfig, abort func(T, error) R, process func(context.Context, []T, []R)) []R {
	out := make([]R, len(items))
	index := 0

	for start := 0; start < len(items); start += waveSize {
		end := min(start+waveSize, len(items))

		if start > 0 && cfg.Delay > 0 {
			if err := sleepCtx(ctx, cfg.Delay); err != nil {
				fillAborted(items[start:], out[start:], abort, err)
				return out
			}
		}
		if err := ctx.Err(); err != nil {
			fillAborted(items[start:], out[start:], abort, err)
			return out
		}

		if cfg.OnBatch != nil {
			cfg.OnBatch(index, end-start)
		}
		process(ctx, items[start:end], out[start:end])
		index++
	}

	return out
}

func fillAborted[T, R any](items []T, out []R, abort func(T, error) R, err error) {
	for i := range items {
		out[i] = abort(items[i], err)
	}
}

// sleepCtx waits for d or until ctx ends.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// recoverInto converts a panic into an error passed to onPanic.
// It must be deferred directly.
func recoverInto(onPanic func(error)) {
	if r := recover(); r != nil {
		slog.Error("panic in batch worker",
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())))
		onPanic(fmt.Errorf("panic: %v", r))
	}
}
