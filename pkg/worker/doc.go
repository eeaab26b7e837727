// Package worker provides a generic, thread-safe worker pool for concurrent task processing.
//
// # Overview
//
// The ingestion pipeline embeds catalog records concurrently; this pool
// bounds that concurrency, tracks per-item outcomes and exposes optional
// Prometheus instrumentation through the metric registry.
//
// # Usage
//
//	pool := worker.NewPool(8, 256, func(ctx context.Context, rec Record) error {
//	    return embed(ctx, rec)
//	})
//	pool.Start(ctx)
//	defer pool.Stop(5 * time.Second)
//
//	if err := pool.Submit(rec); err != nil {
//	    // queue full or pool not running
//	}
//
// Submit is non-blocking: when the queue is full the item is dropped and
// ErrQueueFull returned, leaving backpressure decisions to the caller.
package worker
