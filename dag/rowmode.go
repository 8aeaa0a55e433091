package dag

import (
	"context"
	"sync"
	"time"
)

// defaultRowQueueCapacity bounds the producer/consumer queue for row-mode
// steps (spec §4.3.3: "a queue of capacity ~1024").
const defaultRowQueueCapacity = 1024

// defaultProgressInterval is the row-mode progress emission cadence.
const defaultProgressInterval = 200 * time.Millisecond

// flattenRows concatenates a row-mode step's dependency payloads into a
// single row sequence: a row contributes one element, a row list
// contributes each of its rows, in dependency order (spec §4.3.3, "inputs
// are the concatenation of all dependency payloads flattened to rows").
func flattenRows(deps []string, snapshot map[string]StepResult) []Row {
	var rows []Row
	for _, dep := range deps {
		switch v := snapshot[dep].(type) {
		case RowValue:
			rows = append(rows, v.Row)
		case RowsValue:
			rows = append(rows, v.Rows...)
		}
	}
	return rows
}

// runRowMode executes a row-mode step's producer/consumer pair: a producer
// goroutine feeds the flattened input rows into a bounded channel
// (backpressure by blocking send), a consumer goroutine applies fn to each
// row and accumulates emitted rows in source order, and onProgress is
// invoked at progressInterval cadence with the current emitted row count.
// Returns the concatenation of every emitted row.
func runRowMode(ctx context.Context, fn RowFunc, input []Row, queueCap int, progressInterval time.Duration, onProgress func(outputLines int)) ([]Row, error) {
	if queueCap <= 0 {
		queueCap = defaultRowQueueCapacity
	}
	if progressInterval <= 0 {
		progressInterval = defaultProgressInterval
	}

	queue := make(chan Row, queueCap)
	go func() {
		defer close(queue)
		for _, row := range input {
			select {
			case queue <- row:
			case <-ctx.Done():
				return
			}
		}
	}()

	var mu sync.Mutex
	var out []Row
	result := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for row := range queue {
			emission, err := fn(ctx, row)
			if err != nil {
				result <- err
				return
			}
			if len(emission.Rows) > 0 {
				mu.Lock()
				out = append(out, emission.Rows...)
				mu.Unlock()
			}
		}
		result <- nil
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if err := <-result; err != nil {
				return nil, err
			}
			return out, nil
		case <-ticker.C:
			mu.Lock()
			n := len(out)
			mu.Unlock()
			if onProgress != nil {
				onProgress(n)
			}
		}
	}
}
