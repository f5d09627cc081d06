package api

import "sync"

type poolJob[T any] struct {
	idx     int
	payload T
}

// mapConcurrent applies fn to every item using a fixed-size worker pool
// and returns the results in input order.
func mapConcurrent[T, R any](workers int, items []T, fn func(T) R) []R {
	if workers <= 0 || workers > len(items) {
		workers = len(items)
	}
	out := make([]R, len(items))
	jobs := make(chan poolJob[T])

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				out[j.idx] = fn(j.payload)
			}
		}()
	}
	for i, item := range items {
		jobs <- poolJob[T]{idx: i, payload: item}
	}
	close(jobs)
	wg.Wait()
	return out
}
