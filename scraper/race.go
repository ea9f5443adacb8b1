package scraper

import (
	"context"
	"sync"
	"time"
)

// firstTrue runs every arm concurrently and returns the index of the first
// arm that reports true, or -1 when none does. Once a winner is known the
// shared context is cancelled; firstTrue returns only after every arm has
// exited, so no arm keeps using the session afterwards.
func firstTrue(ctx context.Context, arms ...func(context.Context) bool) int {
	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan int, len(arms))
	var wg sync.WaitGroup

	for i, arm := range arms {
		wg.Add(1)
		go func(i int, arm func(context.Context) bool) {
			defer wg.Done()
			if arm(raceCtx) {
				results <- i
				return
			}
			results <- -1
		}(i, arm)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	winner := -1
	for i := range results {
		if i >= 0 && winner < 0 {
			winner = i
			raceCancel()
		}
	}
	return winner
}

// sleepCtx waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
