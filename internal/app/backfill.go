package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"findmyroom/internal/domain"
)

// BackfillReport summarizes one backfill pass.
type BackfillReport struct {
	Scanned    int
	Located    int
	Unresolved int
	Failed     int
}

// Backfill resolves coordinates for up to batch listings stored without them,
// with at most workers resolutions in flight.
func (s *ListingService) Backfill(ctx context.Context, workers, batch int) (BackfillReport, error) {
	if workers <= 0 {
		workers = 1
	}
	pending, err := s.repo.ListUnlocated(ctx, batch)
	if err != nil {
		return BackfillReport{}, err
	}

	var (
		mu  sync.Mutex
		rep = BackfillReport{Scanned: len(pending)}
		wg  sync.WaitGroup
		sem = semaphore.NewWeighted(int64(workers))
	)
	for _, l := range pending {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		wg.Add(1)
		go func(l domain.Listing) {
			defer wg.Done()
			defer sem.Release(1)

			ok, err := s.Relocate(ctx, l.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				rep.Failed++
				log.Warn().Str("id", l.ID).Err(err).Msg("relocate failed")
			case ok:
				rep.Located++
				log.Debug().Str("id", l.ID).Msg("relocate ok")
			default:
				rep.Unresolved++
			}
		}(l)
	}

	wg.Wait()
	return rep, ctx.Err()
}
