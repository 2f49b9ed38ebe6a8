package playback

import "github.com/vikify/resolver/internal/models"

// DefaultPrefetchCount is how many upcoming tracks are warmed when no count is given.
const DefaultPrefetchCount = 3

// Prefetcher issues a non-blocking preload for one track and reports whether it did.
type Prefetcher interface {
	Prefetch(track models.TrackRef) bool
}

// QueuePrefetcher warms the tracks that follow the current queue position.
type QueuePrefetcher struct {
	prefetcher Prefetcher
	count      int
}

// NewQueuePrefetcher creates a prefetcher. A non-positive count uses [DefaultPrefetchCount].
func NewQueuePrefetcher(p Prefetcher, count int) *QueuePrefetcher {
	if count <= 0 {
		count = DefaultPrefetchCount
	}
	return &QueuePrefetcher{prefetcher: p, count: count}
}

// PreloadQueue prefetches queue[currentIndex+1 .. currentIndex+count] in order, clamped to the queue.
//
// A non-positive count uses the prefetcher's default. An empty queue or out-of-range index is a no-op.
// Returns the ids for which a request was issued; skipped tracks are not listed.
func (q *QueuePrefetcher) PreloadQueue(queue []models.TrackRef, currentIndex, count int) []string {
	if len(queue) == 0 || currentIndex < 0 || currentIndex >= len(queue) {
		return nil
	}
	if count <= 0 {
		count = q.count
	}

	end := min(currentIndex+count, len(queue)-1)
	var issued []string
	for i := currentIndex + 1; i <= end; i++ {
		if q.prefetcher.Prefetch(queue[i]) {
			issued = append(issued, queue[i].ID)
		}
	}
	return issued
}
