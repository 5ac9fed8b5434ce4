package harvest

import (
	"context"
	"time"
)

// Pauser abstracts the politeness delay inserted between consecutive
// fetches against a target site.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// TimerPauser sleeps for the delay but wakes early on cancellation.
type TimerPauser struct{}

// Pause blocks for delay or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SeenSet tracks URLs already collected in this run. It is not safe for
// concurrent use; each pipeline run is single-threaded by design.
type SeenSet struct {
	seen map[string]struct{}
}

// NewSeenSet returns an empty tracker.
func NewSeenSet() *SeenSet {
	return &SeenSet{seen: make(map[string]struct{})}
}

// MarkIfNew stores the URL if it has not been seen before and returns true.
func (s *SeenSet) MarkIfNew(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := s.seen[url]; ok {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Len returns the number of tracked URLs.
func (s *SeenSet) Len() int {
	return len(s.seen)
}
