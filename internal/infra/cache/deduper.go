package cache

import (
	"context"
	"time"
)

// Deduper is an in-process port.EventDeduper. Processed ids are forgotten
// after ttl, and on restart.
type Deduper struct {
	seen *InMemory[struct{}]
}

// NewDeduper creates a deduper that remembers ids for ttl.
func NewDeduper(ttl time.Duration) *Deduper {
	return &Deduper{seen: New[struct{}](ttl)}
}

func (d *Deduper) Seen(_ context.Context, eventID string) (bool, error) {
	_, ok := d.seen.Get(eventID)
	return ok, nil
}

func (d *Deduper) Mark(_ context.Context, eventID string) error {
	d.seen.Set(eventID, struct{}{})
	return nil
}

// Close stops the underlying cache cleanup.
func (d *Deduper) Close() { d.seen.Close() }
