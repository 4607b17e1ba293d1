// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import "context"

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Mailer delivers transactional e-mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// EventDeduper remembers processed webhook event ids so provider retries are
// acknowledged without repeating side effects.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}
