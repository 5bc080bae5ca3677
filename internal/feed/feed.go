// Package feed connects to the marketplace sale feed and hands each push to a handler.
package feed

import (
	"context"

	"skinport-sniper/internal/market"
)

// Handler consumes one feed push. Calls are sequential.
type Handler func(ctx context.Context, batch market.Batch)

// Subscriber delivers feed pushes to handler until ctx is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, handler Handler) error
}
