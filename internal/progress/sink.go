package progress

import "context"

// Sink consumes batches of progress events.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it; fetchers and the
// harvester depend only on this.
type Emitter interface {
	Emit(evt Event)
}
