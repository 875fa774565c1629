package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher retrieves one listing page. Failures are reported in the result,
// never as a panic or a separate error.
type Fetcher interface {
	Fetch(ctx context.Context, addr SourceAddress) FetchResult
}

// Extractor turns a raw page into ordered publication records.
type Extractor interface {
	Extract(page RawPage) ([]PublicationRecord, error)
}

// Sink receives completed datasets.
type Sink interface {
	Write(ctx context.Context, ds Dataset) error
}

// Resetter is implemented by sinks that must start each run empty.
type Resetter interface {
	Reset(ctx context.Context) error
}

// BlobStore writes serialized datasets and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	// DeletePrefix removes every object under prefix and reports how many went.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Publisher pushes dataset notifications to Pub/Sub (or similar).
// The topic argument may be ignored by publishers bound to a single topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
