package scraper

import (
	"context"
	"time"
)

// Fetcher performs GET and HEAD requests against the source site.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// LedgerView answers whether a file URL was processed in a previous run.
type LedgerView interface {
	Seen(url string) bool
}

// QuotaView exposes the upload-limit latch to the traversal.
type QuotaView interface {
	LimitReached() bool
}

// Sink consumes documents emitted by the traversal.
type Sink interface {
	Process(ctx context.Context, doc *Document) error
}

// Archive submits documents to the document archive.
type Archive interface {
	Upload(ctx context.Context, upload Upload) error
}

// Mailer delivers the end-of-run report.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// Publisher pushes upload notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces execution IDs.
type IDGenerator interface {
	NewID() (string, error)
}
