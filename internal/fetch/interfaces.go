package fetch

import (
	"context"
	"fmt"

	"github.com/ytget/dlqueue/internal/model"
)

// Item is one concrete media entry discovered during resolution.
type Item struct {
	URL   string
	ID    string
	Title string
}

// Metadata describes what a submitted URL points at. For collections the
// Items slice holds one entry per resolvable member, in reported order.
type Metadata struct {
	Title        string
	IsCollection bool
	Items        []Item
}

// Events carries the callbacks a transfer reports through. Any of the
// fields may be nil.
type Events struct {
	OnProgress func(percent float64)
	OnTitle    func(title string)
	OnStatus   func(text string)
}

// DestinationExistsError signals that the transfer target already exists
// on disk and overwriting was not allowed. The engine reacts by asking the
// controller for an overwrite decision.
type DestinationExistsError struct {
	Path string
}

func (e *DestinationExistsError) Error() string {
	return fmt.Sprintf("destination file already exists: %s", e.Path)
}

// Fetcher defines the interface for the media fetcher boundary.
type Fetcher interface {
	// Resolve fetches metadata for a URL without downloading anything.
	Resolve(ctx context.Context, url string, opts model.Options) (*Metadata, error)

	// ExpectedOutputPath returns the path a download of url would produce
	// under the given options, without downloading.
	ExpectedOutputPath(ctx context.Context, url string, opts model.Options) (string, error)

	// Fetch performs the transfer. When the destination already exists and
	// overwrite is false it returns *DestinationExistsError before writing
	// any bytes; this check is repeated here, immediately before the
	// transfer, so it stays atomic with the write. Cancellation is observed
	// through ctx.
	Fetch(ctx context.Context, url string, opts model.Options, overwrite bool, events Events) error
}
