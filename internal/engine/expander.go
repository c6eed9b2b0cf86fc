package engine

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/ytget/dlqueue/internal/fetch"
	"github.com/ytget/dlqueue/internal/model"
)

// expander turns one submitted URL into the list of items to download.
type expander struct {
	fetcher fetch.Fetcher
}

type expansion struct {
	title string
	items []fetch.Item
}

// Expand resolves a URL. Collections fan out into one item per resolvable
// entry, preserving the reported order; everything else yields a single
// item for the original URL. A resolution error produces zero items and
// is reported by the caller against the original URL.
func (e *expander) Expand(ctx context.Context, url string, opts model.Options) (*expansion, error) {
	meta, err := e.fetcher.Resolve(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	if !meta.IsCollection {
		return &expansion{
			title: meta.Title,
			items: []fetch.Item{{URL: url, Title: meta.Title}},
		}, nil
	}

	items := make([]fetch.Item, 0, len(meta.Items))
	for _, item := range meta.Items {
		if item.URL == "" {
			// Unresolvable entry, a partial failure
			log.Debugf("dropping unresolvable playlist entry in %s", url)
			continue
		}
		items = append(items, item)
	}

	return &expansion{title: meta.Title, items: items}, nil
}
