package chatsync

import (
	"context"
	"sync"

	"github.com/glasschat/glasschat-client/internal/content"
)

// ImageFetcher loads the bytes of one image.
type ImageFetcher func(ctx context.Context, id string) ([]byte, error)

// ImageResult is the outcome of loading one image of a batch.
type ImageResult struct {
	ID   string
	Data []byte
	Err  error
}

// maxImageFetches bounds concurrent image downloads per batch.
const maxImageFetches = 4

// ImageIDs lists the image identifiers in items, in order, without
// duplicates.
func ImageIDs(items []Item) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, it := range items {
		if it.Content.Kind != content.KindImage || seen[it.Content.ImageID] {
			continue
		}
		seen[it.Content.ImageID] = true
		ids = append(ids, it.Content.ImageID)
	}
	return ids
}

// PrefetchImages loads every image referenced by items and returns once all
// of them have either loaded or failed. Callers scroll to the bottom after
// it returns so late-arriving images cannot push the view up.
func PrefetchImages(ctx context.Context, items []Item, fetch ImageFetcher) []ImageResult {
	ids := ImageIDs(items)
	results := make([]ImageResult, len(ids))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxImageFetches)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = ImageResult{ID: id, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			data, err := fetch(ctx, id)
			results[i] = ImageResult{ID: id, Data: data, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}
