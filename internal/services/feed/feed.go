package feed

import (
	"context"

	"feedcast/internal/store"
)

// Source yields one page of posts per call. An empty NextCursor means the
// feed is exhausted.
type Source interface {
	FetchPage(ctx context.Context, session Session, cursor string) (Page, error)
}

// Page is one fetched slice of a timeline.
type Page struct {
	Posts      []store.Post
	NextCursor string
}
