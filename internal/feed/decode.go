package feed

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/dmelim/folio/internal/model"
	"github.com/dmelim/folio/internal/store"
)

// decodePosts maps raw documents to posts and orders them newest first. A
// missing or unreadable timestamp sorts as 0 (oldest); equal timestamps keep
// the store's emission order.
func decodePosts(docs []store.Document) []model.Post {
	posts := make([]model.Post, 0, len(docs))
	for _, doc := range docs {
		posts = append(posts, model.Post{
			ID:        model.PostID(doc.ID),
			Title:     fieldString(doc.Fields, "title"),
			Content:   fieldString(doc.Fields, "content"),
			Author:    fieldString(doc.Fields, "author"),
			Timestamp: fieldInt64(doc.Fields, "timestamp"),
		})
	}

	slices.SortStableFunc(posts, func(a, b model.Post) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})

	return posts
}

func fieldString(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func fieldInt64(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
