// Package blog exposes the create/update/delete operations against the post
// collection. Every write is validated client-side first; the snapshot is
// never touched locally — new state arrives via the next feed emission.
package blog

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmelim/folio/internal/config"
	"github.com/dmelim/folio/internal/model"
	"github.com/dmelim/folio/internal/store"
)

var blogLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	blogLogger = l
}

type Gateway struct {
	store    store.Store
	appID    string
	author   string
	identity model.Identity

	now func() int64
}

func NewGateway(st store.Store, appID, author string, id model.Identity) *Gateway {
	return &Gateway{
		store:    st,
		appID:    appID,
		author:   author,
		identity: id,
		now: func() int64 {
			return time.Now().UnixMilli()
		},
	}
}

// Create writes a new post from the draft. Author is the configured display
// label, timestamp is the call time; both are fixed at creation.
func (g *Gateway) Create(ctx context.Context, d model.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}

	fields := map[string]any{
		"title":     d.Title,
		"content":   d.Content,
		"author":    g.author,
		"timestamp": g.now(),
	}

	id, err := g.store.Create(ctx, g.collection(), fields)
	if err != nil {
		return fmt.Errorf("error creating post: %w", err)
	}

	blogLogger.Info().Str("post_id", id).Str("title", d.Title).Msg("Post created")
	return nil
}

// Update overwrites only title and content; author and timestamp stay as
// created. Existence of the post is not pre-checked.
func (g *Gateway) Update(ctx context.Context, id model.PostID, d model.Draft) error {
	if err := d.Validate(); err != nil {
		return err
	}

	fields := map[string]any{
		"title":   d.Title,
		"content": d.Content,
	}

	if err := g.store.Update(ctx, g.document(id), fields); err != nil {
		return fmt.Errorf("error updating post %s: %w", id, err)
	}

	blogLogger.Info().Str("post_id", string(id)).Str("title", d.Title).Msg("Post updated")
	return nil
}

// Delete removes the post permanently. There is no soft-delete and no undo.
func (g *Gateway) Delete(ctx context.Context, id model.PostID) error {
	if err := g.store.Delete(ctx, g.document(id)); err != nil {
		return fmt.Errorf("error deleting post %s: %w", id, err)
	}

	blogLogger.Info().Str("post_id", string(id)).Msg("Post deleted")
	return nil
}

func (g *Gateway) collection() string {
	return config.PostsCollection(g.appID, string(g.identity))
}

func (g *Gateway) document(id model.PostID) string {
	return config.PostDocument(g.appID, string(g.identity), string(id))
}
