// Package repository exposes item persistence to the service layer.
package repository

import (
	"context"

	"github.com/erazemk/inventar/internal/live"
	"github.com/erazemk/inventar/internal/model"
	"github.com/erazemk/inventar/internal/store"
)

// Items forwards every call to the underlying store.
type Items struct {
	store *store.Items
}

// NewItems wraps an item store.
func NewItems(s *store.Items) *Items {
	return &Items{store: s}
}

func (r *Items) Insert(ctx context.Context, item *model.Item) (int64, error) {
	return r.store.Insert(ctx, item)
}

func (r *Items) Update(ctx context.Context, item model.Item) error {
	return r.store.Update(ctx, item)
}

func (r *Items) Delete(ctx context.Context, item model.Item) error {
	return r.store.Delete(ctx, item)
}

func (r *Items) QueryAll() *live.Query[[]model.Item] {
	return r.store.QueryAll()
}

func (r *Items) QueryOne(id int64) *live.Query[*model.Item] {
	return r.store.QueryOne(id)
}

func (r *Items) SetImage(ctx context.Context, id int64, data []byte, mime string) error {
	return r.store.SetImage(ctx, id, data, mime)
}

func (r *Items) Image(ctx context.Context, id int64) ([]byte, string, error) {
	return r.store.Image(ctx, id)
}
