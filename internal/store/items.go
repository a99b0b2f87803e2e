package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/inventar/internal/live"
	"github.com/erazemk/inventar/internal/model"
)

// ItemsTable is the table name carried by item changes.
const ItemsTable = "items"

const itemColumns = `id, name, description, type, image_mime`

// Items is the durable item table. Every write goes through the tracker so
// live queries over the table are refreshed after it commits.
type Items struct {
	db      *sql.DB
	tracker *live.Tracker
}

// NewItems wraps an open, migrated database.
func NewItems(db *sql.DB, tracker *live.Tracker) *Items {
	return &Items{db: db, tracker: tracker}
}

// Insert stores item. An ID of 0 lets the database assign one; any other ID is
// stored as given and fails with ErrConstraint if taken. The assigned ID is
// written back to item and returned.
func (s *Items) Insert(ctx context.Context, item *model.Item) (int64, error) {
	err := s.tracker.Commit(ctx, func(ctx context.Context) ([]live.Change, error) {
		var result sql.Result
		var err error
		if item.ID == 0 {
			result, err = s.db.ExecContext(ctx,
				`INSERT INTO items (name, description, type) VALUES (?, ?, ?)`,
				item.Name, item.Description, item.Type,
			)
		} else {
			result, err = s.db.ExecContext(ctx,
				`INSERT INTO items (id, name, description, type) VALUES (?, ?, ?, ?)`,
				item.ID, item.Name, item.Description, item.Type,
			)
		}
		if err != nil {
			if isConstraint(err) {
				return nil, fmt.Errorf("inserting item: %w: %v", ErrConstraint, err)
			}
			return nil, fmt.Errorf("inserting item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("getting item id: %w", err)
		}
		item.ID = id
		return []live.Change{{Table: ItemsTable, ID: id, Op: live.OpInsert}}, nil
	})
	if err != nil {
		return 0, err
	}
	return item.ID, nil
}

// Update replaces the name, description and type of the row with item.ID.
// Updating a missing row is not an error and changes nothing.
func (s *Items) Update(ctx context.Context, item model.Item) error {
	return s.tracker.Commit(ctx, func(ctx context.Context) ([]live.Change, error) {
		result, err := s.db.ExecContext(ctx,
			`UPDATE items SET name = ?, description = ?, type = ? WHERE id = ?`,
			item.Name, item.Description, item.Type, item.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("updating item: %w", err)
		}
		return changed(result, item.ID, live.OpUpdate)
	})
}

// Delete removes the row with item.ID. Deleting a missing row is not an error.
func (s *Items) Delete(ctx context.Context, item model.Item) error {
	return s.tracker.Commit(ctx, func(ctx context.Context) ([]live.Change, error) {
		result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, item.ID)
		if err != nil {
			return nil, fmt.Errorf("deleting item: %w", err)
		}
		return changed(result, item.ID, live.OpDelete)
	})
}

// SetImage replaces an item's photo.
func (s *Items) SetImage(ctx context.Context, id int64, image []byte, mime string) error {
	return s.tracker.Commit(ctx, func(ctx context.Context) ([]live.Change, error) {
		result, err := s.db.ExecContext(ctx,
			`UPDATE items SET image = ?, image_mime = ? WHERE id = ?`,
			image, mime, id,
		)
		if err != nil {
			return nil, fmt.Errorf("setting item image: %w", err)
		}
		return changed(result, id, live.OpUpdate)
	})
}

// Image returns an item's photo and its MIME type. Both are empty when the
// item or its photo does not exist.
func (s *Items) Image(ctx context.Context, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

// Get returns an item by ID, or nil if there is none.
func (s *Items) Get(ctx context.Context, id int64) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// List returns all items in ascending ID order. The result is never nil.
func (s *Items) List(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// QueryAll returns the live item collection, ordered by ID.
func (s *Items) QueryAll() *live.Query[[]model.Item] {
	return live.NewQuery(s.tracker, s.List, live.Table(ItemsTable))
}

// QueryOne returns a live view of a single item. The value is nil while the
// item does not exist.
func (s *Items) QueryOne(id int64) *live.Query[*model.Item] {
	return live.NewQuery(s.tracker, func(ctx context.Context) (*model.Item, error) {
		return s.Get(ctx, id)
	}, live.Row(ItemsTable, id))
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.Item, error) {
	item := &model.Item{}
	var mime sql.NullString
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Type, &mime); err != nil {
		return nil, err
	}
	item.ImageMime = mime.String
	return item, nil
}

// changed reports a single-row change when the statement touched a row.
func changed(result sql.Result, id int64, op live.Op) ([]live.Change, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("counting affected rows: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return []live.Change{{Table: ItemsTable, ID: id, Op: op}}, nil
}
