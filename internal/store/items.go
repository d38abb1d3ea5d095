package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/fieldstock/internal/model"
)

const itemColumns = `id, name, total_quantity, reserved_quantity, created_at, updated_at, deleted_at`

// itemSortKeys maps the accepted sort keys to ORDER BY clauses. Keys outside
// this list are rejected rather than passed to SQL.
var itemSortKeys = map[string]string{
	"name":            "name COLLATE NOCASE ASC, id ASC",
	"-name":           "name COLLATE NOCASE DESC, id DESC",
	"quantity":        "total_quantity ASC, name COLLATE NOCASE ASC",
	"-quantity":       "total_quantity DESC, name COLLATE NOCASE ASC",
	"total_quantity":  "total_quantity ASC, name COLLATE NOCASE ASC",
	"-total_quantity": "total_quantity DESC, name COLLATE NOCASE ASC",
}

// DefaultItemSort is used when no sort key is given.
const DefaultItemSort = "name"

// ValidItemSort reports whether key is an accepted sort key. The empty key is valid.
func ValidItemSort(key string) bool {
	if key == "" {
		return true
	}
	_, ok := itemSortKeys[key]
	return ok
}

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(&item.ID, &item.Name, &item.TotalQuantity, &item.ReservedQuantity,
		&item.CreatedAt, &item.UpdatedAt, &item.DeletedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func getItem(ctx context.Context, q querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// activeItem returns a non-deleted item or a not-found error.
func activeItem(ctx context.Context, q querier, id int64) (*model.Item, error) {
	item, err := getItem(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if item == nil || item.DeletedAt != nil {
		return nil, notFound("item %d not found", id)
	}
	return item, nil
}

// adjustStock moves quantity in and out of an item's total and reserved pools.
// The result must satisfy 0 <= reserved <= total; anything that would dip into
// stock already promised elsewhere fails with an insufficient stock error.
// The UPDATE compares against the values just read, so a concurrent writer
// can never be silently overwritten.
func adjustStock(ctx context.Context, tx *sql.Tx, itemID int64, totalDelta, reservedDelta int) (*model.Item, error) {
	item, err := activeItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	newTotal := item.TotalQuantity + totalDelta
	newReserved := item.ReservedQuantity + reservedDelta
	if newReserved < 0 {
		return nil, fmt.Errorf("releasing %d units of item %d: only %d reserved", -reservedDelta, itemID, item.ReservedQuantity)
	}
	if newTotal < newReserved {
		return nil, insufficientStock(itemID, item.Available(), reservedDelta-totalDelta)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE items SET total_quantity = ?, reserved_quantity = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND total_quantity = ? AND reserved_quantity = ?`,
		newTotal, newReserved, itemID, item.TotalQuantity, item.ReservedQuantity,
	)
	if err != nil {
		return nil, fmt.Errorf("updating item stock: %w", err)
	}
	ok, err := expectOneRow(res)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("item %d changed concurrently", itemID)
	}

	item.TotalQuantity = newTotal
	item.ReservedQuantity = newReserved
	return item, nil
}

// CreateItem creates a new stock item with an initial quantity.
func CreateItem(ctx context.Context, db *sql.DB, name string, quantity int, userID *int64) (*model.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name required")
	}
	if quantity < 0 {
		return nil, invalid("quantity must not be negative")
	}

	var id int64
	err := withTx(ctx, db, "item creation", func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`INSERT INTO items (name, total_quantity) VALUES (?, ?)`,
			name, quantity,
		)
		if err != nil {
			return fmt.Errorf("creating item: %w", err)
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting item id: %w", err)
		}
		return recordMovement(ctx, tx, model.Movement{
			ItemID:     id,
			Reason:     model.MovementItemCreated,
			StockDelta: quantity,
			CreatedBy:  userID,
		})
	})
	if err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, including soft-deleted ones.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, id)
}

// ListItems returns all non-deleted items ordered by name.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	return SearchItems(ctx, db, "", DefaultItemSort)
}

// SearchItems returns non-deleted items whose name contains query, compared
// case-insensitively, ordered by one of the accepted sort keys.
func SearchItems(ctx context.Context, db *sql.DB, query, sortKey string) ([]model.Item, error) {
	if sortKey == "" {
		sortKey = DefaultItemSort
	}
	orderBy, ok := itemSortKeys[sortKey]
	if !ok {
		return nil, invalid("invalid sort key %q", sortKey)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE deleted_at IS NULL ORDER BY `+orderBy,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	// Matching happens here rather than in SQL because SQLite's lower() only
	// folds ASCII.
	needle := strings.ToLower(strings.TrimSpace(query))

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem changes an item's name and/or total quantity. Nil arguments keep
// the current value. The new total may not drop below what is reserved for
// open shipments.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, name *string, quantity *int, userID *int64) (*model.Item, error) {
	if name != nil && strings.TrimSpace(*name) == "" {
		return nil, invalid("name must not be empty")
	}
	if quantity != nil && *quantity < 0 {
		return nil, invalid("quantity must not be negative")
	}

	err := withTx(ctx, db, "item update", func(tx *sql.Tx) error {
		item, err := activeItem(ctx, tx, id)
		if err != nil {
			return err
		}

		if name != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE items SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				strings.TrimSpace(*name), id,
			); err != nil {
				return fmt.Errorf("updating item: %w", err)
			}
		}

		if quantity == nil || *quantity == item.TotalQuantity {
			return nil
		}

		delta := *quantity - item.TotalQuantity
		if _, err := adjustStock(ctx, tx, id, delta, 0); err != nil {
			return err
		}
		return recordMovement(ctx, tx, model.Movement{
			ItemID:     id,
			Reason:     model.MovementItemUpdated,
			StockDelta: delta,
			CreatedBy:  userID,
		})
	})
	if err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// AdjustItemTotal changes an item's total quantity by delta (restock or
// write-off).
func AdjustItemTotal(ctx context.Context, db *sql.DB, id int64, delta int, userID *int64) (*model.Item, error) {
	if delta == 0 {
		return nil, invalid("delta must be non-zero")
	}

	var item *model.Item
	err := withTx(ctx, db, "stock adjustment", func(tx *sql.Tx) error {
		var err error
		item, err = adjustStock(ctx, tx, id, delta, 0)
		if err != nil {
			return err
		}
		return recordMovement(ctx, tx, model.Movement{
			ItemID:     id,
			Reason:     model.MovementStockAdjusted,
			StockDelta: delta,
			CreatedBy:  userID,
		})
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem soft-deletes an item. Fails while any of it is reserved for open
// shipments or assigned to workers.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	return withTx(ctx, db, "item deletion", func(tx *sql.Tx) error {
		item, err := activeItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item.ReservedQuantity > 0 {
			return invalid("cannot delete item: %d units reserved for open shipments", item.ReservedQuantity)
		}

		var assigned int
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(assigned_quantity), 0) FROM assignments WHERE item_id = ?`, id,
		).Scan(&assigned)
		if err != nil {
			return fmt.Errorf("checking item assignments: %w", err)
		}
		if assigned > 0 {
			return invalid("cannot delete item: %d units still assigned to workers", assigned)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE items SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
			id,
		)
		if err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return nil
	})
}
