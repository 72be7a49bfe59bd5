package store

import (
	"context"
	"fmt"
	"time"
)

// AutoMoveToWarehouseIfComplete places a product into warehouse inventory
// once every active stage on it is completed. A product with no active
// stages is not complete. The move is idempotent: an existing un-exported
// product row short-circuits, so repeated completion checks add nothing.
func (s *Store) AutoMoveToWarehouseIfComplete(ctx context.Context, productID int64) (bool, error) {
	actives, err := s.ActiveStagesByProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	if len(actives) == 0 {
		return false, nil
	}
	for _, active := range actives {
		if active.Status != StageCompleted {
			return false, nil
		}
	}

	// The guard lives in the INSERT itself so two racing completion checks
	// cannot both add a row for the same un-exported product.
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO warehouse_inventory (item_type, product_id, quantity, added_at)
         SELECT ?, ?, 1, ?
         WHERE NOT EXISTS (
             SELECT 1 FROM warehouse_inventory
             WHERE product_id = ? AND item_type = ? AND exported_at IS NULL
         )`,
		ItemProduct, productID, formatTime(time.Now()),
		productID, ItemProduct,
	)
	if err != nil {
		return false, fmt.Errorf("insert warehouse row: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		return false, nil
	}

	if err := s.SetProductStatus(ctx, productID, ProductCompleted); err != nil {
		return false, err
	}
	return true, nil
}
