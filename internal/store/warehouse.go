package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"loomline/internal/services"
)

const warehouseColumns = `
    i.id, i.item_type, i.product_id, i.name, i.description, i.quantity,
    i.added_at, i.exported_at, i.export_record_id,
    COALESCE(p.code, ''), COALESCE(p.name, '')`

const warehouseJoins = `
    FROM warehouse_inventory i
    LEFT JOIN products p ON p.id = i.product_id`

func scanWarehouseItem(sc scanner) (*WarehouseItem, error) {
	var (
		id          int64
		itemType    string
		productID   sql.NullInt64
		name        sql.NullString
		description sql.NullString
		quantity    int64
		addedRaw    string
		exportedRaw sql.NullString
		recordID    sql.NullInt64
		productCode string
		productName string
	)
	if err := sc.Scan(
		&id, &itemType, &productID, &name, &description, &quantity,
		&addedRaw, &exportedRaw, &recordID,
		&productCode, &productName,
	); err != nil {
		return nil, err
	}
	item := &WarehouseItem{
		ID:          id,
		ItemType:    WarehouseItemType(itemType),
		Name:        name.String,
		Description: description.String,
		Quantity:    quantity,
		AddedAt:     timeFromRaw(addedRaw),
		ExportedAt:  timePtrFromRaw(exportedRaw.String, exportedRaw.Valid),
		ProductCode: productCode,
		ProductName: productName,
	}
	if productID.Valid {
		v := productID.Int64
		item.ProductID = &v
	}
	if recordID.Valid {
		v := recordID.Int64
		item.ExportRecordID = &v
	}
	return item, nil
}

var customItemTypes = map[WarehouseItemType]struct{}{
	ItemDocument: {},
	ItemPersonal: {},
	ItemMisc:     {},
}

// AddCustomItem stores a non-product inventory row.
func (s *Store) AddCustomItem(ctx context.Context, itemType WarehouseItemType, name, description string, quantity int64) (*WarehouseItem, error) {
	if _, ok := customItemTypes[itemType]; !ok {
		return nil, services.Wrap(services.ErrValidation, "store", "add-custom-item",
			fmt.Sprintf("item type %q not allowed", itemType), nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "add-custom-item", "name is required", nil)
	}
	if quantity <= 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "add-custom-item", "quantity must be positive", nil)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO warehouse_inventory (item_type, name, description, quantity, added_at)
         VALUES (?, ?, ?, ?, ?)`,
		itemType, name, nullableString(strings.TrimSpace(description)), quantity, formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert custom item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetWarehouseItem(ctx, id)
}

// GetWarehouseItem fetches one inventory row.
func (s *Store) GetWarehouseItem(ctx context.Context, id int64) (*WarehouseItem, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT`+warehouseColumns+warehouseJoins+` WHERE i.id = ?`,
		id,
	)
	item, err := scanWarehouseItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-warehouse-item", fmt.Sprintf("item %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get warehouse item: %w", err)
	}
	return item, nil
}

// AvailableInventory lists un-exported rows of every type, oldest first.
func (s *Store) AvailableInventory(ctx context.Context) ([]*WarehouseItem, error) {
	return s.queryWarehouse(
		ctx,
		`SELECT`+warehouseColumns+warehouseJoins+` WHERE i.exported_at IS NULL ORDER BY i.added_at, i.id`,
	)
}

// AvailableProducts lists un-exported product rows only.
func (s *Store) AvailableProducts(ctx context.Context) ([]*WarehouseItem, error) {
	return s.queryWarehouse(
		ctx,
		`SELECT`+warehouseColumns+warehouseJoins+` WHERE i.exported_at IS NULL AND i.item_type = ? ORDER BY i.added_at, i.id`,
		ItemProduct,
	)
}

// ExportHistory lists exported rows newest first.
func (s *Store) ExportHistory(ctx context.Context) ([]*WarehouseItem, error) {
	return s.queryWarehouse(
		ctx,
		`SELECT`+warehouseColumns+warehouseJoins+` WHERE i.exported_at IS NOT NULL ORDER BY i.exported_at DESC, i.id DESC`,
	)
}

func (s *Store) queryWarehouse(ctx context.Context, query string, args ...any) ([]*WarehouseItem, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query warehouse: %w", err)
	}
	defer rows.Close()

	var items []*WarehouseItem
	for rows.Next() {
		item, err := scanWarehouseItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warehouse item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
