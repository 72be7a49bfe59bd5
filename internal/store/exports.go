package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"loomline/internal/services"
)

// CustomItemInput describes one ad-hoc line on a new export record.
type CustomItemInput struct {
	ItemType    WarehouseItemType
	Name        string
	Description string
	Quantity    int64
}

// CreateExportRecord writes the shipment paperwork in one transaction:
// snapshots the selected warehouse rows and custom lines, then marks the
// warehouse rows exported.
func (s *Store) CreateExportRecord(ctx context.Context, title, description, shippingAddress, approvedBy string, createdBy int64, warehouseItemIDs []int64, customItems []CustomItemInput) (*ExportRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create-export", "title is required", nil)
	}
	if len(warehouseItemIDs) == 0 && len(customItems) == 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "create-export", "nothing to export", nil)
	}
	for _, custom := range customItems {
		if _, ok := customItemTypes[custom.ItemType]; !ok {
			return nil, services.Wrap(services.ErrValidation, "store", "create-export",
				fmt.Sprintf("item type %q not allowed", custom.ItemType), nil)
		}
		if strings.TrimSpace(custom.Name) == "" {
			return nil, services.Wrap(services.ErrValidation, "store", "create-export", "custom item name is required", nil)
		}
	}
	if _, err := s.GetUser(ctx, createdBy); err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	reference := uuid.NewString()
	var recordID int64

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO export_records (reference_code, title, description, shipping_address, approved_by, created_by, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			reference, title,
			nullableString(strings.TrimSpace(description)),
			nullableString(strings.TrimSpace(shippingAddress)),
			nullableString(strings.TrimSpace(approvedBy)),
			createdBy, now,
		)
		if err != nil {
			return fmt.Errorf("insert export record: %w", err)
		}
		recordID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}

		for _, itemID := range warehouseItemIDs {
			row := tx.QueryRowContext(ctx, `
                SELECT i.product_id, COALESCE(p.code, i.name, ''), COALESCE(p.name, i.description, ''), i.quantity, i.exported_at
                FROM warehouse_inventory i
                LEFT JOIN products p ON p.id = i.product_id
                WHERE i.id = ?`, itemID)
			var (
				productID   sql.NullInt64
				code        string
				name        string
				quantity    int64
				exportedRaw sql.NullString
			)
			if err := row.Scan(&productID, &code, &name, &quantity, &exportedRaw); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return services.Wrap(services.ErrNotFound, "store", "create-export",
						fmt.Sprintf("warehouse item %d", itemID), nil)
				}
				return fmt.Errorf("load warehouse item: %w", err)
			}
			if exportedRaw.Valid {
				return services.Wrap(services.ErrInvalidState, "store", "create-export",
					fmt.Sprintf("warehouse item %d already exported", itemID), nil)
			}

			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO export_record_items (export_record_id, warehouse_item_id, product_id, product_code, product_name, quantity)
                 VALUES (?, ?, ?, ?, ?, ?)`,
				recordID, itemID, nullableSQLInt(productID), code, name, quantity,
			); err != nil {
				return fmt.Errorf("insert export item: %w", err)
			}
			if _, err := tx.ExecContext(
				ctx,
				`UPDATE warehouse_inventory SET exported_at = ?, export_record_id = ? WHERE id = ?`,
				now, recordID, itemID,
			); err != nil {
				return fmt.Errorf("mark exported: %w", err)
			}
		}

		for _, custom := range customItems {
			quantity := custom.Quantity
			if quantity <= 0 {
				quantity = 1
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO export_record_custom_items (export_record_id, item_type, name, description, quantity)
                 VALUES (?, ?, ?, ?, ?)`,
				recordID, custom.ItemType, strings.TrimSpace(custom.Name),
				nullableString(strings.TrimSpace(custom.Description)), quantity,
			); err != nil {
				return fmt.Errorf("insert custom export item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ExportRecordByID(ctx, recordID)
}

func nullableSQLInt(value sql.NullInt64) any {
	if !value.Valid {
		return nil
	}
	return value.Int64
}

// ExportRecordByID loads a record with its snapshot lines.
func (s *Store) ExportRecordByID(ctx context.Context, id int64) (*ExportRecord, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT e.id, e.reference_code, e.title, e.description, e.shipping_address, e.approved_by,
                e.created_by, e.created_at, u.full_name
         FROM export_records e
         JOIN users u ON u.id = e.created_by
         WHERE e.id = ?`,
		id,
	)
	record, err := scanExportRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-export", fmt.Sprintf("export record %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get export record: %w", err)
	}
	if err := s.loadExportLines(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func scanExportRecord(sc scanner) (*ExportRecord, error) {
	var (
		id          int64
		reference   string
		title       string
		description sql.NullString
		shipping    sql.NullString
		approvedBy  sql.NullString
		createdBy   int64
		createdRaw  string
		creatorName string
	)
	if err := sc.Scan(&id, &reference, &title, &description, &shipping, &approvedBy, &createdBy, &createdRaw, &creatorName); err != nil {
		return nil, err
	}
	return &ExportRecord{
		ID:              id,
		ReferenceCode:   reference,
		Title:           title,
		Description:     description.String,
		ShippingAddress: shipping.String,
		ApprovedBy:      approvedBy.String,
		CreatedBy:       createdBy,
		CreatedAt:       timeFromRaw(createdRaw),
		CreatorName:     creatorName,
	}, nil
}

func (s *Store) loadExportLines(ctx context.Context, record *ExportRecord) error {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, export_record_id, warehouse_item_id, product_id, product_code, product_name, quantity
         FROM export_record_items WHERE export_record_id = ? ORDER BY id`,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("export items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item      ExportItem
			productID sql.NullInt64
			code      sql.NullString
			name      sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ExportRecordID, &item.WarehouseItemID, &productID, &code, &name, &item.Quantity); err != nil {
			return fmt.Errorf("scan export item: %w", err)
		}
		if productID.Valid {
			v := productID.Int64
			item.ProductID = &v
		}
		item.ProductCode = code.String
		item.ProductName = name.String
		record.Items = append(record.Items, item)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	customRows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, export_record_id, item_type, name, description, quantity
         FROM export_record_custom_items WHERE export_record_id = ? ORDER BY id`,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("export custom items: %w", err)
	}
	defer customRows.Close()
	for customRows.Next() {
		var (
			item        ExportCustomItem
			itemType    string
			description sql.NullString
		)
		if err := customRows.Scan(&item.ID, &item.ExportRecordID, &itemType, &item.Name, &description, &item.Quantity); err != nil {
			return fmt.Errorf("scan custom export item: %w", err)
		}
		item.ItemType = WarehouseItemType(itemType)
		item.Description = description.String
		record.CustomItems = append(record.CustomItems, item)
	}
	return customRows.Err()
}

// ExportRecords lists records newest first with their lines.
func (s *Store) ExportRecords(ctx context.Context) ([]*ExportRecord, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT e.id, e.reference_code, e.title, e.description, e.shipping_address, e.approved_by,
                e.created_by, e.created_at, u.full_name
         FROM export_records e
         JOIN users u ON u.id = e.created_by
         ORDER BY e.created_at DESC, e.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list export records: %w", err)
	}
	defer rows.Close()

	var records []*ExportRecord
	for rows.Next() {
		record, err := scanExportRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := s.loadExportLines(ctx, record); err != nil {
			return nil, err
		}
	}
	return records, nil
}
