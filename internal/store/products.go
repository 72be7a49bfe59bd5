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

const productColumns = "id, code, name, status, current_stage_id, created_at, completed_at"

func scanProduct(sc scanner) (*Product, error) {
	var (
		id           int64
		code         string
		name         string
		status       string
		currentStage sql.NullInt64
		createdRaw   string
		completedRaw sql.NullString
	)
	if err := sc.Scan(&id, &code, &name, &status, &currentStage, &createdRaw, &completedRaw); err != nil {
		return nil, err
	}
	product := &Product{
		ID:          id,
		Code:        code,
		Name:        name,
		Status:      ProductStatus(status),
		CreatedAt:   timeFromRaw(createdRaw),
		CompletedAt: timePtrFromRaw(completedRaw.String, completedRaw.Valid),
	}
	if currentStage.Valid {
		v := currentStage.Int64
		product.CurrentStageID = &v
	}
	return product, nil
}

// CreateProduct registers a new tracked product. The legacy current-stage
// pointer starts at the first stage by sequence.
func (s *Store) CreateProduct(ctx context.Context, code, name string) (*Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create-product", "code is required", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create-product", "name is required", nil)
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO products (code, name, status, current_stage_id, created_at)
         VALUES (?, ?, ?, (SELECT id FROM stages ORDER BY sequence LIMIT 1), ?)`,
		code,
		name,
		ProductPending,
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.Wrap(services.ErrAlreadyExists, "store", "create-product", fmt.Sprintf("code %q exists", code), err)
		}
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetProduct(ctx, id)
}

// GetProduct fetches a product by identifier.
func (s *Store) GetProduct(ctx context.Context, id int64) (*Product, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-product", fmt.Sprintf("product %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

// GetProductByCode fetches a product by its unique code.
func (s *Store) GetProductByCode(ctx context.Context, code string) (*Product, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+productColumns+` FROM products WHERE code = ?`,
		strings.ToUpper(strings.TrimSpace(code)),
	)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-product", fmt.Sprintf("code %q", code), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get product by code: %w", err)
	}
	return product, nil
}

// ListProducts returns products, optionally filtered by status, newest first.
func (s *Store) ListProducts(ctx context.Context, status ProductStatus) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// SetProductStatus transitions a product's lifecycle status. The completion
// timestamp is stamped on completion and cleared otherwise.
func (s *Store) SetProductStatus(ctx context.Context, id int64, status ProductStatus) error {
	var completedAt any
	if status == ProductCompleted {
		completedAt = formatTime(time.Now())
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE products SET status = ?, completed_at = ? WHERE id = ?`,
		status,
		completedAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("set product status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "set-product-status", fmt.Sprintf("product %d", id), nil)
	}
	return nil
}
