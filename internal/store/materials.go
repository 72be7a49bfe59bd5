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

const requestColumns = `
    m.id, m.product_id, m.stage_id, m.requested_by, m.reason, m.status,
    m.response_note, m.expected_delivery, m.purchased_by, m.purchased_at,
    m.delivered_at, m.created_at,
    p.code, p.name, s.name, u.full_name, COALESCE(b.full_name, '')`

const requestJoins = `
    FROM material_requests m
    JOIN products p ON p.id = m.product_id
    JOIN stages s ON s.id = m.stage_id
    JOIN users u ON u.id = m.requested_by
    LEFT JOIN users b ON b.id = m.purchased_by`

func scanRequest(sc scanner) (*MaterialRequest, error) {
	var (
		id            int64
		productID     int64
		stageID       int64
		requestedBy   int64
		reason        string
		status        string
		responseNote  sql.NullString
		expected      sql.NullString
		purchasedBy   sql.NullInt64
		purchasedRaw  sql.NullString
		deliveredRaw  sql.NullString
		createdRaw    string
		productCode   string
		productName   string
		stageName     string
		requesterName string
		purchaserName string
	)
	if err := sc.Scan(
		&id, &productID, &stageID, &requestedBy, &reason, &status,
		&responseNote, &expected, &purchasedBy, &purchasedRaw,
		&deliveredRaw, &createdRaw,
		&productCode, &productName, &stageName, &requesterName, &purchaserName,
	); err != nil {
		return nil, err
	}
	request := &MaterialRequest{
		ID:               id,
		ProductID:        productID,
		StageID:          stageID,
		RequestedBy:      requestedBy,
		Reason:           reason,
		Status:           RequestStatus(status),
		ResponseNote:     responseNote.String,
		ExpectedDelivery: expected.String,
		PurchasedAt:      timePtrFromRaw(purchasedRaw.String, purchasedRaw.Valid),
		DeliveredAt:      timePtrFromRaw(deliveredRaw.String, deliveredRaw.Valid),
		CreatedAt:        timeFromRaw(createdRaw),
		ProductCode:      productCode,
		ProductName:      productName,
		StageName:        stageName,
		RequesterName:    requesterName,
		PurchaserName:    purchaserName,
	}
	if purchasedBy.Valid {
		v := purchasedBy.Int64
		request.PurchasedBy = &v
	}
	return request, nil
}

// CreateMaterialRequest opens a pending shortage report against a pair.
func (s *Store) CreateMaterialRequest(ctx context.Context, productID, stageID, requesterID int64, reason string) (*MaterialRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "create-request", "reason is required", nil)
	}
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if _, err := s.GetStage(ctx, stageID); err != nil {
		return nil, err
	}
	if _, err := s.GetUser(ctx, requesterID); err != nil {
		return nil, err
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO material_requests (product_id, stage_id, requested_by, reason, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		productID, stageID, requesterID, reason, RequestPending, formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert material request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMaterialRequest(ctx, id)
}

// GetMaterialRequest fetches one request with joined display fields.
func (s *Store) GetMaterialRequest(ctx context.Context, id int64) (*MaterialRequest, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT`+requestColumns+requestJoins+` WHERE m.id = ?`,
		id,
	)
	request, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-request", fmt.Sprintf("request %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get material request: %w", err)
	}
	return request, nil
}

// MarkRequestPurchased moves a pending request to purchased with the buyer's
// feedback.
func (s *Store) MarkRequestPurchased(ctx context.Context, id, purchaserID int64, expectedDelivery, responseNote string) (*MaterialRequest, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE material_requests
         SET status = ?, purchased_by = ?, purchased_at = ?, expected_delivery = ?, response_note = ?
         WHERE id = ? AND status = ?`,
		RequestPurchased, purchaserID, formatTime(time.Now()),
		nullableString(strings.TrimSpace(expectedDelivery)),
		nullableString(strings.TrimSpace(responseNote)),
		id, RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("mark purchased: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetMaterialRequest(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, services.Wrap(services.ErrInvalidState, "store", "mark-purchased",
			fmt.Sprintf("request %d is not pending", id), nil)
	}
	return s.GetMaterialRequest(ctx, id)
}

// MarkRequestDelivered moves a purchased request to delivered.
func (s *Store) MarkRequestDelivered(ctx context.Context, id int64) (*MaterialRequest, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE material_requests SET status = ?, delivered_at = ? WHERE id = ? AND status = ?`,
		RequestDelivered, formatTime(time.Now()), id, RequestPurchased,
	)
	if err != nil {
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetMaterialRequest(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, services.Wrap(services.ErrInvalidState, "store", "mark-delivered",
			fmt.Sprintf("request %d is not purchased", id), nil)
	}
	return s.GetMaterialRequest(ctx, id)
}

// ListMaterialRequests returns requests newest first, optionally filtered by
// status and product.
func (s *Store) ListMaterialRequests(ctx context.Context, status RequestStatus, productID int64) ([]*MaterialRequest, error) {
	query := `SELECT` + requestColumns + requestJoins + ` WHERE 1 = 1`
	args := []any{}
	if status != "" {
		query += ` AND m.status = ?`
		args = append(args, status)
	}
	if productID != 0 {
		query += ` AND m.product_id = ?`
		args = append(args, productID)
	}
	query += ` ORDER BY m.created_at DESC, m.id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list material requests: %w", err)
	}
	defer rows.Close()

	var requests []*MaterialRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// PendingMaterialRequests lists open requests oldest first for the purchasing
// queue.
func (s *Store) PendingMaterialRequests(ctx context.Context) ([]*MaterialRequest, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT`+requestColumns+requestJoins+` WHERE m.status = ? ORDER BY m.created_at`,
		RequestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("pending material requests: %w", err)
	}
	defer rows.Close()

	var requests []*MaterialRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material request: %w", err)
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// MaterialRequestStats counts requests per status.
func (s *Store) MaterialRequestStats(ctx context.Context) (*MaterialRequestStats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM material_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("material request stats: %w", err)
	}
	defer rows.Close()

	stats := &MaterialRequestStats{}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		switch RequestStatus(status) {
		case RequestPending:
			stats.Pending = count
		case RequestPurchased:
			stats.Purchased = count
		case RequestDelivered:
			stats.Delivered = count
		}
	}
	return stats, rows.Err()
}

// AddRequestMessage appends to a request's comment thread.
func (s *Store) AddRequestMessage(ctx context.Context, requestID, userID int64, message string) (*RequestMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, services.Wrap(services.ErrValidation, "store", "add-message", "message is required", nil)
	}
	if _, err := s.GetMaterialRequest(ctx, requestID); err != nil {
		return nil, err
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO material_request_messages (request_id, user_id, message, created_at) VALUES (?, ?, ?, ?)`,
		requestID, userID, message, formatTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT mm.id, mm.request_id, mm.user_id, mm.message, mm.created_at, u.full_name
         FROM material_request_messages mm
         JOIN users u ON u.id = mm.user_id
         WHERE mm.id = ?`,
		id,
	)
	return scanRequestMessage(row)
}

func scanRequestMessage(sc scanner) (*RequestMessage, error) {
	var (
		id         int64
		requestID  int64
		userID     int64
		message    string
		createdRaw string
		userName   string
	)
	if err := sc.Scan(&id, &requestID, &userID, &message, &createdRaw, &userName); err != nil {
		return nil, err
	}
	return &RequestMessage{
		ID:        id,
		RequestID: requestID,
		UserID:    userID,
		Message:   message,
		CreatedAt: timeFromRaw(createdRaw),
		UserName:  userName,
	}, nil
}

// RequestMessages returns a request's thread in creation order.
func (s *Store) RequestMessages(ctx context.Context, requestID int64) ([]*RequestMessage, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT mm.id, mm.request_id, mm.user_id, mm.message, mm.created_at, u.full_name
         FROM material_request_messages mm
         JOIN users u ON u.id = mm.user_id
         WHERE mm.request_id = ?
         ORDER BY mm.created_at, mm.id`,
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("request messages: %w", err)
	}
	defer rows.Close()

	var messages []*RequestMessage
	for rows.Next() {
		message, err := scanRequestMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}
