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

// InboundStageInput is one planned stage on a new inbound record.
type InboundStageInput struct {
	StageID   int64
	NormHours *int64
}

// CreateInboundRecord writes intake paperwork for a product in one
// transaction, recording the production plan's stages with optional per-stage
// norm overrides.
func (s *Store) CreateInboundRecord(ctx context.Context, productID int64, description string, createdBy int64, stages []InboundStageInput) (*InboundRecord, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	if _, err := s.GetUser(ctx, createdBy); err != nil {
		return nil, err
	}
	for _, stage := range stages {
		if stage.NormHours != nil && *stage.NormHours < 0 {
			return nil, services.Wrap(services.ErrValidation, "store", "create-inbound", "norm hours must not be negative", nil)
		}
		if _, err := s.GetStage(ctx, stage.StageID); err != nil {
			return nil, err
		}
	}

	var recordID int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO inbound_records (product_id, description, created_by, created_at) VALUES (?, ?, ?, ?)`,
			productID, nullableString(strings.TrimSpace(description)), createdBy, formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert inbound record: %w", err)
		}
		recordID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		for _, stage := range stages {
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO inbound_record_stages (inbound_record_id, stage_id, norm_hours) VALUES (?, ?, ?)`,
				recordID, stage.StageID, nullableInt64(stage.NormHours),
			); err != nil {
				return fmt.Errorf("insert inbound stage: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.InboundRecordByID(ctx, recordID)
}

// InboundRecordByID loads one record with its planned stages.
func (s *Store) InboundRecordByID(ctx context.Context, id int64) (*InboundRecord, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT r.id, r.product_id, r.description, r.created_by, r.created_at,
                p.code, p.name, u.full_name
         FROM inbound_records r
         JOIN products p ON p.id = r.product_id
         JOIN users u ON u.id = r.created_by
         WHERE r.id = ?`,
		id,
	)
	record, err := scanInboundRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get-inbound", fmt.Sprintf("inbound record %d", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get inbound record: %w", err)
	}
	if err := s.loadInboundStages(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func scanInboundRecord(sc scanner) (*InboundRecord, error) {
	var (
		id          int64
		productID   int64
		description sql.NullString
		createdBy   int64
		createdRaw  string
		productCode string
		productName string
		creatorName string
	)
	if err := sc.Scan(&id, &productID, &description, &createdBy, &createdRaw, &productCode, &productName, &creatorName); err != nil {
		return nil, err
	}
	return &InboundRecord{
		ID:          id,
		ProductID:   productID,
		Description: description.String,
		CreatedBy:   createdBy,
		CreatedAt:   timeFromRaw(createdRaw),
		ProductCode: productCode,
		ProductName: productName,
		CreatorName: creatorName,
	}, nil
}

func (s *Store) loadInboundStages(ctx context.Context, record *InboundRecord) error {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT rs.id, rs.inbound_record_id, rs.stage_id, rs.norm_hours, s.name
         FROM inbound_record_stages rs
         JOIN stages s ON s.id = rs.stage_id
         WHERE rs.inbound_record_id = ?
         ORDER BY s.sequence`,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("inbound stages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			stage     InboundStage
			normHours sql.NullInt64
		)
		if err := rows.Scan(&stage.ID, &stage.InboundRecordID, &stage.StageID, &normHours, &stage.StageName); err != nil {
			return fmt.Errorf("scan inbound stage: %w", err)
		}
		if normHours.Valid {
			v := normHours.Int64
			stage.NormHours = &v
		}
		record.Stages = append(record.Stages, stage)
	}
	return rows.Err()
}

// InboundRecords lists records newest first with their stages.
func (s *Store) InboundRecords(ctx context.Context) ([]*InboundRecord, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT r.id, r.product_id, r.description, r.created_by, r.created_at,
                p.code, p.name, u.full_name
         FROM inbound_records r
         JOIN products p ON p.id = r.product_id
         JOIN users u ON u.id = r.created_by
         ORDER BY r.created_at DESC, r.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list inbound records: %w", err)
	}
	defer rows.Close()

	var records []*InboundRecord
	for rows.Next() {
		record, err := scanInboundRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inbound record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := s.loadInboundStages(ctx, record); err != nil {
			return nil, err
		}
	}
	return records, nil
}
