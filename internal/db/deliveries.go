package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// CreateDelivery inserts a new delivery with no documents.
func CreateDelivery(ctx context.Context, d *models.Delivery) error {
	query := `
		INSERT INTO deliveries (id, client_id, reference, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.Status = models.StatusPending
	d.CreatedAt = time.Now().UTC()

	_, err := Pool.Exec(ctx, query, d.ID, d.ClientID, d.Reference, d.Status, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

// GetDelivery loads one delivery including its denormalized document list and
// the stored checklist.
func GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	query := `
		SELECT id, client_id, reference, status, checklist, created_at, validated_at
		FROM deliveries
		WHERE id = $1
	`
	var d models.Delivery
	var checklist []byte
	err := Pool.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ClientID, &d.Reference, &d.Status, &checklist, &d.CreatedAt, &d.ValidatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load delivery %s: %w", id, err)
	}
	if len(checklist) > 0 {
		var cl models.DeliveryValidationChecklist
		if err := json.Unmarshal(checklist, &cl); err != nil {
			return nil, fmt.Errorf("failed to decode stored checklist: %w", err)
		}
		d.Checklist = &cl
	}

	docs, err := listDeliveryDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Documents = docs
	return &d, nil
}

func listDeliveryDocuments(ctx context.Context, deliveryID uuid.UUID) ([]models.DeliveryDocument, error) {
	query := `
		SELECT id, file_name, detected_type, classification_confidence
		FROM documents
		WHERE delivery_id = $1
		ORDER BY uploaded_at, id
	`
	rows, err := Pool.Query(ctx, query, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delivery documents: %w", err)
	}
	defer rows.Close()

	var docs []models.DeliveryDocument
	for rows.Next() {
		var dd models.DeliveryDocument
		if err := rows.Scan(&dd.DocumentID, &dd.FileName, &dd.DetectedType, &dd.Confidence); err != nil {
			return nil, err
		}
		docs = append(docs, dd)
	}
	return docs, rows.Err()
}

// SaveValidationResult overwrites the delivery's checklist and status. The
// checklist is an opaque blob to persistence: always replaced whole, never
// merged, so a re-validation can never leave a partial checklist behind.
func SaveValidationResult(ctx context.Context, d *models.Delivery) error {
	checklist, err := json.Marshal(d.Checklist)
	if err != nil {
		return fmt.Errorf("failed to encode checklist: %w", err)
	}

	query := `
		UPDATE deliveries
		SET status = $2, checklist = $3, validated_at = $4
		WHERE id = $1
	`
	_, err = Pool.Exec(ctx, query, d.ID, d.Status, checklist, d.ValidatedAt)
	if err != nil {
		return fmt.Errorf("failed to save validation result: %w", err)
	}
	return nil
}

// ListDeliveries returns the most recent deliveries for a client.
func ListDeliveries(ctx context.Context, clientID string, limit int) ([]models.Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, client_id, reference, status, created_at, validated_at
		FROM deliveries
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := Pool.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []models.Delivery
	for rows.Next() {
		var d models.Delivery
		if err := rows.Scan(&d.ID, &d.ClientID, &d.Reference, &d.Status, &d.CreatedAt, &d.ValidatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
