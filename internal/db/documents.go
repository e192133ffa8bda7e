package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// SaveDocument inserts a freshly uploaded document.
func SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.UploadedAt = time.Now().UTC()

	imageSig, err := json.Marshal(doc.ImageSignature)
	if err != nil {
		return fmt.Errorf("failed to encode image signature result: %w", err)
	}

	query := `
		INSERT INTO documents (
			id, delivery_id, file_name, image_path, raw_text, ocr_confidence,
			detected_type, classification_confidence, image_signature, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = Pool.Exec(ctx, query,
		doc.ID, doc.DeliveryID, doc.FileName, doc.ImagePath, doc.RawText, doc.OCRConfidence,
		doc.DetectedType, doc.ClassificationConfidence, imageSig, doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// GetDocument loads one document with its derived processing results.
func GetDocument(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := `
		SELECT id, delivery_id, file_name, image_path, raw_text, ocr_confidence,
		       detected_type, classification_confidence, matched_keywords,
		       manual_override, stamps, signatures, image_signature,
		       uploaded_at, processed_at
		FROM documents
		WHERE id = $1
	`
	var doc models.Document
	var override, stamps, signatures, imageSig []byte
	err := Pool.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.DeliveryID, &doc.FileName, &doc.ImagePath, &doc.RawText, &doc.OCRConfidence,
		&doc.DetectedType, &doc.ClassificationConfidence, &doc.MatchedKeywords,
		&override, &stamps, &signatures, &imageSig,
		&doc.UploadedAt, &doc.ProcessedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	if err := decodeInto(override, &doc.ManualOverride); err != nil {
		return nil, err
	}
	if err := decodeInto(stamps, &doc.Stamps); err != nil {
		return nil, err
	}
	if err := decodeInto(signatures, &doc.Signatures); err != nil {
		return nil, err
	}
	if err := decodeInto(imageSig, &doc.ImageSignature); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentsByDelivery loads the full documents of one delivery in upload
// order.
func GetDocumentsByDelivery(ctx context.Context, deliveryID uuid.UUID) ([]*models.Document, error) {
	query := `
		SELECT id
		FROM documents
		WHERE delivery_id = $1
		ORDER BY uploaded_at, id
	`
	rows, err := Pool.Query(ctx, query, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	docs := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := GetDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveProcessingResult persists the derived classification, stamps and
// signatures after a validation run. Derived columns are overwritten whole.
func SaveProcessingResult(ctx context.Context, doc *models.Document) error {
	stamps, err := json.Marshal(doc.Stamps)
	if err != nil {
		return fmt.Errorf("failed to encode stamps: %w", err)
	}
	signatures, err := json.Marshal(doc.Signatures)
	if err != nil {
		return fmt.Errorf("failed to encode signatures: %w", err)
	}

	query := `
		UPDATE documents
		SET detected_type = $2, classification_confidence = $3, matched_keywords = $4,
		    stamps = $5, signatures = $6, processed_at = $7
		WHERE id = $1
	`
	_, err = Pool.Exec(ctx, query,
		doc.ID, doc.DetectedType, doc.ClassificationConfidence, doc.MatchedKeywords,
		stamps, signatures, doc.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save processing result: %w", err)
	}
	return nil
}

// SetManualOverride pins a document's classification and keeps the detected
// type in sync so the delivery's denormalized copy follows on the next read.
func SetManualOverride(ctx context.Context, id uuid.UUID, override *models.ManualOverride) error {
	data, err := json.Marshal(override)
	if err != nil {
		return fmt.Errorf("failed to encode override: %w", err)
	}

	query := `
		UPDATE documents
		SET manual_override = $2, detected_type = $3
		WHERE id = $1
	`
	_, err = Pool.Exec(ctx, query, id, data, override.Type)
	if err != nil {
		return fmt.Errorf("failed to set manual override: %w", err)
	}
	return nil
}

func decodeInto(data []byte, target any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode document field: %w", err)
	}
	return nil
}
