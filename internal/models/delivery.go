package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the overall outcome of validating one delivery.
type DeliveryStatus string

const (
	StatusPending DeliveryStatus = "PENDING"
	StatusPass    DeliveryStatus = "PASS"
	StatusReview  DeliveryStatus = "REVIEW"
	StatusFail    DeliveryStatus = "FAIL"
)

// DeliveryDocument is the delivery-side denormalized view of one document.
// Its DetectedType must be kept in sync with the document's own classification
// after any manual override.
type DeliveryDocument struct {
	DocumentID   uuid.UUID    `json:"documentId"`
	FileName     string       `json:"fileName"`
	DetectedType DocumentType `json:"detectedType"`
	Confidence   float64      `json:"confidence"`
}

// Delivery is one shipment's complete paperwork bundle. Its document list is
// the sole source of truth for which documents participate in validation.
type Delivery struct {
	ID        uuid.UUID `json:"id"`
	ClientID  string    `json:"clientId"`
	Reference string    `json:"reference"`

	Documents []DeliveryDocument `json:"documents"`

	Status    DeliveryStatus               `json:"status"`
	Checklist *DeliveryValidationChecklist `json:"checklist,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	ValidatedAt *time.Time `json:"validatedAt,omitempty"`
}

// SyncDocument updates the denormalized copy for the given document, if the
// delivery carries it.
func (d *Delivery) SyncDocument(doc *Document) {
	for i := range d.Documents {
		if d.Documents[i].DocumentID == doc.ID {
			d.Documents[i].DetectedType = doc.EffectiveType()
			d.Documents[i].Confidence = doc.ClassificationConfidence
			return
		}
	}
}
