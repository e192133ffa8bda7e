package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeliverySyncDocument_FollowsManualOverride(t *testing.T) {
	docID := uuid.New()
	delivery := &Delivery{
		Documents: []DeliveryDocument{
			{DocumentID: docID, FileName: "scan.png", DetectedType: DocTypeInvoice, Confidence: 72.5},
		},
	}
	doc := &Document{
		ID:                       docID,
		DetectedType:             DocTypeInvoice,
		ClassificationConfidence: 72.5,
	}

	doc.ManualOverride = &ManualOverride{Type: DocTypeRAR, Reason: "mislabeled scan"}
	doc.ClassificationConfidence = 100
	delivery.SyncDocument(doc)

	assert.Equal(t, DocTypeRAR, delivery.Documents[0].DetectedType)
	assert.Equal(t, 100.0, delivery.Documents[0].Confidence)
}

func TestDeliverySyncDocument_IgnoresUnknownDocument(t *testing.T) {
	delivery := &Delivery{
		Documents: []DeliveryDocument{
			{DocumentID: uuid.New(), DetectedType: DocTypeInvoice},
		},
	}

	delivery.SyncDocument(&Document{ID: uuid.New(), DetectedType: DocTypeRAR})

	assert.Equal(t, DocTypeInvoice, delivery.Documents[0].DetectedType)
}
