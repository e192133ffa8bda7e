package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentEffectiveType(t *testing.T) {
	doc := &Document{DetectedType: DocTypeInvoice}
	assert.Equal(t, DocTypeInvoice, doc.EffectiveType())

	doc.ManualOverride = &ManualOverride{Type: DocTypeRAR}
	assert.Equal(t, DocTypeRAR, doc.EffectiveType())
}

func TestChecklistAllItems(t *testing.T) {
	cl := &DeliveryValidationChecklist{
		PalletChecks:       []ValidationCheckItem{{Name: "a"}},
		ShipDocumentChecks: []ValidationCheckItem{{Name: "b"}, {Name: "c"}},
		InvoiceChecks:      []ValidationCheckItem{{Name: "d"}},
	}

	var names []string
	for _, item := range cl.AllItems() {
		names = append(names, item.Name)
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names)
}
