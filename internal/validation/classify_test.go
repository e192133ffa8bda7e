package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podflow/delivery-validation-service/internal/models"
)

const invoiceText = `TAX INVOICE
Invoice No: INV-2041
Bill To: Meridian Foods Ltd
Amount Due: 1,450.00`

func TestClassifyText_Invoice(t *testing.T) {
	c := NewClassifier()

	result := c.ClassifyText(invoiceText, 95)
	assert.Equal(t, models.DocTypeInvoice, result.DetectedType)
	assert.Greater(t, result.Confidence, 50.0)
	assert.Contains(t, result.MatchedKeywords, "invoice")
	assert.Contains(t, result.MatchedKeywords, "tax invoice")
}

func TestClassifyText_EmptyText(t *testing.T) {
	c := NewClassifier()

	for _, text := range []string{"", "   \n\t  "} {
		result := c.ClassifyText(text, 95)
		assert.Equal(t, models.DocTypeUnknown, result.DetectedType)
		assert.Equal(t, 0.0, result.Confidence)
	}
}

func TestClassifyText_NoKeywords(t *testing.T) {
	c := NewClassifier()

	result := c.ClassifyText("lorem ipsum dolor sit amet", 95)
	assert.Equal(t, models.DocTypeUnknown, result.DetectedType)
	assert.Equal(t, 0.0, result.Confidence)
}

func TestClassifyText_InvoiceRARTieBreak(t *testing.T) {
	c := NewClassifier()

	// Combined paperwork: invoice keywords outscore the RAR ones, but the
	// RAR score is above half the invoice score, so RAR wins.
	text := `TAX INVOICE
Invoice No: INV-2041
RECEIVING ACKNOWLEDGMENT
Goods Received in full`

	result := c.ClassifyText(text, 95)
	assert.Equal(t, models.DocTypeRAR, result.DetectedType)

	// The losing invoice candidate stays visible as an alternative.
	require.NotEmpty(t, result.Alternatives)
	assert.Equal(t, models.DocTypeInvoice, result.Alternatives[0].Type)
}

func TestClassifyText_TieBreakNotTriggeredBelowHalf(t *testing.T) {
	c := NewClassifier()

	// RAR scores only a single secondary keyword, well under half the
	// invoice score, so the invoice result stands.
	text := `TAX INVOICE
Invoice No: INV-2041
Bill To: Meridian Foods
Goods Received`

	result := c.ClassifyText(text, 95)
	assert.Equal(t, models.DocTypeInvoice, result.DetectedType)
}

func TestClassifyText_ThresholdRelaxesWithOCRQuality(t *testing.T) {
	c := NewClassifier()

	// A misspelled keyword scores only fuzzy credit, landing between the
	// low-OCR and the clean-scan acceptance thresholds.
	text := "INVOICF No 123"

	clean := c.ClassifyText(text, 95)
	assert.Equal(t, models.DocTypeUnknown, clean.DetectedType)
	assert.NotEmpty(t, clean.Alternatives, "rejected candidates stay visible")

	mid := c.ClassifyText(text, 70)
	assert.Equal(t, models.DocTypeInvoice, mid.DetectedType)

	noisy := c.ClassifyText(text, 40)
	assert.Equal(t, models.DocTypeInvoice, noisy.DetectedType)
}

func TestClassifyText_AlternativesCapped(t *testing.T) {
	c := NewClassifier()

	// Keywords from five different profiles in one text.
	text := `TAX INVOICE
RECEIVING ACKNOWLEDGMENT
DELIVERY NOTE
PALLET NOTIFICATION
PALLET EXCHANGE`

	result := c.ClassifyText(text, 95)
	assert.LessOrEqual(t, len(result.Alternatives), 3)
	for _, alt := range result.Alternatives {
		assert.NotEqual(t, result.DetectedType, alt.Type)
		assert.Greater(t, alt.Confidence, 0.0)
	}
}

func TestClassify_ManualOverridePins(t *testing.T) {
	c := NewClassifier()

	doc := &models.Document{
		RawText:                  invoiceText,
		OCRConfidence:            95,
		ClassificationConfidence: 100,
		ManualOverride: &models.ManualOverride{
			Type:   models.DocTypeRAR,
			Reason: "combined invoice and receiving acknowledgment",
			SetBy:  "ops@podflow.io",
		},
	}

	result := c.Classify(doc)
	assert.Equal(t, models.DocTypeRAR, result.DetectedType)
	assert.True(t, result.Overridden)
	assert.Equal(t, 100.0, result.Confidence)
}

func TestClassify_WithoutOverrideUsesText(t *testing.T) {
	c := NewClassifier()

	doc := &models.Document{RawText: invoiceText, OCRConfidence: 95}
	result := c.Classify(doc)
	assert.Equal(t, models.DocTypeInvoice, result.DetectedType)
	assert.False(t, result.Overridden)
}

func TestTokenSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, tokenSimilarity("invoice", "invoice"))
	assert.InDelta(t, 0.857, tokenSimilarity("invoicf", "invoice"), 0.001)
	assert.Less(t, tokenSimilarity("pallet", "invoice"), fuzzyMinSim)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("stamp", "stamp"))
	assert.Equal(t, 1, levenshtein("stamp", "stamps"))
	assert.Equal(t, 5, levenshtein("", "stamp"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
