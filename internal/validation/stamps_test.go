package validation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podflow/delivery-validation-service/internal/models"
)

func stampTypes(stamps []models.StampInfo) []models.StampType {
	types := make([]models.StampType, 0, len(stamps))
	for _, s := range stamps {
		types = append(types, s.Type)
	}
	return types
}

func findStamp(t *testing.T, stamps []models.StampInfo, typ models.StampType) models.StampInfo {
	t.Helper()
	for _, s := range stamps {
		if s.Type == typ {
			return s
		}
	}
	t.Fatalf("stamp %s not found in %v", typ, stampTypes(stamps))
	return models.StampInfo{}
}

func TestDetectStamps_ExplicitText(t *testing.T) {
	text := `DISPATCHED 05/01/2026
Pallets exchanged: 26
No pallets returned to driver
Received in good order`

	stamps := DetectStamps(models.DocTypePalletExchange, text)
	types := stampTypes(stamps)
	assert.Contains(t, types, models.StampDispatch)
	assert.Contains(t, types, models.StampPallet)
	assert.Contains(t, types, models.StampNoPallet)
	assert.Contains(t, types, models.StampReceived)
}

func TestDetectStamps_DedupedByType(t *testing.T) {
	// Both alternations of the pallet pattern appear; only one stamp per
	// type survives.
	text := "Pallets received. Pallet stamp applied. Pallets exchanged."

	stamps := DetectStamps(models.DocTypePalletExchange, text)
	seen := make(map[models.StampType]int)
	for _, s := range stamps {
		seen[s.Type]++
	}
	for typ, n := range seen {
		assert.Equal(t, 1, n, "stamp type %s duplicated", typ)
	}
}

func TestDetectStamps_EmptyText(t *testing.T) {
	assert.Nil(t, DetectStamps(models.DocTypeShipDocument, ""))
}

func TestDetectStamps_InferredPalletStamp(t *testing.T) {
	// Dispatch stamp plus a warehouse reference on a ship document implies
	// a pallet stamp whose label OCR failed to transcribe.
	text := `DELIVERY NOTE
Dispatched by J. Evans
Warehouse: Leeds Central`

	stamps := DetectStamps(models.DocTypeShipDocument, text)
	pallet := findStamp(t, stamps, models.StampPallet)
	assert.Equal(t, 70.0, pallet.Confidence)
	assert.Contains(t, pallet.MatchedText, "inferred")
}

func TestDetectStamps_NoInferenceWithoutDispatch(t *testing.T) {
	text := "DELIVERY NOTE\nWarehouse: Leeds Central"

	stamps := DetectStamps(models.DocTypeShipDocument, text)
	assert.NotContains(t, stampTypes(stamps), models.StampPallet)
}

func TestDetectStamps_NoInferenceOnOtherDocTypes(t *testing.T) {
	text := "Dispatched by J. Evans\nWarehouse: Leeds Central"

	stamps := DetectStamps(models.DocTypeInvoice, text)
	assert.NotContains(t, stampTypes(stamps), models.StampPallet)
}

func TestDetectStamps_ExplicitPalletSuppressesInference(t *testing.T) {
	text := `Dispatched by J. Evans
Warehouse: Leeds Central
Pallets exchanged: 26`

	stamps := DetectStamps(models.DocTypeShipDocument, text)
	pallet := findStamp(t, stamps, models.StampPallet)
	assert.Equal(t, 85.0, pallet.Confidence)
	assert.NotContains(t, pallet.MatchedText, "inferred")
}

func TestDetectStamps_InferredWarehouseStamp(t *testing.T) {
	text := `PALLET NOTIFICATION
Warehouse: Leeds Central
Pallet account: 40118`

	stamps := DetectStamps(models.DocTypePalletNotificationLetter, text)
	wh := findStamp(t, stamps, models.StampWarehouse)
	assert.Equal(t, 75.0, wh.Confidence)
	assert.Contains(t, wh.MatchedText, "inferred")

	// The same text on a different document type infers nothing.
	other := DetectStamps(models.DocTypeShipDocument, text)
	assert.NotContains(t, stampTypes(other), models.StampWarehouse)
}

func TestDetectSignatures_PalletExchangeLabels(t *testing.T) {
	text := `PALLET EXCHANGE
Sent by: M. Kowalski
Received by: R. Patel`

	sigs := DetectSignatures(models.DocTypePalletExchange, text)
	require.Len(t, sigs, 2)
	assert.Equal(t, models.SignatureDriver, sigs[0].Type)
	assert.True(t, sigs[0].Present)
	assert.Equal(t, models.SignatureCustomer, sigs[1].Type)
}

func TestDetectSignatures_GenericFallback(t *testing.T) {
	// Invoice has no dedicated label set; "signed by" maps to the customer
	// via the generic table.
	sigs := DetectSignatures(models.DocTypeInvoice, "Signed by: R. Patel")
	require.Len(t, sigs, 1)
	assert.Equal(t, models.SignatureCustomer, sigs[0].Type)
	assert.Equal(t, 75.0, sigs[0].Confidence)
}

func TestDetectSignatures_None(t *testing.T) {
	assert.Nil(t, DetectSignatures(models.DocTypeShipDocument, ""))
	assert.Empty(t, DetectSignatures(models.DocTypeShipDocument, "no labels here"))
}

func TestMergeSignatures_Fusion(t *testing.T) {
	textSigs := []models.SignatureInfo{
		{Type: models.SignatureDriver, Present: true, Confidence: 85},
	}
	image := &models.ImageSignatureResult{
		Found:         true,
		DriverPresent: true,
		Confidence:    50,
		Regions:       []models.SignatureRegion{{Side: "left"}},
	}

	merged := MergeSignatures(textSigs, image)
	require.Len(t, merged, 1)
	// 0.6*85 + 0.4*50
	assert.InDelta(t, 71.0, merged[0].Confidence, 0.001)
	assert.Equal(t, "left", merged[0].Position)
}

func TestMergeSignatures_ImageOnlyDetection(t *testing.T) {
	image := &models.ImageSignatureResult{
		Found:           true,
		ReceiverPresent: true,
		Confidence:      60,
		Regions:         []models.SignatureRegion{{Side: "right"}},
	}

	merged := MergeSignatures(nil, image)
	require.Len(t, merged, 1)
	assert.Equal(t, models.SignatureCustomer, merged[0].Type)
	assert.True(t, merged[0].Present)
	assert.Equal(t, 60.0, merged[0].Confidence)
	assert.Equal(t, "right", merged[0].Position)
}

func TestMergeSignatures_TextOnlyWhenNoImageResult(t *testing.T) {
	textSigs := []models.SignatureInfo{
		{Type: models.SignatureDriver, Present: true, Confidence: 85},
	}

	merged := MergeSignatures(textSigs, nil)
	require.Len(t, merged, 1)
	assert.Equal(t, 85.0, merged[0].Confidence)

	merged = MergeSignatures(textSigs, &models.ImageSignatureResult{Found: false})
	require.Len(t, merged, 1)
	assert.Equal(t, 85.0, merged[0].Confidence)
}

func TestMergeSignatures_NaNConfidenceSanitized(t *testing.T) {
	textSigs := []models.SignatureInfo{
		{Type: models.SignatureDriver, Present: true, Confidence: 85},
	}
	image := &models.ImageSignatureResult{
		Found:         true,
		DriverPresent: true,
		Confidence:    math.NaN(),
	}

	merged := MergeSignatures(textSigs, image)
	require.Len(t, merged, 1)
	// NaN image confidence contributes zero, never poisons the fusion.
	assert.InDelta(t, 51.0, merged[0].Confidence, 0.001)
}

func TestSanitizeConfidence(t *testing.T) {
	assert.Equal(t, 0.0, sanitizeConfidence(math.NaN()))
	assert.Equal(t, 0.0, sanitizeConfidence(math.Inf(1)))
	assert.Equal(t, 0.0, sanitizeConfidence(math.Inf(-1)))
	assert.Equal(t, 0.0, sanitizeConfidence(-5))
	assert.Equal(t, 100.0, sanitizeConfidence(150))
	assert.Equal(t, 42.5, sanitizeConfidence(42.5))
}
