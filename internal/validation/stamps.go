package validation

import (
	"math"
	"regexp"

	"github.com/podflow/delivery-validation-service/internal/models"
)

// Confidence fusion weights: text is more reliable for the signature type,
// the image heuristic proves physical ink exists.
const (
	textFusionWeight  = 0.6
	imageFusionWeight = 0.4

	inferredPalletStampConfidence    = 70.0
	inferredWarehouseStampConfidence = 75.0
)

type stampPattern struct {
	typ        models.StampType
	re         *regexp.Regexp
	confidence float64
}

// stampPatterns holds one regex per stamp type. All matches are collected and
// deduplicated by type, keeping the highest-confidence instance.
var stampPatterns = []stampPattern{
	{models.StampDispatch, regexp.MustCompile(`(?i)\bdispatch(?:ed)?\b(?:\s+(?:stamp|by|date))?`), 90},
	{models.StampWarehouse, regexp.MustCompile(`(?i)\bwarehouse\s+(?:stamp|copy|received|checker)\b`), 85},
	{models.StampPallet, regexp.MustCompile(`(?i)\bpallets?\s+(?:received|exchanged|returned)\b|\bpallet\s+stamp\b`), 85},
	{models.StampNoPallet, regexp.MustCompile(`(?i)\bno\s+pallets?\b|\bwithout\s+pallets?\b`), 85},
	{models.StampReceived, regexp.MustCompile(`(?i)\breceived\s+in\s+good\s+(?:order|condition)\b`), 80},
}

// warehouseReferenceRe matches any textual reference to a warehouse, weaker
// evidence than an explicit warehouse stamp.
var warehouseReferenceRe = regexp.MustCompile(`(?i)\bwarehouse\b|\bw/?hse?\s*(?:no|ref|#)`)

var palletNotificationRe = regexp.MustCompile(`(?i)\bpallet\s+notification\b`)

// DetectStamps finds stamp text in OCR output and applies the document-type
// conditioned inference rules. Real-world forms often carry stamps whose
// labels OCR fails to transcribe, so the rules trade a small false-positive
// risk for a large recall gain.
func DetectStamps(docType models.DocumentType, text string) []models.StampInfo {
	if text == "" {
		return nil
	}

	byType := make(map[models.StampType]models.StampInfo)
	order := make([]models.StampType, 0, len(stampPatterns))
	for _, p := range stampPatterns {
		m := p.re.FindString(text)
		if m == "" {
			continue
		}
		existing, ok := byType[p.typ]
		if ok && existing.Confidence >= p.confidence {
			continue
		}
		if !ok {
			order = append(order, p.typ)
		}
		byType[p.typ] = models.StampInfo{
			Type:        p.typ,
			MatchedText: m,
			Confidence:  sanitizeConfidence(p.confidence),
		}
	}

	// A ship document stamped for dispatch that references a warehouse almost
	// always carries a pallet stamp too, even when its label was not
	// transcribed.
	if docType == models.DocTypeShipDocument {
		_, hasDispatch := byType[models.StampDispatch]
		_, hasPallet := byType[models.StampPallet]
		if hasDispatch && !hasPallet && warehouseReferenceRe.MatchString(text) {
			byType[models.StampPallet] = models.StampInfo{
				Type:        models.StampPallet,
				MatchedText: "(inferred: dispatch stamp with warehouse reference)",
				Confidence:  inferredPalletStampConfidence,
			}
			order = append(order, models.StampPallet)
		}
	}

	// A pallet notification letter that references a warehouse implies a
	// warehouse stamp even without explicit warehouse-stamp text.
	if docType == models.DocTypePalletNotificationLetter {
		_, hasWarehouse := byType[models.StampWarehouse]
		if !hasWarehouse && palletNotificationRe.MatchString(text) && warehouseReferenceRe.MatchString(text) {
			byType[models.StampWarehouse] = models.StampInfo{
				Type:        models.StampWarehouse,
				MatchedText: "(inferred: pallet notification with warehouse reference)",
				Confidence:  inferredWarehouseStampConfidence,
			}
			order = append(order, models.StampWarehouse)
		}
	}

	stamps := make([]models.StampInfo, 0, len(order))
	for _, t := range order {
		stamps = append(stamps, byType[t])
	}
	return stamps
}

type signatureLabel struct {
	typ        models.SignatureType
	re         *regexp.Regexp
	confidence float64
}

// signatureLabelsByType holds document-type-specific signature label sets.
// These take priority over the generic fallback table: on a pallet exchange
// form "sent by" identifies the driver and "received by" the customer, while
// on other paperwork those labels are ambiguous.
var signatureLabelsByType = map[models.DocumentType][]signatureLabel{
	models.DocTypePalletExchange: {
		{models.SignatureDriver, regexp.MustCompile(`(?i)\bsent\s+by\b|\bsender\b`), 85},
		{models.SignatureCustomer, regexp.MustCompile(`(?i)\breceived\s+by\b|\breceiver\b`), 85},
	},
	models.DocTypeShipDocument: {
		{models.SignatureDriver, regexp.MustCompile(`(?i)\bdriver(?:'s)?\s+(?:signature|name)\b`), 85},
		{models.SignatureCustomer, regexp.MustCompile(`(?i)\bcustomer\s+signature\b|\breceived\s+by\b`), 85},
		{models.SignatureWarehouse, regexp.MustCompile(`(?i)\bchecker\b|\bwarehouse\s+signature\b`), 80},
	},
}

// genericSignatureLabels is the fallback pattern table for document types
// without a specific label set.
var genericSignatureLabels = []signatureLabel{
	{models.SignatureDriver, regexp.MustCompile(`(?i)\bdriver(?:'s)?\s+(?:signature|name)\b`), 75},
	{models.SignatureCustomer, regexp.MustCompile(`(?i)\bcustomer\s+signature\b|\bsigned\s+by\b|\breceived\s+by\b`), 75},
	{models.SignatureWarehouse, regexp.MustCompile(`(?i)\bwarehouse\s+signature\b`), 70},
}

// DetectSignatures infers signature presence from OCR text using the
// document-type label set when one exists, otherwise the generic table.
func DetectSignatures(docType models.DocumentType, text string) []models.SignatureInfo {
	if text == "" {
		return nil
	}
	labels, ok := signatureLabelsByType[docType]
	if !ok {
		labels = genericSignatureLabels
	}

	seen := make(map[models.SignatureType]bool)
	var sigs []models.SignatureInfo
	for _, l := range labels {
		if seen[l.typ] || !l.re.MatchString(text) {
			continue
		}
		seen[l.typ] = true
		sigs = append(sigs, models.SignatureInfo{
			Type:       l.typ,
			Present:    true,
			Confidence: sanitizeConfidence(l.confidence),
		})
	}
	return sigs
}

// MergeSignatures fuses text-detected signatures with an externally supplied
// image-heuristic result. When both methods agree a type is present the
// confidences are combined 0.6/0.4 text/image; a type found by only one
// method is kept as-is. A weak image signal becomes actionable once text
// corroborates it, and vice versa.
func MergeSignatures(textSigs []models.SignatureInfo, image *models.ImageSignatureResult) []models.SignatureInfo {
	if image == nil || !image.Found {
		return sanitizeSignatures(textSigs)
	}

	imagePresence := map[models.SignatureType]bool{
		models.SignatureDriver:   image.DriverPresent,
		models.SignatureCustomer: image.ReceiverPresent,
	}
	imageConf := sanitizeConfidence(image.Confidence)

	merged := make([]models.SignatureInfo, 0, len(textSigs)+2)
	covered := make(map[models.SignatureType]bool)
	for _, s := range textSigs {
		covered[s.Type] = true
		s.Confidence = sanitizeConfidence(s.Confidence)
		if s.Present && imagePresence[s.Type] {
			s.Confidence = sanitizeConfidence(textFusionWeight*s.Confidence + imageFusionWeight*imageConf)
			if s.Position == "" {
				s.Position = regionSide(image, s.Type)
			}
		}
		merged = append(merged, s)
	}

	// Image-only detections.
	for _, t := range []models.SignatureType{models.SignatureDriver, models.SignatureCustomer} {
		if covered[t] || !imagePresence[t] {
			continue
		}
		merged = append(merged, models.SignatureInfo{
			Type:       t,
			Present:    true,
			Confidence: imageConf,
			Position:   regionSide(image, t),
		})
	}
	return merged
}

// regionSide maps the image heuristic's page-side convention onto signature
// types: driver signs left, customer right.
func regionSide(image *models.ImageSignatureResult, t models.SignatureType) string {
	want := "left"
	if t == models.SignatureCustomer {
		want = "right"
	}
	for _, r := range image.Regions {
		if r.Side == want {
			return r.Side
		}
	}
	return ""
}

func sanitizeSignatures(sigs []models.SignatureInfo) []models.SignatureInfo {
	for i := range sigs {
		sigs[i].Confidence = sanitizeConfidence(sigs[i].Confidence)
	}
	return sigs
}

// sanitizeConfidence clamps to [0,100] and coerces NaN/Inf to 0 so invalid
// numbers never propagate into downstream checks.
func sanitizeConfidence(c float64) float64 {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return 0
	}
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
