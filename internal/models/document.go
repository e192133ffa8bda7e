package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentType identifies the kind of paperwork a scanned file was classified as.
type DocumentType string

const (
	DocTypeUnknown                  DocumentType = "UNKNOWN"
	DocTypeInvoice                  DocumentType = "INVOICE"
	DocTypeRAR                      DocumentType = "RAR" // Receiving/Acknowledgment Receipt
	DocTypeShipDocument             DocumentType = "SHIP_DOCUMENT"
	DocTypePalletNotificationLetter DocumentType = "PALLET_NOTIFICATION_LETTER"
	DocTypePalletExchange           DocumentType = "PALLET_EXCHANGE"
	DocTypePalletReceiving          DocumentType = "PALLET_RECEIVING"
)

// AllDocumentTypes lists every classifiable type, UNKNOWN excluded.
var AllDocumentTypes = []DocumentType{
	DocTypeInvoice,
	DocTypeRAR,
	DocTypeShipDocument,
	DocTypePalletNotificationLetter,
	DocTypePalletExchange,
	DocTypePalletReceiving,
}

// StampType identifies the kind of ink stamp found (or inferred) on a document.
type StampType string

const (
	StampDispatch  StampType = "DISPATCH"
	StampWarehouse StampType = "WAREHOUSE"
	StampPallet    StampType = "PALLET"
	StampNoPallet  StampType = "NO_PALLET"
	StampReceived  StampType = "RECEIVED"
)

// SignatureType identifies who a detected signature belongs to.
type SignatureType string

const (
	SignatureDriver    SignatureType = "DRIVER"
	SignatureCustomer  SignatureType = "CUSTOMER"
	SignatureWarehouse SignatureType = "WAREHOUSE"
)

// StampInfo is one stamp occurrence on a document.
type StampInfo struct {
	Type        StampType `json:"type"`
	MatchedText string    `json:"matchedText"`
	Confidence  float64   `json:"confidence"` // 0-100
}

// SignatureInfo is one signature slot on a document. Position is advisory
// (e.g. "left", "right", "bottom") and never required for correctness.
type SignatureInfo struct {
	Type       SignatureType `json:"type"`
	Present    bool          `json:"present"`
	Confidence float64       `json:"confidence"` // 0-100
	Position   string        `json:"position,omitempty"`
}

// SignatureRegion is a candidate ink region reported by the image heuristic.
type SignatureRegion struct {
	Side       string  `json:"side"` // "left" or "right"
	Confidence float64 `json:"confidence"`
}

// ImageSignatureResult is the externally supplied image-heuristic signature
// report for one document. The engine consumes it, never produces it.
type ImageSignatureResult struct {
	Found           bool              `json:"found"`
	DriverPresent   bool              `json:"driverPresent"`
	ReceiverPresent bool              `json:"receiverPresent"`
	Confidence      float64           `json:"confidence"` // 0-100
	Regions         []SignatureRegion `json:"regions,omitempty"`
}

// ManualOverride pins a document's classification. While set, the classifier
// is bypassed entirely and must never silently reclassify the document.
type ManualOverride struct {
	Type   DocumentType `json:"type"`
	Reason string       `json:"reason"`
	SetBy  string       `json:"setBy,omitempty"`
	SetAt  time.Time    `json:"setAt"`
}

// Document is one physical file within a delivery. Created on upload, mutated
// by the classifier and stamp/signature detector during processing, and frozen
// once the delivery is validated: re-validation re-derives, never appends.
type Document struct {
	ID         uuid.UUID `json:"id"`
	DeliveryID uuid.UUID `json:"deliveryId"`
	FileName   string    `json:"fileName"`
	ImagePath  string    `json:"imagePath,omitempty"` // object-store path

	RawText       string  `json:"rawText,omitempty"`
	OCRConfidence float64 `json:"ocrConfidence"` // 0-100

	DetectedType             DocumentType `json:"detectedType"`
	ClassificationConfidence float64      `json:"classificationConfidence"` // 0-100
	MatchedKeywords          []string     `json:"matchedKeywords,omitempty"`

	ManualOverride *ManualOverride `json:"manualOverride,omitempty"`

	Stamps     []StampInfo     `json:"stamps,omitempty"`
	Signatures []SignatureInfo `json:"signatures,omitempty"`

	// ImageSignature is the external heuristic result attached at upload time.
	ImageSignature *ImageSignatureResult `json:"imageSignature,omitempty"`

	UploadedAt  time.Time  `json:"uploadedAt"`
	ProcessedAt *time.Time `json:"processedAt,omitempty"`
}

// EffectiveType returns the pinned override type when set, otherwise the
// detected type.
func (d *Document) EffectiveType() DocumentType {
	if d.ManualOverride != nil {
		return d.ManualOverride.Type
	}
	return d.DetectedType
}
