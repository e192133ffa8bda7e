package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/podflow/delivery-validation-service/internal/auth"
	"github.com/podflow/delivery-validation-service/internal/db"
	"github.com/podflow/delivery-validation-service/internal/models"
	"github.com/podflow/delivery-validation-service/internal/storage"
	"github.com/podflow/delivery-validation-service/internal/validation"
)

func authClaims(r *http.Request) (*auth.Claims, bool) {
	return auth.ClaimsFromContext(r.Context())
}

// CreateDeliveryRequest is the body for POST /api/deliveries.
type CreateDeliveryRequest struct {
	ClientID  string `json:"clientId"`
	Reference string `json:"reference"`
}

// CreateDelivery registers a new, empty delivery bundle.
func (h *Handler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req CreateDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ClientID == "" || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "clientId and reference are required")
		return
	}

	delivery := &models.Delivery{ClientID: req.ClientID, Reference: req.Reference}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	if err := db.CreateDelivery(ctx, delivery); err != nil {
		h.logger.Error("failed to create delivery", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create delivery")
		return
	}

	writeJSON(w, http.StatusCreated, delivery)
}

// ListDeliveries returns recent deliveries for the query's client.
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "clientId query parameter is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	deliveries, err := db.ListDeliveries(ctx, clientID, limit)
	if err != nil {
		h.logger.Error("failed to list deliveries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"deliveries": deliveries})
}

// GetDelivery returns one delivery with its document list and checklist.
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	delivery, err := db.GetDelivery(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	writeJSON(w, http.StatusOK, delivery)
}

// UploadDocument accepts one scanned document for a delivery: the scan is
// enhanced, OCR'd, stored, persisted and immediately processed (classified
// plus stamp/signature detection). Delivery-level checks only run on
// validate.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	ctx, cancel := contextWithTimeout(r, 60*time.Second)
	defer cancel()

	delivery, err := db.GetDelivery(ctx, deliveryID)
	if err != nil {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	// Optional externally computed signature heuristic result.
	var imageSig *models.ImageSignatureResult
	if raw := r.FormValue("imageSignatureResult"); raw != "" {
		imageSig = &models.ImageSignatureResult{}
		if err := json.Unmarshal([]byte(raw), imageSig); err != nil {
			writeError(w, http.StatusBadRequest, "invalid imageSignatureResult")
			return
		}
	}

	processed := imageData
	if h.config.OCR.Preprocess {
		processed, _ = h.preprocessor.Enhance(imageData)
	}

	rawText, ocrConfidence, err := h.ocrEngine.ExtractText(ctx, processed)
	if err != nil {
		h.logger.Error("OCR extraction failed", "delivery_id", deliveryID, "error", err)
		writeError(w, http.StatusBadGateway, "OCR extraction failed")
		return
	}

	doc := &models.Document{
		ID:             uuid.New(),
		DeliveryID:     deliveryID,
		FileName:       header.Filename,
		RawText:        rawText,
		OCRConfidence:  ocrConfidence,
		DetectedType:   models.DocTypeUnknown,
		ImageSignature: imageSig,
	}

	if storage.Client != nil {
		contentType := header.Header.Get("Content-Type")
		objectName := doc.ID.String() + storage.FileExtension(contentType)
		path, err := storage.UploadDocumentScan(ctx, delivery.ClientID, delivery.Reference,
			objectName, bytes.NewReader(imageData), int64(len(imageData)), contentType)
		if err != nil {
			h.logger.Warn("failed to store document scan", "document_id", doc.ID, "error", err)
		} else {
			doc.ImagePath = path
		}
	}

	if err := db.SaveDocument(ctx, doc); err != nil {
		h.logger.Error("failed to save document", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save document")
		return
	}

	// Per-document processing runs immediately so the UI can show the
	// detected type before the delivery is validated.
	h.engine.ProcessDocument(doc)

	// Ink stamps are often too faint for the general text pass. When none were
	// found, retry detection on a stamp-tuned rendition of the scan.
	if len(doc.Stamps) == 0 && h.config.OCR.Preprocess {
		if stampImage, err := h.preprocessor.EnhanceForStamps(imageData); err == nil && !bytes.Equal(stampImage, processed) {
			if stampText, _, err := h.ocrEngine.ExtractText(ctx, stampImage); err == nil {
				doc.Stamps = validation.DetectStamps(doc.EffectiveType(), stampText)
			}
		}
	}

	if err := db.SaveProcessingResult(ctx, doc); err != nil {
		h.logger.Error("failed to save processing result", "document_id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save processing result")
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// ValidateDelivery runs the full validation pipeline and overwrites the
// stored checklist.
func (h *Handler) ValidateDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	ctx, cancel := contextWithTimeout(r, 60*time.Second)
	defer cancel()

	delivery, err := db.GetDelivery(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}
	docs, err := db.GetDocumentsByDelivery(ctx, id)
	if err != nil {
		h.logger.Error("failed to load documents", "delivery_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load documents")
		return
	}

	checklist, err := h.engine.ValidateDelivery(ctx, delivery, docs)
	if err != nil {
		// The FAIL result is persisted before the error is reported so the
		// run is never left looking half-finished.
		if checklist != nil {
			if dbErr := db.SaveValidationResult(ctx, delivery); dbErr != nil {
				h.logger.Error("failed to persist failed validation", "delivery_id", id, "error", dbErr)
			}
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("validation failed: %v", err))
		return
	}

	for _, doc := range docs {
		if err := db.SaveProcessingResult(ctx, doc); err != nil {
			h.logger.Error("failed to save processing result", "document_id", doc.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to persist validation")
			return
		}
	}
	if err := db.SaveValidationResult(ctx, delivery); err != nil {
		h.logger.Error("failed to save validation result", "delivery_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to persist validation")
		return
	}

	writeJSON(w, http.StatusOK, delivery)
}

// GetChecklist returns the stored checklist for a delivery.
func (h *Handler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery id")
		return
	}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	delivery, err := db.GetDelivery(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}
	if delivery.Checklist == nil {
		writeError(w, http.StatusNotFound, "delivery has not been validated yet")
		return
	}

	writeJSON(w, http.StatusOK, delivery.Checklist)
}

// GetDocument returns one document with its derived results.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	doc, err := db.GetDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// OverrideRequest is the body for POST /api/documents/{id}/override.
type OverrideRequest struct {
	Type   models.DocumentType `json:"type"`
	Reason string              `json:"reason"`
}

// OverrideDocument pins a document's classification. The document's detected
// type is updated in the same statement so the delivery's denormalized copy
// stays in sync on the next read.
func (h *Handler) OverrideDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validDocumentType(req.Type) {
		writeError(w, http.StatusBadRequest, "unknown document type")
		return
	}
	if req.Reason == "" {
		writeError(w, http.StatusBadRequest, "an override reason is required")
		return
	}

	override := &models.ManualOverride{
		Type:   req.Type,
		Reason: req.Reason,
		SetAt:  time.Now().UTC(),
	}
	if claims, ok := authClaims(r); ok {
		override.SetBy = claims.Email
	}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	if err := db.SetManualOverride(ctx, id, override); err != nil {
		h.logger.Error("failed to set manual override", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to set override")
		return
	}

	doc, err := db.GetDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reload document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetDocumentImage returns a presigned URL for the stored scan.
func (h *Handler) GetDocumentImage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document id")
		return
	}

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	doc, err := db.GetDocument(ctx, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if doc.ImagePath == "" || storage.Client == nil {
		writeError(w, http.StatusNotFound, "no stored scan for this document")
		return
	}

	url, err := storage.GetPresignedURL(ctx, doc.ImagePath)
	if err != nil {
		h.logger.Error("failed to generate presigned URL", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate image URL")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// GetClientConfig returns a client's active validation configuration.
func (h *Handler) GetClientConfig(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["id"]

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	cfg, err := h.clientConfig.Get(ctx, clientID)
	if err != nil {
		h.logger.Error("failed to load client config", "client_id", clientID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load client config")
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// UpdateClientConfig replaces a client's validation configuration. The config
// cache entry is invalidated synchronously, so the next validation run sees
// the update.
func (h *Handler) UpdateClientConfig(w http.ResponseWriter, r *http.Request) {
	clientID := mux.Vars(r)["id"]

	var cfg models.ClientValidationConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cfg.ClientID = clientID

	ctx, cancel := contextWithTimeout(r, 10*time.Second)
	defer cancel()
	if err := h.clientConfig.Save(ctx, cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

func validDocumentType(t models.DocumentType) bool {
	if t == models.DocTypeUnknown {
		return true
	}
	for _, known := range models.AllDocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}
