// Package ocr is the text-extraction boundary: it turns a scanned delivery
// document into UTF-8 text plus a 0-100 confidence for the validation engine.
package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/podflow/delivery-validation-service/internal/metrics"
)

// Engine extracts text from a document image.
type Engine interface {
	ExtractText(ctx context.Context, image []byte) (string, float64, error)
}

// TesseractEngine runs OCR through a local tesseract installation.
type TesseractEngine struct {
	language string
}

// NewTesseractEngine creates a tesseract-backed OCR engine.
func NewTesseractEngine(language string) *TesseractEngine {
	if language == "" {
		language = "eng"
	}
	return &TesseractEngine{language: language}
}

// ExtractText OCRs the image and returns the text with the mean word
// confidence. A scan with no recognizable words yields empty text and
// confidence 0, not an error; downstream validation treats that as
// input-absent.
func (t *TesseractEngine) ExtractText(ctx context.Context, image []byte) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	start := time.Now()
	defer func() { metrics.ObserveOCR(time.Since(start)) }()

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", 0, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", 0, fmt.Errorf("failed to load image for OCR: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("OCR extraction failed: %w", err)
	}
	if text == "" {
		return "", 0, nil
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		// Text without per-word confidences is still usable; report a
		// neutral mid confidence rather than failing the upload.
		return text, 50, nil
	}

	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return text, sum / float64(len(boxes)), nil
}
