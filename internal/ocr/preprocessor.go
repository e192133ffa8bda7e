package ocr

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Preprocessor enhances scanned delivery paperwork before OCR. Photographed
// ship documents and carbon-copy receipts arrive skewed, dim and noisy;
// cleaning them up first is worth far more than tuning tesseract afterwards.
type Preprocessor struct {
	logger *slog.Logger
}

// NewPreprocessor creates an image preprocessor.
func NewPreprocessor(logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{logger: logger}
}

// Enhance applies the standard cleanup pipeline via ImageMagick: resize,
// grayscale, normalize, contrast stretch, denoise, sharpen. Any failure falls
// back to the original bytes; preprocessing is best-effort, never fatal.
func (p *Preprocessor) Enhance(imageData []byte) ([]byte, error) {
	return p.run(imageData, []string{
		"-resize", "2000x2000>",
		"-colorspace", "Gray",
		"-normalize",
		"-contrast-stretch", "2%x1%",
		"-despeckle",
		"-sharpen", "0x1",
		"-unsharp", "0x0.5+0.5+0",
		"-quality", "95",
	})
}

// EnhanceForStamps applies a more aggressive pipeline tuned for ink stamps
// and signature regions, where uneven lighting defeats the standard pass.
func (p *Preprocessor) EnhanceForStamps(imageData []byte) ([]byte, error) {
	out, err := p.run(imageData, []string{
		"-resize", "2500x2500>",
		"-colorspace", "Gray",
		"-lat", "50x50+10%",
		"-contrast-stretch", "5%x2%",
		"-despeckle",
		"-despeckle",
		"-sharpen", "0x2",
		"-quality", "95",
	})
	if err != nil || bytes.Equal(out, imageData) {
		return p.Enhance(imageData)
	}
	return out, nil
}

func (p *Preprocessor) run(imageData []byte, filter []string) ([]byte, error) {
	tmpDir := os.TempDir()
	id := uuid.New().String()
	inputFile := filepath.Join(tmpDir, fmt.Sprintf("pod_in_%s.jpg", id))
	outputFile := filepath.Join(tmpDir, fmt.Sprintf("pod_out_%s.jpg", id))

	if err := os.WriteFile(inputFile, imageData, 0644); err != nil {
		return imageData, nil
	}
	defer os.Remove(inputFile)
	defer os.Remove(outputFile)

	args := append([]string{inputFile}, filter...)
	args = append(args, outputFile)

	// ImageMagick 7 ships as 'magick', older installs as 'convert'.
	var cmd *exec.Cmd
	if _, err := exec.LookPath("magick"); err == nil {
		cmd = exec.Command("magick", args...)
	} else {
		cmd = exec.Command("convert", args...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		p.logger.Warn("image preprocessing failed, using original scan",
			"error", err, "stderr", stderr.String())
		return imageData, nil
	}

	processed, err := os.ReadFile(outputFile)
	if err != nil {
		return imageData, nil
	}

	p.logger.Debug("scan enhanced", "original_bytes", len(imageData), "processed_bytes", len(processed))
	return processed, nil
}
