// Package ocr reads text from scanned pages with Tesseract.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/Lllllllleong/forensicdocumentflow/internal/pdf"
	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var _ ports.OCR = (*Tesseract)(nil)

// Tesseract runs OCR over every image embedded in a page, in page order.
type Tesseract struct {
	Language string
}

func New(language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Language: language}
}

// ExtractText returns "" for a page without images; callers decide whether
// that is enough text to continue.
func (t *Tesseract) ExtractText(ctx context.Context, page []byte) (string, error) {
	dir, err := os.MkdirTemp("", "ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	images, err := pdf.Images(page, dir)
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		slog.Warn("No images found on page; nothing to OCR.")
		return "", nil
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.Language); err != nil {
		return "", fmt.Errorf("failed to set OCR language %q: %w", t.Language, err)
	}

	var parts []string
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := client.SetImage(img); err != nil {
			return "", fmt.Errorf("failed to load image %s: %w", img, err)
		}
		text, err := client.Text()
		if err != nil {
			return "", fmt.Errorf("tesseract failed on %s: %w", img, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
