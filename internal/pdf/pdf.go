// Package pdf wraps pdfcpu for the operations the pipeline needs: decrypting
// owner-protected uploads, splitting into single pages, rewriting document
// properties and pulling embedded images out of scanned pages.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Lllllllleong/forensicdocumentflow/internal/ports"
)

var (
	_ ports.PageSplitter = Splitter{}
	_ ports.PDFAnnotator = Annotator{}
)

func relaxedConfig() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// workspace writes src into a fresh temp dir and returns the file path and a cleanup func.
func workspace(pattern string, src []byte) (string, func(), error) {
	dir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }
	path := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(path, src, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return path, cleanup, nil
}

// Splitter partitions a PDF into single-page PDFs.
type Splitter struct{}

// Split decrypts (never re-encrypts) protected sources, optimizes them under
// relaxed validation and returns one PDF per page in page order.
func (Splitter) Split(ctx context.Context, src []byte) ([][]byte, error) {
	source, cleanup, err := workspace("pdf-splitter-*", src)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	dir := filepath.Dir(source)

	input := decrypt(source, filepath.Join(dir, "decrypted.pdf"))

	optimized := filepath.Join(dir, "optimized.pdf")
	if err := api.OptimizeFile(input, optimized, relaxedConfig()); err != nil {
		return nil, fmt.Errorf("failed to validate/optimize PDF: %w", err)
	}
	pageCount, err := api.PageCountFile(optimized)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pagesDir := filepath.Join(dir, "pages")
	if err := os.Mkdir(pagesDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create pages dir: %w", err)
	}
	if err := api.SplitFile(optimized, pagesDir, 1, relaxedConfig()); err != nil {
		return nil, fmt.Errorf("failed to split PDF: %w", err)
	}

	// SplitFile names its output "<base>_<page>.pdf".
	pages := make([][]byte, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		b, err := os.ReadFile(filepath.Join(pagesDir, fmt.Sprintf("optimized_%d.pdf", i)))
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}

// decrypt removes owner-password protection with an empty user password. When
// the file is not encrypted (or cannot be opened that way) the source path is
// returned and the caller proceeds with it unchanged.
func decrypt(source, dest string) string {
	cfg := relaxedConfig()
	cfg.UserPW = ""
	cfg.OwnerPW = ""
	if err := api.DecryptFile(source, dest, cfg); err != nil {
		slog.Debug("PDF not decrypted; using source as-is.", "error", err)
		return source
	}
	slog.Info("Removed PDF encryption before split.")
	return dest
}

// Annotator rewrites document properties. Keywords are a list in the info
// dictionary and go through pdfcpu's keyword API; every other key is a property.
type Annotator struct{}

func (Annotator) Annotate(ctx context.Context, src []byte, props map[string]string) ([]byte, error) {
	source, cleanup, err := workspace("pdf-annotate-*", src)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	dir := filepath.Dir(source)

	var keywords []string
	properties := make(map[string]string, len(props))
	for k, v := range props {
		v = strings.TrimSpace(v)
		switch {
		case v == "":
		case k == "Keywords":
			for _, kw := range strings.Split(v, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					keywords = append(keywords, kw)
				}
			}
		default:
			properties[k] = v
		}
	}

	current := source
	if len(properties) > 0 {
		out := filepath.Join(dir, "properties.pdf")
		if err := api.AddPropertiesFile(current, out, properties, relaxedConfig()); err != nil {
			return nil, fmt.Errorf("failed to add PDF properties: %w", err)
		}
		current = out
	}
	if len(keywords) > 0 {
		out := filepath.Join(dir, "keywords.pdf")
		if err := api.AddKeywordsFile(current, out, keywords, relaxedConfig()); err != nil {
			return nil, fmt.Errorf("failed to add PDF keywords: %w", err)
		}
		current = out
	}
	return os.ReadFile(current)
}

// Images extracts every embedded image of a PDF into dir and returns their
// paths sorted by name, which pdfcpu derives from page and object number.
func Images(src []byte, dir string) ([]string, error) {
	path := filepath.Join(dir, "page.pdf")
	if err := os.WriteFile(path, src, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	imagesDir := filepath.Join(dir, "images")
	if err := os.Mkdir(imagesDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create images dir: %w", err)
	}
	if err := api.ExtractImagesFile(path, imagesDir, nil, relaxedConfig()); err != nil {
		return nil, fmt.Errorf("failed to extract images: %w", err)
	}
	entries, err := os.ReadDir(imagesDir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(imagesDir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
