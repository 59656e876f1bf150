package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// PDFConverter wraps the external image and PDF capabilities. Outputs are
// written once to their final path; a failed run removes its partial file.
type PDFConverter struct {
	logger *zap.Logger
}

func NewPDFConverter(logger *zap.Logger) *PDFConverter {
	return &PDFConverter{logger: logger}
}

// ImageToPDF decodes the image at inputPath and writes a single-page PDF to
// outputPath. Corrupt or unsupported input surfaces as a decode error
// before anything touches the output path.
func (c *PDFConverter) ImageToPDF(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.logger.Info("Converting image to PDF",
		zap.String("input", inputPath),
		zap.String("output", outputPath),
	)

	src, err := imaging.Open(inputPath, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	// pdfcpu embeds JPEG pages without recompression, so normalize every
	// input (PNG with alpha, GIF, TIFF) through one JPEG encode.
	page := outputPath + ".page.jpg"
	if err := imaging.Save(src, page, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("normalize image: %w", err)
	}
	defer os.Remove(page)

	if err := api.ImportImagesFile([]string{page}, outputPath, nil, nil); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("import image into pdf: %w", err)
	}

	return nil
}

// MergePDFs combines inputPaths into outputPath preserving the given order.
func (c *PDFConverter) MergePDFs(ctx context.Context, inputPaths []string, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(inputPaths) == 0 {
		return fmt.Errorf("no input files to merge")
	}

	c.logger.Info("Merging PDFs",
		zap.Int("inputs", len(inputPaths)),
		zap.String("output", outputPath),
	)

	for _, path := range inputPaths {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("input %s: %w", filepath.Base(path), err)
		}
	}

	if err := api.MergeCreateFile(inputPaths, outputPath, false, nil); err != nil {
		os.Remove(outputPath)
		return fmt.Errorf("merge pdfs: %w", err)
	}

	return nil
}
