package office2png

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
)

// PNG compression bounds, on the 0 (none) to 9 (smallest) scale.
const (
	MinPNGCompression     = 0
	MaxPNGCompression     = 9
	DefaultPNGCompression = 6
)

// Rasterizer opens intermediate PDF documents for page rendering.
type Rasterizer interface {
	Open(data []byte) (Document, error)
}

// Document is an opened intermediate document.
// Implementations are not safe for concurrent Render calls.
type Document interface {
	NumPages() int
	// Render rasterizes the 0-based page at dpi.
	Render(page int, dpi int) (image.Image, error)
	Close() error
}

// Compile-time interface implementation checks.
var (
	_ Rasterizer = fitzRasterizer{}
	_ Document   = (*fitzDocument)(nil)
)

// fitzRasterizer renders through MuPDF.
type fitzRasterizer struct{}

func (fitzRasterizer) Open(data []byte) (Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: opening intermediate PDF: %v", ErrRender, err)
	}
	return &fitzDocument{doc: doc}, nil
}

type fitzDocument struct {
	doc *fitz.Document
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) Render(page int, dpi int) (image.Image, error) {
	img, err := d.doc.ImageDPI(page, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrRender, page+1, err)
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}

// pngEncoder flattens rendered pages onto an opaque background and encodes
// them as PNG.
type pngEncoder struct {
	background color.Color
	level      png.CompressionLevel
}

func newPNGEncoder(background color.Color, compression int) pngEncoder {
	if background == nil {
		background = color.White
	}
	return pngEncoder{background: background, level: compressionLevel(compression)}
}

// compressionLevel maps the 0-9 scale onto image/png's levels.
func compressionLevel(n int) png.CompressionLevel {
	switch {
	case n <= 0:
		return png.NoCompression
	case n <= 3:
		return png.BestSpeed
	case n <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// Encode returns the PNG bytes of img composited over the background.
func (e pngEncoder) Encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), e.background)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.PNG, imaging.PNGCompressionLevel(e.level)); err != nil {
		return nil, fmt.Errorf("%w: encoding PNG: %v", ErrRender, err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img over a white background with default compression.
func EncodePNG(img image.Image) ([]byte, error) {
	return newPNGEncoder(color.White, DefaultPNGCompression).Encode(img)
}

// samplePDF is a one-page, one-inch PDF. MuPDF rebuilds the missing xref table.
const samplePDF = "%PDF-1.4\n" +
	"1 0 obj <</Type /Catalog /Pages 2 0 R>> endobj\n" +
	"2 0 obj <</Type /Pages /Kids [3 0 R] /Count 1>> endobj\n" +
	"3 0 obj <</Type /Page /Parent 2 0 R /MediaBox [0 0 72 72]>> endobj\n" +
	"trailer <</Root 1 0 R>>\n" +
	"%%EOF\n"

// CheckRasterizer renders a built-in one-page document at dpi and returns
// the size of the result. It fails when MuPDF is unusable in this build.
func CheckRasterizer(dpi int) (image.Point, error) {
	doc, err := fitzRasterizer{}.Open([]byte(samplePDF))
	if err != nil {
		return image.Point{}, err
	}
	defer func() { _ = doc.Close() }()

	if doc.NumPages() != 1 {
		return image.Point{}, fmt.Errorf("%w: sample document has %d pages", ErrRender, doc.NumPages())
	}
	img, err := doc.Render(0, dpi)
	if err != nil {
		return image.Point{}, err
	}
	return img.Bounds().Size(), nil
}
