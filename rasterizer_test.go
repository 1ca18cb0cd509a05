package office2png

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestCompressionLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level int
		want  png.CompressionLevel
	}{
		{0, png.NoCompression},
		{1, png.BestSpeed},
		{3, png.BestSpeed},
		{4, png.DefaultCompression},
		{6, png.DefaultCompression},
		{7, png.BestCompression},
		{9, png.BestCompression},
	}

	for _, tt := range tests {
		if got := compressionLevel(tt.level); got != tt.want {
			t.Errorf("compressionLevel(%d) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestPNGEncoder_FlattensTransparency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		background color.Color
		want       color.NRGBA
	}{
		{"default white", nil, color.NRGBA{255, 255, 255, 255}},
		{"custom background", color.NRGBA{10, 20, 30, 255}, color.NRGBA{10, 20, 30, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := image.NewNRGBA(image.Rect(0, 0, 4, 2)) // fully transparent
			src.SetNRGBA(3, 1, color.NRGBA{0, 0, 0, 255})

			data, err := newPNGEncoder(tt.background, DefaultPNGCompression).Encode(src)
			if err != nil {
				t.Fatalf("Encode() unexpected error: %v", err)
			}

			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("decoding output: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
				t.Fatalf("bounds = %v, want 4x2", b)
			}

			got := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
			if got != tt.want {
				t.Errorf("transparent pixel = %v, want %v", got, tt.want)
			}
			opaque := color.NRGBAModel.Convert(img.At(3, 1)).(color.NRGBA)
			if opaque != (color.NRGBA{0, 0, 0, 255}) {
				t.Errorf("opaque pixel = %v, want black", opaque)
			}
		})
	}
}

func TestEncodePNG(t *testing.T) {
	t.Parallel()

	data, err := EncodePNG(image.NewRGBA(image.Rect(0, 0, 10, 5)))
	if err != nil {
		t.Fatalf("EncodePNG() unexpected error: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if cfg.Width != 10 || cfg.Height != 5 {
		t.Errorf("size = %dx%d, want 10x5", cfg.Width, cfg.Height)
	}
}

func TestPNGEncoder_CompressionShrinksOutput(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	none, err := newPNGEncoder(nil, 0).Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	best, err := newPNGEncoder(nil, 9).Encode(img)
	if err != nil {
		t.Fatal(err)
	}
	if len(best) >= len(none) {
		t.Errorf("level 9 output (%d bytes) not smaller than level 0 (%d bytes)", len(best), len(none))
	}
}
