// Package thumbnail renders JPEG previews of uploaded images.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/studyhub/drive/internal/config"
)

var supported = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// Generator fits images into Width x Height and encodes them as JPEG.
type Generator struct {
	Width   int
	Height  int
	Quality int
}

func NewGenerator(cfg config.ThumbnailConfig) *Generator {
	return &Generator{Width: cfg.Width, Height: cfg.Height, Quality: cfg.Quality}
}

// Supports reports whether Generate renders mimeType.
func Supports(mimeType string) bool {
	return supported[strings.ToLower(mimeType)]
}

// Generate returns nil for types it does not render. Decoding runs in its own
// goroutine so a cancelled ctx returns promptly.
func (g *Generator) Generate(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	if !Supports(mimeType) {
		return nil, nil
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		out, err := g.render(data)
		done <- result{data: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

func (g *Generator) render(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	width, height := g.Width, g.Height
	if width <= 0 {
		width = 256
	}
	if height <= 0 {
		height = 256
	}
	quality := g.Quality
	if quality <= 0 || quality > 100 {
		quality = 80
	}

	thumb := imaging.Fit(img, width, height, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
