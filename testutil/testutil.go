// Package testutil builds fixtures shared by package tests: in-process
// pictures and small on-disk datasets.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// PNG encodes a w x h picture filled with c.
func PNG(t testing.TB, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WriteDataset lays out root/{train,validation}/{cats,dogs} with perClass
// small pictures each; cats are dark, dogs are bright.
func WriteDataset(t testing.TB, root string, perClass int) {
	t.Helper()
	for _, part := range []string{"train", "validation"} {
		for _, class := range []string{"cats", "dogs"} {
			dir := filepath.Join(root, part, class)
			require.NoError(t, os.MkdirAll(dir, 0o755))

			shade := uint8(30)
			if class == "dogs" {
				shade = 220
			}
			for i := 0; i < perClass; i++ {
				name := filepath.Join(dir, class[:3]+"."+strconv.Itoa(i+1)+".png")
				data := PNG(t, 12+i, 10, color.NRGBA{R: shade, G: shade, B: shade + uint8(i), A: 255})
				require.NoError(t, os.WriteFile(name, data, 0o644))
			}
		}
	}
}
