package training

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Augmenter applies random geometric transformations to training pictures.
// Ranges follow the usual image data generator conventions: rotation and
// shear in degrees, shifts and zoom as fractions.
type Augmenter struct {
	RotationRange    float64
	WidthShiftRange  float64
	HeightShiftRange float64
	ShearRange       float64
	ZoomRange        float64
	HorizontalFlip   bool
}

// DefaultAugmenter is the augmentation used for the training partition.
func DefaultAugmenter() *Augmenter {
	return &Augmenter{
		RotationRange:    40,
		WidthShiftRange:  0.2,
		HeightShiftRange: 0.2,
		ShearRange:       0.2,
		ZoomRange:        0.2,
		HorizontalFlip:   true,
	}
}

func uniform(rng *rand.Rand, r float64) float64 {
	if r == 0 {
		return 0
	}
	return (rng.Float64()*2 - 1) * r
}

// mul returns the affine map a∘b (b applied first).
func mul(a, b f64.Aff3) f64.Aff3 {
	return f64.Aff3{
		a[0]*b[0] + a[1]*b[3], a[0]*b[1] + a[1]*b[4], a[0]*b[2] + a[1]*b[5] + a[2],
		a[3]*b[0] + a[4]*b[3], a[3]*b[1] + a[4]*b[4], a[3]*b[2] + a[4]*b[5] + a[5],
	}
}

// matrix draws one random transform for a w x h picture, mapping source
// coordinates to destination coordinates around the picture centre.
func (a *Augmenter) matrix(w, h int, rng *rand.Rand) f64.Aff3 {
	theta := uniform(rng, a.RotationRange) * math.Pi / 180
	shear := uniform(rng, a.ShearRange) * math.Pi / 180
	tx := uniform(rng, a.WidthShiftRange) * float64(w)
	ty := uniform(rng, a.HeightShiftRange) * float64(h)
	zx, zy := 1.0, 1.0
	if a.ZoomRange > 0 {
		zx = 1 + uniform(rng, a.ZoomRange)
		zy = 1 + uniform(rng, a.ZoomRange)
	}

	cx, cy := float64(w)/2, float64(h)/2
	cos, sin := math.Cos(theta), math.Sin(theta)

	m := f64.Aff3{1, 0, -cx, 0, 1, -cy}
	m = mul(f64.Aff3{zx, 0, 0, 0, zy, 0}, m)
	m = mul(f64.Aff3{1, -math.Sin(shear), 0, 0, math.Cos(shear), 0}, m)
	m = mul(f64.Aff3{cos, -sin, 0, sin, cos, 0}, m)
	m = mul(f64.Aff3{1, 0, cx + tx, 0, 1, cy + ty}, m)
	return m
}

// Apply returns a transformed copy of img with the same bounds. Areas the
// transform uncovers are filled with the picture's mean colour.
func (a *Augmenter) Apply(img *image.NRGBA, rng *rand.Rand) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(meanColor(img)), image.Point{}, draw.Src)
	draw.BiLinear.Transform(dst, a.matrix(b.Dx(), b.Dy(), rng), img, b, draw.Over, nil)

	if a.HorizontalFlip && rng.Intn(2) == 1 {
		return imaging.FlipH(dst)
	}
	return dst
}

func meanColor(img *image.NRGBA) color.NRGBA {
	var r, g, bl, n uint64
	b := img.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			r += uint64(row[x])
			g += uint64(row[x+1])
			bl += uint64(row[x+2])
			n++
		}
	}
	if n == 0 {
		return color.NRGBA{A: 255}
	}
	return color.NRGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 255}
}
