package training

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"os"

	"github.com/camden-git/petclassifier/media"
)

// Generator yields endless batches of (tensor, label) pairs from a sample
// list. It walks a shuffled order and reshuffles whenever it wraps around.
// A Generator is not safe for concurrent use.
type Generator struct {
	samples   []Sample
	batchSize int
	augment   *Augmenter
	shuffle   bool
	rng       *rand.Rand

	order  []int
	cursor int
}

// NewGenerator returns a generator over samples. augment may be nil, in which
// case pictures are only resized and rescaled.
func NewGenerator(samples []Sample, batchSize int, augment *Augmenter, shuffle bool, seed int64) (*Generator, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("generator needs at least one sample")
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	g := &Generator{
		samples:   samples,
		batchSize: batchSize,
		augment:   augment,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		order:     make([]int, len(samples)),
	}
	for i := range g.order {
		g.order[i] = i
	}
	g.reshuffle()
	return g, nil
}

func (g *Generator) reshuffle() {
	g.cursor = 0
	if g.shuffle {
		g.rng.Shuffle(len(g.order), func(i, j int) { g.order[i], g.order[j] = g.order[j], g.order[i] })
	}
}

// Next returns the next batch. The last batch before a wrap is not
// truncated; it continues into the reshuffled order.
func (g *Generator) Next(ctx context.Context) ([][]float32, []float32, error) {
	xs := make([][]float32, 0, g.batchSize)
	ys := make([]float32, 0, g.batchSize)
	for len(xs) < g.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if g.cursor >= len(g.order) {
			g.reshuffle()
		}
		s := g.samples[g.order[g.cursor]]
		g.cursor++

		img, err := loadPicture(s.Path)
		if err != nil {
			return nil, nil, err
		}
		if g.augment != nil {
			img = g.augment.Apply(img, g.rng)
		}
		xs = append(xs, media.ToTensor(img))
		ys = append(ys, s.Label)
	}
	return xs, ys, nil
}

func loadPicture(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset picture: %w", err)
	}
	defer f.Close()

	img, err := media.DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("dataset picture '%s': %w", path, err)
	}
	return media.ResizeForClassification(img), nil
}
