// Package training fits user-parameterised CNNs on the cats-vs-dogs dataset.
package training

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/facette/natsort"

	"github.com/camden-git/petclassifier/media"
)

// Class directories in label order: cats are 0, dogs are 1.
var classDirs = []string{"cats", "dogs"}

const (
	TrainDir      = "train"
	ValidationDir = "validation"
)

// Sample is one labelled picture on disk.
type Sample struct {
	Path  string
	Label float32
}

// Dataset is the cats-vs-dogs picture set split into its two partitions.
type Dataset struct {
	Train      []Sample
	Validation []Sample
}

// LoadDataset scans root/{train,validation}/{cats,dogs}. Files within a class
// directory are taken in natural order. Each partition must hold at least
// one picture.
func LoadDataset(root string) (*Dataset, error) {
	train, err := loadPartition(filepath.Join(root, TrainDir))
	if err != nil {
		return nil, err
	}
	validation, err := loadPartition(filepath.Join(root, ValidationDir))
	if err != nil {
		return nil, err
	}
	return &Dataset{Train: train, Validation: validation}, nil
}

func loadPartition(dir string) ([]Sample, error) {
	var samples []Sample
	for label, class := range classDirs {
		classDir := filepath.Join(dir, class)
		entries, err := os.ReadDir(classDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset directory '%s': %w", classDir, err)
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() || !media.IsRasterImage(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		natsort.Sort(names)

		for _, name := range names {
			samples = append(samples, Sample{Path: filepath.Join(classDir, name), Label: float32(label)})
		}
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("dataset partition '%s' holds no images", dir)
	}
	return samples, nil
}

// ClassCounts returns how many samples of each label s holds.
func ClassCounts(s []Sample) (cats, dogs int) {
	for _, sample := range s {
		if sample.Label > 0.5 {
			dogs++
		} else {
			cats++
		}
	}
	return cats, dogs
}
