package training

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	WeightsPrefix    = "custom_model_weights"
	WeightsExt       = ".bin"
	weightsSuffixLen = 10
	suffixAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// WeightsFilename returns a fresh "custom_model_weights<10 alnum>.bin" name.
// The suffix comes from crypto/rand, so concurrent trainings do not collide.
func WeightsFilename() (string, error) {
	suffix := make([]byte, weightsSuffixLen)
	max := big.NewInt(int64(len(suffixAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate weights file suffix: %w", err)
		}
		suffix[i] = suffixAlphabet[n.Int64()]
	}
	return WeightsPrefix + string(suffix) + WeightsExt, nil
}
