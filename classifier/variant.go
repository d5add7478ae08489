// Package classifier selects, builds and runs the cats-vs-dogs models.
package classifier

import (
	"strings"

	"github.com/camden-git/petclassifier/apperrors"
)

// Variant is one of the selectable model configurations.
type Variant int

const (
	// ConvModel is the fixed pre-trained CNN.
	ConvModel Variant = iota + 1
	// TransferModel is the frozen Inception backbone with a trained head.
	TransferModel
	// UserModel is a CNN trained by a user with their own hyper parameters.
	UserModel
)

var variantKeys = map[Variant]string{
	ConvModel:     "cats_or_dogs_model",
	TransferModel: "cats_or_dogs_transfer_learned_model",
	UserModel:     "user_model",
}

// Variants lists every variant in declaration order.
func Variants() []Variant {
	return []Variant{ConvModel, TransferModel, UserModel}
}

// String returns the variant key, e.g. "cats_or_dogs_model".
func (v Variant) String() string {
	if key, ok := variantKeys[v]; ok {
		return key
	}
	return "unknown"
}

// Valid reports whether v is one of the declared variants.
func (v Variant) Valid() bool {
	_, ok := variantKeys[v]
	return ok
}

// ParseVariant maps a variant key onto its Variant.
func ParseVariant(key string) (Variant, error) {
	key = strings.TrimSpace(key)
	for v, k := range variantKeys {
		if k == key {
			return v, nil
		}
	}
	return 0, apperrors.NewUnknownVariantError(key)
}
