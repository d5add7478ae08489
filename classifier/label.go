package classifier

import "github.com/camden-git/petclassifier/dto"

const (
	LabelDog = "dog"
	LabelCat = "cat"

	// Threshold above which a score is a dog; exactly 0.5 is a cat.
	Threshold = 0.5
)

// ClampScore forces a model output into [0,1]; NaN becomes 0.
func ClampScore(score float32) float32 {
	switch {
	case score != score:
		return 0
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

// Decide turns a sigmoid score into a labelled prediction.
func Decide(score float32) dto.Prediction {
	score = ClampScore(score)
	if score > Threshold {
		return dto.Prediction{Score: score, Label: LabelDog, Message: "The image contains a dog."}
	}
	return dto.Prediction{Score: score, Label: LabelCat, Message: "The image contains a cat."}
}
