package media

type AssetType string

const (
	AssetTypeImage   AssetType = "image"
	AssetTypeAvatar  AssetType = "avatar"
	AssetTypeWeights AssetType = "weights"
)

const (
	// ClassificationSize is the square edge every classifier input is resized to.
	ClassificationSize = 150
	// AvatarSize is the square edge of stored profile avatars.
	AvatarSize = 200
	// Channels of the classifier input tensor (RGB).
	Channels = 3
)

// TensorLen is the number of values in one (1,150,150,3) classifier input.
const TensorLen = ClassificationSize * ClassificationSize * Channels
