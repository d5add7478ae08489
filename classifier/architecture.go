package classifier

import (
	"fmt"

	"github.com/camden-git/petclassifier/dto"
	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/nn"
)

const kernelSize = 3

// ConvModelHyperParams gives the layer widths of the fixed pre-trained CNN:
// 32, 64, 128 and 128 filters followed by 512 dense units.
var ConvModelHyperParams = dto.HyperParams{
	Filters1Layer: 32,
	Filters2Layer: 64,
	Filters3Layer: 128,
	DenseNeurons:  512,
}

// InputShape is the per-sample classifier input, 150x150 RGB.
var InputShape = nn.Shape{media.ClassificationSize, media.ClassificationSize, media.Channels}

// BuildCNN assembles the four block convolutional network used by the fixed
// model and by user models. The fourth block repeats the third block's
// filter count.
func BuildCNN(hp dto.HyperParams, seed int64) (*nn.Sequential, error) {
	net, err := nn.NewSequential(InputShape, seed,
		nn.NewConv2D(hp.Filters1Layer, kernelSize, nn.ReLU), nn.NewMaxPool2D(),
		nn.NewConv2D(hp.Filters2Layer, kernelSize, nn.ReLU), nn.NewMaxPool2D(),
		nn.NewConv2D(hp.Filters3Layer, kernelSize, nn.ReLU), nn.NewMaxPool2D(),
		nn.NewConv2D(hp.Filters3Layer, kernelSize, nn.ReLU), nn.NewMaxPool2D(),
		nn.NewFlatten(),
		nn.NewDense(hp.DenseNeurons, nn.ReLU),
		nn.NewDense(1, nn.Sigmoid),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build CNN %d/%d/%d/%d: %w",
			hp.Filters1Layer, hp.Filters2Layer, hp.Filters3Layer, hp.DenseNeurons, err)
	}
	return net, nil
}
