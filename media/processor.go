package media

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/camden-git/petclassifier/apperrors"
	"github.com/camden-git/petclassifier/logging"
)

const (
	JpegQuality          = 90
	FallbackImageExt     = ".png"
	maxUploadDecodeBytes = 64 << 20
)

// Processor handles decoding, resizing and encoding of uploaded pictures. It
// relies on a Store implementation for saving the results.
type Processor struct {
	store Store
	log   *slog.Logger
}

func NewProcessor(store Store) *Processor {
	return &Processor{store: store, log: logging.ForComponent("media.processor")}
}

// Decode reads a whole upload and decodes it, applying the EXIF orientation
// when the file carries one. Anything that is not a decodable image yields
// apperrors.ErrImageDecode.
func (p *Processor) Decode(r io.Reader) (image.Image, error) {
	img, err := DecodeImage(r)
	if err != nil {
		return nil, err
	}
	p.log.Debug("media.processor: decoded upload", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, nil
}

// DecodeImage is Decode without a Processor, for callers that never store
// anything (dataset loading).
func DecodeImage(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxUploadDecodeBytes+1))
	if err != nil {
		return nil, apperrors.NewImageDecodeError(fmt.Errorf("failed to read upload: %w", err))
	}
	if len(data) > maxUploadDecodeBytes {
		return nil, apperrors.NewImageDecodeError(fmt.Errorf("upload exceeds %d bytes", maxUploadDecodeBytes))
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewImageDecodeError(err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.NewImageDecodeError(fmt.Errorf("invalid image dimensions: %dx%d", b.Dx(), b.Dy()))
	}
	return applyOrientation(img, readOrientation(data)), nil
}

// readOrientation returns the EXIF orientation tag, or 1 when the data has
// no usable EXIF block.
func readOrientation(data []byte) int {
	exifData, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := exifData.Get(exif.Orientation)
	if err != nil || tag == nil {
		return 1
	}
	val, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return val
}

func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// ResizeForClassification stretches img to exactly 150x150; the aspect ratio
// is not preserved.
func ResizeForClassification(img image.Image) *image.NRGBA {
	return imaging.Resize(img, ClassificationSize, ClassificationSize, imaging.Lanczos)
}

// ResizeAvatar stretches img to exactly 200x200.
func ResizeAvatar(img image.Image) *image.NRGBA {
	return imaging.Resize(img, AvatarSize, AvatarSize, imaging.Lanczos)
}

// ToTensor flattens img into NHWC order (batch of one, RGB), scaling every
// channel to [0,1]. Alpha is dropped.
func ToTensor(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, 0, w*h*Channels)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			out = append(out,
				float32(px[0])/255.0,
				float32(px[1])/255.0,
				float32(px[2])/255.0,
			)
		}
	}
	return out
}

// PrepareTensor resizes img for classification and returns its tensor.
func PrepareTensor(img image.Image) []float32 {
	return ToTensor(ResizeForClassification(img))
}

// SaveImage encodes img (already resized) and stores it under the images
// directory using filename. Returns the relative store path.
func (p *Processor) SaveImage(img image.Image, filename string) (string, error) {
	return p.save(AssetTypeImage, img, filename)
}

// SaveAvatar resizes img to the avatar size and stores it under the avatars
// directory.
func (p *Processor) SaveAvatar(img image.Image, filename string) (string, error) {
	return p.save(AssetTypeAvatar, ResizeAvatar(img), filename)
}

func (p *Processor) save(assetType AssetType, img image.Image, filename string) (string, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		return "", fmt.Errorf("invalid filename '%s'", filename)
	}

	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + FallbackImageExt
		format = imaging.PNG
	}

	reader, writer := io.Pipe()
	go func() {
		err := imaging.Encode(writer, img, format, imaging.JPEGQuality(JpegQuality))
		if err != nil {
			p.log.Error("media.processor: failed to encode image", "asset_type", assetType, "filename", name, "error", err)
			writer.CloseWithError(fmt.Errorf("%s encoding failed: %w", assetType, err))
			return
		}
		writer.Close()
	}()

	savedRelPath, err := p.store.Save(assetType, "", name, reader)
	reader.Close()
	if err != nil {
		return "", fmt.Errorf("failed to save %s via store: %w", assetType, err)
	}

	p.log.Info("media.processor: saved image", "asset_type", assetType, "path", savedRelPath)
	return savedRelPath, nil
}
