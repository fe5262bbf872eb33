package loader

import (
	"bytes"
	"image"
	"image/gif"
	"log/slog"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
)

// ImageTensor is a batch of decoded frames normalized to 3 channel float32
// pixels in [0,1], laid out frame-major as [frames][height][width][3].
// All frames in a batch share the same width and height.
type ImageTensor struct {
	Frames int
	Height int
	Width  int
	Data   []float32
}

// At returns one channel of one pixel.
func (t *ImageTensor) At(frame, y, x, c int) float32 {
	return t.Data[((frame*t.Height+y)*t.Width+x)*3+c]
}

const placeholderSize = 64

// NewPlaceholderImage returns the 64x64 black single frame image used when
// loading fails.
func NewPlaceholderImage() *ImageTensor {
	return &ImageTensor{
		Frames: 1,
		Height: placeholderSize,
		Width:  placeholderSize,
		Data:   make([]float32, placeholderSize*placeholderSize*3),
	}
}

// decodeImage decodes the raw bytes of an image file into an ImageTensor.
// GIF streams contribute one frame per image in the sequence; every other
// format contributes a single frame. Frames are orientation corrected and
// frames whose size differs from the first valid frame are silently dropped.
// When more than one frame survives and the container format is not in
// excludedFormats, the frames are batched; otherwise only the first frame is
// returned.
func decodeImage(data []byte, excludedFormats []string) (*ImageTensor, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var frames []image.Image
	if format == "gif" {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		for _, f := range g.Image {
			frames = append(frames, f)
		}
	} else {
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		frames = []image.Image{img}
	}

	orientation := exifOrientation(data)

	tensor := &ImageTensor{}
	for i, frame := range frames {
		frame = applyOrientation(frame, orientation)
		w := frame.Bounds().Dx()
		h := frame.Bounds().Dy()

		if tensor.Frames == 0 {
			tensor.Width = w
			tensor.Height = h
		} else if w != tensor.Width || h != tensor.Height {
			slog.Debug("skipping frame with mismatched size",
				"frame", i, "width", w, "height", h,
				"want_width", tensor.Width, "want_height", tensor.Height)
			continue
		}

		tensor.Data = append(tensor.Data, framePixels(frame)...)
		tensor.Frames++
	}

	if tensor.Frames == 0 {
		return nil, image.ErrFormat
	}

	if tensor.Frames > 1 && containsFold(excludedFormats, format) {
		// multi-frame incompatible container: keep only the first frame
		tensor.Data = tensor.Data[:tensor.Height*tensor.Width*3]
		tensor.Frames = 1
	}
	return tensor, nil
}

// framePixels converts a frame to 3 channel float32 pixels in [0,1].
// Single channel high bit depth frames (the decoded analog of PIL mode 'I')
// are rescaled by 1/255 and clamped before conversion.
func framePixels(frame image.Image) []float32 {
	bounds := frame.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	px := make([]float32, 0, w*h*3)

	gray16, isGray16 := frame.(*image.Gray16)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if isGray16 {
				v := uint32(gray16.Gray16At(x, y).Y) / 255
				if v > 255 {
					v = 255
				}
				f := float32(v) / 255.0
				px = append(px, f, f, f)
				continue
			}
			r, g, b, _ := frame.At(x, y).RGBA()
			px = append(px,
				float32(r>>8)/255.0,
				float32(g>>8)/255.0,
				float32(b>>8)/255.0)
		}
	}
	return px
}

// exifOrientation reads the EXIF orientation tag from the raw file bytes,
// defaulting to 1 (upright) when the file carries no usable EXIF block.
func exifOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// applyOrientation undoes the transform recorded by an EXIF orientation tag.
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
	}
	return img
}

func containsFold(slice []string, target string) bool {
	for _, item := range slice {
		if strings.EqualFold(item, target) {
			return true
		}
	}
	return false
}
