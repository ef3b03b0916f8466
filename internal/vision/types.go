package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Detection is a predicted object: box in pixel coordinates of the source image,
// class label and confidence in [0,1].
type Detection struct {
	Box   image.Rectangle
	Label string
	Score float64
}

// InstanceMask is a predicted object instance with a per-pixel membership map.
// Mask is CV_8UC1 on a 0-255 scale and has the same size as the source image.
type InstanceMask struct {
	Mask  gocv.Mat
	Box   image.Rectangle
	Label string
	Score float64
}

// Close releases the mask buffer.
func (m *InstanceMask) Close() error {
	return m.Mask.Close()
}

// AnnotatedImage is a copy of the input image with results drawn on it.
// Detections lists what was drawn, in drawing order.
type AnnotatedImage struct {
	Mat        gocv.Mat
	Detections []Detection
}

// Close releases the image buffer.
func (a *AnnotatedImage) Close() error {
	return a.Mat.Close()
}

// BoxStyle controls how DrawBox renders a rectangle and its label.
type BoxStyle struct {
	Color         color.RGBA
	Thickness     int
	FontScale     float64
	TextThickness int
}

// DefaultBoxStyle is a green 2px box with a 0.5 scale label.
func DefaultBoxStyle() BoxStyle {
	return BoxStyle{
		Color:         color.RGBA{R: 0, G: 255, B: 0, A: 255},
		Thickness:     2,
		FontScale:     0.5,
		TextThickness: 2,
	}
}
