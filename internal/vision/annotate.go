package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// labelOffset is how far above the box's top edge the label baseline sits.
const labelOffset = 10

// DrawBox draws an axis-aligned rectangle and, when label is not empty, a text label
// above its top-left corner. Parts outside the image are clipped.
func DrawBox(img *gocv.Mat, box image.Rectangle, style BoxStyle, label string) error {
	// Line8 keeps stroke pixels at the exact colour; gocv.Rectangle antialiases.
	if err := gocv.RectangleWithParams(img, box, style.Color, style.Thickness, gocv.Line8, 0); err != nil {
		return fmt.Errorf("failed to draw box: %w", err)
	}
	if label == "" {
		return nil
	}

	pt := image.Pt(box.Min.X, box.Min.Y-labelOffset)
	if err := gocv.PutText(img, label, pt, gocv.FontHersheySimplex, style.FontScale, style.Color, style.TextThickness); err != nil {
		return fmt.Errorf("failed to draw text: %w", err)
	}
	return nil
}

// BlendMask blends c into img wherever mask is non-zero:
// out = img*(1-alpha) + c*alpha. Pixels outside the mask are untouched.
// mask must be single-channel 8-bit with the same size as img.
func BlendMask(img *gocv.Mat, mask gocv.Mat, c color.RGBA, alpha float64) error {
	if alpha < 0 || alpha > 1 {
		return fmt.Errorf("blend alpha %.2f out of range [0,1]", alpha)
	}
	if mask.Rows() != img.Rows() || mask.Cols() != img.Cols() {
		return fmt.Errorf("%w: mask %dx%d, image %dx%d", ErrSizeMismatch,
			mask.Cols(), mask.Rows(), img.Cols(), img.Rows())
	}
	if mask.Type() != gocv.MatTypeCV8UC1 {
		return fmt.Errorf("%w: mask must be single-channel 8-bit, got type %v", ErrSizeMismatch, mask.Type())
	}

	overlay := gocv.NewMatWithSizeFromScalar(scalarBGR(c), img.Rows(), img.Cols(), img.Type())
	defer overlay.Close()

	blended := gocv.NewMat()
	defer blended.Close()

	if err := gocv.AddWeighted(*img, 1-alpha, overlay, alpha, 0, &blended); err != nil {
		return fmt.Errorf("failed to blend overlay: %w", err)
	}
	if err := blended.CopyToWithMask(img, mask); err != nil {
		return fmt.Errorf("failed to apply blended mask: %w", err)
	}
	return nil
}

// BinarizeMask returns a new mask that is 255 where mask > threshold and 0 elsewhere.
func BinarizeMask(mask gocv.Mat, threshold float64) gocv.Mat {
	bin := gocv.NewMat()
	gocv.Threshold(mask, &bin, float32(threshold), 255, gocv.ThresholdBinary)
	return bin
}

// scalarBGR converts an RGB colour to the BGR scalar order gocv mats use.
func scalarBGR(c color.RGBA) gocv.Scalar {
	return gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0)
}
