package vision

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// ========================================
// Helpers
// ========================================

func newBGR(rows, cols int, b, g, r float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), rows, cols, gocv.MatTypeCV8UC3)
}

// newMask returns a rows x cols mask that is 255 inside on and 0 elsewhere.
func newMask(rows, cols int, on image.Rectangle) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	if !on.Empty() {
		region := mask.Region(on)
		region.SetTo(gocv.NewScalar(255, 0, 0, 0))
		region.Close()
	}
	return mask
}

func pixelBGR(m gocv.Mat, x, y int) [3]uint8 {
	v := m.GetVecbAt(y, x)
	return [3]uint8{v[0], v[1], v[2]}
}

func sameMat(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() && bytes.Equal(a.ToBytes(), b.ToBytes())
}

// ========================================
// DrawBox
// ========================================

func TestDrawBox_DrawsStrokeInsideBounds(t *testing.T) {
	img := newBGR(100, 100, 0, 0, 0)
	defer img.Close()

	if err := DrawBox(&img, image.Rect(10, 10, 50, 50), DefaultBoxStyle(), ""); err != nil {
		t.Fatalf("DrawBox failed: %v", err)
	}

	green := [3]uint8{0, 255, 0}
	for _, pt := range []image.Point{{10, 10}, {30, 10}, {10, 30}, {10, 49}} {
		if got := pixelBGR(img, pt.X, pt.Y); got != green {
			t.Errorf("pixel %v = %v, expected green stroke", pt, got)
		}
	}
	if got := pixelBGR(img, 30, 30); got != [3]uint8{} {
		t.Errorf("box interior should stay black, got %v", got)
	}
}

func TestDrawBox_PartiallyOutsideIsClipped(t *testing.T) {
	img := newBGR(50, 50, 0, 0, 0)
	defer img.Close()

	if err := DrawBox(&img, image.Rect(30, 30, 80, 80), DefaultBoxStyle(), "dog 0.91"); err != nil {
		t.Fatalf("DrawBox with out-of-bounds box should not fail: %v", err)
	}

	if img.Rows() != 50 || img.Cols() != 50 {
		t.Fatalf("image size changed to %dx%d", img.Cols(), img.Rows())
	}
	if got := pixelBGR(img, 40, 30); got != [3]uint8{0, 255, 0} {
		t.Errorf("in-bounds part of the top edge should be drawn, got %v", got)
	}
	if got := pixelBGR(img, 45, 45); got != [3]uint8{} {
		t.Errorf("pixel inside the box should stay black, got %v", got)
	}
}

func TestDrawBox_FullyOutsideLeavesImageUnchanged(t *testing.T) {
	img := newBGR(40, 40, 7, 7, 7)
	defer img.Close()
	orig := img.Clone()
	defer orig.Close()

	if err := DrawBox(&img, image.Rect(100, 100, 150, 150), DefaultBoxStyle(), ""); err != nil {
		t.Fatalf("DrawBox failed: %v", err)
	}
	if !sameMat(img, orig) {
		t.Error("drawing a box outside the image should not change any pixel")
	}
}

func TestDrawBox_ReportsDrawingFailure(t *testing.T) {
	img := newBGR(20, 20, 0, 0, 0)
	defer img.Close()

	// OpenCV rejects strokes thicker than 32767.
	style := DefaultBoxStyle()
	style.Thickness = 40000

	if err := DrawBox(&img, image.Rect(2, 2, 10, 10), style, "cat"); err == nil {
		t.Error("expected an error for an invalid stroke thickness")
	}
}

// ========================================
// BlendMask
// ========================================

func TestBlendMask_AlphaZeroLeavesImageUnchanged(t *testing.T) {
	img := newBGR(10, 10, 10, 20, 30)
	defer img.Close()
	orig := img.Clone()
	defer orig.Close()
	mask := newMask(10, 10, image.Rect(0, 0, 10, 10))
	defer mask.Close()

	if err := BlendMask(&img, mask, color.RGBA{R: 200, G: 100, B: 50, A: 255}, 0); err != nil {
		t.Fatalf("BlendMask failed: %v", err)
	}
	if !sameMat(img, orig) {
		t.Error("alpha=0 must leave the image unchanged")
	}
}

func TestBlendMask_AlphaOneReplacesMaskedPixels(t *testing.T) {
	img := newBGR(10, 10, 10, 20, 30)
	defer img.Close()
	mask := newMask(10, 10, image.Rect(0, 0, 5, 10))
	defer mask.Close()

	if err := BlendMask(&img, mask, color.RGBA{R: 200, G: 100, B: 50, A: 255}, 1); err != nil {
		t.Fatalf("BlendMask failed: %v", err)
	}

	if got := pixelBGR(img, 2, 5); got != [3]uint8{50, 100, 200} {
		t.Errorf("masked pixel = %v, expected overlay colour (BGR 50,100,200)", got)
	}
	if got := pixelBGR(img, 7, 5); got != [3]uint8{10, 20, 30} {
		t.Errorf("unmasked pixel = %v, expected original (10,20,30)", got)
	}
}

func TestBlendMask_HalfAlphaAverages(t *testing.T) {
	img := newBGR(4, 4, 10, 20, 30)
	defer img.Close()
	mask := newMask(4, 4, image.Rect(0, 0, 4, 4))
	defer mask.Close()

	if err := BlendMask(&img, mask, color.RGBA{R: 50, G: 60, B: 70, A: 255}, 0.5); err != nil {
		t.Fatalf("BlendMask failed: %v", err)
	}
	if got := pixelBGR(img, 1, 1); got != [3]uint8{40, 40, 40} {
		t.Errorf("blended pixel = %v, expected (40,40,40)", got)
	}
}

func TestBlendMask_SizeMismatch(t *testing.T) {
	img := newBGR(10, 10, 0, 0, 0)
	defer img.Close()

	tests := []struct {
		name       string
		rows, cols int
	}{
		{"smaller", 5, 5},
		{"larger", 20, 20},
		{"wider", 10, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := newMask(tt.rows, tt.cols, image.Rectangle{})
			defer mask.Close()

			err := BlendMask(&img, mask, color.RGBA{R: 255, A: 255}, 0.5)
			if !errors.Is(err, ErrSizeMismatch) {
				t.Errorf("expected ErrSizeMismatch, got %v", err)
			}
		})
	}
}

func TestBlendMask_RejectsAlphaOutOfRange(t *testing.T) {
	img := newBGR(4, 4, 0, 0, 0)
	defer img.Close()
	mask := newMask(4, 4, image.Rect(0, 0, 4, 4))
	defer mask.Close()

	if err := BlendMask(&img, mask, color.RGBA{}, 1.5); err == nil {
		t.Error("expected error for alpha > 1")
	}
}

func TestBinarizeMask_StrictlyAboveThreshold(t *testing.T) {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 1, 3, gocv.MatTypeCV8UC1)
	defer mask.Close()
	mask.SetUCharAt(0, 0, 128)
	mask.SetUCharAt(0, 1, 129)
	mask.SetUCharAt(0, 2, 255)

	bin := BinarizeMask(mask, 128)
	defer bin.Close()

	want := []uint8{0, 255, 255}
	for col, w := range want {
		if got := bin.GetUCharAt(0, col); got != w {
			t.Errorf("binarized[%d] = %d, expected %d", col, got, w)
		}
	}
}
