package vision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

// ProcessedPrefix is prepended to the original file name of an annotated image.
const ProcessedPrefix = "processed_"

var writableFormats = []string{".jpg", ".jpeg", ".png", ".bmp", ".tif", ".tiff", ".webp"}

// Decode reads PNG/JPEG (or any format OpenCV understands) into a 3-channel BGR Mat.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty input", ErrDecode)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: unsupported or corrupt image data", ErrDecode)
	}
	return mat, nil
}

// Encode writes img to path, creating the parent directory and overwriting an existing
// file. The format follows the file extension.
func Encode(img gocv.Mat, path string) error {
	if img.Empty() {
		return fmt.Errorf("%w: cannot save empty image", ErrWrite)
	}
	if !IsWritableFormat(path) {
		return fmt.Errorf("%w: unsupported image format: %s", ErrWrite, filepath.Ext(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if ok := gocv.IMWrite(path, img); !ok {
		return fmt.Errorf("%w: failed to save image: %s", ErrWrite, path)
	}
	return nil
}

// IsWritableFormat reports whether Encode can produce the format implied by path.
func IsWritableFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range writableFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// ProcessedName derives the output file name for an annotated copy of name.
func ProcessedName(name string) string {
	return ProcessedPrefix + filepath.Base(name)
}
