package vision

import "errors"

// Failures surfaced by the annotation core. Callers match them with errors.Is;
// the wrapped message carries the detail.
var (
	// ErrDecode reports an unreadable or corrupt input image.
	ErrDecode = errors.New("decode error")
	// ErrInference reports detector output that cannot be interpreted.
	ErrInference = errors.New("inference error")
	// ErrSegmentationInference reports segmenter output that cannot be interpreted.
	ErrSegmentationInference = errors.New("segmentation inference error")
	// ErrSizeMismatch reports mask or box geometry inconsistent with the image.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrWrite reports an annotated image that could not be persisted.
	ErrWrite = errors.New("write error")
)
