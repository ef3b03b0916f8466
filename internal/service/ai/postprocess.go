package ai

import (
	"image"
	"math"

	"objectvision/internal/vision"
)

// decodeDETR converts DETR outputs into detections in pixel coordinates of a
// width x height image. logits holds queries x classes values where the last class
// is "no object"; boxes holds queries x 4 normalised (cx, cy, w, h) values.
// Every query is returned; score filtering is left to the caller.
func decodeDETR(logits, boxes []float32, queries, classes, width, height int, labels Labels) []vision.Detection {
	detections := make([]vision.Detection, 0, queries)
	probs := make([]float64, classes)

	for q := 0; q < queries; q++ {
		softmax(logits[q*classes:(q+1)*classes], probs)

		best, score := 0, -1.0
		for c := 0; c < classes-1; c++ {
			if probs[c] > score {
				best, score = c, probs[c]
			}
		}

		b := boxes[q*4 : q*4+4]
		cx, cy, w, h := float64(b[0]), float64(b[1]), float64(b[2]), float64(b[3])
		x1 := (cx - w/2) * float64(width)
		y1 := (cy - h/2) * float64(height)
		x2 := (cx + w/2) * float64(width)
		y2 := (cy + h/2) * float64(height)

		detections = append(detections, vision.Detection{
			Box:   image.Rect(int(x1), int(y1), int(x2), int(y2)),
			Label: labels.Name(best),
			Score: score,
		})
	}
	return detections
}

// softmax writes the softmax of in to out (len(out) == len(in)).
func softmax(in []float32, out []float64) {
	maxVal := math.Inf(-1)
	for _, v := range in {
		maxVal = math.Max(maxVal, float64(v))
	}
	var sum float64
	for i, v := range in {
		out[i] = math.Exp(float64(v) - maxVal)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
}

// maskRCNNBox is one row of the detection_out_final blob.
type maskRCNNBox struct {
	classID int
	score   float64
	rect    image.Rectangle
}

// decodeMaskRCNNBoxes parses n rows of (imageId, classId, score, left, top, right,
// bottom) with normalised coordinates. Boxes are clamped to the image; right and
// bottom are inclusive in the model output and exclusive in the returned rect.
func decodeMaskRCNNBoxes(rows []float32, n, width, height int) []maskRCNNBox {
	out := make([]maskRCNNBox, 0, n)
	for i := 0; i < n; i++ {
		r := rows[i*7 : i*7+7]
		left := clamp(int(r[3]*float32(width)), 0, width-1)
		top := clamp(int(r[4]*float32(height)), 0, height-1)
		right := clamp(int(r[5]*float32(width)), 0, width-1)
		bottom := clamp(int(r[6]*float32(height)), 0, height-1)

		out = append(out, maskRCNNBox{
			classID: int(r[1]),
			score:   float64(r[2]),
			rect:    image.Rect(left, top, right+1, bottom+1),
		})
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
