package ai

import (
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"objectvision/internal/vision"
)

func TestLabels_Name(t *testing.T) {
	labels := COCOLabels()

	tests := []struct {
		id       int
		expected string
	}{
		{1, "person"},
		{17, "cat"},
		{18, "dog"},
		{12, "N/A"},
		{90, "toothbrush"},
		{500, "class_500"},
	}

	for _, tt := range tests {
		if got := labels.Name(tt.id); got != tt.expected {
			t.Errorf("Name(%d) = %q, expected %q", tt.id, got, tt.expected)
		}
	}
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"model_type": "detr", "id2label": {"0": "N/A", "1": "person", "17": "cat"}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels failed: %v", err)
	}
	if labels.Name(17) != "cat" || labels.Name(1) != "person" {
		t.Errorf("unexpected labels: %v", labels)
	}
}

func TestLoadLabels_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"id2label":`},
		{"no entries", `{"id2label": {}}`},
		{"bad id", `{"id2label": {"one": "person"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadLabels(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}

	if _, err := LoadLabels(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSoftmax(t *testing.T) {
	out := make([]float64, 3)
	softmax([]float32{1, 1, 1}, out)

	for i, p := range out {
		if math.Abs(p-1.0/3) > 1e-9 {
			t.Errorf("out[%d] = %v, expected 1/3", i, p)
		}
	}

	softmax([]float32{1000, 0, 0}, out)
	if math.Abs(out[0]-1) > 1e-9 {
		t.Errorf("large logit should dominate, got %v", out)
	}
}

func TestDecodeDETR(t *testing.T) {
	labels := Labels{0: "N/A", 1: "person", 2: "cat"}
	// 2 queries, 3 real classes + "no object".
	logits := []float32{
		0, 0, 10, 0, // query 0: cat
		0, 0, 0, 20, // query 1: no object dominates
	}
	boxes := []float32{
		0.5, 0.5, 0.25, 0.5, // centre of a 200x100 image
		0.1, 0.1, 0.1, 0.1,
	}

	dets := decodeDETR(logits, boxes, 2, 4, 200, 100, labels)
	if len(dets) != 2 {
		t.Fatalf("expected 2 detections, got %d", len(dets))
	}

	cat := dets[0]
	if cat.Label != "cat" {
		t.Errorf("label = %q, expected cat", cat.Label)
	}
	if cat.Score < 0.99 {
		t.Errorf("score = %v, expected close to 1", cat.Score)
	}
	if want := image.Rect(75, 25, 125, 75); cat.Box != want {
		t.Errorf("box = %v, expected %v", cat.Box, want)
	}

	if dets[1].Score > 0.01 {
		t.Errorf("no-object query should have a tiny score, got %v", dets[1].Score)
	}
}

func TestDecodeMaskRCNNBoxes(t *testing.T) {
	rows := []float32{
		0, 16, 0.97, 0.1, 0.2, 0.5, 0.6, // cat (id 16 -> COCO 17)
		0, 0, 0.40, -0.5, -0.5, 2.0, 2.0, // out of range, clamped
	}

	boxes := decodeMaskRCNNBoxes(rows, 2, 100, 50)
	if len(boxes) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(boxes))
	}

	if boxes[0].classID != 16 || math.Abs(boxes[0].score-0.97) > 1e-6 {
		t.Errorf("unexpected first box: %+v", boxes[0])
	}
	if want := image.Rect(10, 10, 51, 31); boxes[0].rect != want {
		t.Errorf("rect = %v, expected %v", boxes[0].rect, want)
	}
	if want := image.Rect(0, 0, 100, 50); boxes[1].rect != want {
		t.Errorf("clamped rect = %v, expected %v", boxes[1].rect, want)
	}
}

func TestPasteMask(t *testing.T) {
	probs := []float32{1, 1, 1, 1}
	rect := image.Rect(2, 3, 6, 7)

	mask, err := pasteMask(probs, 2, 2, rect, 10, 12)
	if err != nil {
		t.Fatalf("pasteMask failed: %v", err)
	}
	defer mask.Close()

	if mask.Rows() != 10 || mask.Cols() != 12 {
		t.Fatalf("mask is %dx%d, expected 12x10", mask.Cols(), mask.Rows())
	}
	if got := mask.GetUCharAt(4, 3); got != 255 {
		t.Errorf("pixel inside box = %d, expected 255", got)
	}
	if got := mask.GetUCharAt(0, 0); got != 0 {
		t.Errorf("pixel outside box = %d, expected 0", got)
	}
	if got := mask.GetUCharAt(7, 6); got != 0 {
		t.Errorf("pixel past the exclusive corner = %d, expected 0", got)
	}
}

func TestPasteMask_EmptyProbabilitiesFail(t *testing.T) {
	_, err := pasteMask(nil, 0, 0, image.Rect(0, 0, 4, 4), 10, 10)
	if !errors.Is(err, vision.ErrSegmentationInference) {
		t.Errorf("expected ErrSegmentationInference, got %v", err)
	}
}

func TestValidateDETROutputs(t *testing.T) {
	tests := []struct {
		name        string
		logitsDims  []int
		boxesDims   []int
		logitsLen   int
		boxesLen    int
		wantQueries int
		wantClasses int
		wantErr     bool
	}{
		{"valid", []int{1, 100, 92}, []int{1, 100, 4}, 9200, 400, 100, 92, false},
		{"logits wrong rank", []int{100, 92}, []int{1, 100, 4}, 9200, 400, 0, 0, true},
		{"boxes wrong rank", []int{1, 100, 92}, []int{100, 4}, 9200, 400, 0, 0, true},
		{"boxes not xywh", []int{1, 100, 92}, []int{1, 100, 5}, 9200, 500, 0, 0, true},
		{"query count mismatch", []int{1, 100, 92}, []int{1, 99, 4}, 9200, 396, 0, 0, true},
		{"single class", []int{1, 100, 1}, []int{1, 100, 4}, 100, 400, 0, 0, true},
		{"short logits", []int{1, 100, 92}, []int{1, 100, 4}, 9199, 400, 0, 0, true},
		{"short boxes", []int{1, 100, 92}, []int{1, 100, 4}, 9200, 399, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries, classes, err := validateDETROutputs(tt.logitsDims, tt.boxesDims, tt.logitsLen, tt.boxesLen)
			if tt.wantErr {
				if !errors.Is(err, vision.ErrInference) {
					t.Errorf("expected ErrInference, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if queries != tt.wantQueries || classes != tt.wantClasses {
				t.Errorf("got %d queries, %d classes; expected %d, %d", queries, classes, tt.wantQueries, tt.wantClasses)
			}
		})
	}
}

func TestValidateMaskRCNNOutputs(t *testing.T) {
	tests := []struct {
		name      string
		boxDims   []int
		maskDims  []int
		rowsLen   int
		masksLen  int
		wantShape maskRCNNShape
		wantErr   bool
	}{
		{"valid", []int{1, 1, 3, 7}, []int{100, 90, 15, 15}, 21, 100 * 90 * 225, maskRCNNShape{3, 90, 15, 15}, false},
		{"boxes wrong rank", []int{1, 3, 7}, []int{100, 90, 15, 15}, 21, 100 * 90 * 225, maskRCNNShape{}, true},
		{"boxes wrong width", []int{1, 1, 3, 6}, []int{100, 90, 15, 15}, 18, 100 * 90 * 225, maskRCNNShape{}, true},
		{"masks wrong rank", []int{1, 1, 3, 7}, []int{90, 15, 15}, 21, 90 * 225, maskRCNNShape{}, true},
		{"fewer masks than boxes", []int{1, 1, 3, 7}, []int{2, 90, 15, 15}, 21, 2 * 90 * 225, maskRCNNShape{}, true},
		{"short rows", []int{1, 1, 3, 7}, []int{100, 90, 15, 15}, 20, 100 * 90 * 225, maskRCNNShape{}, true},
		{"short masks", []int{1, 1, 3, 7}, []int{100, 90, 15, 15}, 21, 3*90*225 - 1, maskRCNNShape{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape, err := validateMaskRCNNOutputs(tt.boxDims, tt.maskDims, tt.rowsLen, tt.masksLen)
			if tt.wantErr {
				if !errors.Is(err, vision.ErrSegmentationInference) {
					t.Errorf("expected ErrSegmentationInference, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if shape != tt.wantShape {
				t.Errorf("shape = %+v, expected %+v", shape, tt.wantShape)
			}
		})
	}
}

func TestCheckClassIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []int
		wantErr bool
	}{
		{"all in range", []int{0, 16, 89}, false},
		{"none", nil, false},
		{"negative", []int{3, -1}, true},
		{"past last class", []int{90}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boxes := make([]maskRCNNBox, len(tt.ids))
			for i, id := range tt.ids {
				boxes[i] = maskRCNNBox{classID: id}
			}

			err := checkClassIDs(boxes, 90)
			if tt.wantErr && !errors.Is(err, vision.ErrSegmentationInference) {
				t.Errorf("expected ErrSegmentationInference, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestDETRInputSize(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          image.Point
	}{
		{"landscape", 640, 480, image.Pt(1066, 800)},
		{"portrait", 480, 640, image.Pt(800, 1066)},
		{"square upscaled", 100, 100, image.Pt(800, 800)},
		{"panorama capped", 2000, 500, image.Pt(1333, 333)},
		{"tall capped", 500, 2000, image.Pt(333, 1333)},
		{"shortest already matches", 800, 1000, image.Pt(800, 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detrInputSize(tt.width, tt.height, 800, 1333); got != tt.want {
				t.Errorf("detrInputSize(%d, %d) = %v, expected %v", tt.width, tt.height, got, tt.want)
			}
		})
	}
}
