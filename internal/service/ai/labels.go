package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// cocoCategories is indexed by COCO category id; unused ids are "N/A".
var cocoCategories = []string{
	"N/A", "person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "N/A", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe",
	"N/A", "backpack", "umbrella", "N/A", "N/A", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "N/A", "wine glass", "cup", "fork",
	"knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot",
	"hot dog", "pizza", "donut", "cake", "chair", "couch", "potted plant", "bed", "N/A",
	"dining table", "N/A", "N/A", "toilet", "N/A", "tv", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator", "N/A",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// Labels maps a model class id to its display name.
type Labels map[int]string

// COCOLabels returns the COCO category table shared by DETR and Mask R-CNN.
func COCOLabels() Labels {
	labels := make(Labels, len(cocoCategories))
	for id, name := range cocoCategories {
		labels[id] = name
	}
	return labels
}

// Name returns the label for id, or a placeholder when the id is unknown.
func (l Labels) Name(id int) string {
	if name, ok := l[id]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", id)
}

// LoadLabels reads the id2label table from a HuggingFace model config.json.
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file: %w", err)
	}

	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse labels file %s: %w", path, err)
	}
	if len(cfg.ID2Label) == 0 {
		return nil, fmt.Errorf("labels file %s has no id2label entries", path)
	}

	labels := make(Labels, len(cfg.ID2Label))
	for key, name := range cfg.ID2Label {
		id, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("invalid class id %q in %s", key, path)
		}
		labels[id] = name
	}
	return labels, nil
}
