package pipeline

import (
	"errors"
	"fmt"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/vision"

	"gocv.io/x/gocv"
)

// Detector produces raw, unfiltered detections for an image.
type Detector interface {
	Detect(img gocv.Mat) ([]vision.Detection, error)
}

// DetectionPipeline filters detector output by score and draws the kept boxes.
type DetectionPipeline struct {
	detector  Detector
	threshold float64
	style     vision.BoxStyle
	logger    *logger.Logger
}

// NewDetectionPipeline wires a detector with the thresholds and box style from config.
func NewDetectionPipeline(detector Detector, config *config.Config, logger *logger.Logger) *DetectionPipeline {
	return &DetectionPipeline{
		detector:  detector,
		threshold: config.DetectionThreshold,
		style: vision.BoxStyle{
			Color:         config.BoxColor,
			Thickness:     config.BoxThickness,
			FontScale:     config.FontScale,
			TextThickness: config.TextThickness,
		},
		logger: logger,
	}
}

// Detect returns a copy of img with every detection scoring at least the threshold
// drawn as a box labelled "<class> <score>". img is left untouched.
func (p *DetectionPipeline) Detect(img gocv.Mat) (*vision.AnnotatedImage, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: image is empty", vision.ErrDecode)
	}

	detections, err := p.detector.Detect(img)
	if err != nil {
		if errors.Is(err, vision.ErrInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", vision.ErrInference, err)
	}

	kept := make([]vision.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= p.threshold {
			kept = append(kept, d)
		}
	}

	out := img.Clone()
	for _, d := range kept {
		label := fmt.Sprintf("%s %.2f", d.Label, d.Score)
		if err := vision.DrawBox(&out, d.Box, p.style, label); err != nil {
			out.Close()
			return nil, err
		}
	}

	p.logger.Info("Detection: %d raw, %d kept (threshold %.2f)", len(detections), len(kept), p.threshold)
	return &vision.AnnotatedImage{Mat: out, Detections: kept}, nil
}
