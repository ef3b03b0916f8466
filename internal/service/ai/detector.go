package ai

import (
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/vision"

	"gocv.io/x/gocv"
)

// DETR output blob names of the ONNX export.
const (
	detrLogitsOutput = "logits"
	detrBoxesOutput  = "pred_boxes"
)

// ImageNet normalisation expressed for BlobFromImage: mean in RGB order on the 0-255
// scale, and a single scale factor using the average channel std.
var (
	imageNetMean  = gocv.NewScalar(123.675, 116.28, 103.53, 0)
	imageNetScale = 1.0 / (255.0 * 0.226)
)

// DetectorService runs a DETR object detector exported to ONNX.
type DetectorService struct {
	net       gocv.Net
	mu        sync.Mutex // gocv.Net is not safe for concurrent forward passes
	shortest  int
	longest   int
	labels    Labels
	modelPath string
	logger    *logger.Logger
}

// NewDetectorService loads the detector network and its labels.
func NewDetectorService(config *config.Config, logger *logger.Logger) (*DetectorService, error) {
	service := &DetectorService{
		shortest:  config.DetectorShortestEdge,
		longest:   config.DetectorLongestEdge,
		labels:    COCOLabels(),
		modelPath: config.DetectorModelPath,
		logger:    logger,
	}

	if config.DetectorLabelsPath != "" {
		labels, err := LoadLabels(config.DetectorLabelsPath)
		if err != nil {
			return nil, err
		}
		service.labels = labels
	}

	if err := service.initializeNet(); err != nil {
		return nil, fmt.Errorf("could not initialize detection network: %w", err)
	}
	return service, nil
}

// initializeNet loads the ONNX network and sets backend/target preferences.
func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}

	net := gocv.ReadNetFromONNX(s.modelPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network from %s", s.modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("Detection network initialized from %s", s.modelPath)
	return nil
}

// Detect runs one forward pass and returns every query's best class, with boxes
// scaled to img's size. No score filtering is applied.
func (s *DetectorService) Detect(img gocv.Mat) ([]vision.Detection, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: image is empty", vision.ErrDecode)
	}

	size := detrInputSize(img.Cols(), img.Rows(), s.shortest, s.longest)
	blob := gocv.BlobFromImage(img, imageNetScale, size, imageNetMean, true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	outputs := s.net.ForwardLayers([]string{detrLogitsOutput, detrBoxesOutput})
	s.mu.Unlock()
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	if len(outputs) != 2 {
		return nil, fmt.Errorf("%w: expected 2 outputs, got %d", vision.ErrInference, len(outputs))
	}

	logits, err := outputs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: logits: %v", vision.ErrInference, err)
	}
	boxes, err := outputs[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: boxes: %v", vision.ErrInference, err)
	}

	queries, classes, err := validateDETROutputs(outputs[0].Size(), outputs[1].Size(), len(logits), len(boxes))
	if err != nil {
		return nil, err
	}
	return decodeDETR(logits, boxes, queries, classes, img.Cols(), img.Rows(), s.labels), nil
}

// validateDETROutputs checks logits is [1,Q,C] with C >= 2, pred_boxes is [1,Q,4]
// and both buffers hold at least that many floats. It returns Q and C.
func validateDETROutputs(logitsDims, boxesDims []int, logitsLen, boxesLen int) (queries, classes int, err error) {
	if len(logitsDims) != 3 || len(boxesDims) != 3 || boxesDims[2] != 4 ||
		logitsDims[1] != boxesDims[1] || logitsDims[2] < 2 {
		return 0, 0, fmt.Errorf("%w: unexpected output shapes logits=%v boxes=%v",
			vision.ErrInference, logitsDims, boxesDims)
	}

	queries, classes = logitsDims[1], logitsDims[2]
	if logitsLen < queries*classes || boxesLen < queries*4 {
		return 0, 0, fmt.Errorf("%w: output buffers shorter than their shapes", vision.ErrInference)
	}
	return queries, classes, nil
}

// detrInputSize scales width x height so the shorter side becomes shortest while
// the longer side stays within longest, keeping the aspect ratio. A longest of 0
// disables the cap.
func detrInputSize(width, height, shortest, longest int) image.Point {
	if width <= 0 || height <= 0 {
		return image.Pt(shortest, shortest)
	}

	size := float64(shortest)
	minSide, maxSide := float64(min(width, height)), float64(max(width, height))
	if longest > 0 && maxSide/minSide*size > float64(longest) {
		size = float64(longest) * minSide / maxSide
	}
	target := int(math.Round(size))

	if (height <= width && height == target) || (width <= height && width == target) {
		return image.Pt(width, height)
	}
	if width < height {
		return image.Pt(target, int(size*float64(height)/float64(width)))
	}
	return image.Pt(int(size*float64(width)/float64(height)), target)
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}
