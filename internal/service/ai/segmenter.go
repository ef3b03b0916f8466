package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/vision"

	"gocv.io/x/gocv"
)

// Mask R-CNN output blob names of the TensorFlow frozen graph.
const (
	maskRCNNBoxesOutput = "detection_out_final"
	maskRCNNMasksOutput = "detection_masks"
)

// SegmenterService runs a Mask R-CNN instance segmentation network.
type SegmenterService struct {
	net        gocv.Net
	mu         sync.Mutex // gocv.Net is not safe for concurrent forward passes
	inputScale float64
	labels     Labels
	modelPath  string
	configPath string
	logger     *logger.Logger
}

// NewSegmenterService loads the segmentation network from its frozen graph and config.
func NewSegmenterService(config *config.Config, logger *logger.Logger) (*SegmenterService, error) {
	service := &SegmenterService{
		inputScale: config.SegmenterInputScale,
		labels:     COCOLabels(),
		modelPath:  config.SegmenterModelPath,
		configPath: config.SegmenterConfigPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		return nil, fmt.Errorf("could not initialize segmentation network: %w", err)
	}
	return service, nil
}

// initializeNet loads the network and sets backend/target preferences.
func (s *SegmenterService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return fmt.Errorf("failed to set preferable backend or target")
	}

	s.net = net
	s.logger.Info("Segmentation network initialized from %s", s.modelPath)
	return nil
}

// Segment runs one forward pass and returns every predicted instance in model
// output order, each with a full-size 0-255 mask. No score filtering is applied.
func (s *SegmenterService) Segment(img gocv.Mat) ([]vision.InstanceMask, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: image is empty", vision.ErrDecode)
	}

	// Channel-first RGB at the original resolution.
	blob := gocv.BlobFromImage(img, s.inputScale, image.Pt(img.Cols(), img.Rows()),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	outputs := s.net.ForwardLayers([]string{maskRCNNBoxesOutput, maskRCNNMasksOutput})
	s.mu.Unlock()
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	if len(outputs) != 2 {
		return nil, fmt.Errorf("%w: expected 2 outputs, got %d", vision.ErrSegmentationInference, len(outputs))
	}

	rows, err := outputs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: boxes: %v", vision.ErrSegmentationInference, err)
	}
	masks, err := outputs[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: masks: %v", vision.ErrSegmentationInference, err)
	}

	shape, err := validateMaskRCNNOutputs(outputs[0].Size(), outputs[1].Size(), len(rows), len(masks))
	if err != nil {
		return nil, err
	}
	boxes := decodeMaskRCNNBoxes(rows, shape.detections, img.Cols(), img.Rows())
	if err := checkClassIDs(boxes, shape.classes); err != nil {
		return nil, err
	}

	plane := shape.height * shape.width
	instances := make([]vision.InstanceMask, 0, len(boxes))
	for i, box := range boxes {
		offset := (i*shape.classes + box.classID) * plane
		mask, err := pasteMask(masks[offset:offset+plane], shape.height, shape.width, box.rect, img.Rows(), img.Cols())
		if err != nil {
			closeInstances(instances)
			return nil, err
		}

		instances = append(instances, vision.InstanceMask{
			Mask:  mask,
			Box:   box.rect,
			Label: s.labels.Name(box.classID + 1),
			Score: box.score,
		})
	}
	return instances, nil
}

// maskRCNNShape is the validated geometry of a Mask R-CNN forward pass.
type maskRCNNShape struct {
	detections    int
	classes       int
	height, width int
}

// validateMaskRCNNOutputs checks the box tensor is [1,1,N,7], the mask tensor is
// [>=N,classes,h,w] and both buffers hold at least that many floats.
func validateMaskRCNNOutputs(boxDims, maskDims []int, rowsLen, masksLen int) (maskRCNNShape, error) {
	if len(boxDims) != 4 || boxDims[3] != 7 || len(maskDims) != 4 || maskDims[0] < boxDims[2] {
		return maskRCNNShape{}, fmt.Errorf("%w: unexpected output shapes boxes=%v masks=%v",
			vision.ErrSegmentationInference, boxDims, maskDims)
	}

	shape := maskRCNNShape{
		detections: boxDims[2],
		classes:    maskDims[1],
		height:     maskDims[2],
		width:      maskDims[3],
	}
	if rowsLen < shape.detections*7 || masksLen < shape.detections*shape.classes*shape.height*shape.width {
		return maskRCNNShape{}, fmt.Errorf("%w: output buffers shorter than their shapes", vision.ErrSegmentationInference)
	}
	return shape, nil
}

// checkClassIDs rejects boxes whose class has no mask plane.
func checkClassIDs(boxes []maskRCNNBox, classes int) error {
	for _, box := range boxes {
		if box.classID < 0 || box.classID >= classes {
			return fmt.Errorf("%w: class id %d outside %d mask classes",
				vision.ErrSegmentationInference, box.classID, classes)
		}
	}
	return nil
}

// pasteMask scales a low-resolution probability mask to rect and places it into a
// rows x cols CV_8UC1 mask on a 0-255 scale.
func pasteMask(probs []float32, mh, mw int, rect image.Rectangle, rows, cols int) (gocv.Mat, error) {
	full := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	if rect.Empty() {
		return full, nil
	}

	small := gocv.NewMatWithSize(mh, mw, gocv.MatTypeCV32FC1)
	defer small.Close()
	for y := 0; y < mh; y++ {
		for x := 0; x < mw; x++ {
			small.SetFloatAt(y, x, probs[y*mw+x])
		}
	}

	small8 := gocv.NewMat()
	defer small8.Close()
	if err := small.ConvertToWithParams(&small8, gocv.MatTypeCV8UC1, 255, 0); err != nil {
		full.Close()
		return gocv.Mat{}, fmt.Errorf("%w: scale mask: %v", vision.ErrSegmentationInference, err)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(small8, &resized, rect.Size(), 0, 0, gocv.InterpolationLinear); err != nil {
		full.Close()
		return gocv.Mat{}, fmt.Errorf("%w: resize mask: %v", vision.ErrSegmentationInference, err)
	}

	roi := full.Region(rect)
	err := resized.CopyTo(&roi)
	roi.Close()
	if err != nil {
		full.Close()
		return gocv.Mat{}, fmt.Errorf("%w: paste mask: %v", vision.ErrSegmentationInference, err)
	}
	return full, nil
}

func closeInstances(instances []vision.InstanceMask) {
	for i := range instances {
		instances[i].Close()
	}
}

// Close releases the network.
func (s *SegmenterService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.net.Close()
}
