package pipeline

import (
	"errors"
	"fmt"
	"image/color"
	"math/rand"
	"sync"
	"time"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/vision"

	"gocv.io/x/gocv"
)

// Segmenter produces raw, unfiltered instance masks for an image, in model order.
type Segmenter interface {
	Segment(img gocv.Mat) ([]vision.InstanceMask, error)
}

// SegmentationPipeline filters segmenter output by score and blends a random colour
// into each kept instance's mask.
type SegmentationPipeline struct {
	segmenter     Segmenter
	threshold     float64
	maskThreshold float64
	alpha         float64
	logger        *logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSegmentationPipeline wires a segmenter with the thresholds from config. Colours
// come from rng; a nil rng is seeded from config.ColorSeed, or the clock when that is 0.
func NewSegmentationPipeline(segmenter Segmenter, config *config.Config, rng *rand.Rand, logger *logger.Logger) *SegmentationPipeline {
	if rng == nil {
		seed := config.ColorSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}

	return &SegmentationPipeline{
		segmenter:     segmenter,
		threshold:     config.SegmentationThreshold,
		maskThreshold: config.MaskThreshold,
		alpha:         config.BlendAlpha,
		logger:        logger,
		rng:           rng,
	}
}

// Segment returns a copy of img with every instance scoring above the threshold
// blended in. Instances are applied in model output order, so where masks overlap
// the later instance is blended last. img is left untouched.
func (p *SegmentationPipeline) Segment(img gocv.Mat) (*vision.AnnotatedImage, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: image is empty", vision.ErrDecode)
	}

	instances, err := p.segmenter.Segment(img)
	if err != nil {
		if errors.Is(err, vision.ErrSegmentationInference) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", vision.ErrSegmentationInference, err)
	}
	defer func() {
		for i := range instances {
			instances[i].Close()
		}
	}()

	out := img.Clone()
	kept := make([]vision.Detection, 0, len(instances))
	for _, inst := range instances {
		if inst.Score <= p.threshold {
			continue
		}

		bin := vision.BinarizeMask(inst.Mask, p.maskThreshold)
		err := vision.BlendMask(&out, bin, p.nextColor(), p.alpha)
		bin.Close()
		if err != nil {
			out.Close()
			return nil, err
		}
		kept = append(kept, vision.Detection{Box: inst.Box, Label: inst.Label, Score: inst.Score})
	}

	p.logger.Info("Segmentation: %d raw, %d kept (threshold %.2f)", len(instances), len(kept), p.threshold)
	return &vision.AnnotatedImage{Mat: out, Detections: kept}, nil
}

// nextColor draws an RGB colour with each channel in [0,255).
func (p *SegmentationPipeline) nextColor() color.RGBA {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return color.RGBA{
		R: uint8(p.rng.Intn(255)),
		G: uint8(p.rng.Intn(255)),
		B: uint8(p.rng.Intn(255)),
		A: 255,
	}
}
