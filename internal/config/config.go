package config

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	MediaDirectory string
	DatabasePath   string
	LogDirectory   string
	LogLevel       string
	MaxUploadSize  int64 // bytes
	ThumbnailSize  int

	DetectorModelPath    string
	DetectorLabelsPath   string // optional HuggingFace config.json with id2label
	DetectorShortestEdge int
	DetectorLongestEdge  int

	SegmenterModelPath  string
	SegmenterConfigPath string
	SegmenterInputScale float64 // the TF Mask R-CNN graph takes raw 0-255 pixels

	DetectionThreshold    float64 // keep detections with score >= threshold
	SegmentationThreshold float64 // keep instances with score > threshold
	MaskThreshold         float64 // mask pixel is on when value > threshold (0-255)
	BoxColor              color.RGBA
	BoxThickness          int
	FontScale             float64
	TextThickness         int
	BlendAlpha            float64
	ColorSeed             int64 // 0 seeds from the clock
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() *Config {
	// A missing .env is fine, the process environment still applies.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("PORT", 8080),
		MediaDirectory: getEnv("MEDIA_DIR", filepath.Join(".", "media")),
		DatabasePath:   getEnv("DB_PATH", filepath.Join(".", "data", "media.db")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MaxUploadSize:  getEnvAsInt64("MAX_UPLOAD_MB", 50) << 20,
		ThumbnailSize:  getEnvAsInt("THUMBNAIL_SIZE", 256),

		DetectorModelPath:    getEnv("DETECTOR_MODEL_PATH", filepath.Join(".", "models", "detr-resnet-50.onnx")),
		DetectorLabelsPath:   getEnv("DETECTOR_LABELS_PATH", ""),
		DetectorShortestEdge: getEnvAsInt("DETECTOR_SHORTEST_EDGE", 800),
		DetectorLongestEdge:  getEnvAsInt("DETECTOR_LONGEST_EDGE", 1333),

		SegmenterModelPath:  getEnv("SEGMENTER_MODEL_PATH", filepath.Join(".", "models", "mask_rcnn_inception_v2_coco", "frozen_inference_graph.pb")),
		SegmenterConfigPath: getEnv("SEGMENTER_CONFIG_PATH", filepath.Join(".", "models", "mask_rcnn_inception_v2_coco.pbtxt")),
		SegmenterInputScale: getEnvAsFloat("SEGMENTER_INPUT_SCALE", 1.0),

		DetectionThreshold:    getEnvAsFloat("DETECTION_THRESHOLD", 0.9),
		SegmentationThreshold: getEnvAsFloat("SEGMENTATION_THRESHOLD", 0.5),
		MaskThreshold:         getEnvAsFloat("MASK_THRESHOLD", 128),
		BoxColor:              getEnvAsColor("BOX_COLOR", color.RGBA{R: 0, G: 255, B: 0, A: 255}),
		BoxThickness:          getEnvAsInt("BOX_THICKNESS", 2),
		FontScale:             getEnvAsFloat("FONT_SCALE", 0.5),
		TextThickness:         getEnvAsInt("TEXT_THICKNESS", 2),
		BlendAlpha:            getEnvAsFloat("BLEND_ALPHA", 0.5),
		ColorSeed:             getEnvAsInt64("COLOR_SEED", 0),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsColor(key string, defaultValue color.RGBA) color.RGBA {
	if value := os.Getenv(key); value != "" {
		if c, err := ParseHexColor(value); err == nil {
			return c
		}
	}
	return defaultValue
}

// ParseHexColor parses "#rrggbb" (the leading '#' is optional) into an opaque colour.
func ParseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: expected 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
