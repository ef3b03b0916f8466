package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"objectvision/internal/dto"
	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/repository"
	"objectvision/internal/service/storage"
	"objectvision/internal/service/websocket"
	"objectvision/internal/vision"

	"gocv.io/x/gocv"
)

var (
	// ErrUnknownPipeline is returned for a pipeline name other than detection or segmentation.
	ErrUnknownPipeline = errors.New("unknown pipeline")
	// ErrMediaNotFound is returned when deleting a name with no catalog record and no files.
	ErrMediaNotFound = errors.New("media not found")
)

// DetectionRunner is satisfied by pipeline.DetectionPipeline.
type DetectionRunner interface {
	Detect(img gocv.Mat) (*vision.AnnotatedImage, error)
}

// SegmentationRunner is satisfied by pipeline.SegmentationPipeline.
type SegmentationRunner interface {
	Segment(img gocv.Mat) (*vision.AnnotatedImage, error)
}

// EventPublisher is satisfied by websocket.HubService.
type EventPublisher interface {
	Publish(eventType string, data interface{})
}

// RunFunc annotates one decoded image.
type RunFunc func(img gocv.Mat) (*vision.AnnotatedImage, error)

// Manager ties uploads to the pipelines, media storage, catalog and event hub.
type Manager struct {
	detection    DetectionRunner
	segmentation SegmentationRunner
	media        *storage.MediaService
	mediaRepo    repository.MediaRepository
	events       EventPublisher
	logger       *logger.Logger
}

func NewManager(detection DetectionRunner, segmentation SegmentationRunner, media *storage.MediaService,
	mediaRepo repository.MediaRepository, events EventPublisher, logger *logger.Logger) *Manager {
	return &Manager{
		detection:    detection,
		segmentation: segmentation,
		media:        media,
		mediaRepo:    mediaRepo,
		events:       events,
		logger:       logger,
	}
}

func (m *Manager) GetMediaService() *storage.MediaService {
	return m.media
}

func (m *Manager) GetMediaRepository() repository.MediaRepository {
	return m.mediaRepo
}

// Runner returns the annotation function for a pipeline name.
func (m *Manager) Runner(pipeline string) (RunFunc, error) {
	switch pipeline {
	case model.PipelineDetection:
		return m.detection.Detect, nil
	case model.PipelineSegmentation:
		return m.segmentation.Segment, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPipeline, pipeline)
	}
}

// ProcessUpload stores an uploaded image, annotates it with the named pipeline and
// writes the result as processed_<stored name> next to it. When annotation fails the
// stored upload and any partial output are removed again.
func (m *Manager) ProcessUpload(pipeline, filename string, r io.Reader) (*dto.AnnotationResult, error) {
	run, err := m.Runner(pipeline)
	if err != nil {
		return nil, err
	}

	stored, err := m.media.Save(filename, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	m.logger.Info("Stored upload %s as %s", filename, stored)

	src, err := m.media.Path(stored)
	if err != nil {
		return nil, err
	}
	processed := vision.ProcessedName(stored)
	dst, err := m.media.Path(processed)
	if err != nil {
		return nil, err
	}

	detections, err := AnnotateFile(run, src, dst)
	if err != nil {
		for _, file := range []string{stored, processed} {
			if rmErr := m.media.Remove(file); rmErr != nil {
				m.logger.Warning("Failed to remove %s after failed %s: %v", file, pipeline, rmErr)
			}
		}
		m.logger.Error("%s of %s failed: %v", pipeline, stored, err)
		return nil, err
	}

	result := &dto.AnnotationResult{
		Pipeline:   pipeline,
		Original:   stored,
		Processed:  processed,
		Detections: dto.NewDetectionResults(detections),
	}

	size, err := m.media.Size(stored)
	if err != nil {
		m.logger.Warning("Failed to stat %s: %v", stored, err)
	}
	record := &model.Media{Filename: stored, Processed: processed, Pipeline: pipeline, FileSize: size}
	if _, err := m.mediaRepo.Insert(record); err != nil {
		m.logger.Error("Failed to catalog %s: %v", stored, err)
	}

	m.events.Publish(websocket.EventAnnotated, result)
	return result, nil
}

// DeleteMedia removes an upload, its processed image and its catalog record.
// name may be either the original or the processed file name. It returns
// ErrMediaNotFound when there is nothing to delete.
func (m *Manager) DeleteMedia(name string) error {
	if _, err := m.media.Path(name); err != nil {
		return err
	}
	original, processed := name, vision.ProcessedName(name)

	record, err := m.mediaRepo.GetByFilename(name)
	if err != nil {
		return err
	}
	if record != nil {
		original, processed = record.Filename, record.Processed
	} else if !m.media.Exists(original) && !m.media.Exists(processed) {
		return fmt.Errorf("%w: %s", ErrMediaNotFound, name)
	}

	for _, file := range []string{original, processed} {
		if err := m.media.Remove(file); err != nil {
			return fmt.Errorf("failed to delete %s: %w", file, err)
		}
	}
	if err := m.mediaRepo.DeleteByFilename(original); err != nil {
		return err
	}

	m.logger.Info("Deleted media: %s", original)
	m.events.Publish(websocket.EventDeleted, map[string]string{"original": original, "processed": processed})
	return nil
}

// ClearMedia empties the media directory and the catalog.
func (m *Manager) ClearMedia() error {
	if err := m.media.Clear(); err != nil {
		return err
	}
	if err := m.mediaRepo.DeleteAll(); err != nil {
		return err
	}

	m.logger.Info("All media cleared from directory: %s", m.media.Dir())
	m.events.Publish(websocket.EventCleared, nil)
	return nil
}

// AnnotateFile decodes src, runs it through run and encodes the result to dst.
// It returns what was drawn.
func AnnotateFile(run RunFunc, src, dst string) ([]vision.Detection, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vision.ErrDecode, err)
	}

	img, err := vision.Decode(data)
	defer img.Close()
	if err != nil {
		return nil, err
	}

	result, err := run(img)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	if err := vision.Encode(result.Mat, dst); err != nil {
		return nil, err
	}
	return result.Detections, nil
}

// OutputPath returns where the annotated copy of src is written inside dir.
func OutputPath(src, dir string) string {
	return filepath.Join(dir, vision.ProcessedName(src))
}
