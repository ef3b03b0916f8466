package repository

import (
	"objectvision/internal/dto"
	"objectvision/internal/model"
)

// MediaRepository defines the interface for media catalog operations.
type MediaRepository interface {
	// Create operations
	Insert(media *model.Media) (int64, error)

	// Read operations
	GetByFilename(filename string) (*model.Media, error)
	GetAll(filter *dto.MediaFilters) ([]model.Media, error)
	GetTotalCount(filter *dto.MediaFilters) (int, error)
	GetTotalSize() (int64, error)

	// Delete operations
	DeleteByFilename(filename string) error
	DeleteAll() error
}
