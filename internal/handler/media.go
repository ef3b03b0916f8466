package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"objectvision/internal/dto"
	"objectvision/internal/logger"
	"objectvision/internal/service"
	"objectvision/internal/service/storage"
)

// MediaFileHandler serves /media/<name> from the media directory.
func MediaFileHandler(manager *service.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/media/")
		path, err := manager.GetMediaService().Path(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}
}

// GetMediaHandler returns a page of catalogued uploads, newest first.
func GetMediaHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page := atoiDefault(q.Get("page"), 1)
		limit := atoiDefault(q.Get("limit"), 24)

		filter := &dto.MediaFilters{
			Pipeline: q.Get("pipeline"),
			Limit:    limit,
			Offset:   (page - 1) * limit,
		}

		repo := manager.GetMediaRepository()
		media, err := repo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying media from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		totalCount, err := repo.GetTotalCount(filter)
		if err != nil {
			logger.Error("Error counting media: %v", err)
			totalCount = len(media)
		}

		totalSize, err := repo.GetTotalSize()
		if err != nil {
			logger.Error("Error getting media size: %v", err)
			totalSize = 0
		}

		respondJSON(w, logger, dto.MediaPage{
			Media:       media,
			MediaDir:    manager.GetMediaService().Dir(),
			Size:        totalSize,
			Length:      totalCount,
			TotalPages:  (totalCount + limit - 1) / limit,
			CurrentPage: page,
			Limit:       limit,
		}, http.StatusOK)
	}
}

// ThumbnailHandler serves a gallery thumbnail, falling back to the full image when
// no thumbnail can be made.
func ThumbnailHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		media := manager.GetMediaService()
		path, err := media.Path(filename)
		if err != nil {
			http.Error(w, "Invalid filename", http.StatusBadRequest)
			return
		}
		if _, err := os.Stat(path); err != nil {
			http.NotFound(w, r)
			return
		}

		thumb, err := media.Thumbnail(filename)
		if err != nil {
			logger.Warning("Thumbnail for %s unavailable: %v", filename, err)
			http.ServeFile(w, r, path)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, thumb)
	}
}

// DeleteMediaHandler removes an upload and its processed image.
func DeleteMediaHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		filename := r.URL.Query().Get("filename")
		if filename == "" {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}

		if err := manager.DeleteMedia(filename); err != nil {
			logger.Error("Failed to delete %s: %v", filename, err)
			switch {
			case errors.Is(err, storage.ErrInvalidName):
				http.Error(w, "Invalid filename", http.StatusBadRequest)
			case errors.Is(err, service.ErrMediaNotFound):
				http.Error(w, "Media not found", http.StatusNotFound)
			default:
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
			return
		}

		respondJSON(w, logger, map[string]string{"status": "deleted", "filename": filename}, http.StatusOK)
	}
}

// ClearMediaHandler deletes every upload and empties the catalog.
func ClearMediaHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := manager.ClearMedia(); err != nil {
			logger.Error("Error clearing media: %v", err)
			http.Error(w, "Unable to clear media", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
