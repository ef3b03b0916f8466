package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"objectvision/internal/config"
	"objectvision/internal/dto"
	"objectvision/internal/logger"
	"objectvision/internal/model"
	"objectvision/internal/service"
	"objectvision/internal/service/storage"
	"objectvision/internal/vision"
)

// uploadField is the multipart field carrying the image.
const uploadField = "image"

const recentUploads = 12

type pageData struct {
	Title  string
	Action string
	Error  string
	Result *dto.AnnotationResult
	Recent []model.Media
}

var pageTitles = map[string]string{
	model.PipelineDetection:    "Object detection",
	model.PipelineSegmentation: "Instance segmentation",
}

// IndexHandler renders the landing page with the most recent uploads.
func IndexHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}

		recent, err := manager.GetMediaRepository().GetAll(&dto.MediaFilters{Limit: recentUploads})
		if err != nil {
			logger.Error("Error querying recent uploads: %v", err)
		}

		render(w, logger, http.StatusOK, "index.html", pageData{Title: "Object vision", Recent: recent})
	}
}

// UploadPageHandler serves the upload form on GET and the annotated result on POST.
func UploadPageHandler(pipeline string, manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{Title: pageTitles[pipeline], Action: "/" + pipeline + "/"}

		switch r.Method {
		case http.MethodGet:
			render(w, logger, http.StatusOK, "upload.html", data)

		case http.MethodPost:
			file, header, err := readUpload(w, r, cfg.MaxUploadSize)
			if err != nil {
				data.Error = err.Error()
				render(w, logger, http.StatusBadRequest, "upload.html", data)
				return
			}
			defer file.Close()

			result, err := manager.ProcessUpload(pipeline, header.Filename, file)
			if err != nil {
				data.Error = userMessage(err)
				render(w, logger, statusFor(err), "upload.html", data)
				return
			}

			data.Result = result
			render(w, logger, http.StatusOK, "result.html", data)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// AnnotateAPIHandler is the JSON variant of UploadPageHandler.
func AnnotateAPIHandler(pipeline string, manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		file, header, err := readUpload(w, r, cfg.MaxUploadSize)
		if err != nil {
			respondError(w, logger, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		result, err := manager.ProcessUpload(pipeline, header.Filename, file)
		if err != nil {
			respondError(w, logger, userMessage(err), statusFor(err))
			return
		}

		respondJSON(w, logger, result, http.StatusOK)
	}
}

// readUpload parses a multipart request body capped at maxSize bytes and returns
// the uploaded image part.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, fmt.Errorf("upload exceeds %d MB", maxSize>>20)
		}
		return nil, nil, errors.New("failed to parse form")
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, nil, errors.New("no image uploaded")
	}
	return file, header, nil
}

// statusFor maps annotation errors to HTTP status codes. Bad input is the client's
// fault, everything else is ours.
func statusFor(err error) int {
	switch {
	case errors.Is(err, vision.ErrDecode), errors.Is(err, storage.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, vision.ErrDecode):
		return "The uploaded file is not a readable image."
	case errors.Is(err, storage.ErrInvalidName):
		return "The uploaded file name is not usable."
	case errors.Is(err, vision.ErrInference), errors.Is(err, vision.ErrSegmentationInference):
		return "The model failed to process the image."
	case errors.Is(err, vision.ErrWrite):
		return "The processed image could not be saved."
	default:
		return "Internal Server Error"
	}
}
