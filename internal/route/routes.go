package route

import (
	"net/http"

	"objectvision/internal/config"
	"objectvision/internal/handler"
	"objectvision/internal/logger"
	"objectvision/internal/middleware"
	"objectvision/internal/model"
	"objectvision/internal/service"
	"objectvision/internal/service/websocket"
)

// SetupRoutes registers pages, media serving, API endpoints and log endpoints,
// and wraps the mux with the request logging middleware.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, cfg *config.Config, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Pages
	mux.HandleFunc("/", handler.IndexHandler(manager, log))
	mux.HandleFunc("/detection/", handler.UploadPageHandler(model.PipelineDetection, manager, cfg, log))
	mux.HandleFunc("/segmentation/", handler.UploadPageHandler(model.PipelineSegmentation, manager, cfg, log))

	// Media files
	mux.HandleFunc("/media/", handler.MediaFileHandler(manager))

	// API endpoints
	api := http.NewServeMux()
	api.HandleFunc("/api/detect", handler.AnnotateAPIHandler(model.PipelineDetection, manager, cfg, log))
	api.HandleFunc("/api/segment", handler.AnnotateAPIHandler(model.PipelineSegmentation, manager, cfg, log))
	api.HandleFunc("/api/media", handler.GetMediaHandler(manager, log))
	api.HandleFunc("/api/media/thumbnail", handler.ThumbnailHandler(manager, log))
	api.HandleFunc("/api/media/delete", handler.DeleteMediaHandler(manager, log))
	api.HandleFunc("/api/media/clear", handler.ClearMediaHandler(manager, log))
	mux.Handle("/api/", middleware.CORSMiddleware(api))
	mux.HandleFunc("/api/events", handler.EventsWebsocketHandler(hub, log))

	// Log endpoints
	mux.HandleFunc("/logs/info", handler.ShowLogsHandler(cfg, logger.InfoFile))
	mux.HandleFunc("/logs/warning", handler.ShowLogsHandler(cfg, logger.WarningFile))
	mux.HandleFunc("/logs/error", handler.ShowLogsHandler(cfg, logger.ErrorFile))

	mux.HandleFunc("/logs/info/clear", handler.ClearLogsHandler(log, logger.InfoFile))
	mux.HandleFunc("/logs/warning/clear", handler.ClearLogsHandler(log, logger.WarningFile))
	mux.HandleFunc("/logs/error/clear", handler.ClearLogsHandler(log, logger.ErrorFile))

	// Apply middleware
	return middleware.LoggingMiddleware(log, mux)
}
