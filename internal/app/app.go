package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"objectvision/internal/config"
	"objectvision/internal/logger"
	"objectvision/internal/repository/sqlite"
	"objectvision/internal/route"
	"objectvision/internal/service"
	"objectvision/internal/service/ai"
	"objectvision/internal/service/pipeline"
	"objectvision/internal/service/storage"
	"objectvision/internal/service/websocket"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Models holds both loaded networks.
type Models struct {
	Detector  *ai.DetectorService
	Segmenter *ai.SegmenterService
}

// Close releases whichever networks were loaded.
func (m *Models) Close() {
	if m.Detector != nil {
		m.Detector.Close()
	}
	if m.Segmenter != nil {
		m.Segmenter.Close()
	}
}

// LoadModels loads the detector and segmenter concurrently. If either fails, the
// other is released and the first error is returned.
func LoadModels(cfg *config.Config, logger *logger.Logger) (*Models, error) {
	models := &Models{}

	var g errgroup.Group
	g.Go(func() error {
		detector, err := ai.NewDetectorService(cfg, logger)
		if err != nil {
			return err
		}
		models.Detector = detector
		return nil
	})
	g.Go(func() error {
		segmenter, err := ai.NewSegmenterService(cfg, logger)
		if err != nil {
			return err
		}
		models.Segmenter = segmenter
		return nil
	})

	if err := g.Wait(); err != nil {
		models.Close()
		return nil, err
	}
	return models, nil
}

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	models     *Models
	hubService *websocket.HubService
	manager    *service.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	models, err := LoadModels(cfg, log)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		models.Close()
		return nil, err
	}

	media, err := storage.NewMediaService(cfg.MediaDirectory, cfg.ThumbnailSize, log)
	if err != nil {
		models.Close()
		db.Close()
		return nil, err
	}

	hub := websocket.NewHubService(log)
	mng := service.NewManager(
		pipeline.NewDetectionPipeline(models.Detector, cfg, log),
		pipeline.NewSegmentationPipeline(models.Segmenter, cfg, nil, log),
		media,
		sqlite.NewMediaRepository(db),
		hub,
		log,
	)

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		models:     models,
		hubService: hub,
		manager:    mng,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts the server down and releases
// the models and database.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.hubService.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           route.SetupRoutes(a.manager, a.hubService, a.config, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("Object vision server listening on http://localhost:%d", a.config.Port)
	a.logger.Info("Media: %s, database: %s", a.config.MediaDirectory, a.config.DatabasePath)
	a.logger.Info("Detector: %s, segmenter: %s", a.config.DetectorModelPath, a.config.SegmenterModelPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	return server.Shutdown(shutdownCtx)
}

func (a *App) close() {
	a.models.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
}
