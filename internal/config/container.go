package config

import (
	"doc-merge-server/internal/domain"
	"doc-merge-server/internal/repository"
	"doc-merge-server/internal/service"
	"doc-merge-server/pkg/logger"
)

// Container holds all application dependencies
type Container struct {
	Config       domain.Config
	Logger       domain.Logger
	OutputStore  domain.OutputStore
	MergeService domain.MergeService
}

// NewContainer creates a new dependency injection container
func NewContainer() (*Container, error) {
	config := NewConfig()
	appLogger := logger.NewLogger(config.GetLogLevel())

	// Merged documents go to Supabase storage when configured, to the
	// local output directory otherwise.
	var store domain.OutputStore
	var err error
	if config.GetSupabaseURL() != "" && config.GetSupabaseKey() != "" && config.GetSupabaseBucket() != "" {
		store, err = repository.NewSupabaseOutputStore(
			config.GetSupabaseURL(),
			config.GetSupabaseKey(),
			config.GetSupabaseBucket(),
			appLogger,
		)
		if err != nil {
			return nil, err
		}
		appLogger.Info("Using Supabase output store", "bucket", config.GetSupabaseBucket())
	} else {
		store, err = repository.NewLocalOutputStore(config.GetOutputPath(), appLogger)
		if err != nil {
			return nil, err
		}
		appLogger.Info("Using local output store", "path", config.GetOutputPath())
	}

	extractor := service.NewCompressedFileExtractor(appLogger)
	mergeService := service.NewDocumentMergeService(
		extractor,
		store,
		appLogger,
		service.NewPDFMerger(appLogger),
		service.NewDocxMerger(appLogger),
	)

	return &Container{
		Config:       config,
		Logger:       appLogger,
		OutputStore:  store,
		MergeService: mergeService,
	}, nil
}

// GetConfig returns the configuration instance
func (c *Container) GetConfig() domain.Config {
	return c.Config
}

// GetLogger returns the logger instance
func (c *Container) GetLogger() domain.Logger {
	return c.Logger
}

// GetOutputStore returns the output store instance
func (c *Container) GetOutputStore() domain.OutputStore {
	return c.OutputStore
}

// GetMergeService returns the merge service instance
func (c *Container) GetMergeService() domain.MergeService {
	return c.MergeService
}
