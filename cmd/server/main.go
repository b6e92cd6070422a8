package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"go.uber.org/zap"

	"document-service/internal/blobstore"
	"document-service/internal/cache/snapshotCache"
	"document-service/internal/config"
	"document-service/internal/handler/fileHandler"
	"document-service/internal/repository/documentRepo"
	"document-service/internal/service/documentService"
	"document-service/internal/service/editorService"
	"document-service/internal/service/sheetService"
	"document-service/pkg/database/postgres"
	"document-service/pkg/database/redis"
	"document-service/pkg/logger"
)

func main() {
	ctx := context.Background()
	ctx, err := logger.New(ctx)
	if err != nil {
		panic(err)
	}
	log := logger.GetLogger(ctx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Error loading config", zap.Error(err))
	}

	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("Error connecting to postgres", zap.Error(err))
	}
	defer pool.Close()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal("Error initializing blob store", zap.Error(err))
	}

	snapshots := snapshotCache.New(redis.New(cfg.Redis), cfg.SnapshotTTL)

	repo := documentRepo.New(pool)
	docSvc := documentService.New(repo, store, snapshots)
	editorSvc := editorService.New(repo, docSvc, editorService.NewHTTPFetcher(),
		cfg.HTTP.PublicBaseURL, cfg.HTTP.EditorJWTSecret)
	sheetSvc := sheetService.New(repo, store, docSvc)

	handler := fileHandler.New(docSvc, editorSvc, sheetSvc)

	addr := ":" + cfg.HTTP.Port
	log.Info("document service listening", zap.String("addr", addr))

	server := &http.Server{
		Addr:    addr,
		Handler: handler.Routes(),
		// Request contexts inherit the logger set up above.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatal("Failed to serve", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	switch cfg.Storage.Backend {
	case "disk":
		return blobstore.NewDisk(cfg.Storage.DiskRoot, cfg.HTTP.PublicBaseURL)
	case "minio":
		return blobstore.NewMinio(ctx, cfg.MinIO)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
