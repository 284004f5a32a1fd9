package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/photoshare/config"
	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/routes"
	"github.com/cppla/photoshare/services"
	"github.com/cppla/photoshare/storage"
	"github.com/cppla/photoshare/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	db := config.InitDatabase(cfg, models.All()...)
	rc := utils.InitRedis(cfg)
	defer func() { _ = utils.CloseRedis() }()

	var host storage.ImageHost
	if cfg.MinIOEndpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		minioHost, err := storage.NewMinIOHost(ctx, cfg)
		cancel()
		if err != nil {
			utils.Logger.Fatal("image host unavailable", zap.String("endpoint", cfg.MinIOEndpoint), zap.Error(err))
		}
		host = minioHost
	} else {
		utils.Logger.Warn("MINIO_ENDPOINT not set, images are kept in memory")
		host = storage.NewMemoryHost(cfg.PublicBaseURL + "/images")
	}

	reaper := services.NewAssetReaper(db, host, utils.Logger, cfg.ReaperBatch)
	if err := reaper.Start(cfg.ReaperSchedule); err != nil {
		utils.Logger.Fatal("failed to start asset reaper", zap.Error(err))
	}

	r := routes.SetupRouter(routes.Deps{
		Config: cfg,
		DB:     db,
		Host:   host,
		Redis:  rc,
		Mailer: utils.NewMailer(cfg, utils.Logger),
		Logger: utils.Logger,
	})

	addr := ":" + cfg.AppPort
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		utils.Sugar.Infof("Starting TLS server on port %s (graceful)", cfg.AppPort)
		err := utils.GraceServerTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile, r, reaper.Stop)
		if err != nil {
			utils.Sugar.Fatalf("server stopped with error: %v", err)
		}
		return
	}
	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(addr, r, reaper.Stop); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
