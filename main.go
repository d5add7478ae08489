package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/camden-git/petclassifier/classifier"
	"github.com/camden-git/petclassifier/cli"
	"github.com/camden-git/petclassifier/config"
	"github.com/camden-git/petclassifier/database"
	"github.com/camden-git/petclassifier/logging"
	"github.com/camden-git/petclassifier/media"
	"github.com/camden-git/petclassifier/repository"
	"github.com/camden-git/petclassifier/services"
	"github.com/camden-git/petclassifier/training"
	"github.com/camden-git/petclassifier/workers"
)

func main() {
	os.Exit(run())
}

func run() int {
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	log := logging.Init(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if envErr != nil {
		log.Debug("main: no .env file loaded", "error", envErr)
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("main: failed to create database directory", "path", dir, "error", err)
			return 1
		}
	}
	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Error("main: failed to initialize database", "error", err)
		return 1
	}
	defer database.Close(db)
	if err := database.AutoMigrateModels(db); err != nil {
		log.Error("main: failed to migrate database", "error", err)
		return 1
	}

	store, err := media.NewLocalStorage(cfg.MediaStoragePath, map[media.AssetType]string{
		media.AssetTypeImage:   cfg.ImagesSubDir,
		media.AssetTypeAvatar:  cfg.AvatarsSubDir,
		media.AssetTypeWeights: cfg.WeightsSubDir,
	})
	if err != nil {
		log.Error("main: failed to initialize media store", "error", err)
		return 1
	}

	loader := classifier.NewLoader(cfg, store)
	defer func() {
		if err := loader.Close(); err != nil {
			log.Warn("main: failed to release models", "error", err)
		}
	}()

	jobRepo := repository.NewGormTrainingJobRepository(db)
	classification := services.NewClassificationService(
		repository.NewGormImageRepository(db),
		repository.NewGormModelRepository(db),
		store,
		loader,
		training.OptionsFromConfig(cfg),
	)
	queue := workers.NewTrainingQueue(jobRepo, classification, cfg.TrainingQueueSize)
	defer queue.Stop()

	app := &cli.App{
		Users:          services.NewUserService(repository.NewGormUserRepository(db), store, loader),
		Classification: classification,
		Queue:          queue,
		NumWorkers:     cfg.NumTrainingWorkers,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.RootCommand(app).ExecuteContext(ctx); err != nil {
		slog.Debug("main: command failed", "error", err)
		fmt.Fprintln(os.Stderr, cli.ExitMessage(err))
		return 1
	}
	return 0
}
