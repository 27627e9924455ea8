package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/codebuildervaibhav/audio-library/internal/cleanup"
	"github.com/codebuildervaibhav/audio-library/internal/config"
	"github.com/codebuildervaibhav/audio-library/internal/handlers"
	"github.com/codebuildervaibhav/audio-library/internal/library"
	"github.com/codebuildervaibhav/audio-library/internal/queue"
	"github.com/codebuildervaibhav/audio-library/internal/storage"
	"github.com/codebuildervaibhav/audio-library/internal/transcription"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	log := newLogger(logBuffer)
	defer log.Sync()

	cfgPath := os.Getenv("AUDIOLIB_CONFIG")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}
	cfg, created, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	if created {
		log.Info("created default config", zap.String("path", cfgPath))
	}

	if err := cleanup.EnsureDirExists(cfg.Storage.TempDir); err != nil {
		log.Fatal("failed to create temp directory", zap.Error(err))
	}

	log.Info("initializing components",
		zap.String("language", cfg.Language),
		zap.String("model_size", cfg.ModelSize),
		zap.String("device", cfg.Device))

	transcriber, err := transcription.NewWhisperTranscriber(transcription.WhisperConfig{
		Python:    cfg.Whisper.Python,
		Model:     cfg.ModelSize,
		Device:    cfg.Device,
		Threads:   cfg.Whisper.Threads,
		TempDir:   cfg.Storage.TempDir,
		Normalize: cfg.Whisper.Normalize,
		FFmpeg:    cfg.Whisper.FFmpeg,
		Timeout:   cfg.WhisperTimeout(),
	}, log.Named("whisper"))
	if err != nil {
		log.Fatal("failed to initialize Whisper", zap.Error(err))
	}

	assets, err := storage.NewAssetStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatal("failed to initialize upload directory", zap.Error(err))
	}

	store, err := storage.NewTranscriptStore(cfg.Storage.Database)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	var opts []library.Option
	if mirror := newDriveMirror(cfg, log); mirror != nil {
		opts = append(opts, library.WithMirror(mirror))
	}

	svc := library.NewService(store, assets, transcriber, cfg.Language, log.Named("library"), opts...)

	workerPool := queue.NewWorkerPool(cfg.Workers.Count, svc, log.Named("queue"))
	workerPool.Start()

	cleanupScheduler := cleanup.NewScheduler(cleanup.Config{
		TempDir:      cfg.Storage.TempDir,
		Interval:     time.Duration(cfg.Cleanup.IntervalMinutes) * time.Minute,
		OrphanMaxAge: time.Duration(cfg.Cleanup.OrphanMaxAgeHours) * time.Hour,
		TempMaxAge:   time.Duration(cfg.Cleanup.TempMaxAgeHours) * time.Hour,
	}, store, assets, log.Named("cleanup"))
	cleanupScheduler.Start()

	app := fiber.New(fiber.Config{
		// multipart framing adds a little on top of the file itself
		BodyLimit: int(cfg.MaxFileSize()) + 1024*1024,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Output: io.MultiWriter(os.Stdout, logBuffer),
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	}))

	handlers.RegisterRoutes(app, handlers.Handlers{
		Upload:  handlers.NewUploadHandler(workerPool, cfg.MaxFileSize(), log.Named("upload")),
		Library: handlers.NewLibraryHandler(svc, log.Named("library")),
		GDrive:  handlers.NewGDriveHandler(workerPool, log.Named("gdrive")),
		Stream:  handlers.NewStreamHandler(workerPool, cfg.MaxFileSize(), log.Named("stream")),
		Sync:    handlers.NewSyncHandler(svc, log.Named("sync")),
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	log.Info("server starting", zap.String("addr", cfg.Addr()), zap.Strings("endpoints", []string{
		"POST   /transcribe",
		"GET    /library",
		"GET    /audio_data/:id",
		"DELETE /delete/:id",
		"GET    /audio/:name",
		"GET    /subtitles/:id/:format",
		"POST   /import/gdrive",
		"GET    /ws/upload",
		"GET    /ws/sync",
		"GET    /logs",
		"GET    /health",
	}))

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := app.Listen(cfg.Addr()); err != nil {
		log.Error("server failed", zap.Error(err))
	}

	workerPool.Stop()
	cleanupScheduler.Stop()
	transcriber.Close()
	if err := store.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

// newDriveMirror returns nil when Google Drive is disabled or unavailable;
// transcripts then stay local only
func newDriveMirror(cfg *config.Config, log *zap.Logger) library.Mirror {
	if !cfg.GoogleDrive.Enabled {
		return nil
	}
	if _, err := os.Stat(cfg.GoogleDrive.CredentialsFile); err != nil {
		log.Info("Google Drive credentials not found, saving locally only")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := storage.NewDriveClient(ctx,
		cfg.GoogleDrive.CredentialsFile,
		cfg.GoogleDrive.TokenFile,
		cfg.GoogleDrive.FolderName,
		cfg.ModelSize,
		cfg.Language,
	)
	if err != nil {
		if errors.Is(err, storage.ErrNoToken) {
			log.Warn("Google Drive token missing, saving locally only", zap.String("token_file", cfg.GoogleDrive.TokenFile))
		} else {
			log.Warn("Google Drive not available", zap.Error(err))
		}
		return nil
	}

	log.Info("Google Drive mirror enabled", zap.String("folder", cfg.GoogleDrive.FolderName))
	return client
}

func newLogger(buffer *LogBuffer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		level.SetLevel(zapcore.DebugLevel)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stdout), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(buffer), level),
	)
	return zap.New(core, zap.AddCaller())
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}
