package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/app"
	"github.com/NimaFathima/astrobiomers/internal/config"
	"github.com/NimaFathima/astrobiomers/internal/queue"
	mid "github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/storage"
	"github.com/NimaFathima/astrobiomers/pkg/logger"
	"github.com/NimaFathima/astrobiomers/pkg/metrics"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/go-playground/validator"
	"github.com/rabbitmq/amqp091-go"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewEcho builds the HTTP server around an already assembled App.
func NewEcho(a *mid.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(mid.AppContextMiddleware(a))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64M"))

	RegisterRoutes(e)
	return e
}

func Init(cfg config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("[Server] Failed to initialise services", "err", err)
	}
	defer services.Close(context.Background())

	a := &mid.App{
		Config:        cfg,
		Graph:         services.Graph,
		Corpus:        services.Corpus(),
		Jobs:          services.Jobs(),
		Evidence:      services.Evidence,
		RAG:           services.RAG,
		Conversations: services.Conversations,
		AiClient:      services.AIClient,
		MasterAPIKey:  cfg.Server.APIKey,
	}

	if cfg.Queue.Host != "" {
		conn, ch := openQueue(cfg.Queue)
		if conn != nil {
			defer conn.Close()
			a.Queue = ch
		}
	}

	s3Client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		logger.Warn("[Server] Object storage unavailable, large ingest batches stay inline", "err", err)
	} else if s3Client != nil {
		a.S3 = s3Client
	}

	if cfg.Server.AuthURL != "" {
		jwksURL := strings.TrimSuffix(cfg.Server.AuthURL, "/") + "/jwks"
		k, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			logger.Fatal("[Server] Failed to load jwks keys", "err", err)
		}
		a.Key = k
	}

	e := NewEcho(a)

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateSystemMetrics()
			}
		}
	}()

	go func() {
		port := cfg.Server.Port
		if port == "" {
			port = "8080"
		}
		logger.Info("[Server] Starting server", "port", port, "llm", services.RAG.Provider())
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("[Server] Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("[Server] Failed to shutdown server", "err", err)
	}
}

// openQueue connects to RabbitMQ. The server keeps running without a queue;
// ingest requests then answer 503.
func openQueue(cfg config.QueueConfig) (*amqp091.Connection, *amqp091.Channel) {
	conn, err := queue.Init(cfg)
	if err != nil {
		logger.Warn("[Queue] RabbitMQ unavailable, ingest endpoint disabled", "err", err)
		return nil, nil
	}
	ch, err := conn.Channel()
	if err != nil {
		logger.Warn("[Queue] Failed to open channel, ingest endpoint disabled", "err", err)
		conn.Close()
		return nil, nil
	}
	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Warn("[Queue] Failed to declare queues", "err", err)
	}
	return conn, ch
}
