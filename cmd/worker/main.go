package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NimaFathima/astrobiomers/internal/app"
	"github.com/NimaFathima/astrobiomers/internal/config"
	"github.com/NimaFathima/astrobiomers/internal/queue"
	"github.com/NimaFathima/astrobiomers/internal/storage"
	"github.com/NimaFathima/astrobiomers/pkg/ai"
	"github.com/NimaFathima/astrobiomers/pkg/loader"
	s3loader "github.com/NimaFathima/astrobiomers/pkg/loader/s3"
	"github.com/NimaFathima/astrobiomers/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	app.InitLogger(cfg.Server, "worker")
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("[Queue] Failed to initialise services", "err", err)
	}
	defer services.Close(context.Background())

	// Init s3 client
	s3Client, err := storage.NewS3Client(ctx, cfg.S3)
	if err != nil {
		logger.Fatal("[Queue] Failed to create S3 client", "err", err)
	}
	var corpusLoader loader.CorpusLoader
	if s3Client != nil {
		corpusLoader = s3loader.NewS3CorpusLoaderWithClient(cfg.S3.Bucket, s3Client)
	}

	// Init rabbitmq
	conn, err := queue.Init(cfg.Queue)
	if err != nil {
		logger.Fatal("[Queue] Failed to connect", "err", err)
	}
	defer conn.Close()

	// Init rabbitmq queues if not exist
	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Queue] Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("[Queue] Failed to declare queues", "err", err)
	}

	params := queue.NewProcessorParams{
		Graph:      services.GraphClient,
		GraphStore: services.Graph,
		Corpus:     services.Corpus(),
		Jobs:       services.Jobs(),
		Loader:     corpusLoader,
		Status:     ch,
	}
	if services.Papers != nil {
		params.Leases = services.Papers.Leases()
	}
	processor := queue.NewProcessor(params)

	// One message at a time; a batch already saturates the extractors.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("[Queue] Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("[Queue] Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		queue.IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("[Queue] Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	logger.Info("[Queue] Listening for messages", "queue", queue.IngestQueue)

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Shutdown signal received, exiting...")
			return
		case msg, ok := <-msgs:
			if !ok {
				logger.Info("[Queue] Message channel closed", "queue", queue.IngestQueue)
				return
			}
			handleMessage(ctx, ch, processor, s3Client, cfg.S3.Bucket, services.AIClient, msg)
		}
	}
}

func handleMessage(
	ctx context.Context,
	ch *amqp.Channel,
	processor *queue.Processor,
	s3Client *s3.Client,
	bucket string,
	aiClient ai.GraphAIClient,
	msg amqp.Delivery,
) {
	startTime := time.Now()
	logger.Info("[Queue] Received message", "queue", queue.IngestQueue, "retries", queue.Retries(msg))

	report, processingErr := processor.ProcessIngestMessage(ctx, msg.Body)

	// If there was an error send to retry or dead-letter, otherwise ack the message
	if processingErr != nil {
		logger.Error("[Queue] Error processing message", "queue", queue.IngestQueue, "err", processingErr)
		if queue.DeadLetters(msg, processingErr) {
			processor.FailJob(ctx, msg.Body, processingErr)
		}
		queue.HandleProcessingError(ctx, ch, msg, queue.IngestQueue, processingErr)
	} else {
		if err := msg.Ack(false); err != nil {
			logger.Error("[Queue] Failed to ack message", "err", err)
		}
		logger.Info(
			"[Queue] Message processed successfully",
			"papers", report.Papers,
			"entities", report.Entities,
			"relationships", report.Relationships,
		)
		cleanupCorpusObject(ctx, s3Client, bucket, msg.Body)
	}

	if aiClient != nil {
		metrics := aiClient.GetMetrics()
		logger.Info(
			"[AI] Metrics",
			"input_tokens", metrics.InputTokens,
			"output_tokens", metrics.OutputTokens,
			"total_tokens", metrics.TotalTokens,
			"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
		)
		aiClient.ResetMetrics()
	}

	logger.Info("[Queue] Processing time", "duration", formatDuration(time.Since(startTime)))
	logger.Info("[Queue] Waiting for next message")
}

// cleanupCorpusObject removes the uploaded corpus of a finished job.
func cleanupCorpusObject(ctx context.Context, client *s3.Client, bucket string, body []byte) {
	if client == nil {
		return
	}
	msg, err := queue.DecodeIngestMsg(body)
	if err != nil || msg.S3Key == "" {
		return
	}
	if err := storage.DeleteFile(ctx, client, bucket, msg.S3Key); err != nil {
		logger.Warn("[Queue] Failed to delete corpus object", "key", msg.S3Key, "err", err)
	}
}

func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}
