package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/johnwmail/pastelite/internal/config"
	"github.com/johnwmail/pastelite/internal/metrics"
	"github.com/johnwmail/pastelite/internal/server"
	"github.com/johnwmail/pastelite/internal/services"
	"github.com/johnwmail/pastelite/storage"
)

// Version/build info (set via -ldflags at build time)
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "none"
)

// Lambda adapters, set once before lambda.Start
var (
	ginLambdaV1 *ginadapter.GinLambda
	ginLambdaV2 *ginadapter.GinLambdaV2
	lambdaLog   = slog.Default()
)

// isLambdaEnvironment detects if running in AWS Lambda
func isLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "pastelite: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, logCloser, err := server.SetupLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()

	gin.SetMode(cfg.GinMode)

	logger.Info("Starting pastelite",
		"version", Version,
		"build_time", BuildTime,
		"commit", CommitHash,
		"storage", cfg.StorageType,
		"port", cfg.Port,
		"test_mode", cfg.TestMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage", "error", err)
		}
	}()

	registry := newRegistry()
	router := server.NewRouter(cfg, server.RouterOptions{
		Service:  services.NewPasteService(store, logger),
		Logger:   logger,
		Version:  Version,
		Gatherer: registry,
	})

	if isLambdaEnvironment() {
		logger.Info("Starting in AWS Lambda mode")
		lambdaLog = logger
		ginLambdaV1 = ginadapter.New(router)
		ginLambdaV2 = ginadapter.NewV2(router)
		lambda.Start(lambdaHandler)
		return nil
	}

	go services.NewReaper(store, cfg.ReaperInterval, logger).Run(ctx)

	logger.Info("Starting in HTTP server mode")
	return server.Run(ctx, router, cfg.Port, logger)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// lambdaHandler handles Lambda requests for both v1 and v2 formats
func lambdaHandler(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Try APIGatewayV2HTTPRequest first (Lambda Function URLs and HTTP API)
	var reqV2 events.APIGatewayV2HTTPRequest
	if err := json.Unmarshal(event, &reqV2); err == nil && reqV2.RequestContext.HTTP.Method != "" {
		lambdaLog.Debug("Handling APIGatewayV2HTTPRequest",
			"method", reqV2.RequestContext.HTTP.Method,
			"path", reqV2.RawPath)
		return ginLambdaV2.ProxyWithContext(ctx, reqV2)
	}

	// Then APIGatewayProxyRequest (REST API and ALB)
	var reqV1 events.APIGatewayProxyRequest
	if err := json.Unmarshal(event, &reqV1); err == nil && reqV1.HTTPMethod != "" {
		lambdaLog.Debug("Handling APIGatewayProxyRequest",
			"method", reqV1.HTTPMethod,
			"path", reqV1.Path)
		return ginLambdaV1.ProxyWithContext(ctx, reqV1)
	}

	lambdaLog.Warn("Unable to parse event as APIGateway v1 or v2 format", "size", len(event))
	return events.APIGatewayV2HTTPResponse{
		StatusCode: 400,
		Body:       `{"error":"Unsupported event type"}`,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}, fmt.Errorf("unsupported event type")
}
