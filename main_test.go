package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/johnwmail/pastelite/internal/config"
	"github.com/johnwmail/pastelite/internal/server"
	"github.com/johnwmail/pastelite/internal/services"
	"github.com/johnwmail/pastelite/storage"
)

func TestEnvironmentDetection(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	if isLambdaEnvironment() {
		t.Error("Expected non-Lambda environment")
	}

	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "pastelite")
	if !isLambdaEnvironment() {
		t.Error("Expected Lambda environment")
	}
}

func TestBuildInfo(t *testing.T) {
	if Version == "" {
		t.Error("Version should have a default value")
	}
	if BuildTime == "" {
		t.Error("BuildTime should have a default value")
	}
	if CommitHash == "" {
		t.Error("CommitHash should have a default value")
	}
}

func TestNewRegistry(t *testing.T) {
	families, err := newRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("Expected runtime collectors to be registered")
	}
}

func setupLambda(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.EnableMetrics = false
	store, err := storage.NewFilesystemStore(cfg.DataDir)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := server.NewRouter(cfg, server.RouterOptions{
		Service: services.NewPasteService(store, logger),
		Logger:  logger,
		Version: "test",
	})
	ginLambdaV1 = ginadapter.New(router)
	ginLambdaV2 = ginadapter.NewV2(router)
	lambdaLog = logger
}

func TestLambdaHandler_V2(t *testing.T) {
	setupLambda(t)

	req := events.APIGatewayV2HTTPRequest{
		RawPath: "/health",
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodGet, Path: "/health"},
		},
	}
	raw, _ := json.Marshal(req)

	out, err := lambdaHandler(context.Background(), raw)
	if err != nil {
		t.Fatalf("lambdaHandler failed: %v", err)
	}
	resp, ok := out.(events.APIGatewayV2HTTPResponse)
	if !ok {
		t.Fatalf("Expected v2 response, got %T", out)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestLambdaHandler_V1(t *testing.T) {
	setupLambda(t)

	req := events.APIGatewayProxyRequest{HTTPMethod: http.MethodPost, Path: "/api/pastes", Body: `{"content":"from lambda"}`}
	raw, _ := json.Marshal(req)

	out, err := lambdaHandler(context.Background(), raw)
	if err != nil {
		t.Fatalf("lambdaHandler failed: %v", err)
	}
	resp, ok := out.(events.APIGatewayProxyResponse)
	if !ok {
		t.Fatalf("Expected v1 response, got %T", out)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected status 201, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestLambdaHandler_Unsupported(t *testing.T) {
	setupLambda(t)

	out, err := lambdaHandler(context.Background(), json.RawMessage(`{"key1":"value1"}`))
	if err == nil {
		t.Fatal("Expected error for unsupported event")
	}
	if resp, ok := out.(events.APIGatewayV2HTTPResponse); !ok || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 response, got %#v", out)
	}
}
