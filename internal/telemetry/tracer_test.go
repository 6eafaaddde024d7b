package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tp, shutdown, err := Init("canvasctl-test", logger)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if tp == nil {
		t.Fatal("Init() provider = nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		t.Errorf("shutdown error = %v", err)
	}
}
