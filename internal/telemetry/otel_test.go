package telemetry

import (
	"context"
	"testing"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), "gym-scheduling", "")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if Tracer() == nil {
		t.Fatal("expected a tracer")
	}
}
