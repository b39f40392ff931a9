package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startBufServer(t *testing.T) (*bufconn.Listener, func(string, healthpb.HealthCheckResponse_ServingStatus)) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv, hs := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return lis, hs.SetServingStatus
}

func bufDialer(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
}

func TestProbe(t *testing.T) {
	lis, setStatus := startBufServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := Probe(ctx, "bufnet", "", DialOptions{Timeout: time.Second}, bufDialer(lis)); err != nil {
		t.Fatalf("expected serving, got %v", err)
	}

	setStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	if err := Probe(ctx, "bufnet", "", DialOptions{Timeout: time.Second}, bufDialer(lis)); err == nil {
		t.Fatal("expected error for NOT_SERVING")
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if RequestIDFromContext(ctx) != "" {
		t.Fatal("empty id must not be stored")
	}
	ctx = WithRequestID(ctx, "abc")
	if RequestIDFromContext(ctx) != "abc" {
		t.Fatal("expected stored id")
	}
	if NewRequestID() == NewRequestID() {
		t.Fatal("expected unique ids")
	}
}
