package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/md-rashed-zaman/doctorsched/libs/grpcx"
)

// healthprobe exits 0 when the gRPC health service reports SERVING. It is meant for container
// health checks.
func main() {
	var (
		addr    = flag.String("addr", getenv("GRPC_ADDR", "localhost:9092"), "gRPC address")
		service = flag.String("service", getenv("SERVICE_NAME", "doctor-service"), "health service name (empty for the whole server)")
		timeout = flag.Duration("timeout", 3*time.Second, "probe timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := grpcx.Probe(ctx, *addr, *service, grpcx.DialOptions{Timeout: *timeout}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("SERVING")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
