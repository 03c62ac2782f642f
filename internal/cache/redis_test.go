package cache

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"casinolab/internal/config"
)

func TestNew_Unreachable(t *testing.T) {
	svc, err := New(config.Redis{Addr: "127.0.0.1:1"})
	if err == nil {
		svc.Close()
		t.Fatal("New() succeeded against a closed port")
	}
	if svc != nil {
		t.Error("New() returned a service alongside an error")
	}
	if !strings.Contains(err.Error(), "127.0.0.1:1") {
		t.Errorf("error %q does not name the address", err)
	}
}

func TestService_Interface(t *testing.T) {
	var _ Service = (*service)(nil)
}

func TestService_Health(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker not available: %v", err)
	}
	defer container.Terminate(context.Background())

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatal(err)
	}

	svc, err := New(config.Redis{Addr: endpoint})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	stats := svc.Health()
	if stats["status"] != "up" {
		t.Fatalf("status = %q, error = %q", stats["status"], stats["error"])
	}
	if _, err := strconv.ParseUint(stats["total_conns"], 10, 32); err != nil {
		t.Errorf("total_conns = %q", stats["total_conns"])
	}

	if err := svc.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if got := svc.Health()["status"]; got != "down" {
		t.Errorf("status after Close = %q, want down", got)
	}
}
