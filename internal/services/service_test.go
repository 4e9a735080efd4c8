package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gpustack/internal/execx/exectest"
	"gpustack/internal/logging"
)

func TestOllamaService_Start(t *testing.T) {
	runner := exectest.NewRunner().
		On(composeUpOllama, exectest.Response{}).
		On(psOllama, exectest.Response{Stdout: "ollama\n"}).
		On(inspectOllama, exectest.Response{Stdout: "healthy\n"})

	svc := NewOllamaService(ollamaTarget, "http://localhost:11434", NewDockerRuntime(runner), newFakeClock(), logging.Nop())
	if svc.Name() != "ollama" {
		t.Errorf("Expected name ollama, got %s", svc.Name())
	}

	res, err := svc.Start(context.Background(), time.Minute, time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if res.Outcome != OutcomeHealthy {
		t.Errorf("Expected healthy outcome, got %s", res.Outcome)
	}
}

func TestOllamaService_Status_Running(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	runner := exectest.NewRunner().
		On("docker info", exectest.Response{Stdout: "Server Version: 24.0.7\n"}).
		On("docker inspect -f {{.State.Status}} ollama", exectest.Response{Stdout: "running\n"}).
		On(inspectOllama, exectest.Response{Stdout: "healthy\n"})

	svc := NewOllamaService(ollamaTarget, server.URL, NewDockerRuntime(runner), nil, logging.Nop())
	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status.State != "running" {
		t.Errorf("Expected running, got %s", status.State)
	}
	if status.Health != HealthHealthy {
		t.Errorf("Expected healthy, got %s", status.Health)
	}
	if status.Endpoint != HealthGreen {
		t.Errorf("Expected green endpoint, got %s (%s)", status.Endpoint, status.Message)
	}
}

func TestOllamaService_Status_Missing(t *testing.T) {
	runner := exectest.NewRunner().
		On("docker info", exectest.Response{Stdout: "Server Version: 24.0.7\n"}).
		On("docker inspect -f {{.State.Status}} ollama", exectest.Response{Stderr: "No such object: ollama", ExitCode: 1})

	svc := NewOllamaService(ollamaTarget, "http://127.0.0.1:1", NewDockerRuntime(runner), nil, logging.Nop())
	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status.State != "unknown" {
		t.Errorf("Expected unknown state, got %s", status.State)
	}
	if status.Endpoint != HealthRed {
		t.Errorf("Expected red endpoint, got %s", status.Endpoint)
	}
}

func TestOllamaService_Status_DaemonDown(t *testing.T) {
	runner := exectest.NewRunner().
		On("docker info", exectest.Response{Stderr: "Cannot connect to the Docker daemon", ExitCode: 1})

	svc := NewOllamaService(ollamaTarget, "http://127.0.0.1:1", NewDockerRuntime(runner), nil, logging.Nop())
	status, err := svc.Status(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if status.Daemon {
		t.Error("Expected daemon to be reported unreachable")
	}
	if status.State != "unknown" {
		t.Errorf("Expected unknown state, got %s", status.State)
	}
	if !strings.Contains(status.Message, "docker daemon is not reachable") {
		t.Errorf("Unexpected message %q", status.Message)
	}
	if n := runner.CountPrefix("docker inspect"); n != 0 {
		t.Errorf("Expected no container inspection, got %d", n)
	}
}

func TestOllamaService_Logs(t *testing.T) {
	runner := exectest.NewRunner().
		On("docker logs --tail 5 ollama", exectest.Response{Stdout: "listening on 11434\n"})

	svc := NewOllamaService(ollamaTarget, "http://localhost:11434", NewDockerRuntime(runner), nil, logging.Nop())
	logs, err := svc.Logs(context.Background(), 5)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if logs != "listening on 11434\n" {
		t.Errorf("Unexpected logs %q", logs)
	}
}
