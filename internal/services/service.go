package services

import (
	"context"
	"fmt"
	"time"

	"gpustack/internal/logging"
)

// ServiceStatus represents the status of the model server container
type ServiceStatus struct {
	Name      string          `json:"name"`
	Container string          `json:"container"`
	Daemon    bool            `json:"daemon"` // runtime daemon answered "info"
	State     string          `json:"state"`  // running, exited, unknown
	Health    ContainerHealth `json:"health"` // container health check result
	Endpoint  HealthStatus    `json:"endpoint"`
	Message   string          `json:"message,omitempty"`
}

// OllamaService manages the Ollama container started from a compose file
type OllamaService struct {
	target       Target
	runtime      Runtime
	orchestrator *Orchestrator
	healthCheck  HealthChecker
	logger       *logging.Logger
}

// NewOllamaService creates a new Ollama service bound to a compose target
func NewOllamaService(target Target, ollamaURL string, runtime Runtime, clock Clock, logger *logging.Logger) *OllamaService {
	return &OllamaService{
		target:       target,
		runtime:      runtime,
		orchestrator: NewOrchestrator(runtime, clock, logger),
		healthCheck:  OllamaTagsCheck(ollamaURL),
		logger:       logger,
	}
}

// Name returns the compose service name
func (s *OllamaService) Name() string {
	return s.target.Service
}

// Start launches the service and waits for the container health check
func (s *OllamaService) Start(ctx context.Context, timeout, interval time.Duration) (RunResult, error) {
	fields := map[string]interface{}{"service": s.target.Service}
	s.logger.Info("service.start", fmt.Sprintf("Starting %s service", s.target.Service), fields)

	res, err := s.orchestrator.EnsureRunning(ctx, s.target, timeout, interval)
	if err != nil {
		s.logger.Warn("service.start.error", fmt.Sprintf("%s service did not become healthy", s.target.Service), map[string]interface{}{
			"service": s.target.Service,
			"outcome": string(res.Outcome),
			"error":   err.Error(),
		})
		return res, err
	}

	s.logger.Info("service.started", fmt.Sprintf("%s service started", s.target.Service), map[string]interface{}{
		"service": s.target.Service,
		"polls":   res.Polls,
	})
	return res, nil
}

// Status returns container state, container health and API reachability
func (s *OllamaService) Status(ctx context.Context) (ServiceStatus, error) {
	status := ServiceStatus{
		Name:      s.target.Service,
		Container: s.target.Container,
		Health:    HealthUnknown,
		Endpoint:  HealthRed,
	}

	status.Daemon = s.runtime.IsRunning(ctx)
	if !status.Daemon {
		status.State = "unknown"
		status.Message = fmt.Sprintf("%s daemon is not reachable", s.runtime.Binary())
		return status, nil
	}

	state, err := s.runtime.GetContainerStatus(ctx, s.target.Container)
	if err != nil {
		status.State = "unknown"
		status.Message = err.Error()
		return status, nil
	}
	status.State = state

	if state == containerStatusRunning {
		if health, err := s.runtime.GetContainerHealth(ctx, s.target.Container); err == nil {
			status.Health = health
		}
		endpoint, err := s.healthCheck.Check(ctx)
		status.Endpoint = endpoint
		if err != nil {
			status.Message = err.Error()
		}
	}

	return status, nil
}

// Logs retrieves logs from the service container
func (s *OllamaService) Logs(ctx context.Context, tail int) (string, error) {
	logs, err := s.runtime.GetContainerLogs(ctx, s.target.Container, tail)
	if err != nil {
		return "", fmt.Errorf("failed to get logs for %s: %w", s.target.Service, err)
	}
	return logs, nil
}
