package services

import (
	"context"
	"fmt"
	"time"

	"gpustack/internal/failure"
	"gpustack/internal/logging"
)

// Default polling budget for EnsureRunning
const (
	DefaultHealthTimeout  = 120 * time.Second
	DefaultHealthInterval = 5 * time.Second
)

// State is the orchestrator's view of the container
type State string

const (
	StateNotVisible State = "not_visible"
	StateStarting   State = "starting"
	StateHealthy    State = "healthy"
	StateUnhealthy  State = "unhealthy"
	StateTimedOut   State = "timed_out"
	StateFailed     State = "failed"
)

// Outcome is the terminal result of EnsureRunning
type Outcome string

const (
	OutcomeHealthy   Outcome = "healthy"
	OutcomeTimedOut  Outcome = "timed-out"
	OutcomeUnhealthy Outcome = "unhealthy"
	OutcomeFailed    Outcome = "failed"
)

// Target names what to start and which container to watch
type Target struct {
	ComposeFile string
	Service     string
	Container   string
}

// RunResult summarises one EnsureRunning call
type RunResult struct {
	Outcome    Outcome
	Polls      int
	Elapsed    time.Duration
	LastHealth ContainerHealth
}

// Orchestrator starts a compose service and waits for its container to
// report healthy
type Orchestrator struct {
	runtime Runtime
	clock   Clock
	logger  *logging.Logger
	state   State
}

// NewOrchestrator creates an orchestrator; a nil clock uses the system clock
func NewOrchestrator(runtime Runtime, clock Clock, logger *logging.Logger) *Orchestrator {
	if clock == nil {
		clock = RealClock{}
	}
	return &Orchestrator{
		runtime: runtime,
		clock:   clock,
		logger:  logger,
		state:   StateNotVisible,
	}
}

// EnsureRunning issues one compose up and polls visibility and health until
// the container is healthy, reports unhealthy, or the timeout elapses.
// A timeout is returned as a soft HealthTimeout error.
func (o *Orchestrator) EnsureRunning(ctx context.Context, target Target, timeout, interval time.Duration) (RunResult, error) {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	if interval <= 0 {
		interval = DefaultHealthInterval
	}

	o.state = StateNotVisible
	o.logger.Info("orchestrator.compose_up", "Starting container service", map[string]interface{}{
		"service":      target.Service,
		"compose_file": target.ComposeFile,
		"container":    target.Container,
	})

	if err := o.runtime.ComposeUp(ctx, target.ComposeFile, target.Service); err != nil {
		o.transition(StateFailed, target, map[string]interface{}{"error": err.Error()})
		return RunResult{Outcome: OutcomeFailed, LastHealth: HealthUnknown},
			failure.New(failure.LaunchFailed, "compose up", err)
	}

	start := o.clock.Now()
	res := RunResult{LastHealth: HealthUnknown}

	for {
		res.Polls++
		health := o.poll(ctx, target)
		res.LastHealth = health
		res.Elapsed = o.clock.Now().Sub(start)

		switch health {
		case HealthHealthy:
			o.transition(StateHealthy, target, map[string]interface{}{"polls": res.Polls})
			res.Outcome = OutcomeHealthy
			return res, nil
		case HealthUnhealthy:
			o.transition(StateUnhealthy, target, map[string]interface{}{"polls": res.Polls})
			res.Outcome = OutcomeUnhealthy
			return res, failure.New(failure.HealthFailed, "health check",
				fmt.Errorf("container %s reported unhealthy", target.Container))
		}

		if res.Elapsed >= timeout {
			o.transition(StateTimedOut, target, map[string]interface{}{
				"polls":       res.Polls,
				"timeout_sec": timeout.Seconds(),
			})
			res.Outcome = OutcomeTimedOut
			return res, failure.New(failure.HealthTimeout, "health check",
				fmt.Errorf("container %s not healthy after %s", target.Container, timeout))
		}

		wait := interval
		if remaining := timeout - res.Elapsed; remaining < wait {
			wait = remaining
		}
		if err := o.clock.Sleep(ctx, wait); err != nil {
			o.transition(StateFailed, target, map[string]interface{}{"error": err.Error()})
			res.Outcome = OutcomeFailed
			return res, fmt.Errorf("health polling interrupted: %w", err)
		}
	}
}

// poll returns the observed health, HealthStarting while the container is not
// yet visible
func (o *Orchestrator) poll(ctx context.Context, target Target) ContainerHealth {
	visible, err := o.runtime.IsContainerVisible(ctx, target.Container)
	if err != nil {
		o.logger.Debug("orchestrator.visibility.error", "Container listing failed", map[string]interface{}{
			"container": target.Container,
			"error":     err.Error(),
		})
	}
	if !visible {
		o.transition(StateNotVisible, target, nil)
		return HealthStarting
	}

	health, err := o.runtime.GetContainerHealth(ctx, target.Container)
	if err != nil {
		o.logger.Debug("orchestrator.inspect.error", "Health inspection failed", map[string]interface{}{
			"container": target.Container,
			"error":     err.Error(),
		})
		health = HealthUnknown
	}
	if health != HealthHealthy && health != HealthUnhealthy {
		o.transition(StateStarting, target, map[string]interface{}{"health": string(health)})
	}
	return health
}

func (o *Orchestrator) transition(next State, target Target, payload map[string]interface{}) {
	if o.state == next {
		return
	}
	fields := map[string]interface{}{
		"container": target.Container,
		"from":      string(o.state),
		"to":        string(next),
	}
	for k, v := range payload {
		fields[k] = v
	}
	o.logger.Info("orchestrator.state", fmt.Sprintf("Container %s: %s -> %s", target.Container, o.state, next), fields)
	o.state = next
}
