package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultWorkingDir  = "/workspace"
	defaultOutputLimit = 64 << 10
	defaultPidsLimit   = 64
	cleanupTimeout     = 5 * time.Second
)

// Run outcomes used as metric labels.
const (
	outcomeOK      = "ok"
	outcomeTimeout = "timeout"
	outcomeError   = "error"
)

var (
	containerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "algogenius",
		Subsystem: "sandbox",
		Name:      "container_runs_total",
		Help:      "Sandbox container runs by image and outcome.",
	}, []string{"image", "outcome"})

	containerRunSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "algogenius",
		Subsystem: "sandbox",
		Name:      "container_run_seconds",
		Help:      "Wall time from container create to exit.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"image"})
)

// Executor runs one command inside a throwaway container.
type Executor interface {
	Run(ctx context.Context, req ExecutionRequest) (ExecutionResult, error)
}

// ExecutionRequest describes one container run. Zero limits fall back to the executor Config.
type ExecutionRequest struct {
	Image           string
	Cmd             []string
	Env             []string
	Timeout         time.Duration
	Workspace       string
	WorkingDir      string
	MemoryLimitMB   int64
	CPUShares       int64
	NetworkDisabled bool
	ReadOnlyFS      bool
}

// ExecutionResult is what a finished (or killed) container left behind.
type ExecutionResult struct {
	Stdout           string
	Stderr           string
	OutputTruncated  bool
	ExitCode         int
	Duration         time.Duration
	TimedOut         bool
	MemoryUsageBytes int64
	CPUUsageNanosec  uint64
}

// Config holds executor defaults.
type Config struct {
	Host          string
	Timeout       time.Duration
	MemoryLimitMB int64
	CPUShares     int64
	PidsLimit     int64
	// OutputLimit caps captured stdout and stderr, each, in bytes.
	OutputLimit int
	WorkingDir  string
	Logger      zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.WorkingDir == "" {
		c.WorkingDir = defaultWorkingDir
	}
	if c.OutputLimit <= 0 {
		c.OutputLimit = defaultOutputLimit
	}
	if c.PidsLimit <= 0 {
		c.PidsLimit = defaultPidsLimit
	}
	return c
}

// DockerExecutor runs requests against a Docker daemon.
type DockerExecutor struct {
	client *client.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewDockerExecutor connects to the daemon at cfg.Host, or the environment default.
func NewDockerExecutor(cfg Config) (*DockerExecutor, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return &DockerExecutor{
		client: cli,
		cfg:    cfg.withDefaults(),
		tracer: otel.Tracer("github.com/noah-isme/algogenius-api/pkg/docker"),
		logger: cfg.Logger.With().Str("component", "docker_executor").Logger(),
	}, nil
}

// Run creates the container, waits for it to exit or time out, then collects output and usage.
// A timeout is reported both through result.TimedOut and a non-nil error.
func (e *DockerExecutor) Run(parent context.Context, req ExecutionRequest) (result ExecutionResult, err error) {
	if req.Image == "" {
		return ExecutionResult{}, errors.New("image is required")
	}

	ctx, span := e.tracer.Start(parent, "sandbox.container.run", trace.WithAttributes(
		attribute.String("container.image", req.Image),
		attribute.Bool("container.network_disabled", req.NetworkDisabled),
	))
	defer span.End()

	started := time.Now()
	defer func() {
		result.Duration = time.Since(started)
		containerRunSeconds.WithLabelValues(req.Image).Observe(result.Duration.Seconds())

		outcome := outcomeOK
		switch {
		case result.TimedOut:
			outcome = outcomeTimeout
			span.SetStatus(codes.Error, "timed out")
		case err != nil:
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("container.exit_code", result.ExitCode))
		containerRuns.WithLabelValues(req.Image, outcome).Inc()
	}()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	created, err := e.client.ContainerCreate(runCtx, e.containerConfig(req), e.hostConfig(req), nil, nil, "")
	if err != nil {
		return result, fmt.Errorf("container create: %w", err)
	}
	id := created.ID
	defer e.remove(id)

	if err := e.client.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		return result, fmt.Errorf("container start: %w", err)
	}

	result.ExitCode, err = e.wait(runCtx, id)
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		result.TimedOut = true
		e.kill(id)
	case err != nil:
		return result, fmt.Errorf("container wait: %w", err)
	}

	// Output and usage are read on the parent context so a timed out run still reports them.
	e.collectLogs(ctx, id, &result)
	e.collectStats(ctx, id, &result)

	if result.TimedOut {
		return result, fmt.Errorf("execution timed out after %s", timeout)
	}
	return result, nil
}

func (e *DockerExecutor) containerConfig(req ExecutionRequest) *container.Config {
	workingDir := req.WorkingDir
	if workingDir == "" {
		workingDir = e.cfg.WorkingDir
	}
	return &container.Config{
		Image:           req.Image,
		Cmd:             req.Cmd,
		Env:             req.Env,
		WorkingDir:      workingDir,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: req.NetworkDisabled,
	}
}

func (e *DockerExecutor) hostConfig(req ExecutionRequest) *container.HostConfig {
	memoryMB := req.MemoryLimitMB
	if memoryMB <= 0 {
		memoryMB = e.cfg.MemoryLimitMB
	}
	cpuShares := req.CPUShares
	if cpuShares <= 0 {
		cpuShares = e.cfg.CPUShares
	}
	pids := e.cfg.PidsLimit

	host := &container.HostConfig{
		NetworkMode:    "bridge",
		ReadonlyRootfs: req.ReadOnlyFS,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:    memoryMB << 20,
			CPUShares: cpuShares,
			PidsLimit: &pids,
		},
	}
	if req.NetworkDisabled {
		host.NetworkMode = "none"
	}
	if req.Workspace != "" {
		host.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: req.Workspace,
			Target: e.cfg.WorkingDir,
		}}
	}
	return host
}

func (e *DockerExecutor) wait(ctx context.Context, id string) (int, error) {
	statusCh, errCh := e.client.ContainerWait(ctx, id, container.WaitConditionNextExit)
	select {
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return int(status.StatusCode), errors.New(status.Error.Message)
		}
		return int(status.StatusCode), nil
	case err := <-errCh:
		return 0, err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (e *DockerExecutor) collectLogs(ctx context.Context, id string, result *ExecutionResult) {
	logs, err := e.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		e.logger.Warn().Err(err).Str("container_id", id).Msg("container logs unavailable")
		return
	}
	defer logs.Close()

	stdout := &cappedBuffer{limit: e.cfg.OutputLimit}
	stderr := &cappedBuffer{limit: e.cfg.OutputLimit}
	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		e.logger.Warn().Err(err).Str("container_id", id).Msg("container logs truncated")
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.OutputTruncated = stdout.truncated || stderr.truncated
}

func (e *DockerExecutor) collectStats(ctx context.Context, id string, result *ExecutionResult) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	stats, err := e.client.ContainerStatsOneShot(ctx, id)
	if err != nil {
		return
	}
	defer stats.Body.Close()

	var data types.StatsJSON
	if err := json.NewDecoder(stats.Body).Decode(&data); err != nil {
		return
	}
	result.MemoryUsageBytes = int64(data.MemoryStats.MaxUsage)
	if result.MemoryUsageBytes == 0 {
		result.MemoryUsageBytes = int64(data.MemoryStats.Usage)
	}
	result.CPUUsageNanosec = data.CPUStats.CPUUsage.TotalUsage
}

func (e *DockerExecutor) kill(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := e.client.ContainerKill(ctx, id, "KILL"); err != nil {
		e.logger.Warn().Err(err).Str("container_id", id).Msg("failed to kill timed out container")
	}
}

func (e *DockerExecutor) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := e.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
		e.logger.Error().Err(err).Str("container_id", id).Msg("failed to remove container")
	}
}

// Close releases the daemon connection.
func (e *DockerExecutor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

// cappedBuffer keeps the first limit bytes and silently drops the rest.
type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
