package optimizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"optimization-service/internal/entity"
)

type Config struct {
	// Binary is the optimizer executable, looked up in PATH when not absolute.
	Binary string
	// BaseArgs precede the request flags, normally the "optimize" subcommand.
	BaseArgs []string
	// Timeout bounds one invocation. Zero means no limit.
	Timeout time.Duration
	// Env is appended to the current process environment.
	Env []string
}

// Output is what one invocation of the optimizer produced.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Elapsed  time.Duration
}

// InvocationError reports an optimizer run that could not be started,
// exited non-zero or ran out of time.
type InvocationError struct {
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *InvocationError) Error() string {
	var b strings.Builder
	switch {
	case e.TimedOut:
		b.WriteString("optimizer timed out")
	case e.ExitCode > 0:
		b.WriteString("optimizer exited with code " + strconv.Itoa(e.ExitCode))
	default:
		b.WriteString("optimizer invocation failed")
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		b.WriteString(": " + s)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *InvocationError) Unwrap() error { return e.Err }

// CLIAdapter shells out to the memory optimizer command.
type CLIAdapter struct {
	cfg Config
	log zerolog.Logger
}

func NewCLIAdapter(cfg Config, logger zerolog.Logger) *CLIAdapter {
	if cfg.Binary == "" {
		cfg.Binary = "cortex-mem-cli"
	}
	if cfg.BaseArgs == nil {
		cfg.BaseArgs = []string{"optimize"}
	}
	return &CLIAdapter{cfg: cfg, log: logger.With().Str("component", "optimizer").Logger()}
}

// BuildArgs maps a request onto the optimizer's flags. Empty values are omitted.
func BuildArgs(req entity.OptimizationRequest) []string {
	var args []string
	add := func(flag, v string) {
		if v != "" {
			args = append(args, flag, v)
		}
	}
	add("--memory-type", req.MemoryType)
	add("--user-id", req.UserID)
	add("--agent-id", req.AgentID)
	add("--run-id", req.RunID)
	add("--actor-id", req.ActorID)
	if req.SimilarityThreshold > 0 {
		args = append(args, "--similarity-threshold", strconv.FormatFloat(req.SimilarityThreshold, 'f', -1, 64))
	}
	if req.DryRun {
		args = append(args, "--dry-run")
	}
	if req.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// Run invokes the optimizer and waits for it to exit. Failures come back as
// *InvocationError; Run never panics on a misbehaving process.
func (a *CLIAdapter) Run(ctx context.Context, req entity.OptimizationRequest) (Output, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	args := append(append([]string{}, a.cfg.BaseArgs...), BuildArgs(req)...)
	cmd := exec.CommandContext(ctx, a.cfg.Binary, args...)
	if len(a.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), a.cfg.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	a.log.Debug().Str("binary", a.cfg.Binary).Strs("args", args).Msg("executing optimizer")

	start := time.Now()
	runErr := cmd.Run()
	out := Output{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}
	if cmd.ProcessState != nil {
		out.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr != nil {
		ie := &InvocationError{ExitCode: out.ExitCode, Stderr: out.Stderr, Err: runErr}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			ie.TimedOut = true
		}
		a.log.Warn().Err(runErr).Int("exit_code", out.ExitCode).
			Int64("duration_ms", out.Elapsed.Milliseconds()).Msg("optimizer failed")
		return out, ie
	}

	if s := strings.TrimSpace(out.Stderr); s != "" && !strings.Contains(strings.ToLower(s), "warning") {
		a.log.Warn().Str("stderr", s).Msg("optimizer wrote to stderr")
	}
	a.log.Debug().Int64("duration_ms", out.Elapsed.Milliseconds()).Msg("optimizer finished")
	return out, nil
}

// ParseResult lets the adapter be handed around as the executor's single
// dependency on the optimizer.
func (a *CLIAdapter) ParseResult(raw string) (entity.OptimizationResult, ParseInfo) {
	return ParseResult(raw)
}

// Analyze runs the optimizer in preview mode and reports the issues it would fix.
func (a *CLIAdapter) Analyze(ctx context.Context, req entity.OptimizationRequest) (entity.Analysis, error) {
	req.DryRun = true
	req.Verbose = true
	out, err := a.Run(ctx, req)
	if err != nil {
		return entity.Analysis{}, fmt.Errorf("analyze: %w", err)
	}
	return ParseAnalysis(out.Stdout), nil
}
