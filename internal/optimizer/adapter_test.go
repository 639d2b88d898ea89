package optimizer_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optimization-service/internal/entity"
	"optimization-service/internal/optimizer"
)

// TestHelperProcess stands in for the optimizer binary when re-executed by
// helperAdapter.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	switch os.Getenv("HELPER_MODE") {
	case "json":
		fmt.Println(`{"deduplicated": 3, "merged": 1}`)
	case "args":
		fmt.Print(strings.Join(args, " "))
	case "analysis":
		fmt.Println("duplicate: 4")
		fmt.Println("outdated: 6")
	case "crash":
		fmt.Fprint(os.Stderr, "optimizer crashed")
		os.Exit(3)
	case "sleep":
		time.Sleep(10 * time.Second)
	}
	os.Exit(0)
}

func helperAdapter(mode string, timeout time.Duration) *optimizer.CLIAdapter {
	return optimizer.NewCLIAdapter(optimizer.Config{
		Binary:   os.Args[0],
		BaseArgs: []string{"-test.run=TestHelperProcess", "--"},
		Timeout:  timeout,
		Env:      []string{"GO_WANT_HELPER_PROCESS=1", "HELPER_MODE=" + mode},
	}, zerolog.Nop())
}

func TestBuildArgs(t *testing.T) {
	args := optimizer.BuildArgs(entity.OptimizationRequest{
		MemoryType:          "factual",
		UserID:              "u1",
		AgentID:             "a1",
		RunID:               "r1",
		ActorID:             "act",
		SimilarityThreshold: 0.85,
		DryRun:              true,
		Verbose:             true,
	})

	assert.Equal(t, []string{
		"--memory-type", "factual",
		"--user-id", "u1",
		"--agent-id", "a1",
		"--run-id", "r1",
		"--actor-id", "act",
		"--similarity-threshold", "0.85",
		"--dry-run",
		"--verbose",
	}, args)
}

func TestBuildArgs_OmitsEmpty(t *testing.T) {
	assert.Empty(t, optimizer.BuildArgs(entity.OptimizationRequest{}))
}

func TestCLIAdapter_RunSuccess(t *testing.T) {
	out, err := helperAdapter("json", 0).Run(context.Background(), entity.OptimizationRequest{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ExitCode)

	res, info := optimizer.ParseResult(out.Stdout)
	assert.True(t, info.Structured)
	assert.Equal(t, float64(3), res.Deduplicated)
	assert.Equal(t, float64(1), res.Merged)
}

func TestCLIAdapter_PassesFlags(t *testing.T) {
	out, err := helperAdapter("args", 0).Run(context.Background(), entity.OptimizationRequest{UserID: "u9", Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, "--user-id u9 --verbose", out.Stdout)
}

func TestCLIAdapter_NonZeroExit(t *testing.T) {
	out, err := helperAdapter("crash", 0).Run(context.Background(), entity.OptimizationRequest{})
	require.Error(t, err)

	var ie *optimizer.InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 3, ie.ExitCode)
	assert.Equal(t, 3, out.ExitCode)
	assert.False(t, ie.TimedOut)
	assert.Contains(t, err.Error(), "optimizer crashed")
}

func TestCLIAdapter_Timeout(t *testing.T) {
	_, err := helperAdapter("sleep", 200*time.Millisecond).Run(context.Background(), entity.OptimizationRequest{})

	var ie *optimizer.InvocationError
	require.True(t, errors.As(err, &ie))
	assert.True(t, ie.TimedOut)
	assert.Contains(t, err.Error(), "timed out")
}

func TestCLIAdapter_BinaryMissing(t *testing.T) {
	a := optimizer.NewCLIAdapter(optimizer.Config{Binary: "/nonexistent/cortex-mem-cli"}, zerolog.Nop())
	_, err := a.Run(context.Background(), entity.OptimizationRequest{})

	var ie *optimizer.InvocationError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "invocation failed")
}

func TestCLIAdapter_Analyze(t *testing.T) {
	a, err := helperAdapter("analysis", 0).Analyze(context.Background(), entity.OptimizationRequest{})
	require.NoError(t, err)
	require.Len(t, a.Issues, 2)
	assert.Equal(t, 10, a.Summary.TotalAffectedMemories)
	assert.Equal(t, 1, a.Summary.EstimatedDurationMinutes)
}

func TestCLIAdapter_AnalyzeFailure(t *testing.T) {
	_, err := helperAdapter("crash", 0).Analyze(context.Background(), entity.OptimizationRequest{})
	var ie *optimizer.InvocationError
	assert.True(t, errors.As(err, &ie))
}
