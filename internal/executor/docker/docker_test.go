package docker_test

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/unityboard/internal/executor"
	"github.com/sakif/unityboard/internal/executor/docker"
)

// These tests talk to a real Docker daemon and pull images.
// Run with UNITYBOARD_DOCKER_TESTS=1.
func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("UNITYBOARD_DOCKER_TESTS") == "" {
		t.Skip("set UNITYBOARD_DOCKER_TESTS=1 to run sandbox tests")
	}
}

func TestDockerExecutor(t *testing.T) {
	requireDocker(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	cfg := docker.DefaultConfig()
	cfg.PoolSize = 1

	exec, err := docker.New(cfg, logger)
	require.NoError(t, err, "Should initialize docker executor without error")
	defer exec.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	t.Run("python", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{
			Language: "python",
			Code:     `print("Hello from test sandbox!")`,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "Hello from test sandbox!")
		assert.Empty(t, res.Stderr)
		assert.Greater(t, res.Duration, time.Duration(0))
	})

	t.Run("javascript", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{
			Language: "js",
			Code:     `console.log([1, 2, 3].map(n => n * 2).join(","))`,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "2,4,6")
	})

	t.Run("syntax error", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{
			Language: "python",
			Code:     `print("Missing parenthesis"`,
		})
		require.NoError(t, err)
		assert.NotEqual(t, 0, res.ExitCode)
		assert.Contains(t, res.Stderr, "SyntaxError")
		assert.Empty(t, res.Stdout)
	})

	t.Run("multiline logic", func(t *testing.T) {
		res, err := exec.Execute(ctx, executor.ExecutionRequest{
			Language: "python",
			Code: strings.Join([]string{
				"def fib(n):",
				"    if n <= 1: return n",
				"    return fib(n-1) + fib(n-2)",
				"print(fib(5))",
			}, "\n"),
		})
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Stdout, "5")
	})
}

func TestDockerExecutor_Timeout(t *testing.T) {
	requireDocker(t)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg := docker.DefaultConfig()
	cfg.PoolSize = 1
	cfg.Timeout = 2 * time.Second
	delete(cfg.Runtimes, executor.JavaScript)

	exec, err := docker.New(cfg, logger)
	require.NoError(t, err)
	defer exec.Close()

	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
		Language: "python",
		Code:     `while True: pass`,
	})
	require.NoError(t, err)
	assert.Equal(t, executor.TimedOutExitCode, res.ExitCode)
	assert.Contains(t, res.Stderr, "timed out")
}
