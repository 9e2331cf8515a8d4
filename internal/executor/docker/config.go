package docker

import (
	"time"

	"github.com/sakif/unityboard/internal/executor"
)

// Runtime describes how to run code for one language.
type Runtime struct {
	// Image is the Docker image the pool pre-warms.
	Image string
	// Command is prefixed to the source code, e.g. ["python", "-c"].
	Command []string
}

// Config holds the configuration for Docker execution.
type Config struct {
	// Runtimes maps a normalised language name to its runtime.
	Runtimes map[string]Runtime
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// Timeout bounds a single execution.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers kept per language.
	PoolSize int
}

// DefaultConfig sandboxes Python and JavaScript snippets.
func DefaultConfig() Config {
	return Config{
		Runtimes: map[string]Runtime{
			executor.Python: {
				Image:   "python:3.12-alpine",
				Command: []string{"python", "-c"},
			},
			executor.JavaScript: {
				Image:   "node:22-alpine",
				Command: []string{"node", "-e"},
			},
		},
		// 128 MB memory limit
		MemoryLimit: 128 * 1024 * 1024,
		CPULimit:    0.5,
		Timeout:     5 * time.Second,
		PoolSize:    2,
	}
}

// command builds the exec argv for code.
func (r Runtime) command(code string) []string {
	cmd := make([]string, 0, len(r.Command)+1)
	cmd = append(cmd, r.Command...)
	return append(cmd, code)
}
