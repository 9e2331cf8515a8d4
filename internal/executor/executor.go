// Package executor runs snippet code in an isolated sandbox.
//
// The interface is implemented by executor/docker. The server only builds one
// when the sandbox is enabled; with a nil Executor, SnippetService.Run reports
// a validation error instead of a 5xx.
package executor

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Supported languages.
const (
	Python     = "python"
	JavaScript = "javascript"
)

// ErrUnsupportedLanguage is returned for languages without a sandbox runtime.
var ErrUnsupportedLanguage = errors.New("executor: unsupported language")

// ExecutionRequest is one run of a snippet.
type ExecutionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecutionResult is the captured output of a run. ExitCode 124 means the run
// hit the timeout.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

// TimedOutExitCode mirrors the exit status of coreutils timeout(1).
const TimedOutExitCode = 124

type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// NormalizeLanguage maps common aliases to a supported language name.
func NormalizeLanguage(lang string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "python", "python3", "py":
		return Python, true
	case "javascript", "js", "node", "nodejs":
		return JavaScript, true
	}
	return "", false
}
