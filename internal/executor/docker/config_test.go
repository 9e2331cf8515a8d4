package docker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/unityboard/internal/executor"
)

func TestRuntimeCommand(t *testing.T) {
	rt := DefaultConfig().Runtimes[executor.Python]
	assert.Equal(t, []string{"python", "-c", "print(1)"}, rt.command("print(1)"))
	// The configured prefix must not be mutated between calls.
	assert.Equal(t, []string{"python", "-c"}, rt.Command)
}

func TestDefaultConfig_CoversSupportedLanguages(t *testing.T) {
	cfg := DefaultConfig()
	for _, lang := range []string{executor.Python, executor.JavaScript} {
		rt, ok := cfg.Runtimes[lang]
		assert.True(t, ok, lang)
		assert.NotEmpty(t, rt.Image, lang)
	}
}

func TestExecute_UnsupportedLanguage(t *testing.T) {
	e := &Executor{config: DefaultConfig()}
	_, err := e.Execute(context.Background(), executor.ExecutionRequest{Language: "cobol", Code: "x"})
	assert.ErrorIs(t, err, executor.ErrUnsupportedLanguage)

	// Known language without a running pool.
	_, err = e.Execute(context.Background(), executor.ExecutionRequest{Language: "python", Code: "x"})
	assert.ErrorIs(t, err, executor.ErrUnsupportedLanguage)
}

func TestNextRetry_DoublesUpToCap(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextRetry(time.Second))
	assert.Equal(t, maxRetry, nextRetry(20*time.Second))
	assert.Equal(t, maxRetry, nextRetry(maxRetry))
}

func TestPoolAcquire_HonoursContext(t *testing.T) {
	p := NewPool(nil, executor.Python, DefaultConfig().Runtimes[executor.Python], Config{PoolSize: 1}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	p.ready <- "warm-1"
	id, err := p.Acquire(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "warm-1", id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolStop_BeforeStartIsNoop(t *testing.T) {
	p := NewPool(nil, executor.Python, Runtime{}, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.Stop()
	assert.Equal(t, 1, cap(p.ready))
}
