package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/unityboard/internal/executor"
	"github.com/sakif/unityboard/internal/handler"
	"github.com/sakif/unityboard/internal/repository/sqlite"
	"github.com/sakif/unityboard/internal/service"
)

// MockExecutor is a fast in-process executor for handler tests without Docker.
type MockExecutor struct {
	CapturedReq executor.ExecutionRequest
	ReturnRes   *executor.ExecutionResult
	ReturnErr   error
}

func (m *MockExecutor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	m.CapturedReq = req
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecuteHandler(t *testing.T, exec executor.Executor) *handler.ExecuteHandler {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := discardLogger()
	return handler.NewExecuteHandler(service.NewSnippetService(db, exec, logger), logger)
}

func postExecute(h *handler.ExecuteHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/snippets/run", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.HandleExecute(rr, req)
	return rr
}

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Field string `json:"field"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestExecuteHandler_HandleExecute(t *testing.T) {
	t.Run("valid execution", func(t *testing.T) {
		mockExec := &MockExecutor{
			ReturnRes: &executor.ExecutionResult{
				Stdout:   "Hello World\n",
				ExitCode: 0,
				Duration: 100 * time.Millisecond,
			},
		}
		h := newExecuteHandler(t, mockExec)

		rr := postExecute(h, `{"language":"py","code":"print('Hello World')"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			OK     bool                     `json:"ok"`
			Result executor.ExecutionResult `json:"result"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.True(t, body.OK)
		assert.Equal(t, "Hello World\n", body.Result.Stdout)
		assert.Equal(t, 0, body.Result.ExitCode)

		assert.Equal(t, "print('Hello World')", mockExec.CapturedReq.Code)
		assert.Equal(t, executor.Python, mockExec.CapturedReq.Language)
	})

	t.Run("non-zero exit is still a success", func(t *testing.T) {
		h := newExecuteHandler(t, &MockExecutor{
			ReturnRes: &executor.ExecutionResult{Stderr: "boom", ExitCode: 1},
		})
		rr := postExecute(h, `{"language":"javascript","code":"throw 1"}`)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("invalid request body", func(t *testing.T) {
		h := newExecuteHandler(t, &MockExecutor{})
		rr := postExecute(h, `{"invalid_json":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeError(t, rr)
		assert.False(t, body.OK)
		assert.Equal(t, "Invalid JSON body", body.Error)
	})

	t.Run("empty code", func(t *testing.T) {
		h := newExecuteHandler(t, &MockExecutor{})
		rr := postExecute(h, `{"language":"python","code":""}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "code", decodeError(t, rr).Field)
	})

	t.Run("unsupported language", func(t *testing.T) {
		mockExec := &MockExecutor{}
		h := newExecuteHandler(t, mockExec)
		rr := postExecute(h, `{"language":"cobol","code":"DISPLAY 'HI'"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "language", decodeError(t, rr).Field)
		assert.Empty(t, mockExec.CapturedReq.Code, "executor must not be called")
	})

	t.Run("sandbox disabled", func(t *testing.T) {
		h := newExecuteHandler(t, nil)
		rr := postExecute(h, `{"language":"python","code":"print(1)"}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("executor failure hides the cause", func(t *testing.T) {
		h := newExecuteHandler(t, &MockExecutor{ReturnErr: errors.New("docker: connection refused")})
		rr := postExecute(h, `{"language":"python","code":"print(1)"}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "docker")
		assert.Equal(t, "Server error", decodeError(t, rr).Error)
	})
}
