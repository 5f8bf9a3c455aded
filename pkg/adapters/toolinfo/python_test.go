package toolinfo

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fakePythonLoader(t *testing.T, run commandRunner) *PythonLoader {
	t.Helper()
	l := NewPythonLoader(PythonConfig{Timeout: time.Second, MockedAttributes: []string{"tau_bench.envs.tool.Tool"}}, zap.NewNop())
	l.run = run
	return l
}

func TestPythonLoader_PassesScriptArguments(t *testing.T) {
	var gotName string
	var gotArgs []string
	l := fakePythonLoader(t, func(ctx context.Context, name string, args ...string) (commandResult, error) {
		gotName, gotArgs = name, args
		return commandResult{Stdout: []byte(`{"function": {"name": "get_user", "parameters": {"properties": {"user_id": {"type": "string"}}, "required": ["user_id"]}}}`)}, nil
	})

	info, err := l.Load(context.Background(), NewLoadRequest("interface_1", "/base/interface_1/get_user.py"))
	require.NoError(t, err)
	assert.False(t, info.NameMismatch)
	require.Len(t, info.Params, 1)
	assert.False(t, info.Params[0].Optional)

	assert.Equal(t, "python3", gotName)
	require.Len(t, gotArgs, 6)
	assert.Equal(t, "-c", gotArgs[0])
	assert.Equal(t, introspectScript, gotArgs[1])
	assert.Equal(t, []string{
		"/base/interface_1/get_user.py",
		"_toolload.interface_1.get_user",
		"GetUser",
		`["tau_bench.envs.tool.Tool"]`,
	}, gotArgs[2:])
}

func TestPythonLoader_ExitCodes(t *testing.T) {
	tests := []struct {
		code   int
		reason string
	}{
		{3, ReasonImportFailed},
		{4, ReasonClassMissing},
		{5, ReasonAccessorMissing},
		{6, ReasonAccessorFailed},
		{7, ReasonInvalidSchema},
		{1, ReasonImportFailed},
	}
	for _, tt := range tests {
		l := fakePythonLoader(t, func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{ExitCode: tt.code, Stderr: []byte("Traceback (most recent call last):\n  ...\nValueError: boom\n")}, nil
		})
		_, err := l.Load(context.Background(), NewLoadRequest("i", "/x/get_user.py"))
		var le *LoadError
		require.True(t, errors.As(err, &le), "exit %d", tt.code)
		assert.Equal(t, tt.reason, le.Reason, "exit %d", tt.code)
		require.Error(t, le.Err)
		assert.Equal(t, "ValueError: boom", le.Err.Error())
	}
}

func TestPythonLoader_InvalidOutput(t *testing.T) {
	l := fakePythonLoader(t, func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{Stdout: []byte("not json")}, nil
	})
	_, err := l.Load(context.Background(), NewLoadRequest("i", "/x/get_user.py"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ReasonInvalidSchema, le.Reason)
}

func TestPythonLoader_Timeout(t *testing.T) {
	l := fakePythonLoader(t, func(ctx context.Context, name string, args ...string) (commandResult, error) {
		<-ctx.Done()
		return commandResult{}, ctx.Err()
	})
	l.config.Timeout = 10 * time.Millisecond

	_, err := l.Load(context.Background(), NewLoadRequest("i", "/x/get_user.py"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ReasonTimeout, le.Reason)
}

func TestPythonLoader_CallerCancellationIsNotASkip(t *testing.T) {
	l := fakePythonLoader(t, func(ctx context.Context, name string, args ...string) (commandResult, error) {
		return commandResult{}, ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, NewLoadRequest("i", "/x/get_user.py"))
	assert.ErrorIs(t, err, context.Canceled)
	var le *LoadError
	assert.False(t, errors.As(err, &le))
}

func TestPythonLoader_MissingInterpreterIsNotASkip(t *testing.T) {
	l := NewPythonLoader(PythonConfig{Binary: "/nonexistent/python-for-tests"}, zap.NewNop())
	_, err := l.Load(context.Background(), NewLoadRequest("i", "/x/get_user.py"))
	require.Error(t, err)
	var le *LoadError
	assert.False(t, errors.As(err, &le))
}

func TestPythonLoader_RealInterpreter(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	dir := t.TempDir()
	path := writeTool(t, dir, "interface_1", "get_user.py", literalTool)

	l := NewPythonLoader(PythonConfig{MockedAttributes: []string{"tau_bench.envs.tool.Tool"}}, zap.NewNop())
	info, err := l.Load(context.Background(), NewLoadRequest("interface_1", path))
	require.NoError(t, err)
	assert.False(t, info.NameMismatch)
	require.Len(t, info.Params, 1)
	assert.Equal(t, "user_id", info.Params[0].Name)
	assert.Equal(t, "str", info.Params[0].Type)

	broken := writeTool(t, dir, "interface_1", "broken_tool.py", "import does_not_exist\n")
	_, err = l.Load(context.Background(), NewLoadRequest("interface_1", broken))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ReasonImportFailed, le.Reason)
}
