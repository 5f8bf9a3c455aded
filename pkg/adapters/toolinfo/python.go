package toolinfo

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sanity/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-sanity/pkg/logging"
	"github.com/ekaya-inc/ekaya-sanity/pkg/models"
)

//go:embed introspect.py
var introspectScript string

const maxStderrLogLength = 500

// exitReasons maps the introspection script's exit codes to skip reasons.
var exitReasons = map[int]string{
	3: ReasonImportFailed,
	4: ReasonClassMissing,
	5: ReasonAccessorMissing,
	6: ReasonAccessorFailed,
	7: ReasonInvalidSchema,
}

// PythonConfig configures interpreter-based introspection.
type PythonConfig struct {
	Binary  string        // default "python3"
	Timeout time.Duration // per file; default 10s
	// MockedAttributes are dotted module.attribute paths replaced by object
	// before import, e.g. "tau_bench.envs.tool.Tool".
	MockedAttributes []string
}

// commandResult is the outcome of one interpreter run.
type commandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// commandRunner runs a process; a non-zero exit is reported in ExitCode, not as an error.
type commandRunner func(ctx context.Context, name string, args ...string) (commandResult, error)

func runCommand(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	res := commandResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	return res, err
}

// PythonLoader imports each file in a fresh interpreter and calls get_info().
type PythonLoader struct {
	config PythonConfig
	run    commandRunner
	logger *zap.Logger
}

var _ Loader = (*PythonLoader)(nil)

// NewPythonLoader creates a loader that executes files with a Python interpreter.
func NewPythonLoader(config PythonConfig, logger *zap.Logger) *PythonLoader {
	if config.Binary == "" {
		config.Binary = "python3"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &PythonLoader{
		config: config,
		run:    runCommand,
		logger: logger.Named("python-loader"),
	}
}

func (l *PythonLoader) Load(ctx context.Context, req LoadRequest) (*models.ToolInfo, error) {
	mocked, err := json.Marshal(nonNil(l.config.MockedAttributes))
	if err != nil {
		return nil, err
	}
	moduleName := fmt.Sprintf("_toolload.%s.%s", req.Interface, req.APIName)

	runCtx, cancel := context.WithTimeout(ctx, l.config.Timeout)
	defer cancel()

	start := time.Now()
	res, err := l.run(runCtx, l.config.Binary, "-c", introspectScript, req.Path, moduleName, req.ClassName, string(mocked))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, loadError(ReasonTimeout, req.Path, fmt.Errorf("exceeded %s", l.config.Timeout))
		}
		return nil, fmt.Errorf("run %s: %w", l.config.Binary, err)
	}

	if res.ExitCode != 0 {
		full := strings.TrimSpace(string(res.Stderr))
		stderr := logging.TruncateString(full, maxStderrLogLength)
		reason, known := exitReasons[res.ExitCode]
		if !known {
			reason = ReasonImportFailed
		}
		l.logger.Debug("Introspection script failed",
			zap.String("path", req.Path),
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", stderr))
		var cause error
		if full != "" {
			cause = errors.New(logging.TruncateString(lastLine(full), maxStderrLogLength))
		}
		return nil, loadError(reason, req.Path, cause)
	}

	info, err := jsonutil.Parse(bytes.TrimSpace(res.Stdout))
	if err != nil {
		return nil, loadError(ReasonInvalidSchema, req.Path, err)
	}

	l.logger.Debug("Introspected tool",
		zap.String("interface", req.Interface),
		zap.String("api_name", req.APIName),
		zap.Duration("elapsed", time.Since(start)))
	return FromInfo(req, info)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// lastLine returns the final line of a traceback: the exception itself.
func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
