// Package exec implements ports.Runner on top of os/exec.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	osexec "os/exec"
	"time"

	"github.com/corey/ccflags/internal/ports"
)

// DefaultTimeout bounds a single subprocess when the caller's context has
// no deadline. cmake on a large project is the slow case.
const DefaultTimeout = 5 * time.Minute

// Runner runs commands with combined stdout and stderr.
type Runner struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// New creates a runner with the default timeout.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Timeout: DefaultTimeout, Logger: logger.With("component", "exec")}
}

// Run executes cmd. A non-zero exit is reported through Result.ExitCode.
func (r *Runner) Run(ctx context.Context, cmd ports.Command) (ports.Result, error) {
	if cmd.Name == "" {
		return ports.Result{}, fmt.Errorf("run: empty command")
	}
	if _, ok := ctx.Deadline(); !ok && r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	c := osexec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.Stdin = bytes.NewReader(cmd.Stdin)
	c.WaitDelay = time.Second
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	start := time.Now()
	err := c.Run()
	log := r.logger()
	log.Debug("ran command", "name", cmd.Name, "args", cmd.Args, "dir", cmd.Dir, "elapsed", time.Since(start))

	var exitErr *osexec.ExitError
	switch {
	case err == nil:
		return ports.Result{Output: out.Bytes()}, nil
	case ctx.Err() != nil:
		return ports.Result{Output: out.Bytes()}, fmt.Errorf("run %s: %w", cmd.Name, ctx.Err())
	case errors.As(err, &exitErr):
		return ports.Result{Output: out.Bytes(), ExitCode: exitErr.ExitCode()}, nil
	default:
		return ports.Result{Output: out.Bytes()}, fmt.Errorf("run %s: %w", cmd.Name, err)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}
