package exec

import (
	"context"
	osexec "os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/ccflags/internal/ports"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := osexec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunner_CombinedOutput(t *testing.T) {
	requireShell(t)
	r := New(nil)
	res, err := r.Run(context.Background(), ports.Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err 1>&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, string(res.Output), "out")
	assert.Contains(t, string(res.Output), "err")
}

func TestRunner_NonZeroExitIsNotAnError(t *testing.T) {
	requireShell(t)
	res, err := New(nil).Run(context.Background(), ports.Command{
		Name: "sh",
		Args: []string{"-c", "echo failing; exit 3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, string(res.Output), "failing")
}

func TestRunner_DirEnvAndStdin(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	res, err := New(nil).Run(context.Background(), ports.Command{
		Name:  "sh",
		Args:  []string{"-c", "pwd; echo $CCFLAGS_TEST_VAR; cat"},
		Dir:   dir,
		Env:   []string{"CCFLAGS_TEST_VAR=hello"},
		Stdin: []byte("from-stdin"),
	})
	require.NoError(t, err)
	out := string(res.Output)
	assert.Contains(t, out, dir)
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "from-stdin")
}

func TestRunner_MissingBinary(t *testing.T) {
	_, err := New(nil).Run(context.Background(), ports.Command{Name: "ccflags-no-such-binary"})
	assert.Error(t, err)
}

func TestRunner_EmptyName(t *testing.T) {
	_, err := New(nil).Run(context.Background(), ports.Command{})
	assert.Error(t, err)
}

func TestRunner_Timeout(t *testing.T) {
	requireShell(t)
	r := &Runner{Timeout: 50 * time.Millisecond}
	start := time.Now()
	_, err := r.Run(context.Background(), ports.Command{Name: "sh", Args: []string{"-c", "exec sleep 5"}})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 4*time.Second)
}
