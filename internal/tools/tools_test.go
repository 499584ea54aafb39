package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCreatesRootAndReturnsReleasableTools(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "work")

	tl, release, err := Acquire(root)
	require.NoError(t, err)
	defer release()

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, root, tl.Cwd())
}

func TestPushCwdAndRelease(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	tl := New(root)
	scope := tl.PushCwd("sub")
	assert.Equal(t, sub, tl.Cwd())

	scope.Release()
	assert.Equal(t, root, tl.Cwd())
}

func TestPushCwdNestingUnwindsInReverseOrder(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	tl := New(root)
	outer := tl.PushCwd("a")
	inner := tl.PushCwd("b")
	assert.Equal(t, filepath.Join(root, "a", "b"), tl.Cwd())

	inner.Release()
	assert.Equal(t, filepath.Join(root, "a"), tl.Cwd())

	outer.Release()
	assert.Equal(t, root, tl.Cwd())
}

func TestScopeReleaseIsIdempotent(t *testing.T) {
	tl := New(t.TempDir())
	scope := tl.PushCwd("x")
	before := tl.Cwd()

	scope.Release()
	after := tl.Cwd()
	scope.Release()

	assert.NotEqual(t, before, after)
	assert.Equal(t, after, tl.Cwd())
}

func TestRunCapturesStdout(t *testing.T) {
	tl := New(t.TempDir())
	res, err := tl.Run(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Stdout)
}

func TestPrimaryOutputPrefersStderr(t *testing.T) {
	assert.Equal(t, "err", PrimaryOutput(Result{Stdout: "out", Stderr: "err"}))
	assert.Equal(t, "out", PrimaryOutput(Result{Stdout: "out"}))
}

func TestPushEnvIsVisibleToSubprocess(t *testing.T) {
	tl := New(t.TempDir())
	scope := tl.PushEnv(map[string]string{"JOLT_TEST_VAR": "present"})
	defer scope.Release()

	res, err := tl.RunShell(context.Background(), "echo $JOLT_TEST_VAR")
	require.NoError(t, err)
	assert.Equal(t, "present", res.Stdout)
}
