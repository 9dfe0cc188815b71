package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appclock.pid")
	d := New(path)

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Zero(t, pid)

	require.NoError(t, d.WritePID())
	pid, err = d.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, pid, err := d.IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, d.RemovePID())
	require.NoError(t, d.RemovePID())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStalePIDFileIsRemoved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appclock.pid")
	require.NoError(t, os.WriteFile(path, []byte("2147483646\n"), 0644))

	d := New(path)
	running, _, err := d.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, d.Stop())
}

func TestInvalidPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appclock.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	_, err := New(path).ReadPID()
	assert.Error(t, err)
}

func TestIsChild(t *testing.T) {
	t.Setenv(ChildEnv, "1")
	assert.True(t, IsChild())

	t.Setenv(ChildEnv, "")
	assert.False(t, IsChild())
}

func TestSpawnRequiresCommand(t *testing.T) {
	_, err := Spawn(nil, filepath.Join(t.TempDir(), "out.log"))
	assert.Error(t, err)
}
