package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	require.NoError(t, Write(dir, 4242))
	pid, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
}

func TestRead_Invalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("not a pid"), 0600))

	_, err := Read(dir)
	assert.Error(t, err)
}

func TestIsRunning(t *testing.T) {
	assert.True(t, IsRunning(os.Getpid()))
	assert.False(t, IsRunning(0))
	assert.False(t, IsRunning(-1))
}

func TestAcquire(t *testing.T) {
	dir := t.TempDir()

	release, err := Acquire(dir)
	require.NoError(t, err)

	pid, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, release())
	_, err = os.Stat(Path(dir))
	assert.True(t, os.IsNotExist(err))
}

func TestAcquire_StaleFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(Path(dir), []byte("garbage"), 0600))

	release, err := Acquire(dir)
	require.NoError(t, err)
	defer func() { _ = release() }()

	pid, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquire_LiveOwner(t *testing.T) {
	dir := t.TempDir()
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, Write(dir, os.Getppid()))

	_, err := Acquire(dir)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestRemove_Missing(t *testing.T) {
	assert.NoError(t, Remove(t.TempDir()))
}
