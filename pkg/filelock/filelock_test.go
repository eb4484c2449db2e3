package filelock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForDir(t *testing.T) {
	assert.Equal(t, "/var/queue.lock", ForDir("/var/queue/").Path())
	assert.Equal(t, "/var/queue.lock", ForDir("/var/queue").Path())
}

func TestLockExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "queue")

	first := ForDir(dir)
	require.NoError(t, first.Lock())

	second := ForDir(dir)
	ok, err := second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock())

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00000001.dat")

	n, err := AtomicWrite(path, strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestAtomicWriteFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "00000001.dat")

	_, err := AtomicWrite(path, failingReader{})
	assert.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
