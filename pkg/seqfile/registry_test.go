package seqfile

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	dir := filepath.Join(t.TempDir(), "queue")

	producer, err := r.GetOrCreate(dir, "dat")
	require.NoError(t, err)
	require.NotNil(t, producer)
	assert.Equal(t, "dat", producer.Extension())

	consumer, err := r.GetOrCreate(dir + "/")
	require.NoError(t, err)
	assert.Same(t, producer, consumer)
	assert.Equal(t, 1, r.Len())

	n := producer.Reserve()
	producer.Enqueue(n)
	assert.Equal(t, n, consumer.Dequeue(true))

	other, err := r.GetOrCreate(dir + "2")
	require.NoError(t, err)
	assert.NotSame(t, producer, other)
	assert.Equal(t, 2, r.Len())
}

func TestRegistryClose(t *testing.T) {
	r := NewRegistry()
	dir := t.TempDir()

	first, err := r.GetOrCreate(dir)
	require.NoError(t, err)
	first.Close()

	_, ok := r.Lookup(dir)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())

	second, err := r.GetOrCreate(dir)
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	// a stale instance closing again must not evict its replacement
	first.Close()
	found, ok := r.Lookup(dir)
	require.True(t, ok)
	assert.Same(t, second, found)
}

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	r.Defaults.Pattern = "%x"

	s, err := r.GetOrCreate(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "%x", s.Pattern())

	r.Defaults.Pattern = "broken"
	_, err = r.GetOrCreate(t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidPattern)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryConcurrent(t *testing.T) {
	r := NewRegistry()
	dir := t.TempDir()

	const workers = 16
	got := make([]*SequentialFile, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			s, err := r.GetOrCreate(dir)
			if err == nil {
				got[i] = s
			}
		}(i)
	}
	wg.Wait()

	for _, s := range got {
		assert.Same(t, got[0], s)
	}
}
