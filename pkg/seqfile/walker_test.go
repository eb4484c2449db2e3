package seqfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTree creates files (relative paths) under root.
func buildTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(f), 0644))
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestForEachEntry(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root, "a.txt", "sub/b.txt", "sub/deep/c.txt")

	w := walker{maxPathLen: 4096}
	var visited []string
	types := map[string]EntryType{}
	err := w.forEachEntry(root, func(path string, typ EntryType) error {
		rel := strings.TrimPrefix(path, root+"/")
		visited = append(visited, rel)
		types[rel] = typ
		return nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a.txt", "sub", "sub/b.txt", "sub/deep", "sub/deep/c.txt"}, visited)
	assert.Equal(t, EntryDir, types["sub/deep"])
	assert.Equal(t, EntryFile, types["sub/deep/c.txt"])

	// depth first, children before their directory
	assert.Less(t, indexOf(visited, "sub/deep/c.txt"), indexOf(visited, "sub/deep"))
	assert.Less(t, indexOf(visited, "sub/deep"), indexOf(visited, "sub"))
	assert.Less(t, indexOf(visited, "sub/b.txt"), indexOf(visited, "sub"))
}

func TestForEachEntryDeleteDuringWalk(t *testing.T) {
	root := t.TempDir()
	var files []string
	for i := 0; i < 50; i++ {
		files = append(files, filepath.Join("d", strings.Repeat("x", i%7+1)+string(rune('a'+i%26))+".bin"))
	}
	buildTree(t, root, append(files, "top1", "top2", "top3")...)

	w := walker{maxPathLen: 4096}
	var removed int
	err := w.forEachEntry(root, func(path string, typ EntryType) error {
		if typ == EntryFile {
			require.NoError(t, os.Remove(path))
			removed++
		}
		return nil
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(root, "d"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoFileExists(t, filepath.Join(root, "top1"))
	assert.Greater(t, removed, 3)
}

func TestForEachEntryStop(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root, "a", "b", "c")

	w := walker{maxPathLen: 4096}
	var calls int
	err := w.forEachEntry(root, func(path string, typ EntryType) error {
		calls++
		return ErrStopWalk
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestForEachEntryPathTooLong(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root, "short", "sub/a-rather-long-file-name.txt")

	w := walker{maxPathLen: len(root) + len("/sub/a")}
	err := w.forEachEntry(root, func(path string, typ EntryType) error {
		return nil
	})
	assert.ErrorIs(t, err, ErrPathTooLong)

	w = walker{maxPathLen: len(root) - 1}
	err = w.forEachEntry(root, func(path string, typ EntryType) error {
		t.Fatalf("visited %s", path)
		return nil
	})
	assert.ErrorIs(t, err, ErrPathTooLong)
}

func TestForEachEntryMissingRoot(t *testing.T) {
	w := walker{maxPathLen: 4096}
	err := w.forEachEntry(filepath.Join(t.TempDir(), "missing"), func(string, EntryType) error {
		return nil
	})
	assert.True(t, os.IsNotExist(err))
}

func TestFindLeaf(t *testing.T) {
	root := t.TempDir()
	w := walker{maxPathLen: 4096}

	_, found, err := w.findLeaf(root)
	require.NoError(t, err)
	assert.False(t, found)

	buildTree(t, root, "sub/deep/c.txt")
	leaf, found, err := w.findLeaf(root)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, root+"/sub/deep/c.txt", leaf)

	require.NoError(t, os.Remove(leaf))
	leaf, found, err = w.findLeaf(root)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, root+"/sub/deep", leaf)
}

func TestFindLeafDoesNotFollowLinks(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "queue")
	buildTree(t, base, "target/inner")
	require.NoError(t, os.Mkdir(root, 0755))
	require.NoError(t, os.Symlink(filepath.Join(base, "target"), filepath.Join(root, "link")))

	w := walker{maxPathLen: 4096}
	leaf, found, err := w.findLeaf(root)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, root+"/link", leaf)

	require.NoError(t, w.deleteAll(root, true))
	assert.NoDirExists(t, root)
	assert.FileExists(t, filepath.Join(base, "target", "inner"))
}

func TestDeleteAll(t *testing.T) {
	root := filepath.Join(t.TempDir(), "queue")
	buildTree(t, root, "00000001.dat", "00000001.sha1", "junk", "sub/a", "sub/deep/b", "empty/.keep")
	require.NoError(t, os.Mkdir(filepath.Join(root, "bare"), 0755))

	w := walker{maxPathLen: 4096}
	require.NoError(t, w.deleteAll(root, false))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)

	buildTree(t, root, "again")
	require.NoError(t, w.deleteAll(root, true))
	assert.NoDirExists(t, root)

	// nothing left to delete
	assert.NoError(t, w.deleteAll(root, true))
}

func TestDeleteAllPathTooLong(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root, "keep")

	w := walker{maxPathLen: len(root) - 1}
	assert.ErrorIs(t, w.deleteAll(root, true), ErrPathTooLong)
	assert.FileExists(t, filepath.Join(root, "keep"))
}
