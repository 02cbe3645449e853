package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/victor-base/victordb"
)

func TestLayoutPaths(t *testing.T) {
	l, err := NewLayout("/data", "mydb")
	require.Nil(t, err)
	assert.Equal(t, "/data/mydb", l.Dir())
	assert.Equal(t, "/data/mydb/db.index", l.IndexSnapshot())
	assert.Equal(t, "/data/mydb/db.table", l.TableSnapshot())
	assert.Equal(t, "/data/mydb/db.iwal", l.IndexWAL())
	assert.Equal(t, "/data/mydb/db.twal", l.TableWAL())
	assert.Equal(t, "/data/mydb/socket.unix", l.Socket())
}

func TestLayoutRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "a/b", "..", ".hidden"} {
		_, err := NewLayout("/data", name)
		assert.ErrorIs(t, err, victordb.ErrIllegalArgument, name)
	}
}

func TestRootFromEnvironment(t *testing.T) {
	t.Setenv(RootEnv, "/tmp/victor-test")
	assert.Equal(t, "/tmp/victor-test", Root())

	t.Setenv(RootEnv, "")
	assert.Equal(t, DefaultRoot, Root())

	t.Run("layout uses resolved root", func(t *testing.T) {
		t.Setenv(RootEnv, "/somewhere")
		l, err := NewLayout("", "db")
		require.Nil(t, err)
		assert.Equal(t, "/somewhere/db", l.Dir())
	})
}

func TestEnsureDirPermissions(t *testing.T) {
	root := t.TempDir()
	l, err := NewLayout(root, "secure")
	require.Nil(t, err)
	require.Nil(t, l.EnsureDir())

	info, err := os.Stat(filepath.Join(root, "secure"))
	require.Nil(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	// Idempotent on an existing directory.
	assert.Nil(t, l.EnsureDir())
}

func TestLockExcludesSecondHolder(t *testing.T) {
	l, err := NewLayout(t.TempDir(), "locked")
	require.Nil(t, err)
	require.Nil(t, l.EnsureDir())

	lock, err := l.Acquire()
	require.Nil(t, err)
	defer lock.Release()

	// flock locks belong to the open file description, so a second acquire
	// is refused even from the same process while the first is held.
	_, err = l.Acquire()
	assert.NotNil(t, err)

	assert.Nil(t, lock.Release())

	again, err := l.Acquire()
	assert.Nil(t, err)
	assert.Nil(t, again.Release())
}
