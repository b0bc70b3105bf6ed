package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutWritesFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	uri, err := l.Put(context.Background(), "raw/pikachu.json", "application/json", []byte(`{"id":25}`))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "raw", "pikachu.json"), uri)

	data, err := os.ReadFile(filepath.Join(dir, "raw", "pikachu.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":25}`, string(data))
}

func TestLocalPutRejectsTraversal(t *testing.T) {
	t.Parallel()

	l, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = l.Put(context.Background(), "../escape.json", "", []byte("x"))
	require.Error(t, err)
}

func TestWithPrefixNestsKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	a := WithPrefix(l, "raw")
	uri, err := a.Put(context.Background(), "pikachu.json", "application/json", []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "raw", "pikachu.json"), uri)
}

func TestNewLocalCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "archive")
	_, err := NewLocal(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
