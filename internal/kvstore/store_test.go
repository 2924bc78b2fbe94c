package kvstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get("missing")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete("missing"), ErrNotFound)
			assert.Error(t, s.Set("", []byte("x")))

			require.NoError(t, s.Set("template/user-a", []byte("A")))
			require.NoError(t, s.Set("template/user-b", []byte("B")))
			require.NoError(t, s.Set("image/logo.png", []byte("data:...")))
			require.NoError(t, s.Set("template/user-a", []byte("A2")))

			v, err := GetString(s, "template/user-a")
			require.NoError(t, err)
			assert.Equal(t, "A2", v)

			keys, err := s.Keys("template/")
			require.NoError(t, err)
			assert.Equal(t, []string{"template/user-a", "template/user-b"}, keys)

			all, err := s.Keys("")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			n, err := DeletePrefix(s, "template/")
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			keys, err = s.Keys("template/")
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestStoreRejectsDirectoryKeys(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"", ".", ".."} {
				assert.ErrorIs(t, s.Set(key, []byte("x")), ErrInvalidKey, key)
				_, err := s.Get(key)
				assert.ErrorIs(t, err, ErrInvalidKey, key)
				assert.ErrorIs(t, s.Delete(key), ErrInvalidKey, key)
			}

			require.NoError(t, s.Set("..x", []byte("ok")))
			v, err := GetString(s, "..x")
			require.NoError(t, err)
			assert.Equal(t, "ok", v)
		})
	}
}

func TestFileStoreStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	s, err := NewFileStore(filepath.Join(parent, "store"))
	require.NoError(t, err)

	assert.Error(t, s.Set("..", []byte("x")))
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "store", entries[0].Name())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, s.Set("k", value))
	value[0] = 'x'

	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'y'
	again, _ := s.Get("k")
	assert.Equal(t, "abc", string(again))
}

func TestFileStoreEscapesKeys(t *testing.T) {
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)

	require.NoError(t, s.Set("image/my chart.png", []byte("x")))

	_, err = os.Stat(filepath.Join(root, "image%2Fmy%20chart.png"))
	assert.NoError(t, err)

	keys, err := s.Keys("image/")
	require.NoError(t, err)
	assert.Equal(t, []string{"image/my chart.png"}, keys)
}
