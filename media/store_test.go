package media

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{
		AssetTypeImage:   "images",
		AssetTypeAvatar:  "avatars",
		AssetTypeWeights: "weights",
	})
	require.NoError(t, err)
	return store
}

func TestLocalStorageSaveReadDelete(t *testing.T) {
	store := newTestStore(t)

	rel, err := store.Save(AssetTypeImage, "", "cat.png", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "images/cat.png", rel)

	data, err := store.Read(rel)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, store.Delete(rel))
	_, err = store.Read(rel)
	assert.ErrorIs(t, err, os.ErrNotExist)

	// deleting twice is fine
	assert.NoError(t, store.Delete(rel))
}

func TestLocalStorageSaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(AssetTypeAvatar, "", "me.jpg", strings.NewReader("first"))
	require.NoError(t, err)
	rel, err := store.Save(AssetTypeAvatar, "", "me.jpg", strings.NewReader("second"))
	require.NoError(t, err)

	data, err := store.Read(rel)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestLocalStorageSanitizesFilename(t *testing.T) {
	store := newTestStore(t)

	rel, err := store.Save(AssetTypeImage, "", "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "images/passwd", rel)

	_, err = store.Save(AssetTypeImage, "", "..", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = store.Save(AssetTypeImage, "", "", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetFullPath("../outside.txt")
	assert.Error(t, err)

	_, err = store.Save(AssetTypeImage, "../../x", "a.png", strings.NewReader("x"))
	assert.Error(t, err)

	_, err = NewLocalStorage(t.TempDir(), map[AssetType]string{AssetTypeImage: "../elsewhere"})
	assert.Error(t, err)
}

type failingReader struct{ n int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.n > 0 {
		f.n = 0
		return copy(p, bytes.Repeat([]byte("a"), len(p))), nil
	}
	return 0, errors.New("connection reset")
}

func TestLocalStorageFailedWriteLeavesNothing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(AssetTypeImage, "", "broken.png", &failingReader{n: 1})
	require.Error(t, err)

	dir, err := store.EnsureDir(AssetTypeImage)
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLocalStorageGet(t *testing.T) {
	store := newTestStore(t)

	rel, err := store.Save(AssetTypeWeights, "", "w.bin", strings.NewReader("0123456789"))
	require.NoError(t, err)

	rc, info, err := store.Get(rel)
	require.NoError(t, err)
	defer rc.Close()
	assert.EqualValues(t, 10, info.Size())

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))

	full, err := store.GetFullPath(rel)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.BasePath(), "weights", "w.bin"), full)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dog.jpg", "dog.jpg"},
		{"a/b/c.png", "c.png"},
		{`C:\Users\me\pic.jpeg`, "pic.jpeg"},
		{"../..", ""},
		{"", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}
