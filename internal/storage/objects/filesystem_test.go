package objects

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestFileStore_PutGet(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, arbor.NewLogger())
	require.NoError(t, err)
	ctx := context.Background()

	key := "raw/AAPL/10-Q#2026-05-01#000032019326000050.html"
	require.NoError(t, store.Put(ctx, key, []byte("<html></html>"), "text/html"))

	_, err = os.Stat(filepath.Join(root, "raw", "AAPL", "10-Q#2026-05-01#000032019326000050.html"))
	require.NoError(t, err, "key maps to a relative path with # kept verbatim")

	body, contentType, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))
	assert.Equal(t, "text/html", contentType)

	require.NoError(t, store.Put(ctx, key, []byte("replaced"), "text/html"))
	body, _, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "replaced", string(body))
}

func TestFileStore_RejectsBadKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "/etc/passwd", "../escape.txt", "raw/../../escape", "a.txt.meta.json"} {
		err := store.Put(ctx, key, []byte("x"), "text/plain")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
