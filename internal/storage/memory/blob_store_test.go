package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObject_StoresAndReturnsURI(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	uri, err := store.PutObject(context.Background(), "payloads/h1.json", "application/json", bytes.NewReader([]byte(`{"a":1}`)))
	require.NoError(t, err)
	require.Equal(t, "memory://payloads/h1.json", uri)

	body, ok := store.Object("payloads/h1.json")
	require.True(t, ok)
	require.Equal(t, []byte(`{"a":1}`), body)
	require.Equal(t, 1, store.Len())
}

func TestPutObject_CopiesInput(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	src := []byte("original")
	_, err := store.PutObject(context.Background(), "p", "", bytes.NewReader(src))
	require.NoError(t, err)

	src[0] = 'X'
	body, _ := store.Object("p")
	require.Equal(t, []byte("original"), body)
}
