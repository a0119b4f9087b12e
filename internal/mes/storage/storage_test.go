package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, "team/2026/03/a.txt", strings.NewReader("hello"), 5, "text/plain"))

	body, err := s.Get(ctx, "team/2026/03/a.txt")
	require.NoError(t, err)
	defer body.Close()
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
