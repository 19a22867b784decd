package chunkio

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyWithCtxCopiesAllBytes(t *testing.T) {
	src := strings.NewReader(strings.Repeat("x", ChunkSize*3+17))
	var dst bytes.Buffer

	n, err := CopyWithCtx(context.Background(), &dst, src)
	require.NoError(t, err)
	assert.Equal(t, int64(ChunkSize*3+17), n)
	assert.Equal(t, ChunkSize*3+17, dst.Len())
}

func TestCopyWithCtxStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := strings.NewReader("hello")
	var dst bytes.Buffer

	_, err := CopyWithCtx(ctx, &dst, src)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCopyNLimitsBytesWritten(t *testing.T) {
	src := strings.NewReader("hello world")
	var dst bytes.Buffer

	n, err := CopyN(context.Background(), &dst, src, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", dst.String())
}
