// Package chunkio streams bytes between the network and the filesystem in
// fixed-size chunks, never buffering a whole file in memory.
package chunkio

import (
	"context"
	"io"
)

// ChunkSize is the fixed buffer size used for all file and upload streaming.
const ChunkSize = 64 * 1024

// CopyWithCtx copies from src to dst in ChunkSize chunks, checking ctx for
// cancellation between reads so a closed peer connection stops the copy at
// its next suspension point instead of running to completion.
func CopyWithCtx(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)

	var totalBytes int64

	for {
		select {
		case <-ctx.Done():
			return totalBytes, ctx.Err()
		default:
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			totalBytes += int64(written)
			if writeErr != nil {
				return totalBytes, writeErr
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return totalBytes, nil
			}
			return totalBytes, readErr
		}
	}
}

// CopyN copies at most n bytes from src to dst in ChunkSize chunks, the way
// CopyWithCtx does, returning early once n bytes have been written.
func CopyN(ctx context.Context, dst io.Writer, src io.Reader, n int64) (int64, error) {
	return CopyWithCtx(ctx, dst, io.LimitReader(src, n))
}
