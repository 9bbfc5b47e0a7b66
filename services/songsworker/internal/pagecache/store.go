// Package pagecache memoises fetched pages so that each page is downloaded
// at most once across worker runs.
package pagecache

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
)

// Store is a persistent key/value backend for page bodies.
type Store interface {
	// Get returns ok=false when key is absent.
	Get(ctx context.Context, key string) (page []byte, ok bool, err error)
	Put(ctx context.Context, key string, page []byte) error
	Close() error
}

func compress(page []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(page); err != nil {
		return nil, fmt.Errorf("compress page: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress page: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(blob []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decompress page: %w", err)
	}
	defer zr.Close()
	page, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress page: %w", err)
	}
	return page, nil
}

// OpenStore builds the backend named by kind: "sqlite", "redis" or "memory".
func OpenStore(ctx context.Context, kind, path, redisURL string) (Store, error) {
	switch kind {
	case "sqlite", "":
		return OpenSQLite(ctx, path)
	case "redis":
		s, err := NewRedisStore(redisURL)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("ping page cache redis: %w", err)
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown page cache backend %q", kind)
	}
}
