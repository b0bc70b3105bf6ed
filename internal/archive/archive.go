// Package archive stores raw source payloads for later replay.
package archive

import "context"

// Archive persists one raw payload under a key and returns its location
// URI. Archiving is best-effort from the pipeline's point of view; a
// failed write never fails the item.
type Archive interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// NoOp discards payloads. It is the default when no archive is
// configured.
type NoOp struct{}

func (NoOp) Put(context.Context, string, string, []byte) (string, error) { return "", nil }

// WithPrefix returns an Archive that stores every object under the
// given key prefix.
func WithPrefix(inner Archive, prefix string) Archive {
	if prefix == "" {
		return inner
	}
	return prefixed{inner: inner, prefix: prefix}
}

type prefixed struct {
	inner  Archive
	prefix string
}

func (p prefixed) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	return p.inner.Put(ctx, p.prefix+"/"+key, contentType, data)
}
