package feedback

import "context"

// BlobStore writes named objects and returns their public URL.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
}
