// Package blob stores uploaded damage photos and returns public URLs for
// them. Cloudinary holds the real images; the mock backs tests.
package blob

import (
	"context"
	"io"
)

// Store puts a named blob somewhere public and returns its URL.
type Store interface {
	Upload(ctx context.Context, name string, r io.Reader) (string, error)
}
