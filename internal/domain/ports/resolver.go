package ports

import (
	"context"

	"mediastream/internal/domain"
)

// HandleResolver resolves a content-host handle to a short-lived
// download location. Implementations must return domain.ErrNotFound and
// domain.ErrTooLarge for the corresponding host responses.
type HandleResolver interface {
	Resolve(ctx context.Context, handle domain.Handle) (domain.ResolvedLocation, error)
}

// BlobHost is the full content-host surface: resolution plus the upload
// used by the ingest pipeline.
type BlobHost interface {
	HandleResolver
	Upload(ctx context.Context, filePath string) (domain.Handle, error)
}
