package ports

import "context"

// TransferObserver receives progress for a single download attempt.
type TransferObserver interface {
	// Begin is called once the final (non-redirect) response arrives.
	// total is 0 when the server did not announce a length.
	Begin(url string, total int64)

	// Advance is called after each chunk is written with the running total.
	Advance(downloaded int64)

	// Complete is called once the body is fully written and the file closed.
	Complete(downloaded int64)
}

// Downloader fetches a remote file to a local path.
// On any failure the partially written destination is removed.
type Downloader interface {
	Download(ctx context.Context, url, dst string, observer TransferObserver) error
}
