package ports

import "net/http"

// HTTPClient carries control requests to the sidecar and archive downloads
// from the release servers. A client handed to the downloader must not
// follow redirects itself; see NewDownloadClient.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ HTTPClient = (*http.Client)(nil)
