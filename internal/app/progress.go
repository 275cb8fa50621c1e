package app

import (
	"sync"

	"github.com/bft-labs/haystack-sidecar/internal/domain"
)

const (
	// progressStep is the minimum percentage increase between reports.
	progressStep = 5.0

	// unknownSizeStep is the byte increase between reports when the server
	// did not announce a length.
	unknownSizeStep = 1 << 20
)

// progressTracker turns raw transfer callbacks into the throttled progress
// stream published on the status model: 0% when an attempt begins, every
// 5-point increase, and exactly one 100% on completion.
type progressTracker struct {
	model *StatusModel

	mu          sync.Mutex
	url         string
	total       int64
	lastPercent float64
	lastBytes   int64
	done        bool
}

func newProgressTracker(model *StatusModel) *progressTracker {
	return &progressTracker{model: model}
}

func (t *progressTracker) Begin(url string, total int64) {
	t.mu.Lock()
	t.url = url
	t.total = total
	t.lastPercent = 0
	t.lastBytes = 0
	t.done = false
	t.mu.Unlock()

	t.model.SetProgress(domain.DownloadProgress{SourceURL: url, TotalSize: total})
}

func (t *progressTracker) Advance(downloaded int64) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}

	var p domain.DownloadProgress
	if t.total > 0 {
		pct := percentOf(downloaded, t.total)
		// 100 is reserved for Complete.
		if pct >= 100 || pct-t.lastPercent < progressStep {
			t.mu.Unlock()
			return
		}
		t.lastPercent = pct
		p = domain.DownloadProgress{SourceURL: t.url, TotalSize: t.total, DownloadedSize: downloaded, Percent: pct}
	} else {
		if downloaded-t.lastBytes < unknownSizeStep {
			t.mu.Unlock()
			return
		}
		t.lastBytes = downloaded
		p = domain.DownloadProgress{SourceURL: t.url, DownloadedSize: downloaded}
	}
	t.mu.Unlock()

	t.model.SetProgress(p)
}

func (t *progressTracker) Complete(downloaded int64) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	total := t.total
	if total <= 0 {
		total = downloaded
	}
	p := domain.DownloadProgress{SourceURL: t.url, TotalSize: total, DownloadedSize: downloaded, Percent: 100}
	t.mu.Unlock()

	t.model.SetProgress(p)
}

func percentOf(n, total int64) float64 {
	pct := float64(n) * 100 / float64(total)
	if pct > 100 {
		return 100
	}
	return pct
}
