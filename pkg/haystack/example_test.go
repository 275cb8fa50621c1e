package haystack_test

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/haystack-sidecar/pkg/haystack"
)

// ExampleNew demonstrates embedding the manager in a host application.
func ExampleNew() {
	cfg := haystack.DefaultConfig()
	cfg.Version = "1.4.0"
	cfg.BundleDir = "/opt/myapp/resources"

	m, err := haystack.New(cfg, true, haystack.WithObserver(&statusPrinter{}))
	if err != nil {
		fmt.Printf("failed to create manager: %v\n", err)
		return
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := m.Initialize(ctx); err != nil {
		fmt.Printf("sidecar not ready: %v\n", err)
		return
	}

	body, err := m.Post(ctx, "/api/v1/search", map[string]string{"q": "needle"})
	if err != nil {
		fmt.Printf("search failed: %v\n", err)
		return
	}
	fmt.Println(string(body))
}

// Example_managedElsewhere demonstrates talking to a sidecar that another
// process installs and runs.
func Example_managedElsewhere() {
	cfg := haystack.DefaultConfig()
	cfg.ServerURL = "http://search.internal:13135"

	m, err := haystack.New(cfg, false)
	if err != nil {
		fmt.Printf("failed to create manager: %v\n", err)
		return
	}
	defer m.Close()

	_ = m.Initialize(context.Background())
	fmt.Println(m.Status(), m.InstallStatus())
	// Output: running installed
}

// statusPrinter implements haystack.Observer.
type statusPrinter struct {
	haystack.BaseObserver
}

func (p *statusPrinter) OnStatusChange(ev haystack.StatusChange) {
	fmt.Printf("status: %s -> %s (%s)\n", ev.Old, ev.New, ev.Reason)
}

func (p *statusPrinter) OnDownloadProgress(pr haystack.DownloadProgress) {
	fmt.Printf("download: %.0f%%\n", pr.Percent)
}
