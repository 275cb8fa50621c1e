// Package log provides the logging abstraction used by the haystack sidecar
// manager and its adapters.
//
// The Logger interface takes a message and a list of typed fields, so the
// manager never depends on a concrete logging library. A zerolog-backed
// adapter and a no-op logger are provided.
//
// # Usage
//
// Use the zerolog adapter for console output:
//
//	logger := log.NewZerologAdapter(zerolog.InfoLevel)
//
// Or wrap an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//
// The no-op logger discards everything and is the library default:
//
//	logger := log.NewNoopLogger()
package log
