package ports

import "github.com/bft-labs/haystack-sidecar/pkg/log"

// Logger is the structured logger used throughout the application layer.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported for the application layer.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Duration = log.Duration
	Err      = log.Err
)
