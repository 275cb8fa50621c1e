package ports

import "context"

// Spawner launches a process that outlives the call.
type Spawner interface {
	// Spawn starts binary with args in dir and returns once the process has
	// been started. It does not wait for the process to exit.
	Spawn(ctx context.Context, binary string, args []string, dir string) error
}
