package mcp

import (
	"context"
	"os"
	"time"

	"connlab/internal/logging"
)

// WatchParent monitors for parent process death in a background
// goroutine. When the parent PID changes (the MCP client disconnected),
// it calls cancelFn to trigger graceful shutdown so stale server
// processes do not accumulate.
//
// This must NOT read from stdin: the SDK's StdioTransport owns stdin
// exclusively, and stealing bytes would corrupt the JSON-RPC stream.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	logger := logging.New("mcp")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
				if os.Getppid() != ppid {
					logger.Warn("parent process died, initiating shutdown", "was_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
