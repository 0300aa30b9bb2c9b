package runner

import "context"

// CommandRunner executes one external scanner invocation. Implementations
// must honor context cancellation.
type CommandRunner interface {
	Run(ctx context.Context, command string, args []string) error
}
