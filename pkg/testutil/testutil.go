// Package testutil provides shared test doubles for the opensentinel
// application: an in-memory scan store, a scriptable tool adapter and a
// recording command runner.
package testutil

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MockCommandRunner records executed commands and replays scripted
// responses, keyed by the full command line.
type MockCommandRunner struct {
	mu        sync.RWMutex
	commands  []ExecutedCommand
	responses map[string]CommandResponse
}

type ExecutedCommand struct {
	Command string
	Args    []string
}

type CommandResponse struct {
	Error error
	Delay time.Duration
	// Run executes while the command is "running", e.g. to write the
	// output file a parser will read.
	Run func() error
}

func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		responses: make(map[string]CommandResponse),
	}
}

func (m *MockCommandRunner) Run(ctx context.Context, command string, args []string) error {
	m.mu.Lock()
	m.commands = append(m.commands, ExecutedCommand{Command: command, Args: args})
	m.mu.Unlock()

	m.mu.RLock()
	response, exists := m.responses[command+" "+strings.Join(args, " ")]
	if !exists {
		response, exists = m.responses[command]
	}
	m.mu.RUnlock()

	if !exists {
		return nil
	}
	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if response.Run != nil {
		if err := response.Run(); err != nil {
			return err
		}
	}
	return response.Error
}

// SetResponse scripts the outcome for a command. Pass nil args to match
// any invocation of the command regardless of arguments.
func (m *MockCommandRunner) SetResponse(command string, args []string, response CommandResponse) {
	key := command
	if args != nil {
		key = command + " " + strings.Join(args, " ")
	}
	m.mu.Lock()
	m.responses[key] = response
	m.mu.Unlock()
}

func (m *MockCommandRunner) ExecutedCommands() []ExecutedCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	commands := make([]ExecutedCommand, len(m.commands))
	copy(commands, m.commands)
	return commands
}
