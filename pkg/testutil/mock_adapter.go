package testutil

import (
	"context"
	"sync/atomic"
	"time"

	"opensentinel/pkg/tools"
)

// MockAdapter is a scriptable tool adapter: it emits the configured
// findings, optionally with a delay between each, then returns Err.
type MockAdapter struct {
	ToolID   string
	Findings []tools.RawFinding
	// Delay is applied before each emitted finding, to force
	// interleaving across concurrent adapters.
	Delay time.Duration
	Err   error

	runs atomic.Int32
}

func (m *MockAdapter) ID() string          { return m.ToolID }
func (m *MockAdapter) Description() string { return "mock adapter " + m.ToolID }

func (m *MockAdapter) Run(ctx context.Context, target string, emit func(tools.RawFinding)) error {
	m.runs.Add(1)
	for _, finding := range m.Findings {
		if m.Delay > 0 {
			select {
			case <-time.After(m.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		emit(finding)
	}
	if m.Err != nil {
		return m.Err
	}
	return ctx.Err()
}

// Runs reports how many times Run was invoked.
func (m *MockAdapter) Runs() int {
	return int(m.runs.Load())
}
