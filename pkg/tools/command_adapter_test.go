package tools

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"opensentinel/pkg/parsers"

	"github.com/stretchr/testify/assert"
)

type staticParser struct {
	findings []parsers.Finding
}

func (p staticParser) Parse(string) ([]parsers.Finding, error) {
	return p.findings, nil
}

// gateRunner writes the output file, reports it started and then blocks
// until released, so a test can hold several runs in flight at once.
type gateRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *gateRunner) Run(ctx context.Context, command string, args []string) error {
	if err := os.WriteFile(args[0], []byte("results"), 0644); err != nil {
		return err
	}
	r.started <- struct{}{}
	select {
	case <-r.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCommandAdapterConcurrentRunsKeepSeparateEmitCursors(t *testing.T) {
	findings := []parsers.Finding{
		{ID: "p1", Name: "Open SSH", Severity: "info"},
		{ID: "p2", Name: "Open Telnet", Severity: "medium"},
		{ID: "p3", Name: "Open Redis", Severity: "high"},
	}
	gate := &gateRunner{started: make(chan struct{}, 2), release: make(chan struct{})}
	adapter := NewCommandAdapter(CommandAdapterOptions{
		ID:      ToolPortScan,
		Spec:    CommandSpec{Command: "nmap", Args: []string{"{{output}}"}, Output: "nmap.xml"},
		Parser:  staticParser{findings: findings},
		Runner:  gate,
		WorkDir: t.TempDir(),
	})

	targets := []string{"https://a.example.com", "https://b.example.com"}
	counts := make([]int64, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			err := adapter.Run(context.Background(), target, func(RawFinding) {
				atomic.AddInt64(&counts[i], 1)
			})
			assert.NoError(t, err)
		}(i, target)
	}

	// Both runs must be in flight before either finishes.
	for range targets {
		select {
		case <-gate.started:
		case <-time.After(2 * time.Second):
			t.Fatal("runner never started")
		}
	}
	close(gate.release)
	wg.Wait()

	for i := range targets {
		assert.EqualValues(t, len(findings), counts[i],
			"run for %s must emit each finding exactly once", targets[i])
	}
}
