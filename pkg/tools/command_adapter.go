package tools

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"opensentinel/pkg/errors"
	"opensentinel/pkg/logger"
	"opensentinel/pkg/parsers"
	"opensentinel/pkg/runner"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// CommandSpec describes how to invoke one external scanner binary.
// Args may contain the placeholders {{target}}, {{host}} and {{output}}.
type CommandSpec struct {
	Command string   `yaml:"command" mapstructure:"command"`
	Args    []string `yaml:"args" mapstructure:"args"`
	// Output names the file the tool writes results to, relative to the
	// scan working directory. It is substituted for {{output}}.
	Output string `yaml:"output" mapstructure:"output"`
}

// CommandAdapter runs an external scanner and streams its findings as the
// output file grows. The output file is re-parsed on every change; only
// findings beyond the last emitted index are forwarded, so a parser that
// always returns the full result set never produces duplicates.
type CommandAdapter struct {
	id          string
	description string
	spec        CommandSpec
	parser      parsers.Parser
	runner      runner.CommandRunner
	workDir     string
	log         *logger.Logger
}

// commandRun holds the emit cursor for a single invocation. The registry
// shares one adapter across all concurrent scans, so dedup state must not
// live on the adapter itself.
type commandRun struct {
	parser     parsers.Parser
	outputPath string
	emit       func(RawFinding)

	mutex   sync.Mutex
	emitted int
}

type CommandAdapterOptions struct {
	ID          string
	Description string
	Spec        CommandSpec
	Parser      parsers.Parser
	Runner      runner.CommandRunner
	WorkDir     string
	Logger      *logger.Logger
}

func NewCommandAdapter(opts CommandAdapterOptions) *CommandAdapter {
	if opts.Runner == nil {
		opts.Runner = runner.NewSimpleRunner()
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &CommandAdapter{
		id:          opts.ID,
		description: opts.Description,
		spec:        opts.Spec,
		parser:      opts.Parser,
		runner:      opts.Runner,
		workDir:     opts.WorkDir,
		log:         opts.Logger,
	}
}

func (a *CommandAdapter) ID() string          { return a.id }
func (a *CommandAdapter) Description() string { return a.description }

func (a *CommandAdapter) Run(ctx context.Context, target string, emit func(RawFinding)) error {
	outputPath, err := a.outputPath(target)
	if err != nil {
		return &errors.ToolError{ToolID: a.id, Err: err}
	}
	defer os.Remove(outputPath)

	args, err := a.expandArgs(target, outputPath)
	if err != nil {
		return &errors.ToolError{ToolID: a.id, Err: err}
	}

	log := a.log.WithTool(a.id)
	log.WithFields(logrus.Fields{"command": a.spec.Command, "output": outputPath}).
		Debug("starting scanner command")

	run := &commandRun{parser: a.parser, outputPath: outputPath, emit: emit}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tailDone := make(chan struct{})
	go func() {
		defer close(tailDone)
		a.tailOutput(runCtx, run)
	}()

	runErr := a.runner.Run(runCtx, a.spec.Command, args)

	// Stop the tail before the final authoritative parse so the two
	// cannot interleave emit calls.
	cancel()
	<-tailDone

	if ctx.Err() != nil {
		return &errors.ToolError{ToolID: a.id, Err: ctx.Err()}
	}
	if runErr != nil {
		return &errors.ToolError{ToolID: a.id, Err: runErr}
	}

	if err := run.emitNew(); err != nil {
		return &errors.ToolError{ToolID: a.id, Err: fmt.Errorf("parsing output: %w", err)}
	}
	return nil
}

func (a *CommandAdapter) outputPath(target string) (string, error) {
	if err := os.MkdirAll(a.workDir, 0755); err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s_%s",
		strings.ToLower(a.id),
		runner.SanitizeForFilename(target),
		a.spec.Output)
	return filepath.Join(a.workDir, name), nil
}

func (a *CommandAdapter) expandArgs(target, outputPath string) ([]string, error) {
	host, err := targetHost(target)
	if err != nil {
		return nil, err
	}
	return runner.ExpandArgs(a.spec.Args, map[string]string{
		"target": target,
		"host":   host,
		"output": outputPath,
	}), nil
}

// tailOutput watches the output file and emits findings as the tool
// writes them. Parse errors are expected here: the file is usually
// mid-write, so the next event retries.
func (a *CommandAdapter) tailOutput(ctx context.Context, run *commandRun) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		a.log.WithTool(a.id).WithError(err).Warn("output watcher unavailable, findings arrive at completion")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(run.outputPath)); err != nil {
		a.log.WithTool(a.id).WithError(err).Warn("cannot watch work directory")
		return
	}

	// The ticker backstops tools that write through renames or that
	// fsnotify misses on some filesystems.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != run.outputPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			_ = run.emitNew()
		case <-ticker.C:
			_ = run.emitNew()
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// emitNew parses the full output file and forwards only findings not yet
// emitted. Serialized so the tail loop and the final parse cannot race.
func (r *commandRun) emitNew() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, err := os.Stat(r.outputPath); err != nil {
		return err
	}
	findings, err := r.parser.Parse(r.outputPath)
	if err != nil {
		return err
	}
	for _, finding := range findings[min(r.emitted, len(findings)):] {
		r.emit(RawFinding{
			ID:          finding.ID,
			Name:        finding.Name,
			Description: finding.Description,
			Severity:    finding.Severity,
			CVEID:       finding.CVEID,
			CVSSScore:   finding.CVSSScore,
			Remediation: finding.Remediation,
			Evidence:    finding.Evidence,
		})
	}
	if len(findings) > r.emitted {
		r.emitted = len(findings)
	}
	return nil
}

// targetHost extracts the bare hostname for tools that do not accept URLs.
func targetHost(target string) (string, error) {
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing target %q: %w", target, err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("target %q has no host", target)
	}
	return parsed.Hostname(), nil
}
