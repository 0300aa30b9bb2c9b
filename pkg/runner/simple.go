package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"opensentinel/pkg/logger"

	"github.com/sirupsen/logrus"
)

var (
	safeBinary   = regexp.MustCompile(`^[a-zA-Z0-9_\-]+$`)
	safeFilename = regexp.MustCompile(`^[a-zA-Z0-9_\-./]+$`)
)

// SimpleRunner executes external scanning tools directly.
type SimpleRunner struct {
	logger *logger.Logger
}

func NewSimpleRunner() *SimpleRunner {
	return &SimpleRunner{
		logger: logger.NewLogger(logrus.InfoLevel),
	}
}

func (r *SimpleRunner) Run(ctx context.Context, command string, args []string) error {
	if err := r.validateCommand(command); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	for i, arg := range args {
		if err := r.validateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument at index %d (%s): %w", i, arg, err)
		}
	}

	r.logger.WithFields(logger.Fields{
		"command": command,
		"args":    args,
	}).Info("Executing command")

	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if stderr.Len() > 0 {
			r.logger.WithFields(logger.Fields{
				"stderr": stderr.String(),
			}).Error("Command stderr output")
		}

		errorMsg := fmt.Sprintf("execution failed: %v", err)
		if stderr.Len() > 0 {
			errorMsg = fmt.Sprintf("%s\nstderr: %s", errorMsg, stderr.String())
		}

		r.logger.WithError(err).Error("Command execution failed")
		return fmt.Errorf("%s", errorMsg)
	}

	if stdout.Len() > 0 {
		r.logger.WithFields(logger.Fields{
			"stdout": stdout.String(),
		}).Debug("Command stdout output")
	}

	return nil
}

// validateCommand accepts plain binary names resolved via PATH and explicit
// paths to existing, non-symlinked files.
func (r *SimpleRunner) validateCommand(command string) error {
	if command == "" {
		return fmt.Errorf("command is empty")
	}

	if safeBinary.MatchString(command) {
		return nil
	}

	if !safeFilename.MatchString(command) {
		return fmt.Errorf("unsafe characters in command: %s", command)
	}

	if _, err := os.Stat(command); err != nil {
		return fmt.Errorf("command file does not exist: %w", err)
	}

	fi, err := os.Lstat(command)
	if err != nil {
		return fmt.Errorf("cannot stat command: %w", err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("command is a symlink: %s", command)
	}

	return nil
}

// validateArgument rejects shell metacharacters that could enable command
// injection when a target string reaches an external tool's argv.
func (r *SimpleRunner) validateArgument(arg string) error {
	if arg == "" {
		return nil
	}

	dangerous := []string{";", "&", "|", "`", "$", "(", ")", "\n", "\r", "<", ">"}
	for _, char := range dangerous {
		if strings.Contains(arg, char) {
			return fmt.Errorf("argument contains dangerous character: %s", char)
		}
	}

	if strings.Contains(arg, "..") {
		// Allow .. in URLs but not in file paths
		if !strings.Contains(arg, "://") {
			return fmt.Errorf("path traversal detected in argument")
		}
	}

	return nil
}
