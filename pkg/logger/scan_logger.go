package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ScanLogger mirrors a scan's lifecycle events into a per-scan log file in
// the scan's working directory, alongside normal stdout logging.
type ScanLogger struct {
	*Logger
	scanID  string
	workDir string
	logFile *os.File
	mu      sync.Mutex
}

func NewScanLogger(scanID, workDir string, level logrus.Level) (*ScanLogger, error) {
	baseLogger := NewLogger(level)

	logFilePath := filepath.Join(workDir, "scan.log")
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan log file: %w", err)
	}

	header := fmt.Sprintf("\n=== Scan Log Started: %s ===\n", time.Now().Format(time.RFC3339))
	header += fmt.Sprintf("Scan ID: %s\n", scanID)
	header += "==========================================\n\n"
	logFile.WriteString(header)

	baseLogger.Logger.SetOutput(io.MultiWriter(os.Stdout, logFile))

	return &ScanLogger{
		Logger:  baseLogger,
		scanID:  scanID,
		workDir: workDir,
		logFile: logFile,
	}, nil
}

func (sl *ScanLogger) LogScanFailure(reason string, err error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	msg := fmt.Sprintf("\n=== SCAN FAILED: %s ===\n", time.Now().Format(time.RFC3339))
	msg += fmt.Sprintf("Scan ID: %s\nReason: %s\n", sl.scanID, reason)
	if err != nil {
		msg += fmt.Sprintf("Error: %v\n", err)
	}
	msg += "=====================================\n\n"
	sl.logFile.WriteString(msg)

	entry := sl.WithFields(Fields{"scan_id": sl.scanID, "reason": reason})
	if err != nil {
		entry.WithError(err).Error("Scan failed")
	} else {
		entry.Error("Scan failed")
	}
}

func (sl *ScanLogger) LogScanCompleted(findings int, failedTools []string) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	msg := fmt.Sprintf("\n=== SCAN COMPLETED: %s ===\n", time.Now().Format(time.RFC3339))
	msg += fmt.Sprintf("Scan ID: %s\nFindings: %d\n", sl.scanID, findings)
	if len(failedTools) > 0 {
		msg += fmt.Sprintf("Failed Tools (%d):\n", len(failedTools))
		for _, tool := range failedTools {
			msg += fmt.Sprintf("  - %s\n", tool)
		}
	}
	msg += "=========================================\n\n"
	sl.logFile.WriteString(msg)

	fields := Fields{"scan_id": sl.scanID, "findings": findings}
	if len(failedTools) > 0 {
		fields["failed_tools"] = len(failedTools)
		sl.WithFields(fields).Warn("Scan completed with some tool failures")
	} else {
		sl.WithFields(fields).Info("Scan completed successfully")
	}
}

func (sl *ScanLogger) Close() error {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.logFile == nil {
		return nil
	}

	footer := fmt.Sprintf("\n=== Scan Log Ended: %s ===\n", time.Now().Format(time.RFC3339))
	sl.logFile.WriteString(footer)

	if err := sl.logFile.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	sl.logFile = nil
	return nil
}

func (sl *ScanLogger) LogFilePath() string {
	return filepath.Join(sl.workDir, "scan.log")
}
