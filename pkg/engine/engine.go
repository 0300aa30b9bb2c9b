// Package engine orchestrates scan execution: it fans a scan out across
// its tool adapters, merges streamed findings into the store, and settles
// the scan's terminal status.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"opensentinel/internal/dao"
	"opensentinel/internal/models"
	"opensentinel/pkg/errors"
	"opensentinel/pkg/logger"
	"opensentinel/pkg/rating"
	"opensentinel/pkg/tools"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Notifier receives a callback when a scan reaches a terminal status.
type Notifier interface {
	NotifyScanFinished(scan *models.Scan) error
}

type Options struct {
	// AdapterTimeout bounds a single tool run. Zero means 10 minutes.
	AdapterTimeout time.Duration
	// MaxConcurrentScans bounds simultaneously executing scans.
	MaxConcurrentScans int
	// StoreRetries is the attempt count for store writes.
	StoreRetries int
	// StoreRetryDelay is the initial backoff between store attempts.
	StoreRetryDelay time.Duration
	// WorkDir, when set, receives a per-scan directory with a scan.log
	// mirroring the scan's lifecycle events.
	WorkDir  string
	Notifier Notifier
	Logger   *logger.Logger
}

// Engine owns the scan lifecycle from StartScan until the scan settles
// as Completed or Failed.
type Engine struct {
	store    dao.ScanDAO
	registry *tools.Registry
	log      *logger.Logger
	notifier Notifier
	queue    *Queue

	adapterTimeout  time.Duration
	storeRetries    int
	storeRetryDelay time.Duration
	workDir         string

	locks   scanLocks
	cancels sync.Map // scanID -> context.CancelFunc
	wg      sync.WaitGroup
}

func New(store dao.ScanDAO, registry *tools.Registry, opts Options) *Engine {
	if opts.AdapterTimeout <= 0 {
		opts.AdapterTimeout = 10 * time.Minute
	}
	if opts.MaxConcurrentScans < 1 {
		opts.MaxConcurrentScans = 3
	}
	if opts.StoreRetries < 1 {
		opts.StoreRetries = 3
	}
	if opts.StoreRetryDelay <= 0 {
		opts.StoreRetryDelay = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &Engine{
		store:           store,
		registry:        registry,
		log:             opts.Logger,
		notifier:        opts.Notifier,
		queue:           NewQueue(opts.MaxConcurrentScans, opts.Logger),
		adapterTimeout:  opts.AdapterTimeout,
		storeRetries:    opts.StoreRetries,
		storeRetryDelay: opts.StoreRetryDelay,
		workDir:         opts.WorkDir,
	}
}

// StartScan validates the request, persists the scan in Queued status and
// launches execution in the background. The returned scan reflects the
// queued state; callers poll or fetch for progress.
func (e *Engine) StartScan(ctx context.Context, targetURL string, toolIDs []string) (*models.Scan, error) {
	normalized, err := NormalizeTargetURL(targetURL)
	if err != nil {
		return nil, err
	}

	adapters, ids, err := e.resolveAdapters(toolIDs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	scan := &models.Scan{
		ID:            uuid.New().String(),
		TargetURL:     normalized,
		ScanDate:      now,
		Status:        models.ScanStatusQueued,
		OverallRating: models.RatingNone,
		ToolsUsed:     ids,
		CreatedAt:     now.Unix(),
		UpdatedAt:     now.Unix(),
	}

	log := e.log.WithScan(scan.ID, scan.TargetURL)
	if err := e.retry(ctx, log, "save scan", func() error {
		return e.store.SaveScan(scan)
	}); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"tools": ids}).Info("Scan queued")

	e.wg.Add(1)
	go e.runScan(scan, adapters)

	return scan, nil
}

func (e *Engine) resolveAdapters(toolIDs []string) ([]tools.Adapter, []string, error) {
	if len(toolIDs) == 0 {
		return nil, nil, errors.NewValidationError("tools", toolIDs, "at least one tool is required")
	}

	seen := make(map[string]bool, len(toolIDs))
	adapters := make([]tools.Adapter, 0, len(toolIDs))
	ids := make([]string, 0, len(toolIDs))
	for _, id := range toolIDs {
		id = strings.TrimSpace(id)
		if seen[id] {
			continue
		}
		seen[id] = true

		adapter, ok := e.registry.Get(id)
		if !ok {
			return nil, nil, errors.NewValidationError("tools", id, errors.ErrToolNotRegistered.Error())
		}
		adapters = append(adapters, adapter)
		ids = append(ids, id)
	}
	return adapters, ids, nil
}

// CancelScan fails a queued or in-progress scan. Scans already settled
// return ErrScanNotCancellable.
func (e *Engine) CancelScan(id string) error {
	if cancel, ok := e.cancels.Load(id); ok {
		cancel.(context.CancelFunc)()
		return nil
	}

	// Not running in this process; a queued scan from a previous run can
	// still be failed directly.
	scan, err := e.store.GetScan(id)
	if err != nil {
		return err
	}
	if scan.Status.Terminal() {
		return errors.ErrScanNotCancellable
	}
	return e.store.SetScanStatus(id, models.ScanStatusFailed, scan.OverallRating, "scan cancelled")
}

// Wait blocks until all in-flight scans settle. Used on shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// QueueStatus exposes the scan queue occupancy.
func (e *Engine) QueueStatus() (running, queued, maxConcurrent int) {
	return e.queue.Status()
}

type mergeItem struct {
	toolID string
	raw    tools.RawFinding
}

type toolResult struct {
	toolID string
	err    error
}

func (e *Engine) runScan(scan *models.Scan, adapters []tools.Adapter) {
	defer e.wg.Done()

	scanCtx, cancel := context.WithCancel(context.Background())
	e.cancels.Store(scan.ID, cancel)
	defer func() {
		cancel()
		e.cancels.Delete(scan.ID)
	}()

	log := e.log.WithScan(scan.ID, scan.TargetURL)
	scanLog := e.newScanLogger(scan.ID, log)
	if scanLog != nil {
		defer scanLog.Close()
	}

	err := e.queue.Execute(scanCtx, func() error {
		return e.execute(scanCtx, scan, adapters, log, scanLog)
	})
	if err != nil {
		if scanCtx.Err() != nil {
			e.settle(scan, models.ScanStatusFailed, "scan cancelled", log, scanLog)
		} else {
			e.settle(scan, models.ScanStatusFailed, err.Error(), log, scanLog)
		}
	}
}

// newScanLogger opens the per-scan log file when a work directory is
// configured. A nil return just means lifecycle events only go to stdout.
func (e *Engine) newScanLogger(scanID string, log *logrus.Entry) *logger.ScanLogger {
	if e.workDir == "" {
		return nil
	}
	dir := filepath.Join(e.workDir, scanID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).Warn("Could not create scan directory")
		return nil
	}
	scanLog, err := logger.NewScanLogger(scanID, dir, logrus.InfoLevel)
	if err != nil {
		log.WithError(err).Warn("Could not open scan log")
		return nil
	}
	return scanLog
}

// execute drives one scan to a terminal status. A non-nil return means
// the scan could not even be settled here and runScan finishes the job.
func (e *Engine) execute(ctx context.Context, scan *models.Scan, adapters []tools.Adapter, log *logrus.Entry, scanLog *logger.ScanLogger) error {
	if err := e.retry(ctx, log, "mark in progress", func() error {
		return e.store.SetScanStatus(scan.ID, models.ScanStatusInProgress, models.RatingNone, "")
	}); err != nil {
		return err
	}
	log.Info("Scan started")

	findings := make(chan mergeItem)
	results := make(chan toolResult, len(adapters))

	var adapterWG sync.WaitGroup
	for _, adapter := range adapters {
		adapterWG.Add(1)
		go func(adapter tools.Adapter) {
			defer adapterWG.Done()
			results <- toolResult{
				toolID: adapter.ID(),
				err:    e.runAdapter(ctx, adapter, scan.TargetURL, findings),
			}
		}(adapter)
	}
	go func() {
		adapterWG.Wait()
		close(findings)
		close(results)
	}()

	// Single-writer merge loop: findings from all adapters are
	// normalized and persisted here, in arrival order.
	position := 0
	mergeFailed := false
	for item := range findings {
		if mergeFailed {
			continue
		}
		vuln := tools.Normalize(scan.ID, item.toolID, item.raw)
		vuln.Position = position
		position++

		if err := e.mergeFinding(ctx, scan.ID, vuln, log); err != nil {
			// Cancellation interrupting a store retry is not a store
			// outage; the ctx.Err case below reports it.
			if ctx.Err() != nil {
				continue
			}
			log.WithError(err).Error("Persisting finding failed, aborting scan")
			mergeFailed = true
			e.cancelRunning(scan.ID)
		}
	}

	failedTools := 0
	total := 0
	for result := range results {
		total++
		if result.err == nil {
			continue
		}
		failedTools++
		log.WithFields(logrus.Fields{"tool_id": result.toolID}).
			WithError(result.err).Warn("Tool run failed")
		e.recordToolFailure(scan.ID, result.toolID, result.err, log)
	}

	switch {
	case mergeFailed:
		e.settle(scan, models.ScanStatusFailed, "persisting findings failed", log, scanLog)
	case ctx.Err() != nil:
		e.settle(scan, models.ScanStatusFailed, "scan cancelled", log, scanLog)
	case failedTools == total:
		e.settle(scan, models.ScanStatusFailed, "all tools failed", log, scanLog)
	default:
		e.settle(scan, models.ScanStatusCompleted, "", log, scanLog)
	}
	return nil
}

func (e *Engine) runAdapter(ctx context.Context, adapter tools.Adapter, target string, findings chan<- mergeItem) error {
	adapterCtx, cancel := context.WithTimeout(ctx, e.adapterTimeout)
	defer cancel()

	return e.log.LogAdapterRun(adapter.ID(), func() error {
		return adapter.Run(adapterCtx, target, func(raw tools.RawFinding) {
			select {
			case findings <- mergeItem{toolID: adapter.ID(), raw: raw}:
			case <-ctx.Done():
			}
		})
	})
}

// mergeFinding persists one vulnerability and refreshes the scan's
// overall rating, serialized against analyst updates on the same scan.
func (e *Engine) mergeFinding(ctx context.Context, scanID string, vuln models.Vulnerability, log *logrus.Entry) error {
	return e.WithScanLock(scanID, func() error {
		if err := e.retry(ctx, log, "add vulnerability", func() error {
			return e.store.AddVulnerabilities(scanID, []models.Vulnerability{vuln})
		}); err != nil {
			return err
		}
		return e.retry(ctx, log, "refresh rating", func() error {
			current, err := e.store.GetScan(scanID)
			if err != nil {
				return err
			}
			return e.store.SetScanStatus(scanID, current.Status,
				rating.Compute(current.Vulnerabilities), current.ErrorMessage)
		})
	})
}

func (e *Engine) recordToolFailure(scanID, toolID string, toolErr error, log *logrus.Entry) {
	err := e.retry(context.Background(), log, "record tool failure", func() error {
		return e.store.AddToolFailure(&models.ToolFailure{
			ScanID: scanID,
			ToolID: toolID,
			Error:  toolErr.Error(),
		})
	})
	if err != nil {
		log.WithError(err).Error("Could not record tool failure")
	}
}

// settle writes the terminal status with a final rating computed from the
// stored findings, then mirrors the result to the scan log and notifier.
func (e *Engine) settle(scan *models.Scan, status models.ScanStatus, errorMessage string, log *logrus.Entry, scanLog *logger.ScanLogger) {
	ctx := context.Background()

	finalRating := models.RatingNone
	err := e.WithScanLock(scan.ID, func() error {
		return e.retry(ctx, log, "settle scan", func() error {
			current, err := e.store.GetScan(scan.ID)
			if err != nil {
				return err
			}
			finalRating = rating.Compute(current.Vulnerabilities)
			return e.store.SetScanStatus(scan.ID, status, finalRating, errorMessage)
		})
	})
	if err != nil {
		log.WithError(err).Error("Could not settle scan status")
		if scanLog != nil {
			scanLog.LogScanFailure("could not persist terminal status", err)
		}
		return
	}

	log.WithFields(logrus.Fields{
		"status": status,
		"rating": finalRating,
	}).Info("Scan finished")

	if scanLog == nil && e.notifier == nil {
		return
	}
	finished, err := e.store.GetScan(scan.ID)
	if err != nil {
		log.WithError(err).Warn("Could not load finished scan")
		return
	}

	if scanLog != nil {
		if status == models.ScanStatusFailed {
			scanLog.LogScanFailure(errorMessage, nil)
		} else {
			failed := make([]string, 0, len(finished.ToolFailures))
			for _, failure := range finished.ToolFailures {
				failed = append(failed, failure.ToolID)
			}
			scanLog.LogScanCompleted(len(finished.Vulnerabilities), failed)
		}
	}

	if e.notifier != nil {
		if err := e.notifier.NotifyScanFinished(finished); err != nil {
			log.WithError(err).Warn("Scan notification failed")
		}
	}
}

func (e *Engine) retry(ctx context.Context, log *logrus.Entry, op string, fn func() error) error {
	return withRetry(ctx, e.storeRetries, e.storeRetryDelay, log, op, fn)
}

func (e *Engine) cancelRunning(scanID string) {
	if cancel, ok := e.cancels.Load(scanID); ok {
		cancel.(context.CancelFunc)()
	}
}
