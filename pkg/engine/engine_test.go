package engine

import (
	"context"
	stderrors "errors"
	"math/rand"
	"testing"
	"time"

	"opensentinel/internal/models"
	"opensentinel/pkg/errors"
	"opensentinel/pkg/testutil"
	"opensentinel/pkg/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(store *testutil.MemoryScanStore, adapters ...tools.Adapter) *Engine {
	registry := tools.NewRegistry()
	for _, adapter := range adapters {
		registry.Register(adapter)
	}
	return New(store, registry, Options{
		AdapterTimeout:  5 * time.Second,
		StoreRetryDelay: time.Millisecond,
	})
}

func waitTerminal(t *testing.T, store *testutil.MemoryScanStore, scanID string) *models.Scan {
	t.Helper()
	var scan *models.Scan
	require.Eventually(t, func() bool {
		var err error
		scan, err = store.GetScan(scanID)
		return err == nil && scan.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond, "scan never reached a terminal status")
	return scan
}

func TestStartScanValidation(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	eng := newTestEngine(store, &testutil.MockAdapter{ToolID: tools.ToolPortScan})
	ctx := context.Background()

	_, err := eng.StartScan(ctx, "", []string{tools.ToolPortScan})
	assert.True(t, errors.IsValidation(err), "empty target must fail validation")

	_, err = eng.StartScan(ctx, "https://example.com", nil)
	assert.True(t, errors.IsValidation(err), "empty tool list must fail validation")

	_, err = eng.StartScan(ctx, "https://example.com", []string{"NoSuchTool"})
	assert.True(t, errors.IsValidation(err), "unknown tool must fail validation")
}

func TestStartScanNormalizesTarget(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	eng := newTestEngine(store, &testutil.MockAdapter{ToolID: tools.ToolPortScan})

	scan, err := eng.StartScan(context.Background(), "example.com", []string{tools.ToolPortScan})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", scan.TargetURL)
	assert.Equal(t, models.ScanStatusQueued, scan.Status)
	assert.Equal(t, models.RatingNone, scan.OverallRating)

	waitTerminal(t, store, scan.ID)
	eng.Wait()
}

func TestScanMergesFindingsFromConcurrentAdapters(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	portScan := &testutil.MockAdapter{
		ToolID: tools.ToolPortScan,
		Delay:  time.Millisecond,
		Findings: []tools.RawFinding{
			{ID: "f1", Name: "Open Telnet", Severity: "medium"},
			{ID: "f2", Name: "Open Redis", Severity: "high"},
		},
	}
	headerScan := &testutil.MockAdapter{
		ToolID: tools.ToolBasicHeaderScan,
		Delay:  time.Millisecond,
		Findings: []tools.RawFinding{
			{ID: "h1", Name: "Missing CSP", Severity: "low"},
		},
	}
	eng := newTestEngine(store, portScan, headerScan)

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan, tools.ToolBasicHeaderScan})
	require.NoError(t, err)

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusCompleted, final.Status)
	assert.Equal(t, models.RatingHigh, final.OverallRating)
	require.Len(t, final.Vulnerabilities, 3)

	positions := map[int]bool{}
	ids := map[string]bool{}
	for _, vuln := range final.Vulnerabilities {
		assert.False(t, positions[vuln.Position], "duplicate position %d", vuln.Position)
		positions[vuln.Position] = true
		assert.False(t, ids[vuln.ID], "duplicate id %s", vuln.ID)
		ids[vuln.ID] = true
		assert.Equal(t, models.VulnStatusOpen, vuln.Status)
	}
	assert.True(t, ids[scan.ID+"-portscan-f1"])
	assert.True(t, ids[scan.ID+"-basicheaderscan-h1"])
}

func TestScanMergeLosesNothingUnderLoad(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	rng := rand.New(rand.NewSource(7))

	adapters := make([]tools.Adapter, 0, 4)
	toolIDs := []string{tools.ToolPortScan, tools.ToolNucleiScan, tools.ToolDirFuzzing, tools.ToolSubdomainEnum}
	total := 0
	for _, id := range toolIDs {
		count := 5 + rng.Intn(10)
		findings := make([]tools.RawFinding, count)
		for i := range findings {
			findings[i] = tools.RawFinding{Name: "finding", Severity: "info"}
		}
		total += count
		adapters = append(adapters, &testutil.MockAdapter{
			ToolID:   id,
			Findings: findings,
			Delay:    time.Duration(rng.Intn(3)) * time.Millisecond,
		})
	}
	eng := newTestEngine(store, adapters...)

	scan, err := eng.StartScan(context.Background(), "https://example.com", toolIDs)
	require.NoError(t, err)

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusCompleted, final.Status)
	assert.Len(t, final.Vulnerabilities, total, "every emitted finding must be persisted exactly once")
}

func TestScanFailsWhenAllToolsFail(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	eng := newTestEngine(store,
		&testutil.MockAdapter{ToolID: tools.ToolPortScan, Err: stderrors.New("nmap exited 1")},
		&testutil.MockAdapter{ToolID: tools.ToolNucleiScan, Err: stderrors.New("nuclei not found")},
	)

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan, tools.ToolNucleiScan})
	require.NoError(t, err)

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusFailed, final.Status)
	assert.Equal(t, "all tools failed", final.ErrorMessage)
	assert.Len(t, final.ToolFailures, 2)
}

func TestScanCompletesWithPartialToolFailures(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	eng := newTestEngine(store,
		&testutil.MockAdapter{
			ToolID:   tools.ToolPortScan,
			Findings: []tools.RawFinding{{ID: "f1", Name: "Open SSH", Severity: "info"}},
		},
		&testutil.MockAdapter{ToolID: tools.ToolZapActiveScan, Err: stderrors.New("zap timed out")},
	)

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan, tools.ToolZapActiveScan})
	require.NoError(t, err)

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusCompleted, final.Status, "one surviving tool completes the scan")
	assert.Equal(t, models.RatingInformational, final.OverallRating)
	require.Len(t, final.ToolFailures, 1)
	assert.Equal(t, tools.ToolZapActiveScan, final.ToolFailures[0].ToolID)
	assert.Contains(t, final.ToolFailures[0].Error, "zap timed out")
}

func TestScanAdapterTimeout(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	slow := &testutil.MockAdapter{
		ToolID:   tools.ToolZapActiveScan,
		Delay:    time.Second,
		Findings: []tools.RawFinding{{ID: "never", Name: "too late"}},
	}
	registry := tools.NewRegistry()
	registry.Register(slow)
	eng := New(store, registry, Options{
		AdapterTimeout:  20 * time.Millisecond,
		StoreRetryDelay: time.Millisecond,
	})

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolZapActiveScan})
	require.NoError(t, err)

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusFailed, final.Status)
	require.Len(t, final.ToolFailures, 1)
	assert.Contains(t, final.ToolFailures[0].Error, "context deadline exceeded")
}

func TestCancelScan(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	findings := make([]tools.RawFinding, 100)
	for i := range findings {
		findings[i] = tools.RawFinding{Name: "slow finding"}
	}
	eng := newTestEngine(store, &testutil.MockAdapter{
		ToolID:   tools.ToolNucleiScan,
		Findings: findings,
		Delay:    20 * time.Millisecond,
	})

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolNucleiScan})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := store.GetScan(scan.ID)
		return err == nil && current.Status == models.ScanStatusInProgress
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, eng.CancelScan(scan.ID))

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusFailed, final.Status)
	assert.Equal(t, "scan cancelled", final.ErrorMessage)
	assert.Less(t, len(final.Vulnerabilities), 100, "cancellation must stop the adapter early")
}

func TestCancelScanTerminal(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	eng := newTestEngine(store, &testutil.MockAdapter{ToolID: tools.ToolPortScan})

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan})
	require.NoError(t, err)
	waitTerminal(t, store, scan.ID)
	eng.Wait()

	err = eng.CancelScan(scan.ID)
	assert.ErrorIs(t, err, errors.ErrScanNotCancellable)
}

func TestCancelScanUnknown(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	eng := newTestEngine(store, &testutil.MockAdapter{ToolID: tools.ToolPortScan})

	err := eng.CancelScan("no-such-scan")
	assert.True(t, errors.IsNotFound(err))
}

func TestCancelDuringStoreRetryReportsCancellation(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	store.FailOps["add vulnerabilities"] = -1 // fail every attempt

	registry := tools.NewRegistry()
	registry.Register(&testutil.MockAdapter{
		ToolID:   tools.ToolPortScan,
		Findings: []tools.RawFinding{{ID: "f1", Name: "Open SSH"}},
	})
	eng := New(store, registry, Options{
		AdapterTimeout:  5 * time.Second,
		StoreRetries:    10,
		StoreRetryDelay: 50 * time.Millisecond,
	})

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		current, err := store.GetScan(scan.ID)
		return err == nil && current.Status == models.ScanStatusInProgress
	}, 2*time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond) // land inside the merge retry backoff
	require.NoError(t, eng.CancelScan(scan.ID))

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusFailed, final.Status)
	assert.Equal(t, "scan cancelled", final.ErrorMessage,
		"cancellation mid-retry must not be reported as a store outage")
}

func TestScanLockSurvivesSettle(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	eng := newTestEngine(store, &testutil.MockAdapter{ToolID: tools.ToolPortScan})

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan})
	require.NoError(t, err)
	before := eng.locks.lock(scan.ID)

	waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Same(t, before, eng.locks.lock(scan.ID),
		"settling must not hand later updates a different mutex")

	eng.ForgetScanLock(scan.ID)
	assert.NotSame(t, before, eng.locks.lock(scan.ID))
}

func TestScanSurvivesTransientStoreFailures(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	store.FailOps["add vulnerabilities"] = 1
	store.FailOps["set scan status"] = 1

	eng := newTestEngine(store, &testutil.MockAdapter{
		ToolID:   tools.ToolPortScan,
		Findings: []tools.RawFinding{{ID: "f1", Name: "Open SSH", Severity: "low"}},
	})

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan})
	require.NoError(t, err)

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, models.ScanStatusCompleted, final.Status)
	require.Len(t, final.Vulnerabilities, 1)
	assert.Equal(t, models.RatingLow, final.OverallRating)
}

func TestDuplicateToolIDsCollapse(t *testing.T) {
	store := testutil.NewMemoryScanStore()
	adapter := &testutil.MockAdapter{
		ToolID:   tools.ToolPortScan,
		Findings: []tools.RawFinding{{ID: "f1", Name: "Open SSH"}},
	}
	eng := newTestEngine(store, adapter)

	scan, err := eng.StartScan(context.Background(), "https://example.com",
		[]string{tools.ToolPortScan, tools.ToolPortScan})
	require.NoError(t, err)
	assert.Equal(t, []string{tools.ToolPortScan}, scan.ToolsUsed)

	final := waitTerminal(t, store, scan.ID)
	eng.Wait()

	assert.Equal(t, 1, adapter.Runs())
	assert.Len(t, final.Vulnerabilities, 1)
}
