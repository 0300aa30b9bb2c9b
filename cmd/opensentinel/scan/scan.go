package scan

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opensentinel/internal/config"
	"opensentinel/internal/dao"
	"opensentinel/internal/database"
	"opensentinel/internal/models"
	"opensentinel/internal/services"
	"opensentinel/pkg/engine"
	"opensentinel/pkg/logger"
	"opensentinel/pkg/tools"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// ScanOpts configures a one-shot scan run from the command line.
type ScanOpts struct {
	Target  string
	Tools   []string
	Profile string
	Verbose bool
}

// NewScanCommand creates the scan command: it queues a scan, waits for it
// to settle and prints the findings.
func NewScanCommand() *cobra.Command {
	opts := &ScanOpts{}

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a scan against a target and wait for the result",
		Long:  `Run the selected tools against the target, wait for the scan to finish and print the findings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			logLevel := logrus.InfoLevel
			if opts.Verbose {
				logLevel = logrus.DebugLevel
			}
			log := logger.NewLogger(logLevel)

			cfg := config.Load()
			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}

			catalog, err := tools.LoadCatalog(cfg.ConfigPath)
			if err != nil {
				return err
			}
			registry := catalog.BuildRegistry(tools.RegistryOptions{
				WorkDir: cfg.WorkDir,
				Logger:  log,
			})

			scanDao := dao.NewScanDAO(db)
			eng := engine.New(scanDao, registry, engine.Options{
				AdapterTimeout:     cfg.AdapterTimeout,
				MaxConcurrentScans: cfg.MaxConcurrentScans,
				StoreRetries:       cfg.StoreRetries,
				StoreRetryDelay:    cfg.StoreRetryDelay,
				WorkDir:            cfg.WorkDir,
				Logger:             log,
			})
			service := services.NewScanService(scanDao, eng, log)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			scan, err := service.StartScan(ctx, opts.Target, opts.Tools, opts.Profile)
			if err != nil {
				return err
			}
			log.WithScan(scan.ID, scan.TargetURL).Info("Scan queued")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				sig := <-sigChan
				log.WithFields(logger.Fields{"signal": sig.String()}).Info("Cancelling scan")
				if err := service.CancelScan(scan.ID); err != nil {
					log.WithError(err).Warn("Cancel failed")
				}
				cancel()
			}()

			final, err := waitForScan(ctx, service, scan.ID)
			if err != nil {
				return err
			}
			printScan(final)

			if final.Status == models.ScanStatusFailed {
				return fmt.Errorf("scan failed: %s", final.ErrorMessage)
			}
			return nil
		},
	}

	scanCmd.Flags().StringVarP(&opts.Target, "target", "t", "", "Target URL to scan (required)")
	scanCmd.Flags().StringSliceVar(&opts.Tools, "tools", nil, "Tool ids to run (comma separated)")
	scanCmd.Flags().StringVar(&opts.Profile, "profile", "", "Scan profile to run (quick, full)")
	scanCmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")

	scanCmd.MarkFlagRequired("target")

	return scanCmd
}

func waitForScan(ctx context.Context, service services.ScanServiceMethods, scanID string) (*models.Scan, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		scan, err := service.GetScan(scanID)
		if err != nil {
			return nil, err
		}
		if scan.Status.Terminal() {
			return scan, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			// One final read so a cancelled scan still gets reported.
			time.Sleep(time.Second)
			return service.GetScan(scanID)
		}
	}
}

func printScan(scan *models.Scan) {
	fmt.Printf("\nScan %s\n", scan.ID)
	fmt.Printf("Target:  %s\n", scan.TargetURL)
	fmt.Printf("Status:  %s\n", scan.Status)
	fmt.Printf("Rating:  %s\n", scan.OverallRating)
	if scan.ErrorMessage != "" {
		fmt.Printf("Error:   %s\n", scan.ErrorMessage)
	}

	if len(scan.ToolFailures) > 0 {
		fmt.Println("\nFailed tools:")
		for _, failure := range scan.ToolFailures {
			fmt.Printf("  • %s: %s\n", failure.ToolID, failure.Error)
		}
	}

	fmt.Printf("\nFindings (%d):\n", len(scan.Vulnerabilities))
	for _, vuln := range scan.Vulnerabilities {
		fmt.Printf("  • [%s] %s\n", vuln.Severity, vuln.Name)
		if vuln.CVEID != "" {
			fmt.Printf("    CVE: %s\n", vuln.CVEID)
		}
	}
}

// NewListToolsCommand creates the list-tools command.
func NewListToolsCommand() *cobra.Command {
	var configPath string

	listToolsCmd := &cobra.Command{
		Use:   "list-tools",
		Short: "List configured scanning tools",
		Long:  `List the tools configured in the catalog plus the built-in adapters and scan profiles`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			catalog, err := tools.LoadCatalog(configPath)
			if err != nil {
				return err
			}
			registry := catalog.BuildRegistry(tools.RegistryOptions{})

			fmt.Println("Available Tools:")
			fmt.Println("================")
			for _, adapter := range registry.All() {
				fmt.Printf("\n• %s\n", adapter.ID())
				if adapter.Description() != "" {
					fmt.Printf("  %s\n", adapter.Description())
				}
			}

			fmt.Println("\nProfiles:")
			fmt.Println("=========")
			for _, name := range tools.ProfileNames() {
				ids, err := tools.ProfileTools(name)
				if err != nil {
					continue
				}
				fmt.Printf("\n• %s: %v\n", name, ids)
			}
			return nil
		},
	}

	listToolsCmd.Flags().StringVar(&configPath, "config", "./config", "Configuration directory path")

	return listToolsCmd
}
