package server

import (
	"fmt"
	"os"

	"opensentinel/api/routes"
	"opensentinel/internal/config"
	"opensentinel/internal/dao"
	"opensentinel/internal/database"
	"opensentinel/internal/notification"
	"opensentinel/internal/services"
	"opensentinel/pkg/engine"
	"opensentinel/pkg/logger"
	"opensentinel/pkg/tools"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type ServerOpts struct {
	Port    int
	Verbose bool
}

func NewServerCommand() *cobra.Command {
	opts := &ServerOpts{}

	serverCmd := &cobra.Command{
		Use:   "server",
		Short: "Start the OpenSentinel API server",
		Long:  `Start the OpenSentinel server exposing the scan orchestration REST API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			logLevel := logrus.InfoLevel
			if opts.Verbose {
				logLevel = logrus.DebugLevel
			}
			log := logger.NewLogger(logLevel)

			cfg := config.Load()
			if cmd.Flags().Changed("port") {
				cfg.ServerPort = opts.Port
			}

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

			var notifier engine.Notifier
			if cfg.DiscordEnabled || os.Getenv("DISCORD_TOKEN") != "" {
				client, err := notification.NewNotificationClient()
				if err != nil {
					log.WithError(err).Warn("Discord notifications disabled")
				} else {
					defer client.Close()
					notifier = client
					log.Info("Discord notifications enabled")
				}
			}

			scanDao := dao.NewScanDAO(db)
			eng := engine.New(scanDao, registry, engine.Options{
				AdapterTimeout:     cfg.AdapterTimeout,
				MaxConcurrentScans: cfg.MaxConcurrentScans,
				StoreRetries:       cfg.StoreRetries,
				StoreRetryDelay:    cfg.StoreRetryDelay,
				WorkDir:            cfg.WorkDir,
				Notifier:           notifier,
				Logger:             log,
			})

			scanService := services.NewScanService(scanDao, eng, log)
			toolService := services.NewToolService(registry)

			router := routes.InitRouter(scanService, toolService)
			log.WithFields(logger.Fields{"port": cfg.ServerPort}).Info("Starting API server")
			return router.Run(fmt.Sprintf(":%d", cfg.ServerPort))
		},
	}

	serverCmd.Flags().IntVarP(&opts.Port, "port", "p", 8080, "Port to run the server on")
	serverCmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")

	return serverCmd
}
