package tools

import (
	"fmt"
	"strings"

	"opensentinel/pkg/logger"
	"opensentinel/pkg/parsers"
	"opensentinel/pkg/runner"

	"github.com/spf13/viper"
)

// CatalogEntry is one configured scanner in the tool catalog file.
type CatalogEntry struct {
	ID          string   `yaml:"id" mapstructure:"id"`
	Description string   `yaml:"description" mapstructure:"description"`
	Command     string   `yaml:"command" mapstructure:"command"`
	Args        []string `yaml:"args" mapstructure:"args"`
	Output      string   `yaml:"output" mapstructure:"output"`
}

// Catalog is the set of configured external scanners, loaded from
// config/tools.yaml. The built-in header scan needs no catalog entry.
type Catalog struct {
	Tools []CatalogEntry `yaml:"tools" mapstructure:"tools"`
}

// LoadCatalog reads the tool catalog from the given config directory,
// with OPENSENTINEL_* environment overrides.
func LoadCatalog(configPath string) (*Catalog, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("tools")

	configPaths := []string{configPath}
	if configPath != "./config" {
		configPaths = append(configPaths, "./config")
	}
	configPaths = append(configPaths, "/etc/opensentinel", "$HOME/.opensentinel")
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("OPENSENTINEL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("tool catalog 'tools.yaml' not found in paths: %v", configPaths)
		}
		return nil, fmt.Errorf("reading tool catalog: %w", err)
	}

	var catalog Catalog
	if err := v.Unmarshal(&catalog); err != nil {
		return nil, fmt.Errorf("parsing tool catalog: %w", err)
	}
	if err := catalog.validate(); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"config_file": v.ConfigFileUsed(),
		"tools":       len(catalog.Tools),
	}).Info("Loaded tool catalog")

	return &catalog, nil
}

func (c *Catalog) validate() error {
	if len(c.Tools) == 0 {
		return fmt.Errorf("tool catalog must configure at least one tool")
	}
	for _, entry := range c.Tools {
		if entry.ID == "" {
			return fmt.Errorf("tool catalog entry missing id")
		}
		if _, ok := catalogParsers[entry.ID]; !ok {
			return fmt.Errorf("unknown tool id %q in catalog", entry.ID)
		}
		if entry.Command == "" {
			return fmt.Errorf("tool %q missing command", entry.ID)
		}
		if entry.Output == "" {
			return fmt.Errorf("tool %q missing output filename", entry.ID)
		}
	}
	return nil
}

// catalogParsers binds each command-backed tool id to its output parser.
var catalogParsers = map[string]func() parsers.Parser{
	ToolPortScan:      func() parsers.Parser { return parsers.NewNmapParser() },
	ToolNucleiScan:    func() parsers.Parser { return parsers.NewNucleiParser() },
	ToolZapActiveScan: func() parsers.Parser { return parsers.NewZapParser() },
	ToolSubdomainEnum: func() parsers.Parser { return parsers.NewSubdomainParser() },
	ToolDirFuzzing:    func() parsers.Parser { return parsers.NewFfufParser() },
	ToolTechDetection: func() parsers.Parser { return parsers.NewTechParser() },
}

// RegistryOptions configures BuildRegistry.
type RegistryOptions struct {
	WorkDir string
	Runner  runner.CommandRunner
	Logger  *logger.Logger
}

// BuildRegistry assembles the adapter registry from the catalog plus the
// built-in adapters that need no external binary.
func (c *Catalog) BuildRegistry(opts RegistryOptions) *Registry {
	registry := NewRegistry()
	for _, entry := range c.Tools {
		newParser := catalogParsers[entry.ID]
		registry.Register(NewCommandAdapter(CommandAdapterOptions{
			ID:          entry.ID,
			Description: entry.Description,
			Spec: CommandSpec{
				Command: entry.Command,
				Args:    entry.Args,
				Output:  entry.Output,
			},
			Parser: newParser(),
			Runner:      opts.Runner,
			WorkDir:     opts.WorkDir,
			Logger:      opts.Logger,
		}))
	}
	registry.Register(NewHeaderScanAdapter(nil))
	return registry
}
