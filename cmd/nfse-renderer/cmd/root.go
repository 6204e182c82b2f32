package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/config"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	configPath   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "nfse-renderer",
	Short: "Render Brazilian NFS-e XML into PDF documents",
	Long: `NFS-e Renderer turns service invoice XML (São Paulo NFe and ABRASF
CompNfse layouts) into printable PDF documents, one page per invoice, or a
ZIP archive with one PDF per invoice.

Configuration is read from an optional YAML file, then from the environment
(AWS_*, S3_*, ASSET*, MUNICIPIO*, MONGO_*, REDIS_*, NFSE_*), then from flags.

Examples:
  # Render every invoice of a file into one PDF
  nfse-renderer render notas.xml -o notas.pdf

  # One PDF per invoice, packed into a ZIP
  nfse-renderer render notas.xml --mode multiple -o lote.zip

  # Start the HTTP API
  nfse-renderer serve --config nfse.yaml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (env: NFSE_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format for reports (json, table)")

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if configPath == "" {
		configPath = os.Getenv("NFSE_CONFIG")
	}
}

// loadConfig layers defaults, the config file and the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Resolve(configPath, config.OSEnv)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger returns a development logger with --verbose and a quiet
// production logger otherwise
func newLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

func printVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// collectFiles expands globs and directories into files with one of exts
func collectFiles(args []string, exts ...string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}
		if len(matches) == 0 {
			matches = []string{arg}
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", match)
			}
			if !info.IsDir() {
				files = append(files, match)
				continue
			}
			err = filepath.WalkDir(match, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && hasExt(path, exts) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	return files, nil
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
