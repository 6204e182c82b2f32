package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/app"
	"github.com/rezonia/nfse-renderer/internal/model"
	"github.com/rezonia/nfse-renderer/internal/processor"
)

var (
	outputFile string
	renderMode string
	zipName    string
	timeout    time.Duration
)

var renderCmd = &cobra.Command{
	Use:   "render [files...]",
	Short: "Render NFS-e XML files into PDF",
	Long: `Render one or more NFS-e XML files.

Invoices of every file are rendered in argument order. In single mode all
of them go into one PDF, one page per invoice. In multiple mode each
invoice becomes its own PDF inside a ZIP archive.

Examples:
  nfse-renderer render notas.xml
  nfse-renderer render notas.xml -o - > notas.pdf
  nfse-renderer render xml/ --mode multiple --zip-name lote.zip`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file, - for stdout (default: notas.pdf or the zip name)")
	renderCmd.Flags().StringVarP(&renderMode, "mode", "m", "single", "Output mode (single, multiple)")
	renderCmd.Flags().StringVar(&zipName, "zip-name", "", "Archive name in multiple mode (default: notas.zip)")
	renderCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Rendering timeout")
}

func runRender(cmd *cobra.Command, args []string) error {
	mode, err := processor.ParseMode(renderMode)
	if err != nil {
		return err
	}
	files, err := collectFiles(args, ".xml")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to render")
	}
	printVerbose("Found %d files to render\n", len(files))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(zap.NewAtomicLevelAt(zap.WarnLevel))
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close(context.Background()) //nolint:errcheck

	recs, err := parseFiles(ctx, svc, files)
	if err != nil {
		return err
	}

	out, err := svc.GenerateRecords(ctx, recs, app.Request{Mode: mode, ArchiveName: zipName})
	if err != nil {
		return err
	}
	defer out.Body.Close()

	target := outputFile
	if target == "" {
		target = out.Filename
	}
	n, err := writeOutput(target, out.Body)
	if err != nil {
		return err
	}
	printVerbose("Wrote %d records (%d bytes) to %s\n", out.Records, n, target)
	return nil
}

func parseFiles(ctx context.Context, svc *app.Service, files []string) ([]model.Record, error) {
	var recs []model.Record
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		parsed, err := svc.Parse(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		printVerbose("  %s: %d invoices\n", file, len(parsed))
		recs = append(recs, parsed...)
	}
	return recs, nil
}

// writeOutput copies body to path. A partial file is removed on failure.
func writeOutput(path string, body io.Reader) (int64, error) {
	if path == "-" {
		return io.Copy(os.Stdout, body)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	n, err := io.Copy(f, body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, err
	}
	return n, nil
}
