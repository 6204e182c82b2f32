package cmd

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-renderer/internal/pdfinfo"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [files...]",
	Short: "Show information about rendered PDF and ZIP files",
	Long: `Read rendered output back and report page count, PDF version,
creator and structural validity. ZIP archives are listed entry by entry.

Examples:
  nfse-renderer inspect notas.pdf
  nfse-renderer inspect lote.zip -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

// InspectResult holds the inspection of a single file
type InspectResult struct {
	File    string         `json:"file"`
	Archive bool           `json:"archive,omitempty"`
	Entries []pdfinfo.Info `json:"entries,omitempty"`
	Error   string         `json:"error,omitempty"`
}

var zipMagic = []byte("PK\x03\x04")

func runInspect(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, ".pdf", ".zip")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	results := make([]*InspectResult, 0, len(files))
	for _, file := range files {
		printVerbose("Inspecting: %s\n", file)
		results = append(results, inspectFile(file))
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tENTRY\tPAGES\tVERSION\tSIZE\tCREATOR\tVALID")
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\n", r.File, r.Error)
			continue
		}
		for _, e := range r.Entries {
			valid := "yes"
			if !e.Valid {
				valid = "no: " + e.Problem
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
				r.File, e.Name, e.Pages, e.Version, e.Size, e.Creator, valid)
		}
	}
	return tw.Flush()
}

func inspectFile(file string) *InspectResult {
	result := &InspectResult{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}

	if bytes.HasPrefix(data, zipMagic) {
		result.Archive = true
		entries, err := pdfinfo.InspectArchive(data)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		result.Entries = entries
		return result
	}

	info, err := pdfinfo.InspectBytes(data)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	info.Name = "-"
	result.Entries = []pdfinfo.Info{info}
	return result
}
