package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-renderer/internal/format"
	xmlparser "github.com/rezonia/nfse-renderer/internal/parser/xml"
	"github.com/rezonia/nfse-renderer/internal/processor"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Check that NFS-e XML files can be rendered",
	Long: `Parse one or more XML files and list the invoices found in each.

A file is invalid when it is not well-formed XML or when no invoice
collection (NFe or CompNfse) is present. No PDF is produced and no
asset backend is contacted.

Examples:
  nfse-renderer validate notas.xml
  nfse-renderer validate xml/ -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// ValidationResult holds the outcome for a single file
type ValidationResult struct {
	File     string          `json:"file"`
	Valid    bool            `json:"valid"`
	Schema   string          `json:"schema,omitempty"`
	Invoices []InvoiceDigest `json:"invoices,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// InvoiceDigest identifies one invoice of a file
type InvoiceDigest struct {
	Number    string `json:"number,omitempty"`
	RPS       string `json:"rps,omitempty"`
	IssuedAt  string `json:"issuedAt,omitempty"`
	Provider  string `json:"provider,omitempty"`
	Total     string `json:"total"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Filename  string `json:"filename"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args, ".xml")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to validate")
	}

	registry := xmlparser.NewRegistry()
	results := make([]*ValidationResult, 0, len(files))
	allValid := true
	for _, file := range files {
		result := validateFile(cmd.Context(), registry, file)
		results = append(results, result)
		allValid = allValid && result.Valid
	}

	if outputFormat == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		printValidation(results)
	}

	if !allValid {
		return fmt.Errorf("validation failed")
	}
	return nil
}

func validateFile(ctx context.Context, registry *xmlparser.Registry, file string) *ValidationResult {
	result := &ValidationResult{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read file: %v", err)
		return result
	}
	recs, err := registry.Normalize(ctx, data)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Valid = true
	result.Schema = string(recs[0].Schema)
	for i, rec := range recs {
		result.Invoices = append(result.Invoices, InvoiceDigest{
			Number:    rec.Number,
			RPS:       rec.RPS.Number,
			IssuedAt:  rec.IssuedAt,
			Provider:  rec.Provider.Name,
			Total:     format.FormatMoney(rec.Amounts.Services),
			Cancelled: rec.Cancelled(),
			Filename:  processor.DefaultFilename(rec, i),
		})
	}
	return result
}

func printValidation(results []*ValidationResult) {
	for _, r := range results {
		if !r.Valid {
			fmt.Printf("✗ %s: INVALID\n", r.File)
			fmt.Printf("  - %s\n", r.Error)
			continue
		}
		fmt.Printf("✓ %s: VALID (%s, %d invoices)\n", r.File, r.Schema, len(r.Invoices))

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  NUMBER\tRPS\tISSUED\tTOTAL\tSTATUS\tFILE")
		for _, inv := range r.Invoices {
			status := "active"
			if inv.Cancelled {
				status = "cancelled"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
				inv.Number, inv.RPS, inv.IssuedAt, inv.Total, status, inv.Filename)
		}
		tw.Flush()
	}
}
