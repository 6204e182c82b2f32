// Package nfsepdf renders Brazilian NFS-e XML documents into PDF files.
//
// A Generator is built once and reused; it preloads municipality logos and
// names, so construction may talk to S3, MongoDB, Redis or SQL depending on
// the configuration.
//
// Example usage:
//
//	gen, err := nfsepdf.NewGenerator(ctx, nfsepdf.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gen.Close(ctx)
//	pdf, _, err := gen.GenerateBytes(ctx, xmlData, nfsepdf.Request{})
package nfsepdf

import (
	"github.com/rezonia/nfse-renderer/internal/app"
	"github.com/rezonia/nfse-renderer/internal/config"
	"github.com/rezonia/nfse-renderer/internal/model"
	"github.com/rezonia/nfse-renderer/internal/processor"
)

// Re-export core types for public API
type (
	Record  = model.Record
	Party   = model.Party
	Address = model.Address
	Service = model.Service
	Amounts = model.Amounts
	Config  = config.Config
	Mode    = processor.Mode
	Request = app.Request
	Output  = app.Output
)

// Output modes
const (
	ModeSingle   = processor.ModeSingle
	ModeMultiple = processor.ModeMultiple
)

// Re-export error types
type (
	ParseError  = model.ParseError
	RenderError = model.RenderError
	InitError   = model.InitError
)

// Error categories, matched with errors.Is
var (
	ErrMalformedDocument = model.ErrMalformedDocument
	ErrMissingInvoiceKey = model.ErrMissingInvoiceKey
	ErrEmptyInput        = model.ErrEmptyInput
	ErrRenderFailure     = model.ErrRenderFailure
	ErrInitialization    = model.ErrInitialization
	ErrUnknownMode       = processor.ErrUnknownMode
)

// DefaultConfig returns the configuration used when Options.Config is nil
func DefaultConfig() *Config {
	return config.Default()
}

// ParseMode accepts "single", "multiple" or an empty string
func ParseMode(s string) (Mode, error) {
	return processor.ParseMode(s)
}

// DefaultFilename is the archive entry name used for a record
func DefaultFilename(rec Record, index int) string {
	return processor.DefaultFilename(rec, index)
}
