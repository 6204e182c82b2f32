// Package processor renders normalized records into PDF or ZIP streams.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/layout"
	"github.com/rezonia/nfse-renderer/internal/model"
)

// Mode selects the output shape
type Mode string

const (
	ModeSingle   Mode = "single"
	ModeMultiple Mode = "multiple"
)

const (
	// DefaultPDFName is the suggested name of a single-mode document
	DefaultPDFName = "notas.pdf"
	// DefaultArchiveName is the suggested name of a multiple-mode archive
	DefaultArchiveName = "notas.zip"
)

// ErrUnknownMode is returned by ParseMode
var ErrUnknownMode = errors.New("unknown generation mode")

// ParseMode reads a mode parameter. Empty selects single.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeSingle:
		return ModeSingle, nil
	case ModeMultiple:
		return ModeMultiple, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// DocumentBuilder turns records into a document description
type DocumentBuilder interface {
	BuildDocument(ctx context.Context, recs []model.Record) (*layout.Document, error)
}

// Composer writes a document description as PDF
type Composer interface {
	Compose(doc *layout.Document, w io.Writer) error
}

// Pipeline renders records
type Pipeline struct {
	builder  DocumentBuilder
	composer Composer
	log      *zap.Logger
	workers  int
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithWorkers lets batch mode compose up to n records ahead of the one
// being archived. 1 renders strictly one record at a time.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPipeline creates a pipeline over a builder and a composer
func NewPipeline(builder DocumentBuilder, composer Composer, opts ...Option) *Pipeline {
	p := &Pipeline{
		builder:  builder,
		composer: composer,
		log:      zap.NewNop(),
		workers:  1,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Options selects the output of Render
type Options struct {
	Mode  Mode
	Batch BatchOptions
}

// Render dispatches to RenderSingle or RenderBatch
func (p *Pipeline) Render(ctx context.Context, recs []model.Record, opts Options) (io.ReadCloser, error) {
	switch opts.Mode {
	case ModeMultiple:
		return p.RenderBatch(ctx, recs, opts.Batch)
	case ModeSingle, "":
		return p.RenderSingle(ctx, recs)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
}

// RenderSingle renders every record into one document, each record
// starting on a new page. The document is built before the stream is
// returned; composition errors surface on the stream as *model.RenderError.
func (p *Pipeline) RenderSingle(ctx context.Context, recs []model.Record) (io.ReadCloser, error) {
	if len(recs) == 0 {
		return nil, model.ErrEmptyInput
	}
	doc, err := p.builder.BuildDocument(ctx, recs)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	go func() {
		err := p.composer.Compose(doc, pw)
		if err != nil {
			err = model.NewRenderError(0, DefaultPDFName, err)
			p.log.Error("pdf render failed", zap.Int("records", len(recs)), zap.Error(err))
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}

// RenderSingleBytes drains RenderSingle
func (p *Pipeline) RenderSingleBytes(ctx context.Context, recs []model.Record) ([]byte, error) {
	rc, err := p.RenderSingle(ctx, recs)
	if err != nil {
		return nil, err
	}
	return drain(rc)
}

// RenderBatchBytes drains RenderBatch
func (p *Pipeline) RenderBatchBytes(ctx context.Context, recs []model.Record, opts BatchOptions) ([]byte, error) {
	rc, err := p.RenderBatch(ctx, recs, opts)
	if err != nil {
		return nil, err
	}
	return drain(rc)
}

func drain(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(rc)
}
