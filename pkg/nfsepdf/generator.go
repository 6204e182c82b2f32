package nfsepdf

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/app"
	"github.com/rezonia/nfse-renderer/internal/config"
)

// Options configures a Generator
type Options struct {
	// Config defaults to DefaultConfig()
	Config *Config

	// Env applies environment overrides (NFSE_*, AWS_*, MONGO_*, ...) on
	// top of Config when set
	Env bool

	Logger *zap.Logger
}

// Generator turns NFS-e XML into PDF documents. It is safe for concurrent use.
type Generator struct {
	svc *app.Service
}

// NewGenerator builds a generator. Engine initialization failures match
// ErrInitialization.
func NewGenerator(ctx context.Context, opts Options) (*Generator, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Env {
		c := *cfg
		if err := config.FromEnv(&c, config.OSEnv); err != nil {
			return nil, err
		}
		cfg = &c
	}

	svc, err := app.New(ctx, cfg, opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Generator{svc: svc}, nil
}

// Parse normalizes XML into one record per invoice
func (g *Generator) Parse(ctx context.Context, r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return g.svc.Parse(ctx, data)
}

// Generate parses r and returns the rendered document as a stream. The
// caller must close Output.Body. Errors found while rendering surface
// from Body.Read.
func (g *Generator) Generate(ctx context.Context, r io.Reader, req Request) (*Output, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return g.svc.Generate(ctx, data, req)
}

// GenerateRecords renders records that were already parsed
func (g *Generator) GenerateRecords(ctx context.Context, recs []Record, req Request) (*Output, error) {
	return g.svc.GenerateRecords(ctx, recs, req)
}

// GenerateBytes is Generate with the whole document in memory
func (g *Generator) GenerateBytes(ctx context.Context, xml []byte, req Request) ([]byte, *Output, error) {
	return g.svc.GenerateBytes(ctx, xml, req)
}

// Reload drops cached logos and names and loads them again
func (g *Generator) Reload(ctx context.Context) {
	g.svc.Reload(ctx)
}

// Close releases backend connections
func (g *Generator) Close(ctx context.Context) error {
	return g.svc.Close(ctx)
}
