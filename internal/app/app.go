// Package app assembles the rendering service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/nfse-renderer/internal/assets"
	"github.com/rezonia/nfse-renderer/internal/config"
	"github.com/rezonia/nfse-renderer/internal/layout"
	"github.com/rezonia/nfse-renderer/internal/model"
	"github.com/rezonia/nfse-renderer/internal/municipio"
	xmlparser "github.com/rezonia/nfse-renderer/internal/parser/xml"
	"github.com/rezonia/nfse-renderer/internal/processor"
	"github.com/rezonia/nfse-renderer/internal/render"
	"github.com/rezonia/nfse-renderer/internal/storage"
)

// Service parses NFS-e XML and renders it
type Service struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *xmlparser.Registry
	logos    *assets.Resolver
	names    *municipio.Resolver
	pipeline *processor.Pipeline

	closers []func(context.Context) error
}

// Request selects the output of Generate
type Request struct {
	Mode        processor.Mode
	ArchiveName string
	FilenameFor func(rec model.Record, index int) string
}

// Output is a generated document ready to be streamed
type Output struct {
	Body               io.ReadCloser
	Records            int
	ContentType        string
	Filename           string
	ContentDisposition string
}

// New builds every collaborator from cfg and preloads logos and names.
// Only engine initialization and backend connection errors are fatal;
// unavailable assets degrade to blanks.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Service{cfg: cfg, log: log, registry: xmlparser.NewRegistry()}

	rcfg := render.DefaultConfig()
	rcfg.FontDir = cfg.Render.FontDir
	rcfg.FontFamily = cfg.Render.FontFamily
	engine, err := render.NewEngine(rcfg, render.WithLogger(log.Named("render")))
	if err != nil {
		return nil, err
	}

	var s3api storage.S3API
	s3client := func() (storage.S3API, error) {
		if s3api != nil {
			return s3api, nil
		}
		c, err := storage.NewS3Client(storage.S3Options{
			Region:         cfg.AWS.Region,
			Endpoint:       cfg.AWS.Endpoint,
			ForcePathStyle: cfg.AWS.ForcePathStyle,
		})
		if err != nil {
			return nil, err
		}
		s3api = c
		return c, nil
	}

	logoSource, eager, err := s.logoSource(s3client)
	if err != nil {
		return nil, err
	}
	nameSource, err := s.nameSource(ctx, s3client)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}

	s.logos = assets.NewResolver(logoSource,
		assets.WithEager(eager),
		assets.WithFetchTimeout(cfg.Assets.FetchTimeout),
		assets.WithLogger(log.Named("assets")),
	)
	s.names = municipio.NewResolver(nameSource,
		municipio.WithTimeout(cfg.Municipios.Timeout),
		municipio.WithLogger(log.Named("municipio")),
	)
	s.Preload(ctx)

	opts := layout.DefaultOptions()
	if cfg.Layout.VerifyURL != "" {
		opts.VerifyURL = cfg.Layout.VerifyURL
	}
	if cfg.Layout.OrgFallback != "" {
		opts.OrgFallback = cfg.Layout.OrgFallback
	}
	if cfg.Layout.Department != "" {
		opts.Department = cfg.Layout.Department
	}
	if cfg.Layout.Title != "" {
		opts.Title = cfg.Layout.Title
	}
	builder := layout.NewBuilder(s.logos, s.names,
		layout.WithOptions(opts),
		layout.WithLogger(log.Named("layout")),
	)
	s.pipeline = processor.NewPipeline(builder, engine,
		processor.WithWorkers(cfg.Render.Workers),
		processor.WithLogger(log.Named("processor")),
	)

	logos, brand := s.logos.Loaded()
	log.Info("renderer ready",
		zap.String("asset_source", logoSource.Name()),
		zap.String("name_source", nameSource.Name()),
		zap.Int("logos", logos),
		zap.Bool("brand", brand),
		zap.Int("municipios", s.names.Len()),
	)
	return s, nil
}

func (s *Service) logoSource(s3client func() (storage.S3API, error)) (assets.Source, bool, error) {
	a := s.cfg.Assets
	if strings.EqualFold(a.Source, config.AssetSourceS3) {
		api, err := s3client()
		if err != nil {
			return nil, false, fmt.Errorf("create s3 client: %w", err)
		}
		return assets.NewS3Source(api, a.S3.Bucket, a.S3.MunicipiosPrefix, a.S3.BrandKey), a.S3.Eager, nil
	}
	return assets.NewFileSystemSource(a.Dirs, a.BrandFiles), true, nil
}

func (s *Service) nameSource(ctx context.Context, s3client func() (storage.S3API, error)) (municipio.NameSource, error) {
	m := s.cfg.Municipios
	switch strings.ToLower(m.Source) {
	case config.NameSourceS3:
		api, err := s3client()
		if err != nil {
			return nil, fmt.Errorf("create s3 client: %w", err)
		}
		return municipio.NewS3Source(api, m.S3.Bucket, m.S3.Key), nil

	case config.NameSourceMongo:
		client, coll, err := municipio.ConnectMongo(ctx, m.Mongo.URI, m.Mongo.Database, m.Mongo.Collection)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		s.onClose(func(ctx context.Context) error { return client.Disconnect(ctx) })
		return municipio.NewMongoSource(coll, m.Mongo.IDField, m.Mongo.NameField), nil

	case config.NameSourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     m.Redis.Addr,
			Password: m.Redis.Password,
			DB:       m.Redis.DB,
		})
		s.onClose(func(context.Context) error { return client.Close() })
		return municipio.NewRedisSource(client, m.Redis.Key), nil

	case config.NameSourceSQL:
		db, err := municipio.OpenSQL(m.SQL.Driver, m.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sql: %w", err)
		}
		s.onClose(func(context.Context) error { return db.Close() })
		return municipio.NewSQLSource(db, m.SQL.Query), nil
	}
	return municipio.NewFileSource(m.Path), nil
}

func (s *Service) onClose(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Preload loads logos and municipality names concurrently. It is a no-op
// once both caches are populated.
func (s *Service) Preload(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { s.logos.Preload(ctx); return nil })
	g.Go(func() error { s.names.Preload(ctx); return nil })
	_ = g.Wait()
}

// Reload replaces both caches atomically
func (s *Service) Reload(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error { s.logos.Reload(ctx); return nil })
	g.Go(func() error { s.names.Reload(ctx); return nil })
	_ = g.Wait()
}

// Status reports what the caches hold
type Status struct {
	Logos      int  `json:"logos"`
	Brand      bool `json:"brand"`
	Municipios int  `json:"municipios"`
}

// Status returns cache sizes
func (s *Service) Status() Status {
	logos, brand := s.logos.Loaded()
	return Status{Logos: logos, Brand: brand, Municipios: s.names.Len()}
}

// Parse normalizes XML into records
func (s *Service) Parse(ctx context.Context, xml []byte) ([]model.Record, error) {
	return s.registry.Normalize(ctx, xml)
}

// Generate parses xml and starts rendering. Parse errors and empty input
// are returned before any stream exists.
func (s *Service) Generate(ctx context.Context, xml []byte, req Request) (*Output, error) {
	recs, err := s.Parse(ctx, xml)
	if err != nil {
		return nil, err
	}
	return s.GenerateRecords(ctx, recs, req)
}

// GenerateRecords renders already parsed records
func (s *Service) GenerateRecords(ctx context.Context, recs []model.Record, req Request) (*Output, error) {
	mode := req.Mode
	if mode == "" {
		mode = processor.ModeSingle
	}
	out := &Output{Records: len(recs)}
	switch mode {
	case processor.ModeSingle:
		out.ContentType = "application/pdf"
		out.Filename = processor.DefaultPDFName
		out.ContentDisposition = disposition("inline", out.Filename)
	case processor.ModeMultiple:
		out.ContentType = "application/zip"
		out.Filename = ArchiveName(req.ArchiveName)
		out.ContentDisposition = disposition("attachment", out.Filename)
	default:
		return nil, fmt.Errorf("%w: %q", processor.ErrUnknownMode, mode)
	}

	body, err := s.pipeline.Render(ctx, recs, processor.Options{
		Mode:  mode,
		Batch: processor.BatchOptions{FilenameFor: req.FilenameFor},
	})
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

// GenerateBytes is Generate with the stream drained
func (s *Service) GenerateBytes(ctx context.Context, xml []byte, req Request) ([]byte, *Output, error) {
	out, err := s.Generate(ctx, xml, req)
	if err != nil {
		return nil, nil, err
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, nil, err
	}
	return data, out, nil
}

// Close releases backend connections
func (s *Service) Close(ctx context.Context) error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i](ctx))
	}
	s.closers = nil
	return errors.Join(errs...)
}

// ArchiveName trims a requested archive name, defaulting to notas.zip
func ArchiveName(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return processor.DefaultArchiveName
	}
	return name
}

// disposition quotes plain ASCII names as browsers expect and falls back
// to RFC 2231 encoding for anything else
func disposition(kind, filename string) string {
	plain := true
	for _, r := range filename {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			plain = false
			break
		}
	}
	if plain {
		return kind + `; filename="` + filename + `"`
	}
	if v := mime.FormatMediaType(kind, map[string]string{"filename": filename}); v != "" {
		return v
	}
	return kind
}
