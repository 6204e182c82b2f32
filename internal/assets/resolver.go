package assets

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Resolver caches the logos of one Source. The cache is built by Preload
// and swapped whole by Reload, so readers never see a partial catalog.
type Resolver struct {
	source       Source
	eager        bool
	fetchTimeout time.Duration
	concurrency  int
	log          *zap.Logger

	mu    sync.Mutex // serializes builds
	cache atomic.Pointer[catalog]
}

type catalog struct {
	logos map[string]*entry
	brand *entry
}

type entry struct {
	loader Loader
	once   sync.Once
	img    *Image
}

// Option configures a Resolver
type Option func(*Resolver)

// WithEager downloads every indexed asset during Preload
func WithEager(eager bool) Option {
	return func(r *Resolver) { r.eager = eager }
}

// WithLogger sets the logger used for swallowed failures
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithFetchTimeout bounds a lazy download
func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.fetchTimeout = d }
}

// WithConcurrency bounds parallel downloads during an eager Preload
func WithConcurrency(n int) Option {
	return func(r *Resolver) { r.concurrency = n }
}

// NewResolver creates a resolver over source
func NewResolver(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:       source,
		eager:        true,
		fetchTimeout: 10 * time.Second,
		concurrency:  8,
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Preload indexes the source once. Later calls are no-ops until Clear.
func (r *Resolver) Preload(ctx context.Context) {
	if r.cache.Load() != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache.Load() != nil {
		return
	}
	r.cache.Store(r.build(ctx))
}

// Reload rebuilds the cache and replaces it atomically
func (r *Resolver) Reload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Store(r.build(ctx))
}

// Clear drops the cache
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Store(nil)
}

// Loaded reports how many municipality logos are indexed and whether a
// brand logo is known.
func (r *Resolver) Loaded() (logos int, brand bool) {
	c := r.cache.Load()
	if c == nil {
		return 0, false
	}
	return len(c.logos), c.brand != nil
}

// MunicipalityLogo returns the logo for a municipality code
func (r *Resolver) MunicipalityLogo(code string) (*Image, bool) {
	c := r.cache.Load()
	if c == nil {
		return nil, false
	}
	e, ok := c.logos[strings.TrimSpace(code)]
	if !ok {
		return nil, false
	}
	return r.resolve(context.Background(), e)
}

// BrandLogo returns the issuer brand logo
func (r *Resolver) BrandLogo() (*Image, bool) {
	c := r.cache.Load()
	if c == nil || c.brand == nil {
		return nil, false
	}
	return r.resolve(context.Background(), c.brand)
}

func (r *Resolver) build(ctx context.Context) *catalog {
	c := &catalog{logos: map[string]*entry{}}

	idx, err := r.source.Scan(ctx)
	if err != nil {
		r.log.Warn("asset source unavailable",
			zap.String("source", r.source.Name()),
			zap.Error(err))
		return c
	}

	for code, l := range idx.Logos {
		c.logos[code] = &entry{loader: l}
	}
	if idx.Brand != nil {
		c.brand = &entry{loader: *idx.Brand}
	}

	if r.eager {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		all := make([]*entry, 0, len(c.logos)+1)
		for _, e := range c.logos {
			all = append(all, e)
		}
		if c.brand != nil {
			all = append(all, c.brand)
		}
		for _, e := range all {
			e := e
			g.Go(func() error {
				r.resolve(gctx, e)
				return nil
			})
		}
		_ = g.Wait()
	}

	r.log.Info("assets indexed",
		zap.String("source", r.source.Name()),
		zap.Int("logos", len(c.logos)),
		zap.Bool("brand", c.brand != nil),
		zap.Bool("eager", r.eager))
	return c
}

// resolve downloads and decodes an entry on first use
func (r *Resolver) resolve(ctx context.Context, e *entry) (*Image, bool) {
	e.once.Do(func() {
		ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()

		data, err := e.loader.Fetch(ctx)
		if err != nil {
			r.log.Warn("asset unavailable", zap.String("asset", e.loader.Name), zap.Error(err))
			return
		}
		img, err := DecodeImage(e.loader.Name, data)
		if err != nil {
			r.log.Warn("asset unreadable", zap.String("asset", e.loader.Name), zap.Error(err))
			return
		}
		e.img = img
	})
	return e.img, e.img != nil
}
