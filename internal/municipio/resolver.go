package municipio

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rezonia/nfse-renderer/internal/format"
)

// Resolver loads the name table once and answers lookups from memory.
// A failed load is kept as an empty table until Reload or Clear.
type Resolver struct {
	source  NameSource
	timeout time.Duration
	log     *zap.Logger

	group singleflight.Group
	table atomic.Pointer[map[string]string]
}

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger used for swallowed failures
func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithTimeout bounds a table load
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

// NewResolver creates a resolver over source
func NewResolver(source NameSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:  source,
		timeout: 30 * time.Second,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Preload loads the table if it is not loaded yet
func (r *Resolver) Preload(ctx context.Context) {
	if r.table.Load() == nil {
		r.load(ctx, false)
	}
}

// Reload fetches the table again and swaps it in
func (r *Resolver) Reload(ctx context.Context) {
	r.load(ctx, true)
}

// Clear drops the table; the next lookup loads it again
func (r *Resolver) Clear() {
	r.table.Store(nil)
}

// Len returns the number of known municipalities
func (r *Resolver) Len() int {
	t := r.table.Load()
	if t == nil {
		return 0
	}
	return len(*t)
}

// ResolveName returns the display name for code, or format.NotInformed
func (r *Resolver) ResolveName(ctx context.Context, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return format.NotInformed
	}
	t := r.table.Load()
	if t == nil {
		t = r.load(ctx, false)
	}
	if name, ok := (*t)[code]; ok {
		return name
	}
	return format.NotInformed
}

func (r *Resolver) load(ctx context.Context, force bool) *map[string]string {
	v, _, _ := r.group.Do("names", func() (any, error) {
		if t := r.table.Load(); t != nil && !force {
			return t, nil
		}

		// the table outlives the request that triggered the load
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		names, err := r.source.LoadNames(lctx)
		if err != nil {
			r.log.Warn("municipality names unavailable",
				zap.String("source", r.source.Name()),
				zap.Error(err))
			names = map[string]string{}
		} else {
			r.log.Info("municipality names loaded",
				zap.String("source", r.source.Name()),
				zap.Int("count", len(names)))
		}
		r.table.Store(&names)
		return &names, nil
	})
	return v.(*map[string]string)
}
