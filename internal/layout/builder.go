package layout

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/nfse-renderer/internal/assets"
	"github.com/rezonia/nfse-renderer/internal/format"
	"github.com/rezonia/nfse-renderer/internal/model"
)

// LogoResolver provides preloaded logos
type LogoResolver interface {
	MunicipalityLogo(code string) (*assets.Image, bool)
	BrandLogo() (*assets.Image, bool)
}

// NameResolver maps municipality codes to display names
type NameResolver interface {
	ResolveName(ctx context.Context, code string) string
}

// Options holds the texts and links printed on every invoice
type Options struct {
	VerifyURL   string
	OrgPrefix   string
	OrgFallback string
	Department  string
	Title       string
	Notices     []string

	QRSize float64
}

// DefaultOptions returns the São Paulo defaults
func DefaultOptions() Options {
	return Options{
		VerifyURL:   DefaultVerifyURL,
		OrgPrefix:   "PREFEITURA MUNICIPAL DE ",
		OrgFallback: "SEU MUNICÍPIO",
		Department:  "SECRETARIA MUNICIPAL DAS FINANÇAS",
		Title:       "NOTA FISCAL ELETRÔNICA DE SERVIÇO - NFS-e",
		Notices: []string{
			"1 - A autenticidade desta Nota Fiscal pode ser validada no portal do município utilizando o Código de Verificação.",
			"2 - Este documento foi emitido eletronicamente.",
		},
		QRSize: 64,
	}
}

// Builder turns records into documents
type Builder struct {
	logos LogoResolver
	names NameResolver
	opts  Options
	log   *zap.Logger
}

// BuilderOption configures a Builder
type BuilderOption func(*Builder)

// WithOptions replaces the printed texts
func WithOptions(opts Options) BuilderOption {
	return func(b *Builder) { b.opts = opts }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) BuilderOption {
	return func(b *Builder) { b.log = log }
}

// NewBuilder creates a builder over the given resolvers
func NewBuilder(logos LogoResolver, names NameResolver, opts ...BuilderOption) *Builder {
	b := &Builder{
		logos: logos,
		names: names,
		opts:  DefaultOptions(),
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RecordContent is the section list of one invoice and its QR payload
type RecordContent struct {
	Sections  []Section
	QR        string
	HasQR     bool
	Cancelled bool
}

// BuildRecord builds the sections of one invoice. Municipality names are
// looked up concurrently; everything else is computed from rec.
func (b *Builder) BuildRecord(ctx context.Context, rec model.Record, index int) (RecordContent, error) {
	var orgName, providerCity, customerCity string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		orgName = b.names.ResolveName(gctx, rec.MunicipalityCode)
		return nil
	})
	g.Go(func() error {
		providerCity = b.names.ResolveName(gctx, rec.Provider.Address.MunicipalityCode)
		return nil
	})
	g.Go(func() error {
		customerCity = b.names.ResolveName(gctx, rec.Customer.Address.MunicipalityCode)
		return nil
	})
	if err := g.Wait(); err != nil {
		return RecordContent{}, err
	}
	if err := ctx.Err(); err != nil {
		return RecordContent{}, err
	}

	sections := []Section{
		b.header(rec, orgName),
		b.meta(rec),
		b.provider(rec, providerCity),
		b.customer(rec, customerCity),
		b.description(rec),
		b.totals(rec),
		b.notices(),
	}
	for i := range sections {
		sections[i].Record = index
	}

	qr, ok := QRPayload(rec, b.opts.VerifyURL)
	return RecordContent{
		Sections:  sections,
		QR:        qr,
		HasQR:     ok,
		Cancelled: rec.Cancelled(),
	}, nil
}

// BuildDocument builds one document holding every record, each starting
// on a new page.
func (b *Builder) BuildDocument(ctx context.Context, recs []model.Record) (*Document, error) {
	if len(recs) == 0 {
		return nil, model.ErrEmptyInput
	}

	contents := make([]RecordContent, len(recs))
	for i, rec := range recs {
		c, err := b.BuildRecord(ctx, rec, i)
		if err != nil {
			return nil, err
		}
		contents[i] = c
	}

	doc := &Document{
		PageSize:     "A4",
		Margins:      Margins{Left: 18, Top: 16, Right: 18, Bottom: 76},
		DefaultStyle: Style{Size: 10, LineHeight: 1},
	}
	for i, c := range contents {
		if i > 0 {
			doc.Sections = append(doc.Sections, PageBreak(i))
		}
		doc.Sections = append(doc.Sections, c.Sections...)
	}

	doc.Header = func(pc PageContext) []Block {
		if pc.Record < 0 || pc.Record >= len(contents) || !contents[pc.Record].Cancelled {
			return nil
		}
		return []Block{CancelledWatermark()}
	}
	doc.Footer = func(pc PageContext) []Block {
		if pc.RecordPage != 1 || pc.Record < 0 || pc.Record >= len(contents) {
			return nil
		}
		c := contents[pc.Record]
		if !c.HasQR {
			return nil
		}
		return []Block{QRCode{Payload: c.QR, Size: b.opts.QRSize, Align: AlignRight}}
	}
	return doc, nil
}

// CancelledWatermark is the overlay printed on cancelled invoices
func CancelledWatermark() Watermark {
	return Watermark{
		Text:     "CANCELADA",
		Angle:    35,
		FontSize: 110,
		Color:    "#D32F2F",
		Opacity:  0.7,
	}
}

func (b *Builder) orgName(resolved string) string {
	name := strings.TrimSpace(resolved)
	if name == "" || name == format.NotInformed {
		name = b.opts.OrgFallback
	}
	return b.opts.OrgPrefix + strings.ToUpper(name)
}
