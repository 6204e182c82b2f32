package layout_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-renderer/internal/assets"
	"github.com/rezonia/nfse-renderer/internal/format"
	"github.com/rezonia/nfse-renderer/internal/layout"
	"github.com/rezonia/nfse-renderer/internal/model"
)

type fakeLogos struct {
	logos map[string]*assets.Image
	brand *assets.Image
}

func (f fakeLogos) MunicipalityLogo(code string) (*assets.Image, bool) {
	img, ok := f.logos[code]
	return img, ok
}

func (f fakeLogos) BrandLogo() (*assets.Image, bool) { return f.brand, f.brand != nil }

type fakeNames struct {
	mu    sync.Mutex
	names map[string]string
	calls []string
}

func (f *fakeNames) ResolveName(_ context.Context, code string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, code)
	if n, ok := f.names[code]; ok {
		return n
	}
	return format.NotInformed
}

func sampleRecord() model.Record {
	return model.Record{
		Number:           "1024",
		VerificationCode: "ABCD-1234",
		RegistrationID:   "39616924",
		IssuedAt:         "2024-03-15T10:20:30",
		RPS:              model.RPS{Number: "501"},
		Provider: model.Party{
			Name:  "ACME SERVICOS LTDA",
			TaxID: "11222333000144",
			Address: model.Address{
				Street: "DAS FLORES", Number: "100", District: "CENTRO",
				MunicipalityCode: "3550308", State: "SP", PostalCode: "1310100",
			},
		},
		Customer: model.Party{
			Name:  "JOAO DA SILVA",
			TaxID: "12345678901",
			Address: model.Address{
				Street: "PAULISTA", Number: "900", Complement: "SALA 12",
				MunicipalityCode: "4106902", State: "PR",
			},
		},
		Service:          model.Service{Description: "Consultoria"},
		Amounts:          model.Amounts{Services: "1500", Rate: "0.05", ISS: "75"},
		MunicipalityCode: "3550308",
	}
}

// texts flattens every text value under b
func texts(b layout.Block) []string {
	switch v := b.(type) {
	case layout.Text:
		return []string{v.Value}
	case layout.Stack:
		var out []string
		for _, it := range v.Items {
			out = append(out, texts(it)...)
		}
		return out
	case layout.Table:
		var out []string
		for _, row := range v.Rows {
			for _, c := range row {
				if !c.Covered && c.Content != nil {
					out = append(out, texts(c.Content)...)
				}
			}
		}
		return out
	}
	return nil
}

func sectionTexts(s layout.Section) string {
	return strings.Join(texts(s.Body), "|")
}

func TestBuildRecord_Sections(t *testing.T) {
	names := &fakeNames{names: map[string]string{"3550308": "São Paulo", "4106902": "Curitiba"}}
	b := layout.NewBuilder(fakeLogos{}, names)

	content, err := b.BuildRecord(context.Background(), sampleRecord(), 3)
	require.NoError(t, err)

	kinds := make([]layout.SectionKind, len(content.Sections))
	for i, s := range content.Sections {
		kinds[i] = s.Kind
		assert.Equal(t, 3, s.Record)
	}
	assert.Equal(t, []layout.SectionKind{
		layout.KindHeader, layout.KindMeta, layout.KindProvider, layout.KindCustomer,
		layout.KindDescription, layout.KindTotals, layout.KindNotices,
	}, kinds)

	header := sectionTexts(content.Sections[0])
	assert.Contains(t, header, "PREFEITURA MUNICIPAL DE SÃO PAULO")
	assert.Contains(t, header, "Número|1024")

	meta := sectionTexts(content.Sections[1])
	assert.Contains(t, meta, "15/03/2024 10:20")
	assert.Contains(t, meta, "ABCD-1234")
	assert.Contains(t, meta, "501")

	provider := sectionTexts(content.Sections[2])
	assert.Contains(t, provider, "11.222.333/0001-44")
	assert.Contains(t, provider, "DAS FLORES, 100")
	assert.Contains(t, provider, "São Paulo / SP")
	assert.Contains(t, provider, "01.310-100")

	customer := sectionTexts(content.Sections[3])
	assert.Contains(t, customer, "123.456.789-01")
	assert.Contains(t, customer, "PAULISTA, 900 - SALA 12")
	assert.Contains(t, customer, "Curitiba / PR")
	assert.Contains(t, customer, "CEP|"+format.NotInformed)

	assert.Equal(t, "Consultoria", sectionTexts(content.Sections[4]))

	totals := sectionTexts(content.Sections[5])
	assert.Contains(t, totals, "1.500,00|1.500,00|0,05|75,00")

	assert.True(t, content.HasQR)
	assert.False(t, content.Cancelled)
	assert.ElementsMatch(t, []string{"3550308", "3550308", "4106902"}, names.calls)
}

func TestBuildRecord_Fallbacks(t *testing.T) {
	b := layout.NewBuilder(fakeLogos{}, &fakeNames{})

	content, err := b.BuildRecord(context.Background(), model.Record{}, 0)
	require.NoError(t, err)

	assert.Contains(t, sectionTexts(content.Sections[0]), "PREFEITURA MUNICIPAL DE SEU MUNICÍPIO")
	assert.Contains(t, sectionTexts(content.Sections[0]), "Número|"+format.Dash)
	assert.Equal(t, format.Dash+"|"+format.Dash+"|"+format.Dash,
		strings.Join(texts(content.Sections[1].Body)[3:], "|"))

	provider := sectionTexts(content.Sections[2])
	assert.Contains(t, provider, "Razão Social/Nome|"+format.NotInformed)
	assert.Contains(t, provider, "Endereço|"+format.NotInformed)
	assert.Contains(t, provider, format.NotInformed+" / "+format.NotInformed)

	assert.Equal(t, format.Dash, sectionTexts(content.Sections[4]))
	assert.Contains(t, sectionTexts(content.Sections[5]), "0,00|0,00|0,00|0,00")
	assert.False(t, content.HasQR)
}

func TestBuildRecord_ReceivedFallsBackToServices(t *testing.T) {
	b := layout.NewBuilder(fakeLogos{}, &fakeNames{})

	rec := model.Record{Amounts: model.Amounts{Services: "200", TotalReceived: "180.5"}}
	content, err := b.BuildRecord(context.Background(), rec, 0)
	require.NoError(t, err)
	assert.Contains(t, sectionTexts(content.Sections[5]), "200,00|180,50")

	rec.Amounts.TotalReceived = ""
	content, err = b.BuildRecord(context.Background(), rec, 0)
	require.NoError(t, err)
	assert.Contains(t, sectionTexts(content.Sections[5]), "200,00|200,00")
}

func TestBuildRecord_Logos(t *testing.T) {
	muni := &assets.Image{Name: "m", Type: "PNG", Width: 10, Height: 10}
	brand := &assets.Image{Name: "b", Type: "PNG", Width: 10, Height: 10}
	b := layout.NewBuilder(fakeLogos{logos: map[string]*assets.Image{"3550308": muni}, brand: brand}, &fakeNames{})

	content, err := b.BuildRecord(context.Background(), sampleRecord(), 0)
	require.NoError(t, err)

	header := content.Sections[0].Body.(layout.Table)
	logo := header.Rows[0][0].Content.(layout.Image)
	assert.Same(t, muni, logo.Image)

	provider := content.Sections[2].Body.(layout.Table)
	require.Len(t, provider.Rows, 6)
	brandCell := provider.Rows[0][2]
	assert.Equal(t, 6, brandCell.RowSpan)
	assert.Same(t, brand, brandCell.Content.(layout.Image).Image)
	for _, row := range provider.Rows[1:] {
		assert.True(t, row[2].Covered)
	}
}

func TestBuildRecord_MissingLogoIsBlank(t *testing.T) {
	b := layout.NewBuilder(fakeLogos{}, &fakeNames{})

	content, err := b.BuildRecord(context.Background(), sampleRecord(), 0)
	require.NoError(t, err)

	header := content.Sections[0].Body.(layout.Table)
	logo := header.Rows[0][0].Content.(layout.Image)
	assert.Nil(t, logo.Image)
	assert.Equal(t, 60.0, logo.FitH)

	provider := content.Sections[2].Body.(layout.Table)
	_, isSpacer := provider.Rows[0][2].Content.(layout.Spacer)
	assert.True(t, isSpacer)
}

func TestBuildDocument_PageBreaksBetweenRecords(t *testing.T) {
	b := layout.NewBuilder(fakeLogos{}, &fakeNames{})
	recs := []model.Record{sampleRecord(), {Number: "2"}, {Number: "3", Status: "C"}}

	doc, err := b.BuildDocument(context.Background(), recs)
	require.NoError(t, err)

	var breaks []int
	for i, s := range doc.Sections {
		if s.Kind == layout.KindPageBreak {
			breaks = append(breaks, i)
			assert.Equal(t, doc.Sections[i+1].Record, s.Record)
		}
	}
	assert.Equal(t, []int{7, 15}, breaks)
	assert.NotEqual(t, layout.KindPageBreak, doc.Sections[len(doc.Sections)-1].Kind)
	assert.Equal(t, "A4", doc.PageSize)
	assert.Equal(t, layout.Margins{Left: 18, Top: 16, Right: 18, Bottom: 76}, doc.Margins)

	// QR only on the first page of a record that has one
	assert.Len(t, doc.Footer(layout.PageContext{Page: 1, Record: 0, RecordPage: 1}), 1)
	assert.Empty(t, doc.Footer(layout.PageContext{Page: 2, Record: 0, RecordPage: 2}))
	assert.Empty(t, doc.Footer(layout.PageContext{Page: 3, Record: 1, RecordPage: 1}))

	// watermark on every page of the cancelled record only
	assert.Empty(t, doc.Header(layout.PageContext{Record: 0, RecordPage: 1}))
	wm := doc.Header(layout.PageContext{Record: 2, RecordPage: 2})
	require.Len(t, wm, 1)
	assert.Equal(t, "CANCELADA", wm[0].(layout.Watermark).Text)
}

func TestBuildDocument_Empty(t *testing.T) {
	b := layout.NewBuilder(fakeLogos{}, &fakeNames{})
	_, err := b.BuildDocument(context.Background(), nil)
	assert.ErrorIs(t, err, model.ErrEmptyInput)
}

func TestBuildRecord_Cancelled(t *testing.T) {
	b := layout.NewBuilder(fakeLogos{}, &fakeNames{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.BuildRecord(ctx, sampleRecord(), 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQRPayload(t *testing.T) {
	t.Run("verification url", func(t *testing.T) {
		rec := model.Record{RegistrationID: "396 169", Number: "1&2", VerificationCode: "AB/CD"}
		payload, ok := layout.QRPayload(rec, "https://example.gov/print.aspx")
		require.True(t, ok)

		u, err := url.Parse(payload)
		require.NoError(t, err)
		assert.Equal(t, "example.gov", u.Host)
		assert.Equal(t, url.Values{
			"inscricao":   {"396 169"},
			"nf":          {"1&2"},
			"verificacao": {"AB/CD"},
		}, u.Query())
		assert.Contains(t, payload, "nf=1%262")
	})

	t.Run("registration from rps", func(t *testing.T) {
		rec := model.Record{Number: "1", VerificationCode: "X", RPS: model.RPS{RegistrationID: "77"}}
		payload, ok := layout.QRPayload(rec, "")
		require.True(t, ok)
		assert.True(t, strings.HasPrefix(payload, layout.DefaultVerifyURL+"?"))
		assert.Contains(t, payload, "inscricao=77")
	})

	t.Run("signature fallback", func(t *testing.T) {
		rec := model.Record{Number: "1", VerificationCode: "X", Signature: "aHR0cHM6Ly9leGFtcGxlLmNvbS9xcg"}
		payload, ok := layout.QRPayload(rec, "")
		require.True(t, ok)
		assert.Equal(t, "https://example.com/qr", payload)
	})

	t.Run("binary signature kept raw", func(t *testing.T) {
		rec := model.Record{Signature: "/w=="}
		payload, ok := layout.QRPayload(rec, "")
		require.True(t, ok)
		assert.Equal(t, "/w==", payload)
	})

	t.Run("nothing available", func(t *testing.T) {
		_, ok := layout.QRPayload(model.Record{Number: "1"}, "")
		assert.False(t, ok)

		_, ok = layout.QRPayload(model.Record{Signature: format.NotInformed}, "")
		assert.False(t, ok)
	})
}

func TestAddressLine(t *testing.T) {
	tests := []struct {
		name string
		addr model.Address
		comp bool
		want string
	}{
		{"full", model.Address{StreetType: "R", Street: "A", Number: "1", Complement: "X"}, true, "R A, 1 - X"},
		{"no complement for provider", model.Address{Street: "A", Number: "1", Complement: "X"}, false, "A, 1"},
		{"no number", model.Address{Street: "A"}, false, "A"},
		{"number only", model.Address{Number: "1"}, false, "1"},
		{"empty", model.Address{}, true, format.NotInformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layout.AddressLine(tt.addr, tt.comp))
		})
	}
}

func TestResolveWidths(t *testing.T) {
	got := layout.ResolveWidths([]layout.Width{layout.Fixed(100), layout.Star(), layout.Fixed(140)}, 540)
	assert.Equal(t, []float64{100, 300, 140}, got)

	got = layout.ResolveWidths([]layout.Width{layout.Percent(25), layout.Percent(75)}, 400)
	assert.Equal(t, []float64{100, 300}, got)

	got = layout.ResolveWidths([]layout.Width{layout.Star(), layout.Star()}, 100)
	assert.Equal(t, []float64{50, 50}, got)
}
