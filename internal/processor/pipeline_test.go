package processor_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rezonia/nfse-renderer/internal/assets"
	"github.com/rezonia/nfse-renderer/internal/layout"
	"github.com/rezonia/nfse-renderer/internal/model"
	xmlparser "github.com/rezonia/nfse-renderer/internal/parser/xml"
	"github.com/rezonia/nfse-renderer/internal/processor"
	"github.com/rezonia/nfse-renderer/internal/render"
)

// countingBuilder records every BuildDocument call
type countingBuilder struct {
	mu    sync.Mutex
	calls [][]string
	inner processor.DocumentBuilder
}

func (b *countingBuilder) BuildDocument(ctx context.Context, recs []model.Record) (*layout.Document, error) {
	numbers := make([]string, len(recs))
	for i, r := range recs {
		numbers[i] = r.Number
	}
	b.mu.Lock()
	b.calls = append(b.calls, numbers)
	b.mu.Unlock()

	if b.inner != nil {
		return b.inner.BuildDocument(ctx, recs)
	}
	doc := &layout.Document{}
	for i, r := range recs {
		doc.Sections = append(doc.Sections, layout.Section{
			Kind: layout.KindHeader, Record: i,
			Body: layout.Text{Value: r.Number},
		})
	}
	return doc, nil
}

func (b *countingBuilder) Calls() [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// textComposer writes a fake PDF listing the section texts
type textComposer struct {
	mu    sync.Mutex
	calls int
	fail  string
}

func (c *textComposer) Compose(doc *layout.Document, w io.Writer) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	fmt.Fprint(w, "%PDF-fake")
	for _, s := range doc.Sections {
		text := s.Body.(layout.Text).Value
		if c.fail != "" && text == c.fail {
			return errors.New("engine exploded")
		}
		fmt.Fprintf(w, " %s", text)
	}
	return nil
}

func (c *textComposer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func records(numbers ...string) []model.Record {
	out := make([]model.Record, len(numbers))
	for i, n := range numbers {
		out[i] = model.Record{Number: n}
	}
	return out
}

func readArchive(t *testing.T, data []byte) (names []string, bodies map[string]string) {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	bodies = make(map[string]string)
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method)
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		names = append(names, f.Name)
		bodies[f.Name] = string(b)
	}
	return names, bodies
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    processor.Mode
		wantErr bool
	}{
		{"", processor.ModeSingle, false},
		{"single", processor.ModeSingle, false},
		{" MULTIPLE ", processor.ModeMultiple, false},
		{"zip", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := processor.ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, processor.ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultFilename(t *testing.T) {
	tests := []struct {
		name  string
		rec   model.Record
		index int
		want  string
	}{
		{"invoice number", model.Record{Number: "12/3 ABC*"}, 0, "nfse-12_3_ABC_.pdf"},
		{"rps number", model.Record{RPS: model.RPS{Number: "RPS-77"}}, 0, "nfse-RPS-77.pdf"},
		{"position", model.Record{}, 2, "nfse-3.pdf"},
		{"accents", model.Record{Number: "Nº 5"}, 0, "nfse-N__5.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, processor.DefaultFilename(tt.rec, tt.index))
		})
	}
}

func TestEmptyInput(t *testing.T) {
	builder := &countingBuilder{}
	composer := &textComposer{}
	p := processor.NewPipeline(builder, composer)
	ctx := context.Background()

	_, err := p.RenderSingle(ctx, nil)
	assert.ErrorIs(t, err, model.ErrEmptyInput)
	_, err = p.RenderBatch(ctx, []model.Record{}, processor.BatchOptions{})
	assert.ErrorIs(t, err, model.ErrEmptyInput)
	_, err = p.RenderBatchBytes(ctx, nil, processor.BatchOptions{})
	assert.ErrorIs(t, err, model.ErrEmptyInput)

	assert.Empty(t, builder.Calls())
	assert.Zero(t, composer.Calls())
}

func TestRenderSingle(t *testing.T) {
	builder := &countingBuilder{}
	composer := &textComposer{}
	p := processor.NewPipeline(builder, composer)

	out, err := p.RenderSingleBytes(context.Background(), records("1", "2", "3"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake 1 2 3", string(out))
	assert.Equal(t, [][]string{{"1", "2", "3"}}, builder.Calls())
	assert.Equal(t, 1, composer.Calls())
}

func TestRenderSingle_ComposeError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := processor.NewPipeline(&countingBuilder{}, &textComposer{fail: "2"}, processor.WithLogger(zap.New(core)))

	_, err := p.RenderSingleBytes(context.Background(), records("1", "2"))
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRenderFailure)
	assert.Contains(t, err.Error(), "engine exploded")
	assert.Equal(t, 1, logs.FilterMessage("pdf render failed").Len())
}

func TestRenderBatch(t *testing.T) {
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			builder := &countingBuilder{}
			composer := &textComposer{}
			p := processor.NewPipeline(builder, composer, processor.WithWorkers(workers))

			recs := records("10", "", "12/3", "10")
			recs[1].RPS.Number = "R1"
			out, err := p.RenderBatchBytes(context.Background(), recs, processor.BatchOptions{})
			require.NoError(t, err)

			names, bodies := readArchive(t, out)
			assert.Equal(t, []string{"nfse-10.pdf", "nfse-R1.pdf", "nfse-12_3.pdf", "nfse-10-2.pdf"}, names)
			assert.Equal(t, "%PDF-fake 10", bodies["nfse-10.pdf"])
			assert.Equal(t, "%PDF-fake ", bodies["nfse-R1.pdf"], "a record without number still renders")
			assert.Equal(t, "%PDF-fake 12/3", bodies["nfse-12_3.pdf"])
			assert.Equal(t, "%PDF-fake 10", bodies["nfse-10-2.pdf"])

			assert.Len(t, builder.Calls(), 4)
			for _, call := range builder.Calls() {
				assert.Len(t, call, 1)
			}
			assert.Equal(t, 4, composer.Calls())
		})
	}
}

func TestRenderBatch_CustomNames(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]int{}
	opts := processor.BatchOptions{
		FilenameFor: func(rec model.Record, index int) string {
			mu.Lock()
			seen[index]++
			mu.Unlock()
			return fmt.Sprintf("doc-%d-%s.pdf", index, rec.Number)
		},
	}
	p := processor.NewPipeline(&countingBuilder{}, &textComposer{})

	out, err := p.RenderBatchBytes(context.Background(), records("a", "b", "c"), opts)
	require.NoError(t, err)

	names, _ := readArchive(t, out)
	assert.Equal(t, []string{"doc-0-a.pdf", "doc-1-b.pdf", "doc-2-c.pdf"}, names)
	assert.Equal(t, map[int]int{0: 1, 1: 1, 2: 1}, seen)
}

func TestRenderBatch_ErrorReachesArchiveStream(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			core, logs := observer.New(zap.ErrorLevel)
			p := processor.NewPipeline(&countingBuilder{}, &textComposer{fail: "2"},
				processor.WithWorkers(workers), processor.WithLogger(zap.New(core)))

			rc, err := p.RenderBatch(context.Background(), records("1", "2", "3"), processor.BatchOptions{})
			require.NoError(t, err)
			_, err = io.ReadAll(rc)
			require.NoError(t, rc.Close())

			var rerr *model.RenderError
			require.ErrorAs(t, err, &rerr)
			assert.Equal(t, 1, rerr.Index)
			assert.Equal(t, "nfse-2.pdf", rerr.Name)
			assert.Equal(t, 1, logs.FilterMessage("archive render failed").Len())
		})
	}
}

func TestRenderBatch_ConsumerGoesAway(t *testing.T) {
	p := processor.NewPipeline(&countingBuilder{}, &textComposer{})

	rc, err := p.RenderBatch(context.Background(), records("1", "2", "3"), processor.BatchOptions{})
	require.NoError(t, err)
	buf := make([]byte, 4)
	_, err = rc.Read(buf)
	require.NoError(t, err)
	assert.NoError(t, rc.Close())
}

func TestRender_Dispatch(t *testing.T) {
	p := processor.NewPipeline(&countingBuilder{}, &textComposer{})
	ctx := context.Background()

	rc, err := p.Render(ctx, records("1"), processor.Options{})
	require.NoError(t, err)
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-fake 1", string(out))

	_, err = p.Render(ctx, records("1"), processor.Options{Mode: "tar"})
	assert.ErrorIs(t, err, processor.ErrUnknownMode)
}

type noLogos struct{}

func (noLogos) MunicipalityLogo(string) (*assets.Image, bool) { return nil, false }
func (noLogos) BrandLogo() (*assets.Image, bool)              { return nil, false }

type noNames struct{}

func (noNames) ResolveName(context.Context, string) string { return "Não informado" }

func TestEndToEnd(t *testing.T) {
	const doc = `<Root><NFe><ChaveNFe><NumeroNFe>123</NumeroNFe></ChaveNFe></NFe></Root>`
	ctx := context.Background()

	recs, err := xmlparser.NewRegistry().Normalize(ctx, []byte(doc))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	engine, err := render.NewEngine(render.DefaultConfig())
	require.NoError(t, err)

	t.Run("single", func(t *testing.T) {
		builder := &countingBuilder{inner: layout.NewBuilder(noLogos{}, noNames{})}
		p := processor.NewPipeline(builder, engine)

		out, err := p.RenderSingleBytes(ctx, recs)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
		assert.Len(t, builder.Calls(), 1)
	})

	t.Run("multiple", func(t *testing.T) {
		builder := &countingBuilder{inner: layout.NewBuilder(noLogos{}, noNames{})}
		p := processor.NewPipeline(builder, engine, processor.WithWorkers(2))

		two := append(recs, model.Record{RPS: model.RPS{Number: "RPS-77"}})
		out, err := p.RenderBatchBytes(ctx, two, processor.BatchOptions{})
		require.NoError(t, err)

		names, bodies := readArchive(t, out)
		assert.Equal(t, []string{"nfse-123.pdf", "nfse-RPS-77.pdf"}, names)
		for _, body := range bodies {
			assert.True(t, bytes.HasPrefix([]byte(body), []byte("%PDF")))
		}
		assert.Len(t, builder.Calls(), 2)
	})
}
