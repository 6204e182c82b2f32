package nfsepdf_test

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-renderer/pkg/nfsepdf"
)

const twoInvoices = `<Retorno>
	<NFe><ChaveNFe><NumeroNFe>41</NumeroNFe></ChaveNFe><RazaoSocialPrestador>Oficina Ltda</RazaoSocialPrestador></NFe>
	<NFe><ChaveNFe><NumeroNFe>42</NumeroNFe></ChaveNFe><StatusNFe>C</StatusNFe></NFe>
</Retorno>`

func newGenerator(t *testing.T) *nfsepdf.Generator {
	t.Helper()
	cfg := nfsepdf.DefaultConfig()
	cfg.Assets.Dirs = []string{t.TempDir()}

	gen, err := nfsepdf.NewGenerator(context.Background(), nfsepdf.Options{Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Close(context.Background()) })
	return gen
}

func TestGenerator_Parse(t *testing.T) {
	gen := newGenerator(t)

	recs, err := gen.Parse(context.Background(), strings.NewReader(twoInvoices))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "41", recs[0].Number)
	assert.Equal(t, "Oficina Ltda", recs[0].Provider.Name)
	assert.True(t, recs[1].Cancelled())
}

func TestGenerator_ParseErrors(t *testing.T) {
	gen := newGenerator(t)

	_, err := gen.Parse(context.Background(), strings.NewReader("plain text, no markup"))
	assert.ErrorIs(t, err, nfsepdf.ErrMalformedDocument)

	_, err = gen.Parse(context.Background(), strings.NewReader("<Retorno/>"))
	assert.ErrorIs(t, err, nfsepdf.ErrMissingInvoiceKey)
}

func TestGenerator_GenerateSingle(t *testing.T) {
	gen := newGenerator(t)

	out, err := gen.Generate(context.Background(), strings.NewReader(twoInvoices), nfsepdf.Request{})
	require.NoError(t, err)
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	assert.Equal(t, "notas.pdf", out.Filename)
	assert.Equal(t, 2, out.Records)
}

func TestGenerator_GenerateBytesMultiple(t *testing.T) {
	gen := newGenerator(t)

	data, out, err := gen.GenerateBytes(context.Background(), []byte(twoInvoices), nfsepdf.Request{
		Mode: nfsepdf.ModeMultiple,
		FilenameFor: func(rec nfsepdf.Record, index int) string {
			return "custom-" + nfsepdf.DefaultFilename(rec, index)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "notas.zip", out.Filename)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"custom-nfse-41.pdf", "custom-nfse-42.pdf"}, names)
}

func TestGenerator_GenerateRecordsEmpty(t *testing.T) {
	gen := newGenerator(t)

	_, err := gen.GenerateRecords(context.Background(), nil, nfsepdf.Request{})
	assert.ErrorIs(t, err, nfsepdf.ErrEmptyInput)
}

func TestNewGenerator_MissingFonts(t *testing.T) {
	cfg := nfsepdf.DefaultConfig()
	cfg.Render.FontDir = t.TempDir()
	cfg.Render.FontFamily = "Roboto"

	_, err := nfsepdf.NewGenerator(context.Background(), nfsepdf.Options{Config: cfg})
	assert.ErrorIs(t, err, nfsepdf.ErrInitialization)
}

func TestParseMode(t *testing.T) {
	mode, err := nfsepdf.ParseMode(" Multiple ")
	require.NoError(t, err)
	assert.Equal(t, nfsepdf.ModeMultiple, mode)

	_, err = nfsepdf.ParseMode("tar")
	assert.ErrorIs(t, err, nfsepdf.ErrUnknownMode)
}
