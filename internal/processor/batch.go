package processor

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"context"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/model"
)

// CompressionLevel of archive entries
const CompressionLevel = 6

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9_.-] with _
func SanitizeFilename(s string) string {
	return unsafeFilename.ReplaceAllString(s, "_")
}

// DefaultFilename names an archive entry after the invoice number, the RPS
// number or the 1-based position of the record.
func DefaultFilename(rec model.Record, index int) string {
	id := strings.TrimSpace(rec.Number)
	if id == "" {
		id = strings.TrimSpace(rec.RPS.Number)
	}
	if id == "" {
		id = strconv.Itoa(index + 1)
	}
	return "nfse-" + SanitizeFilename(id) + ".pdf"
}

// BatchOptions configures multiple mode
type BatchOptions struct {
	// FilenameFor replaces DefaultFilename when set
	FilenameFor func(rec model.Record, index int) string
}

func (o BatchOptions) names(recs []model.Record) []string {
	namer := o.FilenameFor
	if namer == nil {
		namer = DefaultFilename
	}
	seen := make(map[string]int, len(recs))
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = uniqueName(namer(rec, i), seen)
	}
	return out
}

// uniqueName appends -2, -3... before the extension of repeated names
func uniqueName(name string, seen map[string]int) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := ""
	if dot := strings.LastIndex(name, "."); dot > 0 {
		name, ext = name[:dot], name[dot:]
	}
	for k := n + 1; ; k++ {
		candidate := name + "-" + strconv.Itoa(k) + ext
		if seen[candidate] == 0 {
			seen[candidate] = 1
			return candidate
		}
	}
}

// RenderBatch renders one PDF per record into a ZIP stream. Entries keep
// input order; a failed record ends the stream with *model.RenderError.
func (p *Pipeline) RenderBatch(ctx context.Context, recs []model.Record, opts BatchOptions) (io.ReadCloser, error) {
	if len(recs) == 0 {
		return nil, model.ErrEmptyInput
	}
	names := opts.names(recs)

	pr, pw := io.Pipe()
	go func() {
		err := p.writeArchive(ctx, pw, recs, names)
		if err != nil {
			p.log.Error("archive render failed", zap.Int("records", len(recs)), zap.Error(err))
		}
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (p *Pipeline) writeArchive(ctx context.Context, w io.Writer, recs []model.Record, names []string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, CompressionLevel)
	})

	var err error
	if p.workers > 1 && len(recs) > 1 {
		err = p.archivePrefetched(ctx, zw, recs, names)
	} else {
		err = p.archiveSequential(ctx, zw, recs, names)
	}
	if err != nil {
		return err
	}
	return zw.Close()
}

func createEntry(zw *zip.Writer, name string) (io.Writer, error) {
	return zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
}

// archiveSequential composes each record straight into its entry
func (p *Pipeline) archiveSequential(ctx context.Context, zw *zip.Writer, recs []model.Record, names []string) error {
	for i, rec := range recs {
		entry, err := createEntry(zw, names[i])
		if err != nil {
			return err
		}
		if err := p.renderOne(ctx, rec, i, names[i], entry); err != nil {
			return err
		}
		p.log.Debug("archive entry written", zap.Int("index", i), zap.String("name", names[i]))
	}
	return nil
}

type prefetched struct {
	data []byte
	err  error
}

// archivePrefetched composes up to p.workers records ahead of the entry
// being written. Entries are still attached in input order.
func (p *Pipeline) archivePrefetched(ctx context.Context, zw *zip.Writer, recs []model.Record, names []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make(chan struct{}, p.workers)
	results := make([]chan prefetched, len(recs))
	for i := range results {
		results[i] = make(chan prefetched, 1)
	}

	go func() {
		for i, rec := range recs {
			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				return
			}
			i, rec := i, rec
			go func() {
				var buf bytes.Buffer
				err := p.renderOne(ctx, rec, i, names[i], &buf)
				results[i] <- prefetched{data: buf.Bytes(), err: err}
			}()
		}
	}()

	for i := range recs {
		var res prefetched
		select {
		case res = <-results[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
		if res.err != nil {
			return res.err
		}
		entry, err := createEntry(zw, names[i])
		if err != nil {
			return err
		}
		if _, err := entry.Write(res.data); err != nil {
			return err
		}
		<-slots
	}
	return nil
}

// renderOne builds a one-record document and composes it into w
func (p *Pipeline) renderOne(ctx context.Context, rec model.Record, index int, name string, w io.Writer) error {
	doc, err := p.builder.BuildDocument(ctx, []model.Record{rec})
	if err != nil {
		return model.NewRenderError(index, name, err)
	}
	if err := p.composer.Compose(doc, w); err != nil {
		return model.NewRenderError(index, name, err)
	}
	return nil
}
