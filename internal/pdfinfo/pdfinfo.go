// Package pdfinfo inspects rendered PDFs and archives with pdfcpu.
package pdfinfo

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var configOnce sync.Once

func configuration() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Info describes one PDF
type Info struct {
	Name    string `json:"name,omitempty"`
	Size    int64  `json:"size"`
	Pages   int    `json:"pages"`
	Version string `json:"version"`
	Title   string `json:"title,omitempty"`
	Creator string `json:"creator,omitempty"`
	Valid   bool   `json:"valid"`
	Problem string `json:"problem,omitempty"`
}

// Inspect reads and validates a PDF. Validation problems are reported in
// Info; only unreadable input is an error.
func Inspect(rs io.ReadSeeker) (Info, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return Info{}, err
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Info{}, err
	}

	ctx, err := api.ReadContext(rs, configuration())
	if err != nil {
		return Info{}, fmt.Errorf("read pdf: %w", err)
	}
	info := Info{Size: size, Valid: true}
	if err := api.ValidateContext(ctx); err != nil {
		info.Valid = false
		info.Problem = err.Error()
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return Info{}, fmt.Errorf("count pages: %w", err)
	}
	// document info is populated during validation
	info.Pages = ctx.PageCount
	info.Version = ctx.VersionString()
	info.Title = ctx.Title
	info.Creator = ctx.Creator
	return info, nil
}

// InspectBytes is Inspect over an in-memory PDF
func InspectBytes(data []byte) (Info, error) {
	return Inspect(bytes.NewReader(data))
}

// InspectArchive inspects every entry of a ZIP archive, in archive order
func InspectArchive(data []byte) ([]Info, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	out := make([]Info, 0, len(zr.File))
	for _, f := range zr.File {
		entry, err := readEntry(f)
		if err != nil {
			return nil, err
		}
		info, err := InspectBytes(entry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		info.Name = f.Name
		out = append(out, info)
	}
	return out, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// PageCount returns the number of pages of a PDF
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), configuration())
}
