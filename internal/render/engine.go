// Package render composes layout documents into PDF using gofpdf.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-renderer/internal/layout"
	"github.com/rezonia/nfse-renderer/internal/model"
)

// CoreFamily is the built-in font used when no TrueType family is configured
const CoreFamily = "Helvetica"

// Config selects fonts and output options
type Config struct {
	// FontDir and FontFamily load <FontFamily>-Regular.ttf, -Bold.ttf,
	// -Italic.ttf and -BoldItalic.ttf. Only the regular face is required.
	FontDir    string
	FontFamily string

	Creator  string
	Compress bool
}

// DefaultConfig uses the core Helvetica font
func DefaultConfig() Config {
	return Config{Creator: "nfse-renderer", Compress: true}
}

// Engine renders layout documents. It is safe for concurrent use; every
// Compose call works on its own gofpdf instance.
type Engine struct {
	cfg   Config
	faces map[string][]byte // gofpdf style ("", "B", "I", "BI") to TTF bytes
	log   *zap.Logger
	now   func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClock fixes the document creation date
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine loads fonts and checks that gofpdf accepts them.
// Failures are returned as *model.InitError.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.FontFamily != "" {
		faces, err := loadFaces(cfg.FontDir, cfg.FontFamily)
		if err != nil {
			return nil, model.NewInitError(err)
		}
		e.faces = faces
	}

	// probe
	pdf := e.newPDF()
	pdf.AddPage()
	pdf.SetFont(e.family(), "B", 10)
	if err := pdf.Error(); err != nil {
		return nil, model.NewInitError(err)
	}
	return e, nil
}

func loadFaces(dir, family string) (map[string][]byte, error) {
	files := map[string]string{
		"":   family + "-Regular.ttf",
		"B":  family + "-Bold.ttf",
		"I":  family + "-Italic.ttf",
		"BI": family + "-BoldItalic.ttf",
	}
	faces := make(map[string][]byte, len(files))
	for style, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if style == "" {
				return nil, fmt.Errorf("load font %s: %w", name, err)
			}
			continue
		}
		faces[style] = data
	}
	if len(faces[""]) == 0 {
		return nil, errors.New("regular font face is empty")
	}
	for _, style := range []string{"B", "I", "BI"} {
		if _, ok := faces[style]; !ok {
			faces[style] = faces[""]
		}
	}
	return faces, nil
}

func (e *Engine) family() string {
	if e.faces != nil {
		return e.cfg.FontFamily
	}
	return CoreFamily
}

func (e *Engine) unicode() bool { return e.faces != nil }

func (e *Engine) newPDF() *gofpdf.Fpdf {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		SizeStr:        "A4",
	})
	pdf.SetCompression(e.cfg.Compress)
	pdf.SetCreator(e.cfg.Creator, true)
	pdf.SetCreationDate(e.now())
	for style, data := range e.faces {
		pdf.AddUTF8FontFromBytes(e.cfg.FontFamily, style, data)
	}
	return pdf
}

// Compose renders doc and writes the PDF to w
func (e *Engine) Compose(doc *layout.Document, w io.Writer) error {
	if doc == nil || len(doc.Sections) == 0 {
		return errors.New("document has no sections")
	}

	c := newComposer(e, doc)
	if err := c.run(); err != nil {
		return err
	}
	if err := c.pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	e.log.Debug("pdf composed", zap.Int("pages", c.page))
	return nil
}
