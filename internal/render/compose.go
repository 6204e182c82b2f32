package render

import (
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/rezonia/nfse-renderer/internal/assets"
	"github.com/rezonia/nfse-renderer/internal/layout"
)

const (
	boxPadH     = 8
	boxPadV     = 6
	titlePadV   = 4
	ruleWidth   = 0.6
	ascentRatio = 0.78
	leading     = 1.15
)

// composer holds the state of one Compose call
type composer struct {
	e   *Engine
	doc *layout.Document
	pdf *gofpdf.Fpdf
	tr  func(string) string

	pageW, pageH float64
	left, top    float64
	width        float64
	bottom       float64 // lowest y usable by sections

	y    float64
	page int

	cur, next layout.PageContext

	images map[*assets.Image]string // asset to registered gofpdf image name
	qrs    map[string]string        // payload to registered image name
}

func newComposer(e *Engine, doc *layout.Document) *composer {
	c := &composer{
		e:      e,
		doc:    doc,
		pdf:    e.newPDF(),
		tr:     func(s string) string { return s },
		images: make(map[*assets.Image]string),
		qrs:    make(map[string]string),
	}
	if !e.unicode() {
		c.tr = cp1252
	}

	m := doc.Margins
	c.pageW, c.pageH = c.pdf.GetPageSize()
	c.left, c.top = m.Left, m.Top
	c.width = c.pageW - m.Left - m.Right
	c.bottom = c.pageH - m.Bottom

	c.pdf.SetMargins(m.Left, m.Top, m.Right)
	c.pdf.SetAutoPageBreak(false, m.Bottom)
	c.pdf.SetHeaderFunc(c.header)
	c.pdf.SetFooterFunc(c.footer)
	return c
}

// cp1252 encodes s for the core fonts. Runes outside Windows-1252
// become '?'.
func cp1252(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1252.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return string(out)
}

func (c *composer) run() error {
	for _, s := range c.doc.Sections {
		if s.Kind == layout.KindPageBreak {
			c.newPage(s.Record)
			continue
		}
		if c.page == 0 {
			c.newPage(s.Record)
		}
		c.y += s.MarginTop
		c.section(s)
		c.y += s.MarginBottom

		if err := c.pdf.Error(); err != nil {
			return fmt.Errorf("compose %s section of record %d: %w", s.Kind, s.Record+1, err)
		}
	}
	return c.pdf.Error()
}

func (c *composer) newPage(record int) {
	rp := 1
	if c.page > 0 && c.cur.Record == record {
		rp = c.cur.RecordPage + 1
	}
	c.page++
	c.next = layout.PageContext{Page: c.page, Record: record, RecordPage: rp}
	c.pdf.AddPage()
	c.y = c.top
}

// header runs inside AddPage, after the new page exists
func (c *composer) header() {
	c.cur = c.next
	if c.doc.Header == nil {
		return
	}
	blocks := c.doc.Header(c.cur)
	y := c.top / 4
	for _, b := range blocks {
		if wm, ok := b.(layout.Watermark); ok {
			c.watermark(wm)
			continue
		}
		h := c.measure(b, c.width)
		c.draw(b, c.left, y, c.width)
		y += h
	}
}

// footer runs when the page is closed, before the next header
func (c *composer) footer() {
	if c.doc.Footer == nil {
		return
	}
	blocks := c.doc.Footer(c.cur)
	if len(blocks) == 0 {
		return
	}
	total := 0.0
	for _, b := range blocks {
		total += c.measure(b, c.width)
	}
	band := c.pageH - c.bottom
	y := c.bottom + (band-total)/2
	if y < c.bottom {
		y = c.bottom
	}
	for _, b := range blocks {
		h := c.measure(b, c.width)
		c.draw(b, c.left, y, c.width)
		y += h
	}
}

// unit is an unsplittable slice of a section body
type unit struct {
	h    float64
	draw func(x, y float64)
}

func (c *composer) section(s layout.Section) {
	padH, padV := 0.0, 0.0
	if s.Boxed {
		padH, padV = boxPadH, boxPadV
	}
	innerW := c.width - 2*padH

	titleH := 0.0
	if s.Title != "" {
		titleH = c.lineHeight(c.style(layout.SectionTitleStyle)) + 2*titlePadV
	}

	units := c.units(s.Body, innerW)

	fragTop := c.y
	fresh := true // nothing drawn in the current fragment yet
	closeFrag := func() {
		if s.Boxed {
			c.rule(layout.SectionRule, ruleWidth)
			c.pdf.Rect(c.left, fragTop, c.width, c.y+padV-fragTop, "D")
		}
		c.y += padV
	}

	if len(units) == 0 && titleH > 0 {
		units = []unit{{h: 0, draw: func(float64, float64) {}}}
	}

	first := true
	for _, u := range units {
		need := u.h + padV
		if fresh {
			need += padV
			if first {
				need += titleH
			}
		}
		atTop := c.y <= c.top+0.01
		if c.y+need > c.bottom && !atTop {
			if !fresh {
				closeFrag()
			}
			c.newPage(s.Record)
			fresh = true
		}
		if fresh {
			fragTop = c.y
			if first && titleH > 0 {
				c.titleBar(s.Title, c.y, titleH)
				c.y += titleH
			}
			c.y += padV
			fresh = false
			first = false
		}
		u.draw(c.left+padH, c.y)
		c.y += u.h
	}
	if !fresh {
		closeFrag()
	}
}

func (c *composer) titleBar(title string, y, h float64) {
	st := c.style(layout.SectionTitleStyle)
	c.fill(layout.SectionTitleFill)
	c.pdf.Rect(c.left, y, c.width, h, "F")
	c.text(title, st, c.left+boxPadH, y+titlePadV)
}

// units splits a section body at the points where a page may break
func (c *composer) units(b layout.Block, w float64) []unit {
	switch v := b.(type) {
	case nil:
		return nil
	case layout.Table:
		return c.tableUnits(v, w)
	case layout.Text:
		st := c.style(v.Style)
		lh := c.lineHeight(st)
		lines := c.lines(v, st, w)
		out := make([]unit, len(lines))
		for i, line := range lines {
			line := line
			out[i] = unit{h: lh, draw: func(x, y float64) {
				c.line(line, st, v.Align, x, y, w)
			}}
		}
		return out
	default:
		return []unit{{h: c.measure(b, w), draw: func(x, y float64) { c.draw(b, x, y, w) }}}
	}
}
