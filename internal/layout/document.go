// Package layout describes invoice documents as a tree of sections and
// blocks. It decides what goes on the page; internal/render decides how.
package layout

import "github.com/rezonia/nfse-renderer/internal/assets"

// Document is the print description of one or more invoices
type Document struct {
	PageSize     string
	Margins      Margins
	DefaultStyle Style
	Sections     []Section

	// Header and Footer are called for every page. Their blocks are drawn
	// in the top and bottom margins; watermarks cover the whole page.
	Header func(PageContext) []Block
	Footer func(PageContext) []Block
}

// Margins in points
type Margins struct {
	Left, Top, Right, Bottom float64
}

// PageContext identifies the page being decorated
type PageContext struct {
	Page       int // 1-based, across the document
	Record     int // 0-based index of the record on this page
	RecordPage int // 1-based, restarts for each record
}

// SectionKind names the part of an invoice a section renders
type SectionKind string

const (
	KindHeader      SectionKind = "header"
	KindMeta        SectionKind = "meta"
	KindProvider    SectionKind = "provider"
	KindCustomer    SectionKind = "customer"
	KindDescription SectionKind = "description"
	KindTotals      SectionKind = "totals"
	KindNotices     SectionKind = "notices"
	KindPageBreak   SectionKind = "page-break"
)

// Section is a top-level unit of page flow. The renderer may split a
// section between table rows or between lines of a text body.
type Section struct {
	Kind   SectionKind
	Record int
	Title  string
	Boxed  bool
	Body   Block

	MarginTop    float64
	MarginBottom float64
}

// PageBreak starts the next record on a new page
func PageBreak(nextRecord int) Section {
	return Section{Kind: KindPageBreak, Record: nextRecord}
}

// Align is horizontal alignment
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Block is a node of the section tree
type Block interface {
	block()
}

// Text is a run of wrapped text in one style
type Text struct {
	Value  string
	Style  Style
	Align  Align
	NoWrap bool
}

// Stack lays blocks out vertically
type Stack struct {
	Items []Block
	Gap   float64
}

// Image is a picture scaled to fit a box. A nil Image keeps the box empty.
type Image struct {
	Image *assets.Image
	FitW  float64
	FitH  float64
	Align Align
}

// Spacer is vertical blank space
type Spacer struct {
	Height float64
}

// QRCode encodes Payload as a square symbol of Size points
type QRCode struct {
	Payload string
	Size    float64
	Align   Align
}

// Watermark is rotated translucent text centered on the page
type Watermark struct {
	Text     string
	Angle    float64
	FontSize float64
	Color    string
	Opacity  float64
}

// Table is a grid of cells. Every row has one cell per column; cells under
// a row span are marked Covered.
type Table struct {
	Widths  []Width
	Rows    [][]Cell
	Lines   Lines
	Padding Padding
}

// Cell is one table cell
type Cell struct {
	Content Block
	Fill    string
	RowSpan int
	Covered bool
}

// CoveredCell returns the placeholder for a cell hidden by a row span
func CoveredCell() Cell { return Cell{Covered: true} }

// WidthKind selects how a column width is computed
type WidthKind int

const (
	WidthStar    WidthKind = iota // share of the remaining space
	WidthFixed                    // points
	WidthPercent                  // of the table width
)

// Width is a column width
type Width struct {
	Kind  WidthKind
	Value float64
}

// Fixed is a width in points
func Fixed(pt float64) Width { return Width{Kind: WidthFixed, Value: pt} }

// Percent is a share of the table width
func Percent(p float64) Width { return Width{Kind: WidthPercent, Value: p} }

// Star takes an equal share of what fixed and percent columns leave
func Star() Width { return Width{Kind: WidthStar, Value: 1} }

// Lines selects which table rules are drawn
type Lines struct {
	Outer  bool
	InnerH bool
	InnerV bool
	Width  float64
	Color  string
}

// Padding is the space between a cell edge and its content
type Padding struct {
	H, V float64
}

func (Text) block()      {}
func (Stack) block()     {}
func (Image) block()     {}
func (Spacer) block()    {}
func (QRCode) block()    {}
func (Watermark) block() {}
func (Table) block()     {}

// ResolveWidths converts column widths into points for a table of total width
func ResolveWidths(widths []Width, total float64) []float64 {
	out := make([]float64, len(widths))
	used, stars := 0.0, 0.0
	for i, w := range widths {
		switch w.Kind {
		case WidthFixed:
			out[i] = w.Value
			used += w.Value
		case WidthPercent:
			out[i] = total * w.Value / 100
			used += out[i]
		default:
			stars += w.Value
		}
	}
	if stars > 0 {
		rest := total - used
		if rest < 0 {
			rest = 0
		}
		for i, w := range widths {
			if w.Kind == WidthStar {
				out[i] = rest * w.Value / stars
			}
		}
	}
	return out
}
