package render

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"

	"github.com/rezonia/nfse-renderer/internal/assets"
	"github.com/rezonia/nfse-renderer/internal/layout"
)

const (
	defaultFontSize = 10
	defaultRule     = "#BFBFBF"
	defaultRuleW    = 0.5
)

// style fills unset fields from the document default
func (c *composer) style(st layout.Style) layout.Style {
	def := c.doc.DefaultStyle
	if st.Size == 0 {
		st.Size = def.Size
	}
	if st.Size == 0 {
		st.Size = defaultFontSize
	}
	if st.LineHeight == 0 {
		st.LineHeight = def.LineHeight
	}
	if st.LineHeight == 0 {
		st.LineHeight = 1
	}
	if st.Color == "" {
		st.Color = def.Color
	}
	return st
}

func (c *composer) lineHeight(st layout.Style) float64 {
	return st.Size * leading * st.LineHeight
}

func (c *composer) font(st layout.Style) {
	var s string
	if st.Bold {
		s += "B"
	}
	if st.Italic {
		s += "I"
	}
	c.pdf.SetFont(c.e.family(), s, st.Size)
}

func (c *composer) textWidth(s string) float64 {
	return c.pdf.GetStringWidth(c.tr(s))
}

func (c *composer) measure(b layout.Block, w float64) float64 {
	switch v := b.(type) {
	case layout.Text:
		st := c.style(v.Style)
		return float64(len(c.lines(v, st, w))) * c.lineHeight(st)
	case layout.Stack:
		h := 0.0
		for i, item := range v.Items {
			if i > 0 {
				h += v.Gap
			}
			h += c.measure(item, w)
		}
		return h
	case layout.Image:
		_, dh := fit(v, w)
		return dh
	case layout.Spacer:
		return v.Height
	case layout.QRCode:
		return v.Size
	case layout.Table:
		_, rows := c.tableGeometry(v, w)
		return sum(rows)
	}
	return 0
}

func (c *composer) draw(b layout.Block, x, y, w float64) {
	switch v := b.(type) {
	case layout.Text:
		st := c.style(v.Style)
		lh := c.lineHeight(st)
		for _, line := range c.lines(v, st, w) {
			c.line(line, st, v.Align, x, y, w)
			y += lh
		}
	case layout.Stack:
		for _, item := range v.Items {
			c.draw(item, x, y, w)
			y += c.measure(item, w) + v.Gap
		}
	case layout.Image:
		c.image(v, x, y, w)
	case layout.QRCode:
		c.qr(v, x, y, w)
	case layout.Table:
		for _, u := range c.tableUnits(v, w) {
			u.draw(x, y)
			y += u.h
		}
	case layout.Watermark:
		c.watermark(v)
	}
}

// lines wraps a text block to width w
func (c *composer) lines(t layout.Text, st layout.Style, w float64) []string {
	c.font(st)
	if t.NoWrap {
		return []string{strings.ReplaceAll(t.Value, "\n", " ")}
	}
	var out []string
	for _, para := range strings.Split(t.Value, "\n") {
		out = append(out, c.wrap(para, w)...)
	}
	if len(out) == 0 {
		out = []string{""}
	}
	return out
}

func (c *composer) wrap(para string, w float64) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}
	var out []string
	line := ""
	for _, word := range words {
		candidate := word
		if line != "" {
			candidate = line + " " + word
		}
		if c.textWidth(candidate) <= w {
			line = candidate
			continue
		}
		if line != "" {
			out = append(out, line)
			line = ""
		}
		if c.textWidth(word) <= w {
			line = word
			continue
		}
		parts := c.breakWord(word, w)
		out = append(out, parts[:len(parts)-1]...)
		line = parts[len(parts)-1]
	}
	return append(out, line)
}

// breakWord cuts a word wider than w between runes
func (c *composer) breakWord(word string, w float64) []string {
	var out []string
	for word != "" {
		if c.textWidth(word) <= w {
			return append(out, word)
		}
		n := 0
		for i := range word {
			if i > 0 && c.textWidth(word[:i]) > w {
				break
			}
			n = i
		}
		if n == 0 {
			_, n = utf8.DecodeRuneInString(word)
		}
		out = append(out, word[:n])
		word = word[n:]
	}
	return out
}

// text draws a single line with its top at y
func (c *composer) text(s string, st layout.Style, x, y float64) {
	c.font(st)
	c.color(st.Color)
	lh := c.lineHeight(st)
	c.pdf.Text(x, y+(lh-st.Size)/2+st.Size*ascentRatio, c.tr(s))
}

func (c *composer) line(s string, st layout.Style, align layout.Align, x, y, w float64) {
	if s == "" {
		return
	}
	c.font(st)
	switch align {
	case layout.AlignCenter:
		x += (w - c.textWidth(s)) / 2
	case layout.AlignRight:
		x += w - c.textWidth(s)
	}
	c.text(s, st, x, y)
}

// tableGeometry resolves column widths and row heights. Rows under a span
// grow at the bottom when the spanning cell needs more room.
func (c *composer) tableGeometry(t layout.Table, w float64) ([]float64, []float64) {
	cols := layout.ResolveWidths(t.Widths, w)
	rows := make([]float64, len(t.Rows))
	pad := t.Padding

	for r, row := range t.Rows {
		rows[r] = 2 * pad.V
		for i, cell := range row {
			if cell.Covered || cell.RowSpan > 1 || i >= len(cols) {
				continue
			}
			rows[r] = math.Max(rows[r], c.cellHeight(cell, cols[i], pad))
		}
	}
	for r, row := range t.Rows {
		for i, cell := range row {
			if cell.Covered || cell.RowSpan <= 1 || i >= len(cols) {
				continue
			}
			end := min(r+cell.RowSpan, len(rows))
			need := c.cellHeight(cell, cols[i], pad)
			if have := sum(rows[r:end]); need > have {
				rows[end-1] += need - have
			}
		}
	}
	return cols, rows
}

func (c *composer) cellHeight(cell layout.Cell, w float64, pad layout.Padding) float64 {
	if cell.Content == nil {
		return 2 * pad.V
	}
	return c.measure(cell.Content, w-2*pad.H) + 2*pad.V
}

// tableUnits groups rows so that no row span crosses a unit boundary
func (c *composer) tableUnits(t layout.Table, w float64) []unit {
	cols, rows := c.tableGeometry(t, w)
	var out []unit
	from, end := 0, 0
	for r, row := range t.Rows {
		for _, cell := range row {
			if !cell.Covered && cell.RowSpan > 1 {
				end = max(end, min(r+cell.RowSpan, len(rows))-1)
			}
		}
		if r < end {
			continue
		}
		lo, hi := from, r
		out = append(out, unit{
			h:    sum(rows[lo : hi+1]),
			draw: func(x, y float64) { c.tableRows(t, cols, rows, lo, hi, x, y) },
		})
		from, end = r+1, r+1
	}
	return out
}

func (c *composer) tableRows(t layout.Table, cols, rows []float64, lo, hi int, x, y float64) {
	pad := t.Padding
	lineColor, lineW := t.Lines.Color, t.Lines.Width
	if lineColor == "" {
		lineColor = defaultRule
	}
	if lineW == 0 {
		lineW = defaultRuleW
	}

	ry := y
	for r := lo; r <= hi; r++ {
		cx := x
		for i, cell := range t.Rows[r] {
			if i >= len(cols) {
				break
			}
			cw := cols[i]
			if !cell.Covered {
				span := max(cell.RowSpan, 1)
				ch := sum(rows[r:min(r+span, len(rows))])
				if cell.Fill != "" {
					c.fill(cell.Fill)
					c.pdf.Rect(cx, ry, cw, ch, "F")
				}
				if cell.Content != nil {
					c.draw(cell.Content, cx+pad.H, ry+pad.V, cw-2*pad.H)
				}
				if t.Lines.InnerV && i > 0 {
					c.rule(lineColor, lineW)
					c.pdf.Line(cx, ry, cx, ry+ch)
				}
				if t.Lines.InnerH && r > 0 {
					c.rule(lineColor, lineW)
					c.pdf.Line(cx, ry, cx+cw, ry)
				}
			}
			cx += cw
		}
		ry += rows[r]
	}
	if t.Lines.Outer {
		c.rule(lineColor, lineW)
		c.pdf.Rect(x, y, sum(cols), ry-y, "D")
	}
}

// fit scales an image into its box keeping the aspect ratio
func fit(v layout.Image, w float64) (float64, float64) {
	if v.Image == nil || v.Image.Width == 0 || v.Image.Height == 0 {
		return 0, v.FitH
	}
	iw, ih := float64(v.Image.Width), float64(v.Image.Height)
	maxW := v.FitW
	if maxW == 0 || maxW > w {
		maxW = w
	}
	scale := maxW / iw
	if v.FitH > 0 {
		scale = math.Min(scale, v.FitH/ih)
	}
	return iw * scale, ih * scale
}

func (c *composer) image(v layout.Image, x, y, w float64) {
	if v.Image == nil {
		return
	}
	name := c.registerImage(v.Image)
	dw, dh := fit(v, w)
	c.pdf.ImageOptions(name, alignX(v.Align, x, w, dw), y, dw, dh, false,
		gofpdf.ImageOptions{ImageType: v.Image.Type}, 0, "")
}

func (c *composer) registerImage(img *assets.Image) string {
	if name, ok := c.images[img]; ok {
		return name
	}
	name := "asset-" + strconv.Itoa(len(c.images))
	c.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
	c.images[img] = name
	return name
}

func (c *composer) watermark(wm layout.Watermark) {
	if wm.Text == "" {
		return
	}
	size := wm.FontSize
	if size == 0 {
		size = 100
	}
	opacity := wm.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	cx, cy := c.pageW/2, c.pageH/2

	c.pdf.SetAlpha(opacity, "Normal")
	c.pdf.TransformBegin()
	c.pdf.TransformRotate(wm.Angle, cx, cy)
	c.font(layout.Style{Size: size, Bold: true})
	c.color(wm.Color)
	c.pdf.Text(cx-c.textWidth(wm.Text)/2, cy+size*0.35, c.tr(wm.Text))
	c.pdf.TransformEnd()
	c.pdf.SetAlpha(1, "Normal")
}

func alignX(a layout.Align, x, w, dw float64) float64 {
	switch a {
	case layout.AlignCenter:
		return x + (w-dw)/2
	case layout.AlignRight:
		return x + w - dw
	}
	return x
}

func (c *composer) color(hex string) {
	r, g, b := parseColor(hex)
	c.pdf.SetTextColor(r, g, b)
}

func (c *composer) fill(hex string) {
	r, g, b := parseColor(hex)
	c.pdf.SetFillColor(r, g, b)
}

func (c *composer) rule(hex string, w float64) {
	r, g, b := parseColor(hex)
	c.pdf.SetDrawColor(r, g, b)
	c.pdf.SetLineWidth(w)
}

// parseColor reads #RGB or #RRGGBB. Anything else is black.
func parseColor(hex string) (int, int, int) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func sum(xs []float64) float64 {
	t := 0.0
	for _, x := range xs {
		t += x
	}
	return t
}
