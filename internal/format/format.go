// Package format holds the pure value formatters used by the invoice layout.
// None of them fail: bad input degrades to a sentinel or to the input itself.
package format

import (
	"encoding/base64"
	"strings"
	"time"
	_ "time/tzdata" // America/Sao_Paulo on hosts without zoneinfo
	"unicode/utf8"

	"github.com/rezonia/nfse-renderer/internal/decimal"
)

const (
	// NotInformed replaces absent text fields
	NotInformed = "Não informado"
	// Dash replaces absent dates and descriptions
	Dash = "—"
)

// Location is the zone dates are displayed in
var Location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}

// First trims v and returns NotInformed when nothing is left
func First(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return NotInformed
	}
	return v
}

// FirstOf returns First of the first non-blank value
func FirstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return First(v)
		}
	}
	return NotInformed
}

// Digits keeps only ASCII digits
func Digits(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		if v[i] >= '0' && v[i] <= '9' {
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04Z07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// FormatDate renders an ISO or local timestamp as DD/MM/YYYY HH:MM.
// Timestamps carrying an offset are shown in Location, the rest as written.
// Text that is not a recognizable date is returned unchanged.
func FormatDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return Dash
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.In(Location).Format("02/01/2006 15:04")
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, Location); err == nil {
			return t.Format("02/01/2006 15:04")
		}
	}
	return v
}

// FormatPostalCode renders a CEP as NN.NNN-NNN, left padding short values.
// Values with more than eight digits are returned as their digits.
func FormatPostalCode(v string) string {
	d := Digits(v)
	if len(d) > 8 {
		return d
	}
	d = strings.Repeat("0", 8-len(d)) + d
	return d[:2] + "." + d[2:5] + "-" + d[5:]
}

// FormatTaxID masks an 11 digit CPF or a 14 digit CNPJ.
// Any other input is returned unchanged.
func FormatTaxID(v string) string {
	d := Digits(v)
	switch len(d) {
	case 11:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	case 14:
		return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
	default:
		return v
	}
}

// FormatDecimal renders a numeric string with the given fraction digits in
// Brazilian notation. Empty or non-numeric input renders as zero.
func FormatDecimal(v string, decimals int32) string {
	d, ok := decimal.Parse(v)
	if !ok {
		return decimal.FormatBR(decimal.Zero, decimals)
	}
	return decimal.FormatBR(d, decimals)
}

// FormatMoney is FormatDecimal with two fraction digits
func FormatMoney(v string) string {
	return FormatDecimal(v, 2)
}

// NormalizeBase64 maps the URL-safe alphabet to the standard one and pads
// to a multiple of four.
func NormalizeBase64(s string) string {
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return s
}

// DecodeBase64Text decodes standard or URL-safe base64 into UTF-8 text.
// On any failure the input is returned unchanged.
func DecodeBase64Text(s string) string {
	raw, err := base64.StdEncoding.DecodeString(NormalizeBase64(strings.TrimSpace(s)))
	if err != nil || !utf8.Valid(raw) {
		return s
	}
	return string(raw)
}
