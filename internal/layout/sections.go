package layout

import (
	"github.com/rezonia/nfse-renderer/internal/format"
	"github.com/rezonia/nfse-renderer/internal/model"
)

const (
	numberBoxWidth = 140
	logoColWidth   = 100
	logoMaxHeight  = 60
	brandBoxWidth  = 180
	brandMaxHeight = 80
)

var (
	headerLines  = Lines{Outer: true, InnerV: true, Width: 1, Color: colorRule}
	numberLines  = Lines{InnerH: true, Width: 1, Color: colorRule}
	gridLines    = Lines{InnerH: true, InnerV: true, Width: 1, Color: colorRuleLight}
	compactLines = Lines{InnerH: true, Width: 0.5, Color: colorRuleLight}
)

func text(v string, s Style) Text { return Text{Value: v, Style: s} }

func cell(b Block) Cell { return Cell{Content: b} }

func orDash(v string) string {
	if v == "" || v == format.NotInformed {
		return format.Dash
	}
	return v
}

func (b *Builder) header(rec model.Record, resolvedName string) Section {
	logo := Image{FitW: logoColWidth - 16, FitH: logoMaxHeight}
	if img, ok := b.logos.MunicipalityLogo(rec.MunicipalityCode); ok {
		logo.Image = img
	}

	titles := Stack{Gap: 2, Items: []Block{
		Text{Value: b.orgName(resolvedName), Style: styleTitleSmall, Align: AlignCenter},
		Text{Value: b.opts.Department, Style: styleTitleSmall, Align: AlignCenter},
		Text{Value: b.opts.Title, Style: styleTitle, Align: AlignCenter},
	}}

	number := Table{
		Widths:  []Width{Star()},
		Lines:   numberLines,
		Padding: Padding{H: 6, V: 5},
		Rows: [][]Cell{
			{cell(Text{Value: "Número", Style: styleBoxLabel, Align: AlignCenter})},
			{cell(Text{Value: orDash(format.First(rec.Number)), Style: styleBoxValue, Align: AlignCenter})},
		},
	}

	return Section{
		Kind:         KindHeader,
		MarginBottom: 10,
		Body: Table{
			Widths:  []Width{Fixed(logoColWidth), Star(), Fixed(numberBoxWidth)},
			Lines:   headerLines,
			Padding: Padding{H: 8, V: 6},
			Rows:    [][]Cell{{cell(logo), cell(titles), cell(number)}},
		},
	}
}

func (b *Builder) meta(rec model.Record) Section {
	th := func(v string) Cell { return Cell{Content: text(v, styleTH), Fill: colorHeadFill} }
	td := func(v string) Cell { return cell(text(orDash(v), styleTD)) }

	return Section{
		Kind:         KindMeta,
		Boxed:        true,
		MarginBottom: 10,
		Body: Table{
			Widths:  []Width{Star(), Star(), Fixed(numberBoxWidth)},
			Lines:   gridLines,
			Padding: Padding{H: 4, V: 3},
			Rows: [][]Cell{
				{th("Emissão"), th("Código de Verificação"), {Content: text("Número do RPS", styleTHMuted), Fill: colorHeadFill}},
				{
					td(format.FormatDate(rec.IssuedAt)),
					td(format.First(rec.VerificationCode)),
					td(format.First(rec.RPS.Number)),
				},
			},
		},
	}
}

// partyRows returns the label and value pairs shared by both parties
func partyRows(p model.Party, cityName string, withComplement bool) [][2]string {
	return [][2]string{
		{"Razão Social/Nome", format.First(p.Name)},
		{"CNPJ/CPF", formatTaxID(p.TaxID)},
		{"Endereço", AddressLine(p.Address, withComplement)},
		{"Bairro", format.First(p.Address.District)},
		{"Município / UF", format.First(cityName) + " / " + format.First(p.Address.State)},
		{"CEP", postalCode(p.Address.PostalCode)},
	}
}

func formatTaxID(v string) string {
	v = format.First(v)
	if v == format.NotInformed {
		return v
	}
	return format.FormatTaxID(v)
}

func postalCode(v string) string {
	if format.Digits(v) == "" {
		return format.NotInformed
	}
	return format.FormatPostalCode(v)
}

// AddressLine composes "street type street, number - complement".
// The number and complement are appended only when present.
func AddressLine(a model.Address, withComplement bool) string {
	line := ""
	for _, part := range []string{a.StreetType, a.Street} {
		if v := format.First(part); v != format.NotInformed {
			if line != "" {
				line += " "
			}
			line += v
		}
	}
	if line == "" {
		line = format.NotInformed
	}
	if num := format.First(a.Number); num != format.NotInformed {
		if line == format.NotInformed {
			line = num
		} else {
			line += ", " + num
		}
	}
	if withComplement {
		if comp := format.First(a.Complement); comp != format.NotInformed {
			line += " - " + comp
		}
	}
	return line
}

func (b *Builder) provider(rec model.Record, cityName string) Section {
	pairs := partyRows(rec.Provider, cityName, false)

	var brand Block = Spacer{}
	if img, ok := b.logos.BrandLogo(); ok {
		brand = Image{Image: img, FitW: brandBoxWidth - 16, FitH: brandMaxHeight, Align: AlignCenter}
	}

	rows := make([][]Cell, len(pairs))
	for i, p := range pairs {
		rows[i] = []Cell{
			cell(Text{Value: p[0], Style: styleFieldLabel, NoWrap: true}),
			cell(text(p[1], styleFieldValue)),
			CoveredCell(),
		}
	}
	rows[0][2] = Cell{Content: brand, RowSpan: len(pairs)}

	return Section{
		Kind:         KindProvider,
		Title:        "Dados do Prestador de Serviços",
		Boxed:        true,
		MarginBottom: 6,
		Body: Table{
			Widths:  []Width{Fixed(140), Star(), Fixed(brandBoxWidth)},
			Lines:   compactLines,
			Padding: Padding{H: 4, V: 1.5},
			Rows:    rows,
		},
	}
}

func (b *Builder) customer(rec model.Record, cityName string) Section {
	pairs := partyRows(rec.Customer, cityName, true)

	rows := make([][]Cell, len(pairs))
	for i, p := range pairs {
		rows[i] = []Cell{
			cell(Text{Value: p[0], Style: styleFieldLabel, NoWrap: true}),
			cell(text(p[1], styleFieldValue)),
		}
	}

	return Section{
		Kind:         KindCustomer,
		Title:        "Dados do Tomador de Serviços",
		Boxed:        true,
		MarginBottom: 6,
		Body: Table{
			Widths:  []Width{Percent(25), Percent(75)},
			Lines:   compactLines,
			Padding: Padding{H: 4, V: 1.5},
			Rows:    rows,
		},
	}
}

func (b *Builder) description(rec model.Record) Section {
	return Section{
		Kind:         KindDescription,
		Title:        "Discriminação dos Serviços",
		Boxed:        true,
		MarginBottom: 10,
		Body:         text(orDash(format.First(rec.Service.Description)), styleDescription),
	}
}

func (b *Builder) totals(rec model.Record) Section {
	th := func(v string) Cell {
		return Cell{Content: Text{Value: v, Style: styleTH, NoWrap: true}, Fill: colorHeadFill}
	}
	td := func(v string) Cell { return cell(text(v, styleTD)) }

	return Section{
		Kind:         KindTotals,
		MarginBottom: 8,
		Body: Table{
			Widths:  []Width{Percent(30), Percent(30), Percent(20), Percent(20)},
			Lines:   Lines{Outer: true, InnerH: true, InnerV: true, Width: 1, Color: colorRule},
			Padding: Padding{H: 4, V: 3},
			Rows: [][]Cell{
				{
					th("Valor dos Serviços (R$)"),
					th("Valor Total Recebido (R$)"),
					th("Alíquota (%)"),
					th("Valor do ISS (R$)"),
				},
				{
					td(format.FormatMoney(rec.Amounts.Services)),
					td(format.FormatMoney(rec.Amounts.Received())),
					td(format.FormatDecimal(rec.Amounts.Rate, 2)),
					td(format.FormatMoney(rec.Amounts.ISS)),
				},
			},
		},
	}
}

func (b *Builder) notices() Section {
	items := make([]Block, len(b.opts.Notices))
	for i, n := range b.opts.Notices {
		items[i] = text(n, styleNotice)
	}
	return Section{
		Kind:      KindNotices,
		MarginTop: 4,
		Body:      Stack{Items: items, Gap: 3},
	}
}
