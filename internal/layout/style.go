package layout

// Style is the typography of a text run. Zero fields inherit the
// document default.
type Style struct {
	Size       float64
	Bold       bool
	Italic     bool
	Color      string
	LineHeight float64
}

const (
	colorRule      = "#BFBFBF"
	colorRuleLight = "#E0E0E0"
	colorTitleFill = "#EEEEEE"
	colorHeadFill  = "#DDDDDD"
	colorMuted     = "#555555"
)

var (
	styleTitle        = Style{Size: 11, Bold: true, LineHeight: 1.1}
	styleTitleSmall   = Style{Size: 12, Bold: true}
	styleBoxLabel     = Style{Size: 10, Bold: true}
	styleBoxValue     = Style{Size: 12, Bold: true}
	styleTH           = Style{Size: 10, Bold: true}
	styleTHMuted      = Style{Size: 10, Color: colorMuted}
	styleTD           = Style{Size: 10}
	styleFieldLabel   = Style{Size: 9, Bold: true, LineHeight: 1.05}
	styleFieldValue   = Style{Size: 9, LineHeight: 1.05}
	styleDescription  = Style{Size: 9, LineHeight: 1.2}
	styleNotice       = Style{Size: 8.5, Italic: true, LineHeight: 1.1}
	styleSectionTitle = Style{Size: 10, Bold: true}
)

// SectionTitleStyle is used for section title bars
var SectionTitleStyle = styleSectionTitle

// SectionTitleFill is the background of section title bars
const SectionTitleFill = colorTitleFill

// SectionRule is the color of the box drawn around boxed sections
const SectionRule = colorRule
