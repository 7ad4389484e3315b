package render

// Embed color palette.
const (
	ColorPrimary   = 0x2C3E50
	ColorSecondary = 0x3498DB
	ColorSuccess   = 0x27AE60
	ColorWarning   = 0xF39C12
	ColorError     = 0xE74C3C
	ColorInfo      = 0x9B59B6
	ColorGold      = 0xF1C40F
)

var rankColors = map[string]int{
	"Demon God":      0x36393F,
	"Heavenly Demon": 0x4B0082,
	"Supreme Demon":  0xE74C3C,
	"Guardian":       0x3498DB,
	"Demon Council":  0x9B59B6,
	"Young Master":   0x3498DB,
	"Core Disciple":  0xF1C40F,
	"Inner Disciple": 0x3498DB,
	"Outer Disciple": 0x95A5A6,
	"Servant":        0x7F8C8D,
}

// RankColor returns the embed color for a rank title, defaulting to the
// primary palette color for unknown titles.
func RankColor(title string) int {
	if c, ok := rankColors[title]; ok {
		return c
	}
	return ColorPrimary
}
