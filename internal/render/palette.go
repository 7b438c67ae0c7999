package render

var (
	defaultPalette = []rune(" .:-=+*#%@")
	blockPalette   = []rune(" ░▒▓█")
	dotsPalette    = []rune(" .·•●")
	sparkPalette   = []rune(" .'`^*+✦✧★")
)

// Palette returns characters used for brightness mapping, darkest first.
func Palette(name string) []rune {
	switch name {
	case "blocks", "box":
		return blockPalette
	case "dots":
		return dotsPalette
	case "spark":
		return sparkPalette
	default:
		return defaultPalette
	}
}

// PaletteNames returns all palette identifiers.
func PaletteNames() []string {
	return []string{"default", "blocks", "dots", "spark"}
}
