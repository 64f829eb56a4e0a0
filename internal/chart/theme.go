package chart

import (
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Theme carries presentation colours. It never influences which traces are
// built, only how they are drawn.
type Theme struct {
	Name  string
	Paper drawing.Color
	Plot  drawing.Color
	Text  drawing.Color
}

var (
	ThemeLight = Theme{
		Name:  "light",
		Paper: drawing.ColorWhite,
		Plot:  drawing.ColorTransparent,
		Text:  drawing.ColorFromHex("7f7f7f"),
	}
	ThemeDark = Theme{
		Name:  "dark",
		Paper: drawing.ColorFromHex("d3d3d3"), // LightGrey
		Plot:  drawing.ColorTransparent,
		Text:  drawing.ColorFromHex("3f3f3f"),
	}
)

// ThemeByName returns the named theme, falling back to light.
func ThemeByName(name string) Theme {
	if strings.EqualFold(strings.TrimSpace(name), ThemeDark.Name) {
		return ThemeDark
	}
	return ThemeLight
}
