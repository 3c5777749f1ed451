package color

import "strings"

// Swatch is a named palette color.
type Swatch struct {
	Name string
	Hex  string
}

// Palette is an ordered list of named colors.
type Palette []Swatch

// Moods is the built-in calendar palette, one color per mood.
var Moods = Palette{
	{Name: "Happy", Hex: "#FACC15"},
	{Name: "Sad", Hex: "#3B82F6"},
	{Name: "Angry", Hex: "#EF4444"},
	{Name: "Calm", Hex: "#22C55E"},
	{Name: "Anxious", Hex: "#A855F7"},
	{Name: "Neutral", Hex: "#9CA3AF"},
}

// DefaultBrush is the color selected when nothing else has been chosen.
const DefaultBrush = "#FACC15"

// Name returns the swatch name for hex, or "" if the color is not in the
// palette. Matching is case-insensitive and tolerates a missing '#'.
func (p Palette) Name(hex string) string {
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	for _, s := range p {
		if strings.EqualFold(s.Hex, hex) {
			return s.Name
		}
	}
	return ""
}

// Label returns the swatch name for hex, falling back to the hex string.
func (p Palette) Label(hex string) string {
	if name := p.Name(hex); name != "" {
		return name
	}
	return strings.ToUpper(hex)
}
