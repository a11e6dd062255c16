package highlight

import (
	"hash/fnv"

	"github.com/lucasb-eyer/go-colorful"
)

// Theme maps token-type legend indices to terminal colors. It is built
// once per session from the server's legend; index stability is what
// keeps stored token types meaningful for the session's lifetime.
type Theme struct {
	colors []colorful.Color
	names  []string
}

// namedColors anchors the common token types to a fixed palette so a
// session against any server colors keywords and strings consistently.
var namedColors = map[string]string{
	"keyword":   "#c678dd",
	"string":    "#98c379",
	"number":    "#d19a66",
	"comment":   "#5c6370",
	"function":  "#61afef",
	"method":    "#61afef",
	"type":      "#e5c07b",
	"class":     "#e5c07b",
	"struct":    "#e5c07b",
	"interface": "#e5c07b",
	"enum":      "#e5c07b",
	"variable":  "#e06c75",
	"parameter": "#abb2bf",
	"property":  "#e06c75",
	"namespace": "#e5c07b",
	"operator":  "#56b6c2",
	"macro":     "#c678dd",
}

// NewTheme derives a color per legend entry. Known names use the fixed
// palette; unknown names get a stable hue from their name hash so the
// same legend always yields the same colors.
func NewTheme(legend []string) *Theme {
	th := &Theme{
		colors: make([]colorful.Color, len(legend)),
		names:  append([]string(nil), legend...),
	}
	for i, name := range legend {
		if hex, ok := namedColors[name]; ok {
			if c, err := colorful.Hex(hex); err == nil {
				th.colors[i] = c
				continue
			}
		}
		th.colors[i] = hashedColor(name)
	}
	return th
}

// hashedColor picks a readable color deterministically from a name.
func hashedColor(name string) colorful.Color {
	h := fnv.New32a()
	h.Write([]byte(name))
	hue := float64(h.Sum32()%360)
	return colorful.Hsv(hue, 0.45, 0.85)
}

// Color returns the color for a token-type index. Out-of-legend
// indices fall back to a neutral gray rather than failing.
func (th *Theme) Color(tokenType int) colorful.Color {
	if tokenType < 0 || tokenType >= len(th.colors) {
		c, _ := colorful.Hex("#abb2bf")
		return c
	}
	return th.colors[tokenType]
}

// Hex returns the color for a token-type index as an RGB hex string.
func (th *Theme) Hex(tokenType int) string {
	return th.Color(tokenType).Hex()
}

// Len returns the legend length the theme was built from.
func (th *Theme) Len() int { return len(th.colors) }
