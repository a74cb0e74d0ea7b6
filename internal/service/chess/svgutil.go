package chess

import (
	"bytes"
	"fmt"
	"image/color"
)

var (
	fillPlaceholder   = []byte("{{FILL}}")
	strokePlaceholder = []byte("{{STROKE}}")
)

func hexColor(c color.RGBA) []byte {
	return []byte(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B))
}

// tintSVG fills the piece templates. The assets carry {{FILL}} and {{STROKE}} placeholders.
func tintSVG(svg []byte, fill, stroke color.RGBA) []byte {
	out := bytes.ReplaceAll(svg, fillPlaceholder, hexColor(fill))
	out = bytes.ReplaceAll(out, strokePlaceholder, hexColor(stroke))
	out = bytes.ReplaceAll(out, []byte("fill: #"), []byte("fill:#"))
	out = bytes.ReplaceAll(out, []byte("stroke: #"), []byte("stroke:#"))
	return out
}
