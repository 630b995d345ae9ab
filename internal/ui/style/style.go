// Package style provides shared UI styling primitives including brand colors
// and icons for consistent visual presentation across the CLI.
package style

// Brand colors, rendered via termenv.RGBColor.
const (
	Iris   = "#8B5CF6"
	Slate  = "#667085"
	White  = "#FFFFFF"
	Ink    = "#0B0F19"
	Mist   = "#F6F7FB"
	Green  = "#22A06B"
	Red    = "#D93025"
	Yellow = "#F59E0B"
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Circle  = "○"
)
