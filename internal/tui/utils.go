package tui

import (
	"github.com/rivo/uniseg"
)

// graphemeLen counts user-perceived characters (grapheme clusters)
// to handle emoji and ZWJ sequences correctly in TUI input fields.
func graphemeLen(s string) int {
	return uniseg.GraphemeClusterCount(s)
}
