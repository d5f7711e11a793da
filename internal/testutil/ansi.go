package testutil

import "github.com/charmbracelet/x/ansi"

// StripANSI removes terminal escape sequences (colors, cursor moves, OSC
// hyperlinks) so rendered views can be compared as plain text.
func StripANSI(s string) string {
	return ansi.Strip(s)
}
