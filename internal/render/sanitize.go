package render

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// Sanitize strips terminal escape sequences and control characters from
// content received over the network. Newlines and tabs are kept; CRLF is
// normalised to LF.
func Sanitize(content string) string {
	content = ansi.Strip(content)
	content = strings.ReplaceAll(content, "\r\n", "\n")

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		case r >= 0x80 && r <= 0x9f:
			// C1 controls
			return -1
		default:
			return r
		}
	}, content)
}
